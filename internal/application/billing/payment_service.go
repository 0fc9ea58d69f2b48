// Package billing implements subscription checkout and PayFast ITN handling.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/a2zsellr/backend/internal/domain/billing"
	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/a2zsellr/backend/internal/domain/shared"
)

// DefaultNotificationTTL is how long a handled ITN is remembered
const DefaultNotificationTTL = 72 * time.Hour

// PaymentService applies PayFast notifications and starts checkouts
type PaymentService struct {
	gateway      billing.Gateway
	transactions billing.PaymentTransactionRepository
	settlement   billing.SettlementStore
	profiles     profile.ProfileRepository
	idempotency  shared.IdempotencyStore
	events       shared.EventPublisher
	prices       billing.PriceList
	ttl          time.Duration
	logger       *zap.Logger

	now func() time.Time
}

// PaymentServiceConfig contains the collaborators of PaymentService.
// Idempotency and Events are optional.
type PaymentServiceConfig struct {
	Gateway      billing.Gateway
	Transactions billing.PaymentTransactionRepository
	Settlement   billing.SettlementStore
	Profiles     profile.ProfileRepository
	Idempotency  shared.IdempotencyStore
	Events       shared.EventPublisher
	Prices       billing.PriceList
	// NotificationTTL overrides DefaultNotificationTTL when positive
	NotificationTTL time.Duration
	Logger          *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(cfg PaymentServiceConfig) *PaymentService {
	s := &PaymentService{
		gateway:      cfg.Gateway,
		transactions: cfg.Transactions,
		settlement:   cfg.Settlement,
		profiles:     cfg.Profiles,
		idempotency:  cfg.Idempotency,
		events:       cfg.Events,
		prices:       cfg.Prices,
		ttl:          cfg.NotificationTTL,
		logger:       cfg.Logger,
		now:          time.Now,
	}
	if len(s.prices) == 0 {
		s.prices = billing.DefaultPriceList()
	}
	if s.ttl <= 0 {
		s.ttl = DefaultNotificationTTL
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// HandleNotification verifies and applies one ITN body. Signature and
// merchant failures return ErrInvalidSignature without touching state.
func (s *PaymentService) HandleNotification(ctx context.Context, body []byte) (*NotificationResult, error) {
	n, err := s.gateway.VerifyNotification(ctx, body)
	if err != nil {
		if errors.Is(err, billing.ErrGatewayInvalidCallback) || errors.Is(err, billing.ErrGatewayMerchantMismatch) {
			s.logger.Warn("Rejected PayFast notification", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidSignature, err)
		}
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}

	result := &NotificationResult{
		MerchantReference: n.MerchantReference,
		PaymentStatus:     string(n.Status),
	}
	logger := s.logger.With(
		zap.String("m_payment_id", n.MerchantReference),
		zap.String("pf_payment_id", n.ProviderPaymentID),
		zap.String("payment_status", string(n.Status)))

	key := notificationKey(n)
	claimed, err := s.claim(ctx, key)
	if err != nil {
		logger.Warn("Idempotency store unavailable, processing notification anyway", zap.Error(err))
	} else if !claimed {
		logger.Info("Duplicate PayFast notification ignored")
		result.Duplicate = true
		result.Message = "already processed"
		return result, nil
	}

	switch n.Status {
	case billing.NotificationStatusComplete:
		err = s.complete(ctx, n)
	case billing.NotificationStatusFailed:
		err = s.finish(ctx, n, func(tx *billing.PaymentTransaction) error {
			return tx.MarkFailed("payfast reported FAILED")
		})
	case billing.NotificationStatusCancelled:
		err = s.finish(ctx, n, func(tx *billing.PaymentTransaction) error {
			return tx.MarkCancelled()
		})
	default:
		logger.Info("PayFast notification acknowledged without changes")
		result.Message = "status acknowledged"
		return result, nil
	}

	if err != nil {
		s.release(ctx, key)
		logger.Error("Failed to apply PayFast notification", zap.Error(err))
		return nil, err
	}

	result.Processed = true
	logger.Info("PayFast notification applied")
	return result, nil
}

func (s *PaymentService) complete(ctx context.Context, n *billing.Notification) error {
	tx, err := s.findTransaction(ctx, n.MerchantReference)
	if err != nil {
		return err
	}

	profileID, tier, err := s.resolveTarget(ctx, n, tx)
	if err != nil {
		return err
	}

	if tx == nil {
		amount := n.AmountGross
		if !amount.IsPositive() {
			amount, _ = s.prices.PriceOf(tier)
		}
		tx, err = billing.NewPaymentTransaction(profileID, tier, amount, billing.PaymentMethodPayFast)
		if err != nil {
			return shared.NewDomainError("INVALID_INPUT", err.Error())
		}
		if n.MerchantReference != "" {
			tx.MerchantReference = n.MerchantReference
		}
	} else if n.AmountGross.IsPositive() && !n.AmountGross.Equal(tx.Amount) {
		return shared.NewDomainError("INVALID_INPUT",
			fmt.Sprintf("amount_gross %s does not match transaction amount %s", n.AmountGross.StringFixed(2), tx.Amount.StringFixed(2)))
	}

	if err := tx.MarkPaid(n.ProviderPaymentID, s.now()); err != nil {
		return err
	}
	tx.RawPayload = n.RawPayload

	if err := s.settlement.Settle(ctx, tx, tier); err != nil {
		return fmt.Errorf("failed to settle payment: %w", err)
	}

	s.publish(ctx, tx)
	return nil
}

// resolveTarget picks the profile and tier to upgrade. Values posted in
// the ITN win; the stored transaction fills gaps and must agree. A payment
// with neither falls back to the buyer's email address.
func (s *PaymentService) resolveTarget(ctx context.Context, n *billing.Notification, tx *billing.PaymentTransaction) (uuid.UUID, profile.SubscriptionTier, error) {
	var (
		profileID uuid.UUID
		tier      profile.SubscriptionTier
	)
	if tx != nil {
		profileID = tx.ProfileID
		tier = tx.TierRequested
	}

	if n.ProfileID != "" {
		id, err := uuid.Parse(n.ProfileID)
		if err != nil {
			return uuid.Nil, "", shared.NewDomainError("INVALID_INPUT", "custom_str1 is not a valid profile id")
		}
		if tx != nil && id != tx.ProfileID {
			return uuid.Nil, "", shared.NewDomainError("INVALID_INPUT", "profile id does not match the payment")
		}
		profileID = id
	}
	if n.TierRequested != "" {
		t, err := profile.ParseTier(n.TierRequested)
		if err != nil {
			return uuid.Nil, "", err
		}
		tier = t
	}

	if profileID == uuid.Nil && n.BuyerEmail != "" {
		p, err := s.profiles.FindByEmail(ctx, n.BuyerEmail)
		switch {
		case err == nil:
			profileID = p.ID
		case !errors.Is(err, shared.ErrNotFound):
			return uuid.Nil, "", fmt.Errorf("failed to look up buyer: %w", err)
		}
	}
	if profileID == uuid.Nil {
		return uuid.Nil, "", shared.NewDomainError("INVALID_INPUT", "profile id is required")
	}
	if tier == "" || tier == profile.TierFree {
		return uuid.Nil, "", shared.NewDomainError("INVALID_INPUT", "a paid tier is required")
	}
	return profileID, tier, nil
}

func (s *PaymentService) finish(ctx context.Context, n *billing.Notification, apply func(*billing.PaymentTransaction) error) error {
	tx, err := s.findTransaction(ctx, n.MerchantReference)
	if err != nil {
		return err
	}
	if tx == nil {
		s.logger.Warn("No transaction for PayFast notification",
			zap.String("m_payment_id", n.MerchantReference),
			zap.String("payment_status", string(n.Status)))
		return nil
	}

	if err := apply(tx); err != nil {
		if errors.Is(err, billing.ErrTransactionNotPending) {
			s.logger.Warn("Ignoring late PayFast status",
				zap.String("m_payment_id", n.MerchantReference),
				zap.String("transaction_status", string(tx.Status)),
				zap.String("payment_status", string(n.Status)))
			return nil
		}
		return err
	}
	tx.RawPayload = n.RawPayload
	if n.ProviderPaymentID != "" {
		tx.ProviderPaymentID = n.ProviderPaymentID
	}
	if err := s.transactions.Save(ctx, tx); err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

func (s *PaymentService) findTransaction(ctx context.Context, ref string) (*billing.PaymentTransaction, error) {
	if ref == "" {
		return nil, nil
	}
	tx, err := s.transactions.FindByMerchantReference(ctx, ref)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	return tx, nil
}

func (s *PaymentService) publish(ctx context.Context, tx *billing.PaymentTransaction) {
	events := tx.GetDomainEvents()
	tx.ClearDomainEvents()
	if s.events == nil || len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish payment events",
			zap.String("transaction_id", tx.ID.String()),
			zap.Error(err))
	}
}

func (s *PaymentService) claim(ctx context.Context, key string) (bool, error) {
	if s.idempotency == nil {
		return true, nil
	}
	return s.idempotency.MarkProcessed(ctx, key, s.ttl)
}

func (s *PaymentService) release(ctx context.Context, key string) {
	if s.idempotency == nil {
		return
	}
	if err := s.idempotency.Release(ctx, key); err != nil {
		s.logger.Warn("Failed to release notification key", zap.String("key", key), zap.Error(err))
	}
}

func notificationKey(n *billing.Notification) string {
	id := n.ProviderPaymentID
	if id == "" {
		id = n.MerchantReference
	}
	return "payfast:itn:" + id + ":" + string(n.Status)
}

// CreateCheckout records a pending transaction for tier and returns the
// signed PayFast form
func (s *PaymentService) CreateCheckout(ctx context.Context, profileID uuid.UUID, req CheckoutRequest) (*CheckoutResponse, error) {
	tier, err := profile.ParseTier(req.Tier)
	if err != nil {
		return nil, err
	}
	price, ok := s.prices.PriceOf(tier)
	if !ok {
		return nil, shared.NewDomainError("INVALID_INPUT", "tier "+string(tier)+" cannot be purchased")
	}

	p, err := s.profiles.FindByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if p.SubscriptionTier == tier {
		return nil, shared.NewDomainError("CONFLICT", "profile is already on the "+string(tier)+" plan")
	}

	tx, err := billing.NewPaymentTransaction(p.ID, tier, price, billing.PaymentMethodPayFast)
	if err != nil {
		return nil, err
	}

	form, err := s.gateway.BuildCheckout(ctx, billing.CheckoutRequest{
		MerchantReference: tx.MerchantReference,
		Amount:            tx.Amount,
		ItemName:          fmt.Sprintf("A2Z Sellr %s subscription", tier),
		BuyerEmail:        p.Email,
		BuyerName:         p.Name(),
		ProfileID:         p.ID.String(),
		TierRequested:     string(tier),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build checkout: %w", err)
	}

	if err := s.transactions.Save(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	s.logger.Info("Checkout created",
		zap.String("profile_id", p.ID.String()),
		zap.String("tier", string(tier)),
		zap.String("m_payment_id", tx.MerchantReference))

	return &CheckoutResponse{
		TransactionID:     tx.ID,
		MerchantReference: tx.MerchantReference,
		Tier:              string(tier),
		Amount:            tx.Amount,
		ActionURL:         form.ActionURL,
		Fields:            form.Fields,
	}, nil
}

// ListTransactions pages a profile's payments, newest first
func (s *PaymentService) ListTransactions(ctx context.Context, profileID uuid.UUID, f TransactionFilter) (*shared.Paginated[TransactionResponse], error) {
	filter := shared.Filter{
		Page:     f.Page,
		PageSize: f.PageSize,
		OrderBy:  "created_at",
		OrderDir: f.OrderDir,
	}.Normalize()

	rows, total, err := s.transactions.FindByProfile(ctx, profileID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	items := make([]TransactionResponse, len(rows))
	for i := range rows {
		items[i] = ToTransactionResponse(&rows[i])
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}
