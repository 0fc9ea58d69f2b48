package billing

import (
	"errors"
	"strings"
	"time"

	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle state of a subscription payment.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusPaid      TransactionStatus = "paid"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// IsTerminal reports whether no further transition is possible.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusPaid || s == TransactionStatusFailed || s == TransactionStatusCancelled
}

// PaymentMethod is how the seller paid.
type PaymentMethod string

const (
	PaymentMethodPayFast PaymentMethod = "payfast"
	PaymentMethodEFT     PaymentMethod = "eft"
)

var (
	ErrTransactionInvalidAmount = errors.New("payment: amount must be positive")
	ErrTransactionInvalidTier   = errors.New("payment: a paid tier is required")
	ErrTransactionNotPending    = shared.NewDomainError("INVALID_TRANSITION", "Payment is no longer pending")
)

// PaymentTransaction is one attempt to buy a subscription tier.
type PaymentTransaction struct {
	shared.BaseAggregateRoot
	ProfileID         uuid.UUID
	TierRequested     profile.SubscriptionTier
	Amount            decimal.Decimal
	Currency          string
	Status            TransactionStatus
	PaymentMethod     PaymentMethod
	MerchantReference string
	ProviderPaymentID string
	RawPayload        string
	FailureReason     string
	PaidAt            *time.Time
}

// NewPaymentTransaction creates a pending payment for a tier upgrade.
func NewPaymentTransaction(profileID uuid.UUID, tier profile.SubscriptionTier, amount decimal.Decimal, method PaymentMethod) (*PaymentTransaction, error) {
	if profileID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PROFILE", "Profile ID is required")
	}
	if !tier.IsValid() || tier == profile.TierFree {
		return nil, ErrTransactionInvalidTier
	}
	if !amount.IsPositive() {
		return nil, ErrTransactionInvalidAmount
	}
	if method == "" {
		method = PaymentMethodPayFast
	}

	tx := &PaymentTransaction{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ProfileID:         profileID,
		TierRequested:     tier,
		Amount:            amount.Round(2),
		Currency:          "ZAR",
		Status:            TransactionStatusPending,
		PaymentMethod:     method,
	}
	tx.MerchantReference = NewMerchantReference(tx.ID)
	return tx, nil
}

// NewMerchantReference derives the m_payment_id sent to PayFast.
func NewMerchantReference(id uuid.UUID) string {
	return "A2Z-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:16])
}

// MarkPaid completes the payment. Marking an already paid transaction
// again is a no-op.
func (t *PaymentTransaction) MarkPaid(providerPaymentID string, paidAt time.Time) error {
	if t.Status == TransactionStatusPaid {
		return nil
	}
	if t.Status != TransactionStatusPending {
		return ErrTransactionNotPending
	}
	t.Status = TransactionStatusPaid
	t.ProviderPaymentID = providerPaymentID
	t.PaidAt = &paidAt
	t.UpdatedAt = paidAt
	t.AddDomainEvent(NewPaymentCompletedEvent(t))
	return nil
}

// MarkFailed records a failed payment.
func (t *PaymentTransaction) MarkFailed(reason string) error {
	return t.finish(TransactionStatusFailed, reason)
}

// MarkCancelled records that the buyer cancelled at PayFast.
func (t *PaymentTransaction) MarkCancelled() error {
	return t.finish(TransactionStatusCancelled, "")
}

func (t *PaymentTransaction) finish(status TransactionStatus, reason string) error {
	if t.Status == status {
		return nil
	}
	if t.Status != TransactionStatusPending {
		return ErrTransactionNotPending
	}
	t.Status = status
	t.FailureReason = reason
	t.UpdatedAt = time.Now()
	return nil
}
