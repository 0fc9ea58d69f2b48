package messaging

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/a2zsellr/backend/internal/domain/billing"
	"github.com/a2zsellr/backend/internal/domain/messaging"
	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/a2zsellr/backend/internal/domain/reset"
	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/a2zsellr/backend/internal/infrastructure/email"
)

// Enqueuer stores a rendered email for the queue worker
type Enqueuer interface {
	Enqueue(ctx context.Context, tmpl messaging.Template, data email.TemplateData) (*messaging.QueuedEmail, error)
}

// PaymentCompletedHandler queues the subscription-activated email
type PaymentCompletedHandler struct {
	emails   Enqueuer
	profiles profile.ProfileRepository
	logger   *zap.Logger
}

// NewPaymentCompletedHandler creates a new PaymentCompletedHandler
func NewPaymentCompletedHandler(emails Enqueuer, profiles profile.ProfileRepository, logger *zap.Logger) *PaymentCompletedHandler {
	return &PaymentCompletedHandler{emails: emails, profiles: profiles, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *PaymentCompletedHandler) EventTypes() []string {
	return []string{billing.EventTypePaymentCompleted}
}

// Handle processes a PaymentCompleted event
func (h *PaymentCompletedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	e, ok := event.(*billing.PaymentCompletedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: %T", event)
	}

	p, err := h.profiles.FindByID(ctx, e.ProfileID())
	if err != nil {
		return fmt.Errorf("failed to load profile %s: %w", e.ProfileID(), err)
	}

	queued, err := h.emails.Enqueue(ctx, messaging.TemplateSubscriptionActivated, email.TemplateData{
		Email:     p.Email,
		Name:      p.Name(),
		Tier:      string(e.Tier),
		Amount:    e.Amount.StringFixed(2),
		Reference: e.MerchantReference,
	})
	if err != nil {
		return err
	}

	h.logger.Info("Subscription email queued",
		zap.String("profile_id", p.ID.String()),
		zap.String("tier", string(e.Tier)),
		zap.String("email_id", queued.ID.String()))
	return nil
}

// ContentResetHandler queues the content-reset notice
type ContentResetHandler struct {
	emails Enqueuer
	logger *zap.Logger
}

// NewContentResetHandler creates a new ContentResetHandler
func NewContentResetHandler(emails Enqueuer, logger *zap.Logger) *ContentResetHandler {
	return &ContentResetHandler{emails: emails, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *ContentResetHandler) EventTypes() []string {
	return []string{reset.EventTypeContentReset}
}

// Handle processes a ProfileContentReset event
func (h *ContentResetHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	e, ok := event.(*reset.ContentResetEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: %T", event)
	}
	if e.Email == "" {
		h.logger.Debug("Profile has no email, skipping reset notice",
			zap.String("profile_id", e.ProfileID().String()))
		return nil
	}

	_, err := h.emails.Enqueue(ctx, messaging.TemplateContentReset, email.TemplateData{
		Email:           e.Email,
		Name:            e.Name,
		ProductsDeleted: e.Deleted.Products,
		ListingsDeleted: e.Deleted.Listings,
		GalleryDeleted:  e.Deleted.GalleryItems,
	})
	return err
}
