package billing

import (
	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

const (
	AggregateTypePaymentTransaction = "PaymentTransaction"
	EventTypePaymentCompleted       = "PaymentCompleted"
)

// PaymentCompletedEvent is published when a subscription payment is paid.
type PaymentCompletedEvent struct {
	shared.BaseDomainEvent
	Tier              profile.SubscriptionTier `json:"tier"`
	Amount            decimal.Decimal          `json:"amount"`
	MerchantReference string                   `json:"merchant_reference"`
}

// NewPaymentCompletedEvent creates a PaymentCompletedEvent
func NewPaymentCompletedEvent(t *PaymentTransaction) *PaymentCompletedEvent {
	return &PaymentCompletedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypePaymentCompleted, AggregateTypePaymentTransaction, t.ID, t.ProfileID),
		Tier:              t.TierRequested,
		Amount:            t.Amount,
		MerchantReference: t.MerchantReference,
	}
}
