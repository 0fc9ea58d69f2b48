package models

import (
	"time"

	"github.com/a2zsellr/backend/internal/domain/billing"
	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentTransactionModel is the persistence model for payment_transactions.
type PaymentTransactionModel struct {
	BaseModel
	ProfileID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	TierRequested     string          `gorm:"type:varchar(20);not null"`
	Amount            decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Currency          string          `gorm:"type:varchar(3);not null;default:'ZAR'"`
	Status            string          `gorm:"type:varchar(20);not null;default:'pending';index"`
	PaymentMethod     string          `gorm:"type:varchar(20);not null;default:'payfast'"`
	MerchantReference string          `gorm:"type:varchar(64);not null;uniqueIndex"`
	ProviderPaymentID string          `gorm:"type:varchar(64);index"`
	RawPayload        string          `gorm:"type:text"`
	FailureReason     string          `gorm:"type:text"`
	PaidAt            *time.Time
}

func (PaymentTransactionModel) TableName() string { return "payment_transactions" }

// ToDomain converts the model to a domain PaymentTransaction
func (m *PaymentTransactionModel) ToDomain() *billing.PaymentTransaction {
	return &billing.PaymentTransaction{
		BaseAggregateRoot: shared.BaseAggregateRoot{BaseEntity: m.BaseModel.ToDomain()},
		ProfileID:         m.ProfileID,
		TierRequested:     profile.SubscriptionTier(m.TierRequested),
		Amount:            m.Amount,
		Currency:          m.Currency,
		Status:            billing.TransactionStatus(m.Status),
		PaymentMethod:     billing.PaymentMethod(m.PaymentMethod),
		MerchantReference: m.MerchantReference,
		ProviderPaymentID: m.ProviderPaymentID,
		RawPayload:        m.RawPayload,
		FailureReason:     m.FailureReason,
		PaidAt:            m.PaidAt,
	}
}

// PaymentTransactionFromDomain creates a model from a domain PaymentTransaction
func PaymentTransactionFromDomain(t *billing.PaymentTransaction) *PaymentTransactionModel {
	m := &PaymentTransactionModel{
		ProfileID:         t.ProfileID,
		TierRequested:     string(t.TierRequested),
		Amount:            t.Amount,
		Currency:          t.Currency,
		Status:            string(t.Status),
		PaymentMethod:     string(t.PaymentMethod),
		MerchantReference: t.MerchantReference,
		ProviderPaymentID: t.ProviderPaymentID,
		RawPayload:        t.RawPayload,
		FailureReason:     t.FailureReason,
		PaidAt:            t.PaidAt,
	}
	m.FromDomainBaseEntity(t.BaseEntity)
	return m
}
