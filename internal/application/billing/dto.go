package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/a2zsellr/backend/internal/domain/billing"
)

// NotificationResult reports what an ITN changed
type NotificationResult struct {
	MerchantReference string `json:"merchant_reference"`
	PaymentStatus     string `json:"payment_status"`
	Processed         bool   `json:"processed"`
	Duplicate         bool   `json:"duplicate,omitempty"`
	Message           string `json:"message,omitempty"`
}

// CheckoutRequest starts a tier upgrade
type CheckoutRequest struct {
	Tier string `json:"tier" binding:"required,oneof=premium business"`
}

// CheckoutResponse carries the signed PayFast form the browser posts
type CheckoutResponse struct {
	TransactionID     uuid.UUID         `json:"transaction_id"`
	MerchantReference string            `json:"merchant_reference"`
	Tier              string            `json:"tier"`
	Amount            decimal.Decimal   `json:"amount"`
	ActionURL         string            `json:"action_url"`
	Fields            map[string]string `json:"fields"`
}

// TransactionResponse is a payment_transactions row
type TransactionResponse struct {
	ID                uuid.UUID       `json:"id"`
	ProfileID         uuid.UUID       `json:"profile_id"`
	TierRequested     string          `json:"tier_requested"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Status            string          `json:"status"`
	PaymentMethod     string          `json:"payment_method"`
	MerchantReference string          `json:"merchant_reference"`
	ProviderPaymentID string          `json:"provider_payment_id,omitempty"`
	FailureReason     string          `json:"failure_reason,omitempty"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ToTransactionResponse converts a domain transaction
func ToTransactionResponse(t *billing.PaymentTransaction) TransactionResponse {
	return TransactionResponse{
		ID:                t.ID,
		ProfileID:         t.ProfileID,
		TierRequested:     string(t.TierRequested),
		Amount:            t.Amount,
		Currency:          t.Currency,
		Status:            string(t.Status),
		PaymentMethod:     string(t.PaymentMethod),
		MerchantReference: t.MerchantReference,
		ProviderPaymentID: t.ProviderPaymentID,
		FailureReason:     t.FailureReason,
		PaidAt:            t.PaidAt,
		CreatedAt:         t.CreatedAt,
	}
}

// TransactionFilter pages a profile's payments
type TransactionFilter struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}
