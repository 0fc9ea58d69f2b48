package billing

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrGatewayNotConfigured    = errors.New("payment: gateway not configured")
	ErrGatewayInvalidCallback  = errors.New("payment: invalid callback signature")
	ErrGatewayMerchantMismatch = errors.New("payment: callback merchant does not match")
)

// NotificationStatus is the payment_status PayFast reports in an ITN.
type NotificationStatus string

const (
	NotificationStatusComplete  NotificationStatus = "COMPLETE"
	NotificationStatusFailed    NotificationStatus = "FAILED"
	NotificationStatusCancelled NotificationStatus = "CANCELLED"
	NotificationStatusPending   NotificationStatus = "PENDING"
)

// Notification is a verified payment callback.
type Notification struct {
	MerchantReference string
	ProviderPaymentID string
	Status            NotificationStatus
	AmountGross       decimal.Decimal
	AmountFee         decimal.Decimal
	AmountNet         decimal.Decimal
	ProfileID         string
	TierRequested     string
	BuyerEmail        string
	ItemName          string
	RawPayload        string
}

// CheckoutRequest describes a hosted payment page to redirect a buyer to.
type CheckoutRequest struct {
	MerchantReference string
	Amount            decimal.Decimal
	ItemName          string
	BuyerEmail        string
	BuyerName         string
	ProfileID         string
	TierRequested     string
}

// CheckoutForm holds the fields to POST to the gateway's process URL.
type CheckoutForm struct {
	ActionURL string            `json:"action_url"`
	Fields    map[string]string `json:"fields"`
}

// Gateway verifies ITN callbacks and builds checkout forms.
type Gateway interface {
	// VerifyNotification checks the signature and parses the form body.
	VerifyNotification(ctx context.Context, body []byte) (*Notification, error)
	// BuildCheckout returns the signed form for a hosted checkout.
	BuildCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutForm, error)
}
