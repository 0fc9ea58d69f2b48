package payment

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/url"
	"strings"

	"github.com/a2zsellr/backend/internal/domain/billing"
	"github.com/shopspring/decimal"
)

// PayFastAdapter verifies PayFast ITN callbacks and builds signed
// checkout forms
type PayFastAdapter struct {
	config PayFastConfig
}

// NewPayFastAdapter creates a new PayFast adapter
func NewPayFastAdapter(cfg PayFastConfig) *PayFastAdapter {
	return &PayFastAdapter{config: cfg}
}

// VerifyNotification checks the ITN signature and merchant, then parses
// the notification. PayFast signs fields in posting order; an
// alphabetically sorted signature is also accepted.
func (a *PayFastAdapter) VerifyNotification(_ context.Context, body []byte) (*billing.Notification, error) {
	payload := string(body)
	fields, err := parseOrderedForm(payload)
	if err != nil {
		return nil, fmt.Errorf("payfast: failed to parse notification: %w", err)
	}
	values, err := url.ParseQuery(payload)
	if err != nil {
		return nil, fmt.Errorf("payfast: failed to parse notification: %w", err)
	}

	given := strings.ToLower(strings.TrimSpace(values.Get("signature")))
	if given == "" {
		return nil, billing.ErrGatewayInvalidCallback
	}
	if !signatureMatches(given, Signature(fields, a.config.Passphrase)) &&
		!signatureMatches(given, SortedSignature(values, a.config.Passphrase)) {
		return nil, billing.ErrGatewayInvalidCallback
	}

	if a.config.MerchantID != "" && values.Get("merchant_id") != a.config.MerchantID {
		return nil, billing.ErrGatewayMerchantMismatch
	}

	return parseNotification(values, payload), nil
}

// BuildCheckout returns the signed form fields for the hosted checkout
func (a *PayFastAdapter) BuildCheckout(_ context.Context, req billing.CheckoutRequest) (*billing.CheckoutForm, error) {
	if err := a.config.ValidateForCheckout(); err != nil {
		return nil, fmt.Errorf("%w: %v", billing.ErrGatewayNotConfigured, err)
	}
	if !req.Amount.IsPositive() {
		return nil, billing.ErrTransactionInvalidAmount
	}

	firstName, lastName, _ := strings.Cut(strings.TrimSpace(req.BuyerName), " ")

	// PayFast requires checkout fields signed in its documented order
	ordered := []Field{
		{"merchant_id", a.config.MerchantID},
		{"merchant_key", a.config.MerchantKey},
		{"return_url", a.config.ReturnURL},
		{"cancel_url", a.config.CancelURL},
		{"notify_url", a.config.NotifyURL},
		{"name_first", firstName},
		{"name_last", strings.TrimSpace(lastName)},
		{"email_address", req.BuyerEmail},
		{"m_payment_id", req.MerchantReference},
		{"amount", req.Amount.StringFixed(2)},
		{"item_name", req.ItemName},
		{"custom_str1", req.ProfileID},
		{"custom_str2", req.TierRequested},
	}

	form := &billing.CheckoutForm{
		ActionURL: a.config.ProcessURL(),
		Fields:    make(map[string]string, len(ordered)+1),
	}
	for _, f := range ordered {
		if strings.TrimSpace(f.Value) != "" {
			form.Fields[f.Key] = f.Value
		}
	}
	form.Fields["signature"] = Signature(ordered, a.config.Passphrase)
	return form, nil
}

func signatureMatches(given, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(given), []byte(expected)) == 1
}

// parseNotification maps ITN fields to a Notification. The profile and
// tier travel in custom_str1/custom_str2; profileId/tierRequested are
// accepted from older checkout forms.
func parseNotification(values url.Values, payload string) *billing.Notification {
	n := &billing.Notification{
		MerchantReference: values.Get("m_payment_id"),
		ProviderPaymentID: values.Get("pf_payment_id"),
		Status:            billing.NotificationStatus(strings.ToUpper(values.Get("payment_status"))),
		AmountGross:       parseAmount(values.Get("amount_gross")),
		AmountFee:         parseAmount(values.Get("amount_fee")),
		AmountNet:         parseAmount(values.Get("amount_net")),
		ProfileID:         firstNonEmpty(values.Get("custom_str1"), values.Get("profileId")),
		TierRequested:     firstNonEmpty(values.Get("custom_str2"), values.Get("tierRequested")),
		BuyerEmail:        values.Get("email_address"),
		ItemName:          values.Get("item_name"),
		RawPayload:        payload,
	}
	return n
}

func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var _ billing.Gateway = (*PayFastAdapter)(nil)
