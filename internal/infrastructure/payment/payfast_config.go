package payment

import (
	"errors"

	"github.com/a2zsellr/backend/internal/infrastructure/config"
)

const (
	payFastProcessURL        = "https://www.payfast.co.za/eng/process"
	payFastSandboxProcessURL = "https://sandbox.payfast.co.za/eng/process"
)

// PayFastConfig contains the merchant settings for PayFast
type PayFastConfig struct {
	// MerchantID is checked against merchant_id in every ITN when set
	MerchantID  string
	MerchantKey string
	// Passphrase is appended to the signature string when set
	Passphrase string
	Sandbox    bool
	NotifyURL  string
	ReturnURL  string
	CancelURL  string
}

var (
	ErrPayFastMissingMerchantID  = errors.New("payfast: missing merchant ID")
	ErrPayFastMissingMerchantKey = errors.New("payfast: missing merchant key")
	ErrPayFastMissingNotifyURL   = errors.New("payfast: missing notify URL")
)

// PayFastConfigFrom maps application config to gateway config
func PayFastConfigFrom(cfg config.PayFastConfig) PayFastConfig {
	return PayFastConfig{
		MerchantID:  cfg.MerchantID,
		MerchantKey: cfg.MerchantKey,
		Passphrase:  cfg.Passphrase,
		Sandbox:     cfg.Sandbox,
		NotifyURL:   cfg.NotifyURL,
		ReturnURL:   cfg.ReturnURL,
		CancelURL:   cfg.CancelURL,
	}
}

// ValidateForCheckout checks the settings needed to build checkout forms.
// ITN verification only needs the passphrase, so it is not gated on this.
func (c PayFastConfig) ValidateForCheckout() error {
	if c.MerchantID == "" {
		return ErrPayFastMissingMerchantID
	}
	if c.MerchantKey == "" {
		return ErrPayFastMissingMerchantKey
	}
	if c.NotifyURL == "" {
		return ErrPayFastMissingNotifyURL
	}
	return nil
}

// ProcessURL returns the hosted checkout URL
func (c PayFastConfig) ProcessURL() string {
	if c.Sandbox {
		return payFastSandboxProcessURL
	}
	return payFastProcessURL
}
