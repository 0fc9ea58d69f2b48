package billing

import (
	"strings"
	"testing"
	"time"

	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPending(t *testing.T) *PaymentTransaction {
	t.Helper()
	tx, err := NewPaymentTransaction(uuid.New(), profile.TierPremium, decimal.RequireFromString("149.00"), PaymentMethodPayFast)
	require.NoError(t, err)
	return tx
}

func TestNewPaymentTransaction(t *testing.T) {
	t.Run("creates pending transaction", func(t *testing.T) {
		tx := newPending(t)

		assert.Equal(t, TransactionStatusPending, tx.Status)
		assert.Equal(t, "ZAR", tx.Currency)
		assert.True(t, strings.HasPrefix(tx.MerchantReference, "A2Z-"))
		assert.Len(t, tx.MerchantReference, 20)
	})

	t.Run("rejects free tier", func(t *testing.T) {
		_, err := NewPaymentTransaction(uuid.New(), profile.TierFree, decimal.NewFromInt(10), PaymentMethodEFT)
		assert.ErrorIs(t, err, ErrTransactionInvalidTier)
	})

	t.Run("rejects zero amount", func(t *testing.T) {
		_, err := NewPaymentTransaction(uuid.New(), profile.TierBusiness, decimal.Zero, PaymentMethodEFT)
		assert.ErrorIs(t, err, ErrTransactionInvalidAmount)
	})
}

func TestPaymentTransaction_MarkPaid(t *testing.T) {
	tx := newPending(t)
	paidAt := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, tx.MarkPaid("pf-123", paidAt))
	assert.Equal(t, TransactionStatusPaid, tx.Status)
	assert.Equal(t, "pf-123", tx.ProviderPaymentID)
	require.Len(t, tx.GetDomainEvents(), 1)

	// duplicate delivery does not raise a second event
	require.NoError(t, tx.MarkPaid("pf-123", paidAt))
	assert.Len(t, tx.GetDomainEvents(), 1)

	assert.ErrorIs(t, tx.MarkFailed("late failure"), ErrTransactionNotPending)
}

func TestPaymentTransaction_MarkFailed(t *testing.T) {
	tx := newPending(t)

	require.NoError(t, tx.MarkFailed("card declined"))
	assert.Equal(t, TransactionStatusFailed, tx.Status)
	assert.Equal(t, "card declined", tx.FailureReason)
	assert.True(t, tx.Status.IsTerminal())

	assert.Error(t, tx.MarkPaid("pf-1", time.Now()))
}

func TestPaymentTransaction_MarkCancelled(t *testing.T) {
	tx := newPending(t)
	require.NoError(t, tx.MarkCancelled())
	require.NoError(t, tx.MarkCancelled())
	assert.Equal(t, TransactionStatusCancelled, tx.Status)
}

func TestPriceList(t *testing.T) {
	prices := DefaultPriceList()

	price, ok := prices.PriceOf(profile.TierBusiness)
	assert.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromInt(299)))

	_, ok = prices.PriceOf(profile.TierFree)
	assert.False(t, ok)
}

func TestParsePriceList(t *testing.T) {
	prices, err := ParsePriceList("149.00", "299.50")
	assert.NoError(t, err)
	price, ok := prices.PriceOf(profile.TierBusiness)
	assert.True(t, ok)
	assert.True(t, price.Equal(decimal.RequireFromString("299.5")))

	_, err = ParsePriceList("free", "299")
	assert.Error(t, err)
}
