package billing

import (
	"fmt"

	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/shopspring/decimal"
)

// PriceList maps paid tiers to their monthly price in ZAR.
type PriceList map[profile.SubscriptionTier]decimal.Decimal

// DefaultPriceList returns the published monthly prices.
func DefaultPriceList() PriceList {
	return PriceList{
		profile.TierPremium:  decimal.NewFromInt(149),
		profile.TierBusiness: decimal.NewFromInt(299),
	}
}

// PriceOf returns the price of tier and whether it can be bought.
func (p PriceList) PriceOf(tier profile.SubscriptionTier) (decimal.Decimal, bool) {
	price, ok := p[tier]
	return price, ok && price.IsPositive()
}

// ParsePriceList builds a PriceList from decimal strings such as "149.00".
func ParsePriceList(premium, business string) (PriceList, error) {
	p, err := decimal.NewFromString(premium)
	if err != nil {
		return nil, fmt.Errorf("premium price %q: %w", premium, err)
	}
	b, err := decimal.NewFromString(business)
	if err != nil {
		return nil, fmt.Errorf("business price %q: %w", business, err)
	}
	return PriceList{profile.TierPremium: p, profile.TierBusiness: b}, nil
}
