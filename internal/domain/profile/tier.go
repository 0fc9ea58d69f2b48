package profile

import (
	"strings"

	"github.com/a2zsellr/backend/internal/domain/shared"
)

// SubscriptionTier is the paid plan a seller profile is on.
type SubscriptionTier string

const (
	TierFree     SubscriptionTier = "free"
	TierPremium  SubscriptionTier = "premium"
	TierBusiness SubscriptionTier = "business"
)

// IsValid reports whether the tier is one of the known plans.
func (t SubscriptionTier) IsValid() bool {
	switch t {
	case TierFree, TierPremium, TierBusiness:
		return true
	}
	return false
}

func (t SubscriptionTier) String() string {
	return string(t)
}

// ParseTier converts user input into a SubscriptionTier.
func ParseTier(s string) (SubscriptionTier, error) {
	tier := SubscriptionTier(strings.ToLower(strings.TrimSpace(s)))
	if !tier.IsValid() {
		return "", shared.NewDomainError("INVALID_TIER", "Subscription tier must be one of free, premium, business")
	}
	return tier, nil
}

// Unlimited marks a limit that is not enforced.
const Unlimited = -1

// TierLimits caps the amount of content a profile may hold.
type TierLimits struct {
	MaxProducts     int `json:"max_products"`
	MaxListings     int `json:"max_listings"`
	MaxGalleryItems int `json:"max_gallery_items"`
	// ResetsContent is true for plans whose content is wiped periodically.
	ResetsContent bool `json:"resets_content"`
}

// LimitsFor returns the content limits of a tier.
func LimitsFor(t SubscriptionTier) TierLimits {
	switch t {
	case TierPremium:
		return TierLimits{MaxProducts: 50, MaxListings: 25, MaxGalleryItems: 50}
	case TierBusiness:
		return TierLimits{MaxProducts: Unlimited, MaxListings: Unlimited, MaxGalleryItems: Unlimited}
	default:
		return TierLimits{MaxProducts: 5, MaxListings: 3, MaxGalleryItems: 5, ResetsContent: true}
	}
}

// Allows reports whether count items fit within limit.
func Allows(limit, count int) bool {
	return limit == Unlimited || count <= limit
}
