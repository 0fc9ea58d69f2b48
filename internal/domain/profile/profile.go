package profile

import (
	"strings"
	"time"

	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Profile is the seller (tenant) record. Every product, listing and
// gallery item hangs off a profile.
type Profile struct {
	shared.BaseAggregateRoot
	Email            string
	DisplayName      string
	BusinessName     string
	SubscriptionTier SubscriptionTier
	CurrentListings  int
	ProfileViews     int64
	LastFreeReset    *time.Time
	LastResetAt      *time.Time
}

// NewProfile creates a free-tier profile.
func NewProfile(email, displayName string) (*Profile, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, shared.NewDomainError("INVALID_EMAIL", "Email cannot be empty")
	}
	if !strings.Contains(email, "@") {
		return nil, shared.NewDomainError("INVALID_EMAIL", "Email is not valid")
	}
	if len(displayName) > 200 {
		return nil, shared.NewDomainError("INVALID_NAME", "Display name cannot exceed 200 characters")
	}

	return &Profile{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Email:             email,
		DisplayName:       strings.TrimSpace(displayName),
		SubscriptionTier:  TierFree,
	}, nil
}

// IsFree reports whether the profile is on the free tier.
func (p *Profile) IsFree() bool {
	return p.SubscriptionTier == TierFree
}

// Name returns the best display name for emails and notifications.
func (p *Profile) Name() string {
	switch {
	case p.BusinessName != "":
		return p.BusinessName
	case p.DisplayName != "":
		return p.DisplayName
	}
	return p.Email
}

// ApplyReset records that the profile's content was wiped at now.
func (p *Profile) ApplyReset(now time.Time) {
	p.CurrentListings = 0
	p.LastFreeReset = &now
	p.LastResetAt = &now
	p.UpdatedAt = now
}

// ChangeTier moves the profile to another plan. Changing to the current
// tier is a no-op and raises no event.
func (p *Profile) ChangeTier(tier SubscriptionTier) error {
	if !tier.IsValid() {
		return shared.NewDomainError("INVALID_TIER", "Unknown subscription tier: "+string(tier))
	}
	if p.SubscriptionTier == tier {
		return nil
	}

	old := p.SubscriptionTier
	p.SubscriptionTier = tier
	p.UpdatedAt = time.Now()
	p.AddDomainEvent(NewTierChangedEvent(p, old))
	return nil
}

// ResetAnchor is the instant the reset interval counts from: the last
// reset, or the creation time when the profile was never reset.
func (p *Profile) ResetAnchor() time.Time {
	if p.LastFreeReset != nil {
		return *p.LastFreeReset
	}
	return p.CreatedAt
}

// Owner reports whether userID owns this profile. Supabase uses the auth
// user id as the profile id.
func (p *Profile) Owner(userID uuid.UUID) bool {
	return p.ID == userID
}
