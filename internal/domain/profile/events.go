package profile

import "github.com/a2zsellr/backend/internal/domain/shared"

const AggregateTypeProfile = "Profile"

const (
	EventTypeTierChanged = "ProfileTierChanged"
)

// TierChangedEvent is published when a profile moves to another plan.
type TierChangedEvent struct {
	shared.BaseDomainEvent
	Email   string           `json:"email"`
	OldTier SubscriptionTier `json:"old_tier"`
	NewTier SubscriptionTier `json:"new_tier"`
}

// NewTierChangedEvent creates a TierChangedEvent
func NewTierChangedEvent(p *Profile, old SubscriptionTier) *TierChangedEvent {
	return &TierChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTierChanged, AggregateTypeProfile, p.ID, p.ID),
		Email:           p.Email,
		OldTier:         old,
		NewTier:         p.SubscriptionTier,
	}
}
