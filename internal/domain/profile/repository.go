package profile

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ProfileRepository defines the interface for profile persistence
type ProfileRepository interface {
	// FindByID finds a profile by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Profile, error)

	// FindByEmail finds a profile by its email address
	FindByEmail(ctx context.Context, email string) (*Profile, error)

	// FindFreeProfiles returns every free-tier profile, oldest first
	FindFreeProfiles(ctx context.Context) ([]Profile, error)

	// FindResetCandidates returns free-tier profiles that were never reset
	// or whose last reset happened before cutoff
	FindResetCandidates(ctx context.Context, cutoff time.Time) ([]Profile, error)

	// UpdateTier sets the subscription tier of a profile
	UpdateTier(ctx context.Context, id uuid.UUID, tier SubscriptionTier) error

	// Save creates or updates a profile
	Save(ctx context.Context, p *Profile) error
}
