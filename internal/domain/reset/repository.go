package reset

import (
	"context"

	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// WipeOutcome is what a committed content wipe removed.
type WipeOutcome struct {
	History *History
	// GalleryKeys are object storage keys of deleted gallery images.
	GalleryKeys []string
}

// ContentStore wipes a profile's products, listings and gallery. Wipe
// locks the profile row and runs req.Check against it before deleting
// anything. The deletes, the profile counter update and the history insert
// are applied atomically: either all of them commit or none do.
type ContentStore interface {
	CountContent(ctx context.Context, profileID uuid.UUID) (ContentCounts, error)
	Wipe(ctx context.Context, p *profile.Profile, req WipeRequest) (*WipeOutcome, error)
}

// HistoryRepository reads the reset audit trail.
type HistoryRepository interface {
	FindByProfile(ctx context.Context, profileID uuid.UUID, filter shared.Filter) ([]History, int64, error)
	LatestForProfile(ctx context.Context, profileID uuid.UUID) (*History, error)
	// AttachErrors records failures that happened after the reset
	// committed, such as gallery object cleanup.
	AttachErrors(ctx context.Context, historyID uuid.UUID, errs []string) error
}
