package reset

import (
	"time"

	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ResetType records what triggered a content reset.
type ResetType string

const (
	ResetTypeManual    ResetType = "manual"
	ResetTypeBulk      ResetType = "bulk"
	ResetTypeEligible  ResetType = "eligible"
	ResetTypeScheduled ResetType = "scheduled"
)

// IsValid reports whether the reset type is known.
func (t ResetType) IsValid() bool {
	switch t {
	case ResetTypeManual, ResetTypeBulk, ResetTypeEligible, ResetTypeScheduled:
		return true
	}
	return false
}

// ContentCounts is the number of child rows held (or deleted) per table.
type ContentCounts struct {
	Products     int `json:"products"`
	Listings     int `json:"listings"`
	GalleryItems int `json:"gallery_items"`
}

// Total returns the sum over all tables.
func (c ContentCounts) Total() int {
	return c.Products + c.Listings + c.GalleryItems
}

// Add returns the element-wise sum.
func (c ContentCounts) Add(o ContentCounts) ContentCounts {
	return ContentCounts{
		Products:     c.Products + o.Products,
		Listings:     c.Listings + o.Listings,
		GalleryItems: c.GalleryItems + o.GalleryItems,
	}
}

// History is an append-only audit row written for every reset.
type History struct {
	ID        uuid.UUID
	ProfileID uuid.UUID
	Type      ResetType
	Deleted   ContentCounts
	Errors    []string
	ResetAt   time.Time
}

// NewHistory builds the audit row for a reset of profileID.
func NewHistory(profileID uuid.UUID, resetType ResetType, deleted ContentCounts, at time.Time) (*History, error) {
	if profileID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PROFILE", "Profile ID is required")
	}
	if !resetType.IsValid() {
		return nil, shared.NewDomainError("INVALID_RESET_TYPE", "Unknown reset type: "+string(resetType))
	}
	return &History{
		ID:        uuid.New(),
		ProfileID: profileID,
		Type:      resetType,
		Deleted:   deleted,
		ResetAt:   at,
	}, nil
}
