package reset

import (
	"time"

	"github.com/google/uuid"

	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/a2zsellr/backend/internal/domain/reset"
)

// ResetResult is the outcome of resetting one profile. It uses the same
// total field names as BulkResetResult.
type ResetResult struct {
	Success         bool      `json:"success"`
	ProfileID       uuid.UUID `json:"profileId"`
	ProductsDeleted int       `json:"totalProductsDeleted"`
	ListingsDeleted int       `json:"totalListingsDeleted"`
	GalleryDeleted  int       `json:"totalGalleryDeleted"`
	Errors          []string  `json:"errors"`
}

// BulkResetResult aggregates the resets of many profiles
type BulkResetResult struct {
	Success              bool     `json:"success"`
	TotalUsersReset      int      `json:"totalUsersReset"`
	TotalProductsDeleted int      `json:"totalProductsDeleted"`
	TotalListingsDeleted int      `json:"totalListingsDeleted"`
	TotalGalleryDeleted  int      `json:"totalGalleryDeleted"`
	Errors               []string `json:"errors"`
}

func (b *BulkResetResult) add(r *ResetResult) {
	if r.Success {
		b.TotalUsersReset++
		b.TotalProductsDeleted += r.ProductsDeleted
		b.TotalListingsDeleted += r.ListingsDeleted
		b.TotalGalleryDeleted += r.GalleryDeleted
	}
	for _, e := range r.Errors {
		b.Errors = append(b.Errors, r.ProfileID.String()+": "+e)
	}
}

// HistoryResponse is one reset_history row
type HistoryResponse struct {
	ID                  uuid.UUID `json:"id"`
	ProfileID           uuid.UUID `json:"profile_id"`
	ResetType           string    `json:"reset_type"`
	ProductsDeleted     int       `json:"products_deleted"`
	ListingsDeleted     int       `json:"listings_deleted"`
	GalleryItemsDeleted int       `json:"gallery_items_deleted"`
	Errors              []string  `json:"errors,omitempty"`
	ResetAt             time.Time `json:"reset_at"`
}

// ToHistoryResponse converts a domain history row
func ToHistoryResponse(h *reset.History) HistoryResponse {
	return HistoryResponse{
		ID:                  h.ID,
		ProfileID:           h.ProfileID,
		ResetType:           string(h.Type),
		ProductsDeleted:     h.Deleted.Products,
		ListingsDeleted:     h.Deleted.Listings,
		GalleryItemsDeleted: h.Deleted.GalleryItems,
		Errors:              h.Errors,
		ResetAt:             h.ResetAt,
	}
}

// HistoryFilter pages a profile's reset history
type HistoryFilter struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by" binding:"omitempty,oneof=reset_at reset_type products_deleted"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ResetInfoResponse is the countdown for a profile plus whether the
// caller's session should show the warning now
type ResetInfoResponse struct {
	ProfileID        uuid.UUID               `json:"profile_id"`
	Tier             string                  `json:"tier"`
	Eligible         bool                    `json:"eligible"`
	NextResetAt      *time.Time              `json:"next_reset_at,omitempty"`
	SecondsRemaining int64                   `json:"seconds_remaining"`
	Level            reset.NotificationLevel `json:"level"`
	ShowNotification bool                    `json:"show_notification"`
	Usage            *UsageResponse          `json:"usage,omitempty"`
	LastReset        *HistoryResponse        `json:"last_reset,omitempty"`
}

// UsageResponse is the content a profile holds against its plan limits
type UsageResponse struct {
	Products     int                `json:"products"`
	Listings     int                `json:"listings"`
	GalleryItems int                `json:"gallery_items"`
	Limits       profile.TierLimits `json:"limits"`
	WithinLimits bool               `json:"within_limits"`
}

func newUsageResponse(tier profile.SubscriptionTier, c reset.ContentCounts) *UsageResponse {
	limits := profile.LimitsFor(tier)
	return &UsageResponse{
		Products:     c.Products,
		Listings:     c.Listings,
		GalleryItems: c.GalleryItems,
		Limits:       limits,
		WithinLimits: profile.Allows(limits.MaxProducts, c.Products) &&
			profile.Allows(limits.MaxListings, c.Listings) &&
			profile.Allows(limits.MaxGalleryItems, c.GalleryItems),
	}
}

func newResetInfoResponse(profileID uuid.UUID, tier string, info reset.ResetInfo) *ResetInfoResponse {
	resp := &ResetInfoResponse{
		ProfileID:        profileID,
		Tier:             tier,
		Eligible:         info.Eligible,
		SecondsRemaining: int64(info.TimeRemaining / time.Second),
		Level:            info.Level,
	}
	if info.Eligible {
		next := info.NextResetAt
		resp.NextResetAt = &next
	}
	return resp
}
