package models

import (
	"time"

	"github.com/a2zsellr/backend/internal/domain/reset"
	"github.com/google/uuid"
)

// ResetHistoryModel is the persistence model for reset_history.
type ResetHistoryModel struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProfileID           uuid.UUID `gorm:"type:uuid;not null;index"`
	ResetType           string    `gorm:"type:varchar(20);not null"`
	ProductsDeleted     int       `gorm:"not null;default:0"`
	ListingsDeleted     int       `gorm:"not null;default:0"`
	GalleryItemsDeleted int       `gorm:"not null;default:0"`
	Errors              []string  `gorm:"serializer:json;type:jsonb"`
	ResetAt             time.Time `gorm:"not null;index"`
}

func (ResetHistoryModel) TableName() string { return "reset_history" }

// ToDomain converts the model to a domain History
func (m *ResetHistoryModel) ToDomain() *reset.History {
	return &reset.History{
		ID:        m.ID,
		ProfileID: m.ProfileID,
		Type:      reset.ResetType(m.ResetType),
		Deleted: reset.ContentCounts{
			Products:     m.ProductsDeleted,
			Listings:     m.ListingsDeleted,
			GalleryItems: m.GalleryItemsDeleted,
		},
		Errors:  m.Errors,
		ResetAt: m.ResetAt,
	}
}

// ResetHistoryFromDomain creates a ResetHistoryModel from a domain History
func ResetHistoryFromDomain(h *reset.History) *ResetHistoryModel {
	return &ResetHistoryModel{
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
