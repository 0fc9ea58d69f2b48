package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/a2zsellr/backend/internal/domain/reset"
	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/a2zsellr/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormContentStore wipes a profile's child content inside one transaction.
type GormContentStore struct {
	db *gorm.DB
}

// NewGormContentStore creates a new GormContentStore
func NewGormContentStore(db *gorm.DB) *GormContentStore {
	return &GormContentStore{db: db}
}

// CountContent counts products, listings and gallery items held by a profile
func (s *GormContentStore) CountContent(ctx context.Context, profileID uuid.UUID) (reset.ContentCounts, error) {
	return countContent(s.db.WithContext(ctx), profileID)
}

// Wipe deletes all products, listings and gallery items of p, zeroes the
// profile counters and appends a reset_history row. The profile row is
// locked and re-checked first, so a profile upgraded after it was listed
// keeps its content. Nothing is written unless every statement succeeds.
func (s *GormContentStore) Wipe(ctx context.Context, p *profile.Profile, req reset.WipeRequest) (*reset.WipeOutcome, error) {
	var outcome *reset.WipeOutcome
	now := req.At

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked models.ProfileModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&locked, "id = ?", p.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return fmt.Errorf("lock profile: %w", err)
		}
		if err := req.Check(locked.ToDomain()); err != nil {
			return err
		}

		// Keys first; the rows holding them are deleted below
		var keys []string
		if err := tx.Model(&models.GalleryItemModel{}).
			Where("profile_id = ? AND storage_key <> ''", p.ID).
			Pluck("storage_key", &keys).Error; err != nil {
			return fmt.Errorf("collect gallery keys: %w", err)
		}

		// Counts come from RowsAffected so the history matches what was removed
		var deleted reset.ContentCounts
		res := tx.Where("profile_id = ?", p.ID).Delete(&models.ProductModel{})
		if res.Error != nil {
			return fmt.Errorf("delete products: %w", res.Error)
		}
		deleted.Products = int(res.RowsAffected)

		res = tx.Where("profile_id = ?", p.ID).Delete(&models.ListingModel{})
		if res.Error != nil {
			return fmt.Errorf("delete listings: %w", res.Error)
		}
		deleted.Listings = int(res.RowsAffected)

		res = tx.Where("profile_id = ?", p.ID).Delete(&models.GalleryItemModel{})
		if res.Error != nil {
			return fmt.Errorf("delete gallery: %w", res.Error)
		}
		deleted.GalleryItems = int(res.RowsAffected)

		res = tx.Model(&models.ProfileModel{}).
			Where("id = ?", p.ID).
			Updates(map[string]any{
				"current_listings": 0,
				"last_free_reset":  now,
				"last_reset_at":    now,
				"updated_at":       now,
			})
		if res.Error != nil {
			return fmt.Errorf("update profile: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return shared.ErrNotFound
		}

		history, err := reset.NewHistory(p.ID, req.Type, deleted, now)
		if err != nil {
			return err
		}
		if err := tx.Create(models.ResetHistoryFromDomain(history)).Error; err != nil {
			return fmt.Errorf("insert reset history: %w", err)
		}

		outcome = &reset.WipeOutcome{History: history, GalleryKeys: keys}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.ApplyReset(now)
	return outcome, nil
}

func countContent(db *gorm.DB, profileID uuid.UUID) (reset.ContentCounts, error) {
	var products, listings, gallery int64
	if err := db.Model(&models.ProductModel{}).Where("profile_id = ?", profileID).Count(&products).Error; err != nil {
		return reset.ContentCounts{}, err
	}
	if err := db.Model(&models.ListingModel{}).Where("profile_id = ?", profileID).Count(&listings).Error; err != nil {
		return reset.ContentCounts{}, err
	}
	if err := db.Model(&models.GalleryItemModel{}).Where("profile_id = ?", profileID).Count(&gallery).Error; err != nil {
		return reset.ContentCounts{}, err
	}
	return reset.ContentCounts{
		Products:     int(products),
		Listings:     int(listings),
		GalleryItems: int(gallery),
	}, nil
}

var _ reset.ContentStore = (*GormContentStore)(nil)
