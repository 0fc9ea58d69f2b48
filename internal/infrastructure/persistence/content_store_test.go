package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/a2zsellr/backend/internal/domain/reset"
	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/a2zsellr/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormContentStore_Wipe(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes all content and records history", func(t *testing.T) {
		db := setupTestDB(t)
		store := NewGormContentStore(db)
		p := seedProfile(t, db, "p@example.com", profile.TierFree, nil)
		seedContent(t, db, p.ID, 3, 1, 0)
		other := seedProfile(t, db, "other@example.com", profile.TierFree, nil)
		seedContent(t, db, other.ID, 2, 2, 2)

		now := time.Now().UTC().Truncate(time.Second)
		outcome, err := store.Wipe(ctx, p, reset.WipeRequest{Type: reset.ResetTypeManual, At: now})
		require.NoError(t, err)

		assert.Equal(t, reset.ContentCounts{Products: 3, Listings: 1, GalleryItems: 0}, outcome.History.Deleted)
		assert.Empty(t, outcome.GalleryKeys)

		counts, err := store.CountContent(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, counts.Total())

		otherCounts, err := store.CountContent(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, reset.ContentCounts{Products: 2, Listings: 2, GalleryItems: 2}, otherCounts)

		reloaded, err := NewGormProfileRepository(db).FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, reloaded.CurrentListings)
		require.NotNil(t, reloaded.LastFreeReset)
		assert.True(t, reloaded.LastFreeReset.Equal(now))

		var rows []models.ResetHistoryModel
		require.NoError(t, db.Where("profile_id = ?", p.ID).Find(&rows).Error)
		require.Len(t, rows, 1)
		assert.Equal(t, 3, rows[0].ProductsDeleted)
		assert.Equal(t, 1, rows[0].ListingsDeleted)
		assert.Equal(t, 0, rows[0].GalleryItemsDeleted)
		assert.Equal(t, "manual", rows[0].ResetType)

		assert.Equal(t, 0, p.CurrentListings)
	})

	t.Run("returns gallery storage keys", func(t *testing.T) {
		db := setupTestDB(t)
		store := NewGormContentStore(db)
		p := seedProfile(t, db, "g@example.com", profile.TierFree, nil)
		seedContent(t, db, p.ID, 0, 0, 2)

		outcome, err := store.Wipe(ctx, p, reset.WipeRequest{Type: reset.ResetTypeBulk, At: time.Now().UTC()})
		require.NoError(t, err)
		assert.Len(t, outcome.GalleryKeys, 2)
		assert.Equal(t, 2, outcome.History.Deleted.GalleryItems)
	})

	t.Run("rolls back when the profile row is missing", func(t *testing.T) {
		db := setupTestDB(t)
		store := NewGormContentStore(db)
		ghost, err := profile.NewProfile("ghost@example.com", "")
		require.NoError(t, err)
		seedContent(t, db, ghost.ID, 2, 0, 0)

		_, err = store.Wipe(ctx, ghost, reset.WipeRequest{Type: reset.ResetTypeManual, At: time.Now().UTC()})
		assert.ErrorIs(t, err, shared.ErrNotFound)

		counts, err := store.CountContent(ctx, ghost.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, counts.Products, "deletes must roll back")

		var historyCount int64
		require.NoError(t, db.Model(&models.ResetHistoryModel{}).Count(&historyCount).Error)
		assert.Zero(t, historyCount)
	})

	t.Run("profile upgraded after it was listed keeps content", func(t *testing.T) {
		db := setupTestDB(t)
		store := NewGormContentStore(db)
		stale := seedProfile(t, db, "upgraded@example.com", profile.TierFree, nil)
		seedContent(t, db, stale.ID, 2, 1, 1)
		require.NoError(t, NewGormProfileRepository(db).UpdateTier(ctx, stale.ID, profile.TierPremium))

		_, err := store.Wipe(ctx, stale, reset.WipeRequest{Type: reset.ResetTypeBulk, At: time.Now().UTC()})
		assert.ErrorIs(t, err, shared.ErrNotEligible)

		counts, err := store.CountContent(ctx, stale.ID)
		require.NoError(t, err)
		assert.Equal(t, reset.ContentCounts{Products: 2, Listings: 1, GalleryItems: 1}, counts)

		reloaded, err := NewGormProfileRepository(db).FindByID(ctx, stale.ID)
		require.NoError(t, err)
		assert.Nil(t, reloaded.LastFreeReset)

		var historyCount int64
		require.NoError(t, db.Model(&models.ResetHistoryModel{}).Count(&historyCount).Error)
		assert.Zero(t, historyCount)
	})

	t.Run("interval run skips a profile reset since it was listed", func(t *testing.T) {
		db := setupTestDB(t)
		store := NewGormContentStore(db)
		stale := seedProfile(t, db, "raced@example.com", profile.TierFree, nil)
		seedContent(t, db, stale.ID, 1, 0, 0)

		now := time.Now().UTC().Truncate(time.Second)
		_, err := store.Wipe(ctx, stale, reset.WipeRequest{Type: reset.ResetTypeManual, At: now.Add(-time.Hour)})
		require.NoError(t, err)
		seedContent(t, db, stale.ID, 1, 0, 0)

		stale.LastFreeReset = nil
		week, err := reset.NewPolicy(7)
		require.NoError(t, err)
		_, err = store.Wipe(ctx, stale, reset.WipeRequest{Type: reset.ResetTypeScheduled, At: now, Due: &week})
		assert.ErrorIs(t, err, reset.ErrNotDue)

		counts, err := store.CountContent(ctx, stale.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, counts.Products)
	})
}

func TestGormResetHistoryRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := NewGormContentStore(db)
	repo := NewGormResetHistoryRepository(db)
	p := seedProfile(t, db, "h@example.com", profile.TierFree, nil)

	base := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)
	var last *reset.WipeOutcome
	for i := 0; i < 3; i++ {
		seedContent(t, db, p.ID, i+1, 0, 0)
		out, err := store.Wipe(ctx, p, reset.WipeRequest{Type: reset.ResetTypeScheduled, At: base.AddDate(0, 0, 7*i)})
		require.NoError(t, err)
		last = out
	}

	t.Run("pages newest first", func(t *testing.T) {
		items, total, err := repo.FindByProfile(ctx, p.ID, shared.Filter{Page: 1, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, items, 2)
		assert.Equal(t, 3, items[0].Deleted.Products)
		assert.Equal(t, 2, items[1].Deleted.Products)
	})

	t.Run("latest and attached errors", func(t *testing.T) {
		require.NoError(t, repo.AttachErrors(ctx, last.History.ID, []string{"storage: timeout"}))

		latest, err := repo.LatestForProfile(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, last.History.ID, latest.ID)
		assert.Equal(t, []string{"storage: timeout"}, latest.Errors)
	})

	t.Run("no history", func(t *testing.T) {
		_, err := repo.LatestForProfile(ctx, seedProfile(t, db, "n@example.com", profile.TierFree, nil).ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
