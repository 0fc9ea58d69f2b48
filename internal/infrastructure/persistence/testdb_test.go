package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/a2zsellr/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// a single connection keeps the in-memory database shared across queries
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

// newMockDB opens GORM on a sqlmock connection using the postgres dialect
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func seedProfile(t *testing.T, db *gorm.DB, email string, tier profile.SubscriptionTier, lastReset *time.Time) *profile.Profile {
	t.Helper()
	p, err := profile.NewProfile(email, "Seller")
	require.NoError(t, err)
	p.SubscriptionTier = tier
	p.LastFreeReset = lastReset
	p.CurrentListings = 1
	require.NoError(t, NewGormProfileRepository(db).Save(context.Background(), p))
	return p
}

func seedContent(t *testing.T, db *gorm.DB, profileID uuid.UUID, products, listings, gallery int) {
	t.Helper()
	now := time.Now().UTC()
	for i := 0; i < products; i++ {
		require.NoError(t, db.Create(&models.ProductModel{
			ID: uuid.New(), ProfileID: profileID, Name: "Product", Price: decimal.NewFromInt(10), CreatedAt: now,
		}).Error)
	}
	for i := 0; i < listings; i++ {
		require.NoError(t, db.Create(&models.ListingModel{
			ID: uuid.New(), ProfileID: profileID, Title: "Listing", Status: "active", CreatedAt: now,
		}).Error)
	}
	for i := 0; i < gallery; i++ {
		require.NoError(t, db.Create(&models.GalleryItemModel{
			ID: uuid.New(), ProfileID: profileID, ImageURL: "https://cdn.example.com/img.jpg",
			StorageKey: profileID.String() + "/" + uuid.NewString() + ".jpg", CreatedAt: now,
		}).Error)
	}
}
