//go:build integration

// Package integration runs the repositories, services and HTTP API against
// a real PostgreSQL started with testcontainers.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/a2zsellr/backend/internal/infrastructure/migration"
	"github.com/a2zsellr/backend/internal/infrastructure/persistence"
	"github.com/a2zsellr/backend/migrations"
)

var (
	sharedContainer    testcontainers.Container
	sharedContainerMu  sync.Mutex
	sharedContainerDSN string
)

// TestDB is a migrated database for one test
type TestDB struct {
	DB    *gorm.DB
	SqlDB *sql.DB
	DSN   string
	t     *testing.T
}

// NewTestDB connects to the package's shared container, starting and
// migrating it on first use, and truncates every table so the test starts
// empty
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	ctx := context.Background()
	if sharedContainer == nil {
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("a2zsellr_test"),
			tcpostgres.WithUsername("postgres"),
			tcpostgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		require.NoError(t, err, "Failed to start PostgreSQL container")

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err, "Failed to get connection string")

		sharedContainer = container
		sharedContainerDSN = dsn

		_, sqlDB := connect(t, dsn)
		m, err := migration.New(sqlDB, migrations.FS, zap.NewNop())
		require.NoError(t, err, "Failed to create migrator")
		require.NoError(t, m.Up(), "Failed to run migrations")
		_ = sqlDB.Close()
	}

	db, sqlDB := connect(t, sharedContainerDSN)
	tdb := &TestDB{DB: db, SqlDB: sqlDB, DSN: sharedContainerDSN, t: t}
	tdb.CleanTables()
	t.Cleanup(func() { _ = sqlDB.Close() })
	return tdb
}

// CleanupSharedContainer terminates the shared container. Call it from
// TestMain.
func CleanupSharedContainer() {
	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	if sharedContainer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = sharedContainer.Terminate(ctx)
		sharedContainer = nil
		sharedContainerDSN = ""
	}
}

// CleanTables truncates every application table
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()

	var tables []string
	err := tdb.DB.Raw(`
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
		AND tablename != 'schema_migrations'
	`).Scan(&tables).Error
	require.NoError(tdb.t, err, "Failed to get table names")

	for _, table := range tables {
		require.NoError(tdb.t, tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error)
	}
}

// SeedProfile saves a profile on tier whose free-tier clock started at
// lastReset
func (tdb *TestDB) SeedProfile(email string, tier profile.SubscriptionTier, lastReset time.Time) *profile.Profile {
	tdb.t.Helper()

	p, err := profile.NewProfile(email, "Seller "+email)
	require.NoError(tdb.t, err)
	p.SubscriptionTier = tier
	p.LastFreeReset = &lastReset
	require.NoError(tdb.t, persistence.NewGormProfileRepository(tdb.DB).Save(context.Background(), p))
	return p
}

// SeedContent inserts products, listings and gallery items for profileID.
// Gallery items get storage keys gallery/<profile>/<n>.jpg.
func (tdb *TestDB) SeedContent(profileID uuid.UUID, products, listings, gallery int) {
	tdb.t.Helper()

	for i := range products {
		require.NoError(tdb.t, tdb.DB.Exec(
			`INSERT INTO profile_products (profile_id, name, price) VALUES (?, ?, ?)`,
			profileID, fmt.Sprintf("Product %d", i), 99.99).Error)
	}
	for i := range listings {
		require.NoError(tdb.t, tdb.DB.Exec(
			`INSERT INTO profile_listings (profile_id, title) VALUES (?, ?)`,
			profileID, fmt.Sprintf("Listing %d", i)).Error)
	}
	for i := range gallery {
		require.NoError(tdb.t, tdb.DB.Exec(
			`INSERT INTO profile_gallery (profile_id, image_url, storage_key) VALUES (?, ?, ?)`,
			profileID, fmt.Sprintf("https://cdn.example/%d.jpg", i),
			fmt.Sprintf("gallery/%s/%d.jpg", profileID, i)).Error)
	}
	require.NoError(tdb.t, tdb.DB.Exec(
		`UPDATE profiles SET current_listings = ? WHERE id = ?`, listings, profileID).Error)
}

// Count returns the rows of table matching where
func (tdb *TestDB) Count(table, where string, args ...any) int64 {
	tdb.t.Helper()
	var n int64
	require.NoError(tdb.t, tdb.DB.Table(table).Where(where, args...).Count(&n).Error)
	return n
}

func connect(t *testing.T, dsn string) (*gorm.DB, *sql.DB) {
	t.Helper()

	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	if os.Getenv("TEST_DB_DEBUG") != "" {
		cfg.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}
	db, err := gorm.Open(gormpostgres.Open(dsn), cfg)
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	return db, sqlDB
}
