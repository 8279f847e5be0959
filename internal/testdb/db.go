package testdb

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/phrazzld/mealplan-api/internal/config"
	"github.com/phrazzld/mealplan-api/internal/platform/database"
)

// Environment variables checked, in order, by GetTestDatabaseURL.
var databaseURLEnvVars = []string{"MEALPLAN_TEST_DATABASE_URL", "DATABASE_URL"}

// GetTestDatabaseURL returns the PostgreSQL URL for integration tests,
// or "" when none is configured.
func GetTestDatabaseURL() string {
	for _, name := range databaseURLEnvVars {
		if url := os.Getenv(name); url != "" {
			return url
		}
	}
	return ""
}

// ShouldSkipDatabaseTest reports whether PostgreSQL integration tests
// should be skipped.
func ShouldSkipDatabaseTest() bool {
	return GetTestDatabaseURL() == ""
}

// OpenSQLite opens a migrated in-memory SQLite database that is closed
// when the test finishes.
func OpenSQLite(t testing.TB) *sql.DB {
	t.Helper()
	return open(t, config.DatabaseConfig{Driver: database.DriverSQLite, URL: ":memory:"})
}

// OpenPostgres opens and migrates the integration database, skipping the
// test when none is configured.
func OpenPostgres(t testing.TB) *sql.DB {
	t.Helper()
	if ShouldSkipDatabaseTest() {
		t.Skip("MEALPLAN_TEST_DATABASE_URL not set - skipping integration test")
	}
	return open(t, config.DatabaseConfig{
		Driver:       database.DriverPostgres,
		URL:          GetTestDatabaseURL(),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
	})
}

func open(t testing.TB, cfg config.DatabaseConfig) *sql.DB {
	t.Helper()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.Open(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("failed to open %s test database: %v", cfg.Driver, err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(ctx, db, cfg.Driver, "up", logger); err != nil {
		t.Fatalf("failed to migrate %s test database: %v", cfg.Driver, err)
	}
	return db
}

// WithTx runs fn inside a transaction that is always rolled back.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Errorf("failed to roll back transaction: %v", err)
		}
	}()

	fn(t, tx)
}
