package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	testDB *DB
)

// GetTestDB returns the shared test database connection, or nil when
// TestMain could not reach Postgres.
func GetTestDB() *DB {
	return testDB
}

// RequireTestDB skips integration tests in short mode or when no database
// is available, and otherwise returns a freshly truncated database.
func RequireTestDB(t *testing.T) *DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db := GetTestDB()
	if db == nil {
		t.Skip("postgres not available")
	}
	CleanupTestDB(t, db)
	return db
}

// SetupTestDB connects to dbURL and applies the embedded migrations.
// Should be called once in TestMain, not in individual tests.
func SetupTestDB(dbURL string) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := Connect(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}

	if err := Migrate(ctx, db.Pool); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// CleanupTestDB truncates all tables for a fresh test state.
func CleanupTestDB(t *testing.T, db *DB) {
	t.Helper()

	ctx := context.Background()
	_, err := db.Pool.Exec(ctx, "TRUNCATE TABLE tasks, projects")
	require.NoError(t, err)
}

// TeardownTestDB closes the test database connection. Safe to call with nil.
func TeardownTestDB(db *DB) {
	if db != nil {
		db.Close()
	}
}
