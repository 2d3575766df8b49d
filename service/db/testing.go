package db

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SkipIfNoTestDB skips the test unless TEST_DATABASE_URL is set. Store tests
// need a real Postgres; they are integration tests, not unit tests.
func SkipIfNoTestDB(t *testing.T) {
	t.Helper()
	if os.Getenv("TEST_DATABASE_URL") == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping database tests")
	}
}

// TestStore wraps a Store with cleanup helpers for tests.
type TestStore struct {
	*Store
	pool *pgxpool.Pool
}

// NewTestStore connects to the test database named by TEST_DATABASE_URL and
// ensures the schema exists.
func NewTestStore(t *testing.T) *TestStore {
	t.Helper()

	pool, err := pgxpool.New(context.Background(), os.Getenv("TEST_DATABASE_URL"))
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		t.Fatalf("failed to ping test database: %v", err)
	}

	store := NewStore(pool, nil)
	if err := store.EnsureSchema(context.Background()); err != nil {
		pool.Close()
		t.Fatalf("failed to ensure schema: %v", err)
	}
	return &TestStore{Store: store, pool: pool}
}

// Cleanup removes all rows between test cases.
func (ts *TestStore) Cleanup(t *testing.T) {
	t.Helper()
	if _, err := ts.pool.Exec(context.Background(), "TRUNCATE TABLE submissions"); err != nil {
		t.Fatalf("failed to clean test database: %v", err)
	}
}

// Close closes the pool.
func (ts *TestStore) Close() {
	ts.pool.Close()
}
