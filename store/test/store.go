// Package test holds store integration tests shared by both drivers.
package test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/learnengine/internal/profile"
	"github.com/hrygo/learnengine/store"
	"github.com/hrygo/learnengine/store/db"
)

func getDriverFromEnv() string {
	if driver := os.Getenv("DRIVER"); driver != "" {
		return driver
	}
	return "sqlite"
}

// getPostgresDSN returns the DSN for PostgreSQL tests, skipping the test
// when none is configured.
func getPostgresDSN(t *testing.T) string {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	return dsn
}

// NewTestingStore returns a migrated store. SQLite stores are in-memory and
// private to the test.
func NewTestingStore(ctx context.Context, t *testing.T, opts ...func(*profile.Profile)) *store.Store {
	t.Helper()
	p := &profile.Profile{
		Mode:               "dev",
		Driver:             getDriverFromEnv(),
		DSN:                ":memory:",
		Timezone:           "UTC",
		MaxConflictRetries: profile.DefaultMaxConflictRetries,
		MaxDailyReviews:    profile.DefaultMaxDailyReviews,
	}
	if p.Driver == "postgres" {
		p.DSN = getPostgresDSN(t)
	}
	for _, opt := range opts {
		opt(p)
	}
	require.NoError(t, p.Validate())

	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)
	ts := store.New(driver, p, nil)
	require.NoError(t, ts.Migrate(ctx))
	t.Cleanup(func() { ts.Close() })
	return ts
}
