package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	// Import the pure-Go SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/learnengine/internal/profile"
	"github.com/hrygo/learnengine/store"
)

// ============================================================================
// SQLITE SUPPORT (Development and single-host deployments)
// ============================================================================
// SQLite allows a single writer at a time. Concurrent aggregate updates are
// still safe because every write is version-checked; busy_timeout keeps
// writers from failing fast on a locked database.
// ============================================================================

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

func isMemoryDSN(dsn string) bool {
	return strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// NewDB opens a SQLite database for the profile DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	dsn := profile.DSN
	if !strings.Contains(dsn, "_pragma") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	}
	sqliteDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}
	// Every connection to :memory: is a separate database.
	if isMemoryDSN(profile.DSN) {
		sqliteDB.SetMaxOpenConns(1)
	}

	var driver store.Driver = &DB{
		db:      sqliteDB,
		profile: profile,
	}
	return driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'progress')",
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check if database is initialized")
	}
	return exists, nil
}
