package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/learnengine/internal/profile"
	"github.com/hrygo/learnengine/store"
	"github.com/hrygo/learnengine/store/db/postgres"
	"github.com/hrygo/learnengine/store/db/sqlite"
)

// ============================================================================
// DATABASE SUPPORT POLICY
// ============================================================================
// SQLite: default, single host, also used by tests with an in-memory DSN.
// PostgreSQL: shared deployments where several processes write progress.
// Both drivers implement the same version-checked aggregate writes.
// ============================================================================

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
