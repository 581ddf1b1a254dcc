package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/learnengine/server/timezone"
)

// Defaults applied by FromEnv when a variable is unset.
const (
	DefaultDriver             = "sqlite"
	DefaultMaxConflictRetries = 5
	DefaultMaxDailyReviews    = 20
	DefaultCacheTTL           = 10 * time.Minute
)

// Profile is the configuration to start the learning engine.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Data is the data directory
	Data string
	// DSN points to where the engine stores progress
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of the engine
	Version string

	Timezone           string        // LEARN_TIMEZONE (default: host local)
	RedisAddr          string        // LEARN_REDIS_ADDR (default: "", L1 cache only)
	CacheTTL           time.Duration // LEARN_CACHE_TTL (default: 10m)
	CatalogPath        string        // LEARN_BADGE_CATALOG (default: built-in catalog)
	MaxConflictRetries int           // LEARN_MAX_CONFLICT_RETRIES (default: 5)
	MaxDailyReviews    int           // LEARN_MAX_DAILY_REVIEWS (default: 20)

	location *time.Location
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// Location returns the zone used for calendar-day arithmetic.
func (p *Profile) Location() *time.Location {
	if p.location != nil {
		return p.location
	}
	loc, _ := timezone.ParseTimezone(p.Timezone)
	return loc
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

// FromEnv loads configuration from LEARN_* environment variables. Values
// already set on p win over the environment.
func (p *Profile) FromEnv() {
	if p.Mode == "" {
		p.Mode = getEnvOrDefault("LEARN_MODE", "dev")
	}
	if p.Driver == "" {
		p.Driver = getEnvOrDefault("LEARN_DRIVER", DefaultDriver)
	}
	if p.DSN == "" {
		p.DSN = os.Getenv("LEARN_DSN")
	}
	if p.Data == "" {
		p.Data = os.Getenv("LEARN_DATA")
	}
	if p.Timezone == "" {
		p.Timezone = os.Getenv("LEARN_TIMEZONE")
	}
	if p.RedisAddr == "" {
		p.RedisAddr = os.Getenv("LEARN_REDIS_ADDR")
	}
	if p.CatalogPath == "" {
		p.CatalogPath = os.Getenv("LEARN_BADGE_CATALOG")
	}
	if p.CacheTTL == 0 {
		p.CacheTTL = DefaultCacheTTL
		if d, err := time.ParseDuration(os.Getenv("LEARN_CACHE_TTL")); err == nil {
			p.CacheTTL = d
		}
	}
	if p.MaxConflictRetries == 0 {
		p.MaxConflictRetries = getIntEnvOrDefault("LEARN_MAX_CONFLICT_RETRIES", DefaultMaxConflictRetries)
	}
	if p.MaxDailyReviews == 0 {
		p.MaxDailyReviews = getIntEnvOrDefault("LEARN_MAX_DAILY_REVIEWS", DefaultMaxDailyReviews)
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalizes the profile and fills derived values.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q", p.Driver)
	}
	if p.MaxConflictRetries < 0 {
		return errors.Errorf("max conflict retries must not be negative, got %d", p.MaxConflictRetries)
	}
	if p.MaxDailyReviews <= 0 {
		p.MaxDailyReviews = DefaultMaxDailyReviews
	}

	loc, err := timezone.ParseTimezone(p.Timezone)
	if err != nil {
		return errors.Wrap(err, "invalid LEARN_TIMEZONE")
	}
	p.location = loc

	if p.Driver == "postgres" {
		if p.DSN == "" {
			return errors.New("postgres driver requires a DSN")
		}
		return nil
	}

	// SQLite: in-memory databases need no data directory.
	if strings.HasPrefix(p.DSN, ":memory:") || strings.Contains(p.DSN, "mode=memory") {
		return nil
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "learnengine")
		} else {
			p.Data = "/var/opt/learnengine"
		}
	}
	if p.Data == "" {
		p.Data = "."
	}
	if err := os.MkdirAll(p.Data, 0o770); err != nil {
		slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
		return errors.Wrapf(err, "failed to create data folder %s", p.Data)
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.DSN == "" {
		p.DSN = filepath.Join(dataDir, fmt.Sprintf("learnengine_%s.db", p.Mode))
	}
	return nil
}
