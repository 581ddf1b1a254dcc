package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/learnengine/internal/observability"
	"github.com/hrygo/learnengine/internal/profile"
	"github.com/hrygo/learnengine/plugin/learning/badge"
	"github.com/hrygo/learnengine/plugin/learning/srs"
	"github.com/hrygo/learnengine/server/service/learning"
	"github.com/hrygo/learnengine/store"
	"github.com/hrygo/learnengine/store/cache"
	"github.com/hrygo/learnengine/store/db"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli holds the state shared by every subcommand.
type cli struct {
	v   *viper.Viper
	out io.Writer
}

func newRootCommand() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:           "learnengine",
		Short:         "Adaptive learning engine: spaced repetition, learning paths and rewards.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			c.out = cmd.OutOrStdout()
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), c.v.GetString("log-level")))
		},
	}

	flags := root.PersistentFlags()
	flags.String("mode", "dev", `mode of the engine, can be "prod" or "dev" or "demo"`)
	flags.String("data", "", "data directory")
	flags.String("driver", profile.DefaultDriver, "database driver (sqlite or postgres)")
	flags.String("dsn", "", "database source name")
	flags.String("timezone", "", "IANA time zone used for calendar days")
	flags.String("redis-addr", "", "Redis address for the shared course graph cache")
	flags.String("badge-catalog", "", "YAML badge catalog, defaults to the built-in set")
	flags.Int("max-conflict-retries", profile.DefaultMaxConflictRetries, "retries on concurrent progress updates")
	flags.Int("max-daily-reviews", profile.DefaultMaxDailyReviews, "default size of the due review list")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")

	for _, name := range []string{
		"mode", "data", "driver", "dsn", "timezone", "redis-addr", "badge-catalog",
		"max-conflict-retries", "max-daily-reviews", "log-level",
	} {
		if err := c.v.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
	c.v.SetEnvPrefix("learn")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	root.AddCommand(
		c.levelCommand(),
		c.challengeCommand(),
		c.reviewCommand(),
		c.importCourseCommand(),
		c.interactCommand(),
		c.branchCommand(),
		c.completeModuleCommand(),
		c.progressCommand(),
		c.batchCommand(),
	)
	return root
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelWarn
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: l}))
}

func (c *cli) profile() (*profile.Profile, error) {
	p := &profile.Profile{
		Mode:               c.v.GetString("mode"),
		Data:               c.v.GetString("data"),
		Driver:             c.v.GetString("driver"),
		DSN:                c.v.GetString("dsn"),
		Timezone:           c.v.GetString("timezone"),
		RedisAddr:          c.v.GetString("redis-addr"),
		CatalogPath:        c.v.GetString("badge-catalog"),
		MaxConflictRetries: c.v.GetInt("max-conflict-retries"),
		MaxDailyReviews:    c.v.GetInt("max-daily-reviews"),
		Version:            version,
	}
	p.FromEnv()
	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return p, nil
}

// engine is an opened store with the learning service on top of it.
type engine struct {
	profile *profile.Profile
	store   *store.Store
	service learning.Service
	metrics *observability.Metrics
}

func (c *cli) open(ctx context.Context) (*engine, error) {
	p, err := c.profile()
	if err != nil {
		return nil, err
	}

	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}

	var l2 cache.L2
	if p.RedisAddr != "" {
		cfg := cache.DefaultRedisConfig()
		cfg.Addr = p.RedisAddr
		cfg.DefaultTTL = p.CacheTTL * 3
		redisCache, err := cache.NewRedisCache(cfg)
		if err != nil {
			// The L1 tier alone is enough to serve requests.
			slog.Warn("redis unavailable, using in-memory cache only", slog.String("error", err.Error()))
		} else {
			l2 = redisCache
		}
	}

	st := store.New(driver, p, l2)
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, errors.Wrap(err, "failed to migrate")
	}

	catalog := badge.DefaultCatalog()
	if p.CatalogPath != "" {
		catalog, err = badge.LoadCatalog(p.CatalogPath)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	metrics := observability.NewMetrics(1000)
	svc := learning.NewService(st, learning.Config{
		Location: p.Location(),
		Catalog:  catalog,
		SRS:      srs.Config{MaxDailyReviews: p.MaxDailyReviews},
		Logger:   slog.Default(),
		Metrics:  metrics,
	})
	return &engine{profile: p, store: st, service: svc, metrics: metrics}, nil
}

func (e *engine) Close() error {
	return e.store.Close()
}

// withEngine opens the engine for the duration of fn.
func (c *cli) withEngine(cmd *cobra.Command, fn func(ctx context.Context, e *engine) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := e.Close(); err != nil {
			slog.Error("failed to close store", slog.String("error", err.Error()))
		}
	}()
	return fn(ctx, e)
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode output")
	}
	return nil
}
