package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Schema files live at migration/{driver}/LATEST.sql and are applied once to
// an empty database. Demo mode additionally runs seed/{driver}/*.sql in
// lexical order.

//go:embed migration
var migrationFS embed.FS

//go:embed seed
var seedFS embed.FS

const (
	// LatestSchemaFileName is the full schema for fresh databases.
	LatestSchemaFileName = "LATEST.sql"

	modeDemo = "demo"
)

// Migrate initializes the schema if needed and seeds demo data in demo mode.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.preMigrate(ctx); err != nil {
		return errors.Wrap(err, "failed to pre-migrate")
	}
	if s.profile.Mode == modeDemo {
		if err := s.seed(ctx); err != nil {
			return errors.Wrap(err, "failed to seed")
		}
	}
	return nil
}

func (s *Store) preMigrate(ctx context.Context) error {
	initialized, err := s.driver.IsInitialized(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to check if database is initialized")
	}
	if initialized {
		return nil
	}

	filePath := s.getMigrationBasePath() + LatestSchemaFileName
	bytes, err := migrationFS.ReadFile(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to read latest schema file %s", filePath)
	}
	tx, err := s.driver.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	slog.Info("initializing new database with latest schema", slog.String("file", filePath))
	if err := execute(ctx, tx, string(bytes)); err != nil {
		return errors.Wrapf(err, "failed to execute SQL file %s", filePath)
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	slog.Info("database initialized successfully", slog.String("driver", s.profile.Driver))
	return nil
}

func (s *Store) getMigrationBasePath() string {
	return fmt.Sprintf("migration/%s/", s.profile.Driver)
}

func (s *Store) getSeedBasePath() string {
	return fmt.Sprintf("seed/%s/", s.profile.Driver)
}

func (s *Store) seed(ctx context.Context) error {
	filenames, err := fs.Glob(seedFS, s.getSeedBasePath()+"*.sql")
	if err != nil {
		return errors.Wrap(err, "failed to read seed files")
	}
	sort.Strings(filenames)

	tx, err := s.driver.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()
	for _, filename := range filenames {
		bytes, err := seedFS.ReadFile(filename)
		if err != nil {
			return errors.Wrapf(err, "failed to read seed file, filename=%s", filename)
		}
		if err := execute(ctx, tx, string(bytes)); err != nil {
			return errors.Wrapf(err, "seed error: %s", filename)
		}
	}
	return tx.Commit()
}

// execute runs each statement of a SQL script inside tx. PostgreSQL rejects
// multiple statements per ExecContext, so scripts are always split.
func execute(ctx context.Context, tx *sql.Tx, script string) error {
	for i, stmt := range splitSQL(script) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "failed to execute statement %d", i+1)
		}
	}
	return nil
}

// splitSQL splits a script on semicolons outside single-quoted strings and
// drops "--" comments.
func splitSQL(script string) []string {
	var statements []string
	var current strings.Builder
	inQuote := false

	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	for _, line := range strings.Split(script, "\n") {
		for i := 0; i < len(line); i++ {
			ch := line[i]
			switch {
			case ch == '\'':
				inQuote = !inQuote
				current.WriteByte(ch)
			case !inQuote && ch == '-' && i+1 < len(line) && line[i+1] == '-':
				i = len(line)
			case !inQuote && ch == ';':
				flush()
			default:
				current.WriteByte(ch)
			}
		}
		current.WriteByte('\n')
	}
	flush()
	return statements
}
