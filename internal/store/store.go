// Package store is the crawl state store: a SQLite database that decides
// insert versus update per entity key and keeps first_seen stable across runs.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"forumgraph/internal/crawlerr"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the database. A single open connection serializes writers, so
// the read-then-write upserts below cannot race on a key.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
	log *slog.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithClock sets the time source used when a record carries no scraped_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(path string, opts ...Option) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_time_format=sqlite", path)
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, crawlerr.Persistence("failed to connect to database", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, now: time.Now, log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}

	if err := applyMigrations(db.DB); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			s.log.Error("error closing database after migration failure", "error", closeErr)
		}
		return nil, crawlerr.Persistence("failed to apply migrations", err)
	}
	s.log.Debug("database ready", "path", path)
	return s, nil
}

func applyMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create embed source driver: %w", err)
	}
	drv, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for read-only reporting queries.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// stamp returns t in UTC, or the store clock when t is unset.
func (s *Store) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return s.now().UTC()
	}
	return t.UTC()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
