// Package storage persists users, roles, and auth tokens, and provides the
// generic row operations the scoped REST resources are built on. Queries
// are assembled with squirrel so scope predicates compose directly into
// them.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	// Database drivers.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("storage: not found")

// Config describes the database connection.
type Config struct {
	// Driver is "sqlite" or "postgres".
	Driver string `conf:"driver" yaml:"driver" json:"driver"`
	// DSN is the driver-specific connection string.
	DSN string `conf:"dsn" yaml:"dsn" json:"dsn"`

	MaxOpenConns    int           `conf:"max_open_conns" yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `conf:"max_idle_conns" yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `conf:"conn_max_lifetime" yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// Store executes queries against the configured database.
type Store struct {
	db        *sql.DB
	driver    string
	stbl      sq.StatementBuilderType
	returning bool
}

// Open connects to the configured database.
func Open(cfg Config) (*sql.DB, error) {
	driverName, err := sqlDriverName(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return db, nil
}

// New wraps an open database handle in a Store.
func New(db *sql.DB, driver string) *Store {
	stbl := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	returning := false

	if driver == "postgres" {
		stbl = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
		returning = true
	}

	return &Store{
		db:        db,
		driver:    driver,
		stbl:      stbl,
		returning: returning,
	}
}

// DB exposes the underlying handle for migrations and tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the configured driver name.
func (s *Store) Driver() string {
	return s.driver
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func sqlDriverName(driver string) (string, error) {
	switch driver {
	case "sqlite":
		return "sqlite", nil
	case "postgres":
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported storage driver %q", driver)
	}
}
