package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	"github.com/scopegate/scopegate/assets"
)

// RunMigrations applies the embedded migrations for the given driver.
func RunMigrations(ctx context.Context, db *sql.DB, driver string) error {
	goose.SetLogger(goose.NopLogger())

	dialect := driver
	if driver == "sqlite" {
		dialect = "sqlite3"
	}

	migrations, err := fs.Sub(assets.EmbedMigrations, "migrations/"+driver)
	if err != nil {
		return fmt.Errorf("load %s migrations: %w", driver, err)
	}

	provider, err := goose.NewProvider(goose.Dialect(dialect), db, migrations)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
