// Package dependencies assembles the shared infrastructure of the server.
package dependencies

import (
	"context"

	"go.uber.org/fx"

	"github.com/scopegate/scopegate/internal/storage"
)

// NewStore opens the database, applies pending migrations, and closes the
// store when the application stops.
func NewStore(lc fx.Lifecycle, cfg storage.Config) (*storage.Store, error) {
	db, err := storage.Open(cfg)
	if err != nil {
		return nil, err
	}

	if err := storage.RunMigrations(context.Background(), db, cfg.Driver); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := storage.New(db, cfg.Driver)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return store.Close()
		},
	})

	return store, nil
}

var Module = fx.Module("dependencies",
	fx.Provide(NewStore),
)
