package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/klabast/wb-services/calendar42/internal/config"
	"github.com/klabast/wb-services/calendar42/internal/services/auth"
	"github.com/klabast/wb-services/calendar42/internal/services/catalog"
	"github.com/klabast/wb-services/calendar42/internal/services/subscriptions"
	"github.com/klabast/wb-services/calendar42/internal/storage"
	"github.com/klabast/wb-services/calendar42/internal/storage/jsonfile"
	"github.com/klabast/wb-services/calendar42/internal/storage/migrations"
	"github.com/klabast/wb-services/calendar42/internal/storage/postgres"
	"github.com/klabast/wb-services/calendar42/internal/storage/sqlite"
)

// Storage is implemented by every primary backend
type Storage interface {
	catalog.EventStorage
	auth.UserStorage
	auth.RoleStorage
	subscriptions.Storage
	Close() error
}

// OpenStorage opens the backend selected by cfg. SQL backends are migrated
// to the latest schema first.
func OpenStorage(ctx context.Context, log *slog.Logger, cfg config.StorageConfig) (Storage, error) {
	const op = "app.OpenStorage"
	log = log.With(slog.String("op", op), slog.String("driver", cfg.Driver))

	switch cfg.Driver {
	case storage.DriverJSON:
		log.Info("opening catalog file", slog.String("path", cfg.Path))
		st, err := jsonfile.New(log, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return st, nil

	case storage.DriverSQLite:
		if err := Migrate(cfg, false); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		log.Info("opening sqlite database", slog.String("path", cfg.Path))
		st, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return st, nil

	case storage.DriverPostgres:
		if err := Migrate(cfg, false); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		log.Info("connecting to postgres")
		st, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return st, nil

	default:
		return nil, fmt.Errorf("%s: %w: %q", op, storage.ErrUnknownDriver, cfg.Driver)
	}
}

// Migrate applies (or with down set, rolls back) the schema of a SQL
// backend. The json backend has no schema.
func Migrate(cfg config.StorageConfig, down bool) error {
	dsn := cfg.DSN
	switch cfg.Driver {
	case storage.DriverJSON:
		return nil
	case storage.DriverSQLite:
		dsn = cfg.Path
	}

	if down {
		return migrations.Down(cfg.Driver, dsn)
	}
	return migrations.Up(cfg.Driver, dsn)
}
