// Package migrations embeds the SQL schema for the sqlite and postgres
// backends and applies it with golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/klabast/wb-services/calendar42/internal/storage"
)

const migrationsTable = "schema_migrations"

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// New prepares a migrator for the given storage driver. For sqlite dsn is the
// database file path; for postgres it is a postgres:// connection URL.
func New(driver, dsn string) (*migrate.Migrate, error) {
	const op = "storage.migrations.New"

	dbURL, err := databaseURL(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	src, err := iofs.New(files, driver)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// Up applies all pending migrations. An up-to-date schema is not an error.
func Up(driver, dsn string) error {
	const op = "storage.migrations.Up"

	m, err := New(driver, dsn)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Down rolls back every migration
func Down(driver, dsn string) error {
	const op = "storage.migrations.Down"

	m, err := New(driver, dsn)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func databaseURL(driver, dsn string) (string, error) {
	switch driver {
	case storage.DriverSQLite:
		return withMigrationsTable("sqlite3://" + dsn), nil
	case storage.DriverPostgres:
		if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
			return "", fmt.Errorf("postgres dsn must be a postgres:// URL")
		}
		return withMigrationsTable(dsn), nil
	default:
		return "", fmt.Errorf("%w: %q has no migrations", storage.ErrUnknownDriver, driver)
	}
}

func withMigrationsTable(url string) string {
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "x-migrations-table=" + migrationsTable
}
