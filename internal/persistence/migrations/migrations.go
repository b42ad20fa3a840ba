// Package migrations applies the embedded schema to a PostgreSQL database.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // pgx5:// driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// Migrator applies and reverts schema versions.
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// New creates a migrator for the database behind databaseURL.
// postgres:// and postgresql:// URLs are accepted.
func New(databaseURL string, logger *zap.Logger) (*Migrator, error) {
	source, err := iofs.New(migrationsFS, "sql")
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, DriverURL(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}

	return &Migrator{
		migrate: m,
		logger:  logger,
	}, nil
}

// DriverURL rewrites a libpq style URL to the scheme registered by the pgx driver.
func DriverURL(databaseURL string) string {
	for _, scheme := range []string{"postgresql://", "postgres://"} {
		if rest, ok := strings.CutPrefix(databaseURL, scheme); ok {
			return "pgx5://" + rest
		}
	}

	return databaseURL
}

// Up applies all pending migrations, repairing a dirty version first.
func (m *Migrator) Up() error {
	version, dirty, err := m.migrate.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}

	if dirty {
		m.logger.Warn("schema is dirty, forcing version", zap.Uint("version", version))

		if err := m.migrate.Force(int(version)); err != nil {
			return fmt.Errorf("force schema version: %w", err)
		}
	}

	if err := m.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Debug("schema up to date")

			return nil
		}

		return fmt.Errorf("apply migrations: %w", err)
	}

	newVersion, _, _ := m.migrate.Version()
	m.logger.Info("schema migrated", zap.Uint("version", newVersion))

	return nil
}

// Down reverts every applied migration.
func (m *Migrator) Down() error {
	if err := m.migrate.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("revert migrations: %w", err)
	}

	return nil
}

// Version returns the current schema version.
func (m *Migrator) Version() (uint, bool, error) {
	return m.migrate.Version()
}

// Close releases the source and database handles.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()

	return errors.Join(sourceErr, dbErr)
}
