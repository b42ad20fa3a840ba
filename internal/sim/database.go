package sim

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jaevor/go-nanoid"
	"github.com/serroba/turl/internal/persistence"
	"github.com/serroba/turl/internal/persistence/migrations"
	"go.uber.org/zap"
)

const schemaAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Database is a PostgreSQL schema dedicated to one simulation.
// Unnamed schemas are throwaway and dropped on Close.
type Database struct {
	Schema string
	Store  *persistence.Store

	keep  bool
	admin *pgxpool.Pool
}

// SchemaName returns a usable schema identifier for name, or a fresh random one when name is empty.
func SchemaName(name string) (string, error) {
	if name != "" {
		return pgx.Identifier{name}.Sanitize(), nil
	}

	gen, err := nanoid.CustomASCII(schemaAlphabet, 12)
	if err != nil {
		return "", fmt.Errorf("schema name generator: %w", err)
	}

	return "sim_" + gen(), nil
}

// SchemaURL points databaseURL at schema through the search_path runtime parameter.
func SchemaURL(databaseURL, schema string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}

	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// OpenDatabase creates (or reuses) the schema, migrates it and opens a session store inside it.
func OpenDatabase(ctx context.Context, databaseURL, name string, logger *zap.Logger) (*Database, error) {
	schema, err := SchemaName(name)
	if err != nil {
		return nil, err
	}

	admin, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if _, err := admin.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+schema); err != nil {
		admin.Close()

		return nil, fmt.Errorf("create schema %s: %w", schema, err)
	}

	db := &Database{Schema: schema, keep: name != "", admin: admin}

	scoped, err := SchemaURL(databaseURL, schema)
	if err == nil {
		err = migrate(scoped, logger)
	}

	var pool *pgxpool.Pool
	if err == nil {
		pool, err = pgxpool.New(ctx, scoped)
	}

	if err != nil {
		return nil, errors.Join(err, db.Close(ctx))
	}

	db.Store = persistence.New(pool, persistence.WithLogger(logger))

	logger.Info("simulation database ready", zap.String("schema", schema), zap.Bool("keep", db.keep))

	return db, nil
}

func migrate(databaseURL string, logger *zap.Logger) (err error) {
	m, err := migrations.New(databaseURL, logger)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := m.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	return m.Up()
}

// Close releases the store and drops throwaway schemas.
func (d *Database) Close(ctx context.Context) error {
	var errs []error

	if d.Store != nil {
		errs = append(errs, d.Store.Shutdown())
	}

	if !d.keep {
		if _, err := d.admin.Exec(ctx, "DROP SCHEMA IF EXISTS "+d.Schema+" CASCADE"); err != nil {
			errs = append(errs, fmt.Errorf("drop schema %s: %w", d.Schema, err))
		}
	}

	d.admin.Close()

	return errors.Join(errs...)
}
