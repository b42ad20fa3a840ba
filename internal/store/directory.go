package store

import (
	"context"
	"fmt"
	"time"

	"github.com/serroba/turl/internal/persistence"
	"github.com/serroba/turl/internal/shortener"
)

const (
	selectURLID = `SELECT id FROM url WHERE digest = $1 AND url = $2`

	insertURL = `
		INSERT INTO url (url, digest, date_created)
		VALUES ($1, $2, $3)
		ON CONFLICT (digest) DO NOTHING
		RETURNING id
	`

	insertAllocation = `
		INSERT INTO url_hash (hash_key, url_id, date_created, is_deleted)
		VALUES ($1, $2, $3, false)
		RETURNING id
	`

	tombstoneAllocation = `
		UPDATE url_hash
		SET is_deleted = true, date_modified = $2
		WHERE hash_key = $1 AND NOT is_deleted
	`
)

// Directory is the PostgreSQL implementation of shortener.Directory.
type Directory struct {
	db  Sessions
	now func() time.Time
}

// NewDirectory creates a directory over db.
func NewDirectory(db Sessions) *Directory {
	return &Directory{db: db, now: time.Now}
}

// RegisterURL returns the id of longURL, inserting it when it is new.
// Concurrent registrations of the same string converge on one row.
func (d *Directory) RegisterURL(ctx context.Context, longURL string) (int64, error) {
	digest := URLDigest(longURL)

	var id int64

	err := d.db.WithSession(ctx, true, func(ctx context.Context, sess *persistence.Session) error {
		existing, err := sess.FetchScalar(ctx, selectURLID, digest, longURL)
		if err != nil {
			return err
		}

		if existing != nil {
			id, err = scalarInt64(existing)

			return err
		}

		res, err := sess.Execute(ctx, insertURL, longURL, digest, d.now())
		if err != nil {
			return err
		}

		if inserted, ok := res.InsertedID(); ok {
			id = inserted

			return nil
		}

		// A concurrent registration won the insert.
		existing, err = sess.FetchScalar(ctx, selectURLID, digest, longURL)
		if err != nil {
			return err
		}

		if existing == nil {
			return &persistence.Error{Op: "register url", Err: fmt.Errorf("digest %s held by another url", digest)}
		}

		id, err = scalarInt64(existing)

		return err
	})
	if err != nil {
		return 0, storageErr("register url", err)
	}

	return id, nil
}

// KeyTaken reports whether any allocation, active or tombstoned, holds key.
func (d *Directory) KeyTaken(ctx context.Context, key shortener.Key) (bool, error) {
	var taken bool

	err := d.db.WithSession(ctx, false, func(ctx context.Context, sess *persistence.Session) error {
		v, err := sess.FetchScalar(ctx, keyExists, string(key))
		if err != nil {
			return err
		}

		taken, err = scalarBool(v)

		return err
	})
	if err != nil {
		return false, storageErr("check key", err)
	}

	return taken, nil
}

// CreateAllocation inserts an allocation. The unique constraint on hash_key
// turns a lost race into shortener.ErrKeyTaken.
func (d *Directory) CreateAllocation(ctx context.Context, urlID int64, key shortener.Key) (int64, error) {
	var id int64

	err := d.db.WithSession(ctx, true, func(ctx context.Context, sess *persistence.Session) error {
		res, err := sess.Execute(ctx, insertAllocation, string(key), urlID, d.now())
		if err != nil {
			return err
		}

		inserted, ok := res.InsertedID()
		if !ok {
			return &persistence.Error{Op: "create allocation", Err: fmt.Errorf("no id returned for %q", key)}
		}

		id = inserted

		return nil
	})
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", shortener.ErrKeyTaken, key)
		}

		return 0, storageErr("create allocation", err)
	}

	return id, nil
}

// Resolve returns the allocation for key whatever its tombstone state.
func (d *Directory) Resolve(ctx context.Context, key shortener.Key) (*shortener.Resolution, error) {
	var res *shortener.Resolution

	err := d.db.WithSession(ctx, false, func(ctx context.Context, sess *persistence.Session) error {
		row, err := sess.FetchOne(ctx, selectResolution, string(key))
		if err != nil {
			return err
		}

		if row == nil {
			return shortener.ErrNotFound
		}

		res, err = decodeResolution(*row)
		if err != nil {
			return &persistence.Error{Op: "decode", Err: err}
		}

		return nil
	})
	if err != nil {
		return nil, storageErr("resolve", err)
	}

	return res, nil
}

// Tombstone marks the allocation for key as deleted. Tombstoning twice keeps
// the first deletion time.
func (d *Directory) Tombstone(ctx context.Context, key shortener.Key) error {
	err := d.db.WithSession(ctx, true, func(ctx context.Context, sess *persistence.Session) error {
		res, err := sess.Execute(ctx, tombstoneAllocation, string(key), d.now())
		if err != nil {
			return err
		}

		if res.RowsAffected > 0 {
			return nil
		}

		v, err := sess.FetchScalar(ctx, keyExists, string(key))
		if err != nil {
			return err
		}

		exists, err := scalarBool(v)
		if err != nil {
			return err
		}

		if !exists {
			return shortener.ErrNotFound
		}

		return nil
	})

	return storageErr("tombstone", err)
}
