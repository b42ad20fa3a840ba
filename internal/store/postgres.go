package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/serroba/turl/internal/persistence"
	"github.com/serroba/turl/internal/shortener"
)

// Sessions opens persistence sessions.
type Sessions interface {
	WithSession(ctx context.Context, transactional bool, fn func(ctx context.Context, sess *persistence.Session) error) error
}

const selectResolution = `
	SELECT uh.id, uh.hash_key, uh.url_id, uh.date_created, uh.date_modified, uh.is_deleted, u.url
	FROM url_hash uh
	JOIN url u ON u.id = uh.url_id
	WHERE uh.hash_key = $1
`

const keyExists = `SELECT EXISTS (SELECT 1 FROM url_hash WHERE hash_key = $1)`

// storageErr tags persistence failures with shortener.ErrStorage and passes domain errors through.
func storageErr(op string, err error) error {
	if errors.Is(err, persistence.ErrStorage) {
		return fmt.Errorf("%s: %w: %w", op, shortener.ErrStorage, err)
	}

	return err
}

func decodeResolution(row persistence.Row) (*shortener.Resolution, error) {
	var (
		res shortener.Resolution
		key string
		err error
	)

	if res.ID, err = persistence.Column[int64](row, "id"); err != nil {
		return nil, err
	}

	if key, err = persistence.Column[string](row, "hash_key"); err != nil {
		return nil, err
	}

	res.HashKey = shortener.Key(key)

	if res.URLID, err = persistence.Column[int64](row, "url_id"); err != nil {
		return nil, err
	}

	if res.DateCreated, err = persistence.Column[time.Time](row, "date_created"); err != nil {
		return nil, err
	}

	if res.DateModified, err = persistence.NullableColumn[time.Time](row, "date_modified"); err != nil {
		return nil, err
	}

	if res.IsDeleted, err = persistence.Column[bool](row, "is_deleted"); err != nil {
		return nil, err
	}

	if res.LongURL, err = persistence.Column[string](row, "url"); err != nil {
		return nil, err
	}

	return &res, nil
}

func scalarInt64(v any) (int64, error) {
	id, ok := v.(int64)
	if !ok {
		return 0, &persistence.Error{Op: "decode", Err: fmt.Errorf("unexpected scalar type %T", v)}
	}

	return id, nil
}

func scalarBool(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, &persistence.Error{Op: "decode", Err: fmt.Errorf("unexpected scalar type %T", v)}
	}

	return b, nil
}
