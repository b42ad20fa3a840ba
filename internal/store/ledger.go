package store

import (
	"context"
	"time"

	"github.com/serroba/turl/internal/persistence"
	"github.com/serroba/turl/internal/shortener"
)

const (
	// The insert only happens while the allocation is active.
	insertHit = `
		INSERT INTO hit (url_hash_id, ip_address, user_agent, date_created)
		SELECT id, $2::text, $3::text, $4::timestamptz
		FROM url_hash
		WHERE id = $1 AND NOT is_deleted
		RETURNING id
	`

	selectStatistics = `
		SELECT uh.id, uh.hash_key, uh.url_id, uh.date_created, uh.date_modified, uh.is_deleted, u.url,
		       COUNT(DISTINCT h.id) AS num_clicks
		FROM url_hash uh
		JOIN url u ON u.id = uh.url_id
		LEFT JOIN hit h ON h.url_hash_id = uh.id
		WHERE uh.hash_key = $1
		GROUP BY uh.id, u.id
	`

	selectHits = `
		SELECT id, url_hash_id, ip_address, user_agent, date_created
		FROM hit
		WHERE url_hash_id = $1
		ORDER BY id DESC
	`
)

// Ledger is the PostgreSQL implementation of shortener.Ledger.
type Ledger struct {
	db  Sessions
	now func() time.Time
}

// NewLedger creates a ledger over db.
func NewLedger(db Sessions) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// RecordClick appends one hit for an active allocation.
func (l *Ledger) RecordClick(ctx context.Context, allocationID int64, meta shortener.ClickMeta) error {
	err := l.db.WithSession(ctx, false, func(ctx context.Context, sess *persistence.Session) error {
		res, err := sess.Execute(ctx, insertHit, allocationID, meta.IPAddress, meta.UserAgent, l.now())
		if err != nil {
			return err
		}

		if _, ok := res.InsertedID(); !ok {
			return shortener.ErrDeleted
		}

		return nil
	})

	return storageErr("record click", err)
}

func (l *Ledger) Statistics(ctx context.Context, key shortener.Key) (*shortener.Statistics, error) {
	var stats *shortener.Statistics

	err := l.db.WithSession(ctx, false, func(ctx context.Context, sess *persistence.Session) error {
		row, err := sess.FetchOne(ctx, selectStatistics, string(key))
		if err != nil {
			return err
		}

		if row == nil {
			return shortener.ErrNotFound
		}

		res, err := decodeResolution(*row)
		if err != nil {
			return &persistence.Error{Op: "decode", Err: err}
		}

		clicks, err := persistence.Column[int64](*row, "num_clicks")
		if err != nil {
			return &persistence.Error{Op: "decode", Err: err}
		}

		stats = &shortener.Statistics{Resolution: *res, NumClicks: clicks}

		return nil
	})
	if err != nil {
		return nil, storageErr("statistics", err)
	}

	return stats, nil
}

func (l *Ledger) Hits(ctx context.Context, allocationID int64) ([]shortener.Hit, error) {
	var hits []shortener.Hit

	err := l.db.WithSession(ctx, false, func(ctx context.Context, sess *persistence.Session) error {
		rows, err := sess.FetchAll(ctx, selectHits, allocationID)
		if err != nil {
			return err
		}

		hits = make([]shortener.Hit, 0, len(rows))

		for _, row := range rows {
			hit, err := decodeHit(row)
			if err != nil {
				return &persistence.Error{Op: "decode", Err: err}
			}

			hits = append(hits, hit)
		}

		return nil
	})
	if err != nil {
		return nil, storageErr("hits", err)
	}

	return hits, nil
}

func decodeHit(row persistence.Row) (shortener.Hit, error) {
	var (
		hit shortener.Hit
		err error
	)

	if hit.ID, err = persistence.Column[int64](row, "id"); err != nil {
		return hit, err
	}

	if hit.AllocationID, err = persistence.Column[int64](row, "url_hash_id"); err != nil {
		return hit, err
	}

	if hit.IPAddress, err = persistence.NullableColumn[string](row, "ip_address"); err != nil {
		return hit, err
	}

	if hit.UserAgent, err = persistence.NullableColumn[string](row, "user_agent"); err != nil {
		return hit, err
	}

	hit.DateCreated, err = persistence.Column[time.Time](row, "date_created")

	return hit, err
}
