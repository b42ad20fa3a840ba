package shortener

import (
	"context"
	"time"
)

// Key is the short token that identifies an allocation.
type Key string

// URL is a registered long URL. Each distinct string is stored once.
type URL struct {
	ID          int64
	URL         string
	DateCreated time.Time
}

// Allocation binds a key to a registered URL. Allocations are tombstoned, never removed.
type Allocation struct {
	ID           int64
	HashKey      Key
	URLID        int64
	DateCreated  time.Time
	DateModified *time.Time
	IsDeleted    bool
}

// Resolution is an allocation joined with its long URL.
type Resolution struct {
	Allocation
	LongURL string
}

// Statistics is a resolution together with its click count.
type Statistics struct {
	Resolution
	NumClicks int64
}

// ClickMeta is the client information recorded with a click.
type ClickMeta struct {
	IPAddress *string
	UserAgent *string
}

// Hit is a single recorded access of an allocation.
type Hit struct {
	ID           int64
	AllocationID int64
	IPAddress    *string
	UserAgent    *string
	DateCreated  time.Time
}

// Directory stores long URLs and their key allocations.
type Directory interface {
	RegisterURL(ctx context.Context, longURL string) (int64, error)
	KeyTaken(ctx context.Context, key Key) (bool, error)
	// CreateAllocation returns ErrKeyTaken when storage rejects the key as a duplicate.
	CreateAllocation(ctx context.Context, urlID int64, key Key) (int64, error)
	Resolve(ctx context.Context, key Key) (*Resolution, error)
	Tombstone(ctx context.Context, key Key) error
}

// Ledger records clicks and aggregates them.
type Ledger interface {
	// RecordClick returns ErrDeleted when the allocation is no longer active.
	RecordClick(ctx context.Context, allocationID int64, meta ClickMeta) error
	Statistics(ctx context.Context, key Key) (*Statistics, error)
	// Hits lists the clicks of an allocation, most recent first.
	Hits(ctx context.Context, allocationID int64) ([]Hit, error)
}
