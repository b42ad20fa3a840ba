package shortener

import (
	"context"
	"crypto/md5" //nolint:gosec // key derivation, not security
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

const (
	// KeyLength is the number of characters in a derived key.
	KeyLength = 8
	// DefaultMaxRetries bounds how many alternative seeds are tried after the first collision.
	DefaultMaxRetries = 5
)

// DeriveKey maps a seed to a key: the first KeyLength characters of the
// URL-safe base64 encoding of the MD5 digest of the seed's decimal form.
func DeriveKey(seed int64) Key {
	sum := md5.Sum([]byte(strconv.FormatInt(seed, 10)))

	return Key(base64.URLEncoding.EncodeToString(sum[:])[:KeyLength])
}

// Allocator reserves keys for registered URLs.
type Allocator struct {
	directory  Directory
	maxRetries int
	recorder   Recorder
	logger     *zap.Logger
}

// AllocatorOption configures an Allocator.
type AllocatorOption func(*Allocator)

// WithMaxRetries overrides DefaultMaxRetries.
func WithMaxRetries(n int) AllocatorOption {
	return func(a *Allocator) {
		if n >= 0 {
			a.maxRetries = n
		}
	}
}

// WithRecorder reports collisions and outcomes to r.
func WithRecorder(r Recorder) AllocatorOption {
	return func(a *Allocator) {
		a.recorder = r
	}
}

// WithAllocatorLogger sets the allocator logger.
func WithAllocatorLogger(logger *zap.Logger) AllocatorOption {
	return func(a *Allocator) {
		a.logger = logger
	}
}

// NewAllocator creates an allocator persisting through directory.
func NewAllocator(directory Directory, opts ...AllocatorOption) *Allocator {
	a := &Allocator{
		directory:  directory,
		maxRetries: DefaultMaxRetries,
		recorder:   NopRecorder{},
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Allocate reserves a key for urlID. A non-empty requested key is reserved as
// is and yields ErrConflict when taken. Otherwise keys are derived from urlID,
// urlID+1, ... up to urlID+maxRetries before giving up with ErrAllocationExhausted.
func (a *Allocator) Allocate(ctx context.Context, urlID int64, requested Key) (Key, error) {
	if requested != "" {
		err := a.reserve(ctx, urlID, requested)
		if errors.Is(err, ErrKeyTaken) {
			err = fmt.Errorf("%w: %s", ErrConflict, requested)
		}

		a.recorder.Allocation(true, err)

		if err != nil {
			return "", err
		}

		return requested, nil
	}

	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			err = fmt.Errorf("%w: %w", ErrStorage, err)
			a.recorder.Allocation(false, err)

			return "", err
		}

		candidate := DeriveKey(urlID + int64(attempt))

		err := a.reserve(ctx, urlID, candidate)
		if err == nil {
			a.recorder.Allocation(false, nil)

			return candidate, nil
		}

		if !errors.Is(err, ErrKeyTaken) {
			a.recorder.Allocation(false, err)

			return "", err
		}

		a.logger.Debug("derived key collided",
			zap.Int64("urlId", urlID),
			zap.Int("attempt", attempt),
			zap.String("key", string(candidate)),
		)
	}

	err := fmt.Errorf("%w: url %d after %d attempts", ErrAllocationExhausted, urlID, a.maxRetries+1)
	a.recorder.Allocation(false, err)

	return "", err
}

// reserve persists key unless it is already taken. The pre-check is only a
// shortcut; the storage constraint decides races.
func (a *Allocator) reserve(ctx context.Context, urlID int64, key Key) error {
	taken, err := a.directory.KeyTaken(ctx, key)
	if err != nil {
		return err
	}

	if taken {
		a.recorder.Collision(CollisionPrecheck)

		return ErrKeyTaken
	}

	if _, err := a.directory.CreateAllocation(ctx, urlID, key); err != nil {
		if errors.Is(err, ErrKeyTaken) {
			a.recorder.Collision(CollisionConstraint)
		}

		return err
	}

	return nil
}
