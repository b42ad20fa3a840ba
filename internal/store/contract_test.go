package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/serroba/turl/internal/shortener"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backend is a directory and ledger sharing one storage.
type backend struct {
	shortener.Directory
	shortener.Ledger
}

// runContract exercises the storage guarantees every backend must keep.
func runContract(t *testing.T, open func(t *testing.T) backend) {
	t.Helper()

	ctx := context.Background()

	allocate := func(t *testing.T, b backend, longURL string, key shortener.Key) *shortener.Resolution {
		t.Helper()

		urlID, err := b.RegisterURL(ctx, longURL)
		require.NoError(t, err)

		_, err = b.CreateAllocation(ctx, urlID, key)
		require.NoError(t, err)

		res, err := b.Resolve(ctx, key)
		require.NoError(t, err)

		return res
	}

	t.Run("registration is idempotent per exact string", func(t *testing.T) {
		b := open(t)

		first, err := b.RegisterURL(ctx, "https://www.google.com")
		require.NoError(t, err)

		again, err := b.RegisterURL(ctx, "https://www.google.com")
		require.NoError(t, err)

		other, err := b.RegisterURL(ctx, "https://www.google.com/")
		require.NoError(t, err)

		assert.Equal(t, first, again)
		assert.NotEqual(t, first, other)
	})

	t.Run("concurrent registrations converge", func(t *testing.T) {
		b := open(t)

		const workers = 8

		ids := make([]int64, workers)

		var wg sync.WaitGroup

		for i := range workers {
			wg.Go(func() {
				id, err := b.RegisterURL(ctx, "https://example.com/race")
				assert.NoError(t, err)

				ids[i] = id
			})
		}

		wg.Wait()

		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}
	})

	t.Run("allocation resolves to its long url", func(t *testing.T) {
		b := open(t)

		res := allocate(t, b, "https://www.google.com", "xMpCOKC5")

		assert.Equal(t, shortener.Key("xMpCOKC5"), res.HashKey)
		assert.Equal(t, "https://www.google.com", res.LongURL)
		assert.False(t, res.IsDeleted)
		assert.Nil(t, res.DateModified)
		assert.False(t, res.DateCreated.IsZero())
	})

	t.Run("unknown keys", func(t *testing.T) {
		b := open(t)

		taken, err := b.KeyTaken(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, taken)

		_, err = b.Resolve(ctx, "missing")
		require.ErrorIs(t, err, shortener.ErrNotFound)

		require.ErrorIs(t, b.Tombstone(ctx, "missing"), shortener.ErrNotFound)

		_, err = b.Statistics(ctx, "missing")
		require.ErrorIs(t, err, shortener.ErrNotFound)
	})

	t.Run("a key is allocated at most once", func(t *testing.T) {
		b := open(t)

		res := allocate(t, b, "https://www.google.com", "promo")

		taken, err := b.KeyTaken(ctx, "promo")
		require.NoError(t, err)
		assert.True(t, taken)

		_, err = b.CreateAllocation(ctx, res.URLID, "promo")
		require.ErrorIs(t, err, shortener.ErrKeyTaken)
	})

	t.Run("concurrent allocations of one key have a single winner", func(t *testing.T) {
		b := open(t)

		urlID, err := b.RegisterURL(ctx, "https://example.com/contended")
		require.NoError(t, err)

		const workers = 8

		var (
			wg    sync.WaitGroup
			wins  atomic.Int32
			taken atomic.Int32
		)

		for range workers {
			wg.Go(func() {
				_, err := b.CreateAllocation(ctx, urlID, "contended")

				switch {
				case err == nil:
					wins.Add(1)
				case assert.ErrorIs(t, err, shortener.ErrKeyTaken):
					taken.Add(1)
				}
			})
		}

		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(workers-1), taken.Load())
	})

	t.Run("tombstones are permanent and keep their first date", func(t *testing.T) {
		b := open(t)

		allocate(t, b, "https://www.google.com", "gone")

		require.NoError(t, b.Tombstone(ctx, "gone"))

		first, err := b.Resolve(ctx, "gone")
		require.NoError(t, err)
		assert.True(t, first.IsDeleted)
		require.NotNil(t, first.DateModified)

		require.NoError(t, b.Tombstone(ctx, "gone"))

		second, err := b.Resolve(ctx, "gone")
		require.NoError(t, err)
		assert.True(t, second.IsDeleted)
		assert.True(t, first.DateModified.Equal(*second.DateModified))

		taken, err := b.KeyTaken(ctx, "gone")
		require.NoError(t, err)
		assert.True(t, taken)
	})

	t.Run("clicks are counted per allocation", func(t *testing.T) {
		b := open(t)

		res := allocate(t, b, "https://www.google.com", "counted")
		other := allocate(t, b, "https://www.google.com", "other")

		ip, ua := "203.0.113.7", "TestAgent/1.0"

		require.NoError(t, b.RecordClick(ctx, res.ID, shortener.ClickMeta{IPAddress: &ip, UserAgent: &ua}))
		require.NoError(t, b.RecordClick(ctx, res.ID, shortener.ClickMeta{}))
		require.NoError(t, b.RecordClick(ctx, other.ID, shortener.ClickMeta{}))

		stats, err := b.Statistics(ctx, "counted")
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.NumClicks)
		assert.Equal(t, "https://www.google.com", stats.LongURL)

		hits, err := b.Hits(ctx, res.ID)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Greater(t, hits[0].ID, hits[1].ID)
		assert.Nil(t, hits[0].IPAddress)
		require.NotNil(t, hits[1].IPAddress)
		assert.Equal(t, ip, *hits[1].IPAddress)
		assert.Equal(t, ua, *hits[1].UserAgent)
	})

	t.Run("allocations without clicks", func(t *testing.T) {
		b := open(t)

		res := allocate(t, b, "https://www.google.com", "quiet")

		stats, err := b.Statistics(ctx, "quiet")
		require.NoError(t, err)
		assert.Zero(t, stats.NumClicks)

		hits, err := b.Hits(ctx, res.ID)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("tombstoned allocations reject clicks", func(t *testing.T) {
		b := open(t)

		res := allocate(t, b, "https://www.google.com", "closed")
		require.NoError(t, b.RecordClick(ctx, res.ID, shortener.ClickMeta{}))
		require.NoError(t, b.Tombstone(ctx, "closed"))

		require.ErrorIs(t, b.RecordClick(ctx, res.ID, shortener.ClickMeta{}), shortener.ErrDeleted)

		stats, err := b.Statistics(ctx, "closed")
		require.NoError(t, err)
		assert.True(t, stats.IsDeleted)
		assert.Equal(t, int64(1), stats.NumClicks)
	})
}
