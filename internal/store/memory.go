package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/serroba/turl/internal/shortener"
)

// MemoryStore is an in-memory implementation of shortener.Directory and shortener.Ledger.
// A single mutex makes every check-and-insert atomic, mirroring the storage constraints.
type MemoryStore struct {
	mu          sync.RWMutex
	urls        []shortener.URL
	urlByDigest map[string]int64 // digest -> url id
	allocations []shortener.Allocation
	byKey       map[shortener.Key]int // key -> allocation index
	hits        []shortener.Hit
	now         func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		urlByDigest: make(map[string]int64),
		byKey:       make(map[shortener.Key]int),
		now:         time.Now,
	}
}

func (m *MemoryStore) RegisterURL(_ context.Context, longURL string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	digest := URLDigest(longURL)
	if id, ok := m.urlByDigest[digest]; ok {
		return id, nil
	}

	id := int64(len(m.urls) + 1)
	m.urls = append(m.urls, shortener.URL{ID: id, URL: longURL, DateCreated: m.now()})
	m.urlByDigest[digest] = id

	return id, nil
}

func (m *MemoryStore) KeyTaken(_ context.Context, key shortener.Key) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.byKey[key]

	return ok, nil
}

func (m *MemoryStore) CreateAllocation(_ context.Context, urlID int64, key shortener.Key) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byKey[key]; ok {
		return 0, shortener.ErrKeyTaken
	}

	if urlID < 1 || urlID > int64(len(m.urls)) {
		return 0, fmt.Errorf("%w: url %d does not exist", shortener.ErrStorage, urlID)
	}

	id := int64(len(m.allocations) + 1)
	m.allocations = append(m.allocations, shortener.Allocation{
		ID:          id,
		HashKey:     key,
		URLID:       urlID,
		DateCreated: m.now(),
	})
	m.byKey[key] = len(m.allocations) - 1

	return id, nil
}

func (m *MemoryStore) Resolve(_ context.Context, key shortener.Key) (*shortener.Resolution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.byKey[key]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	return m.resolution(idx), nil
}

func (m *MemoryStore) Tombstone(_ context.Context, key shortener.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.byKey[key]
	if !ok {
		return shortener.ErrNotFound
	}

	alloc := &m.allocations[idx]
	if alloc.IsDeleted {
		return nil
	}

	now := m.now()
	alloc.IsDeleted = true
	alloc.DateModified = &now

	return nil
}

func (m *MemoryStore) RecordClick(_ context.Context, allocationID int64, meta shortener.ClickMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if allocationID < 1 || allocationID > int64(len(m.allocations)) {
		return shortener.ErrNotFound
	}

	if m.allocations[allocationID-1].IsDeleted {
		return shortener.ErrDeleted
	}

	m.hits = append(m.hits, shortener.Hit{
		ID:           int64(len(m.hits) + 1),
		AllocationID: allocationID,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		DateCreated:  m.now(),
	})

	return nil
}

func (m *MemoryStore) Statistics(_ context.Context, key shortener.Key) (*shortener.Statistics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.byKey[key]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	stats := &shortener.Statistics{Resolution: *m.resolution(idx)}

	for _, h := range m.hits {
		if h.AllocationID == stats.ID {
			stats.NumClicks++
		}
	}

	return stats, nil
}

func (m *MemoryStore) Hits(_ context.Context, allocationID int64) ([]shortener.Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []shortener.Hit

	for i := len(m.hits) - 1; i >= 0; i-- {
		if m.hits[i].AllocationID == allocationID {
			hits = append(hits, m.hits[i])
		}
	}

	return hits, nil
}

// URLCount returns the number of registered URLs.
func (m *MemoryStore) URLCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.urls)
}

func (m *MemoryStore) resolution(idx int) *shortener.Resolution {
	alloc := m.allocations[idx]

	return &shortener.Resolution{
		Allocation: alloc,
		LongURL:    m.urls[alloc.URLID-1].URL,
	}
}
