package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/serroba/turl/internal/analytics"
	"github.com/serroba/turl/internal/analytics/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewNoop(t *testing.T) {
	logger := zap.NewNop()
	noop := store.NewNoop(logger)

	assert.NotNil(t, noop)
}

func TestNoop_SaveURLCreated(t *testing.T) {
	logger := zap.NewNop()
	noop := store.NewNoop(logger)

	event := &analytics.URLCreatedEvent{
		Key:       "abc123",
		LongURL:   "https://example.com",
		Custom:    true,
		CreatedAt: time.Now(),
	}

	err := noop.SaveURLCreated(context.Background(), event)

	require.NoError(t, err)
}

func TestNoop_SaveURLAccessed(t *testing.T) {
	logger := zap.NewNop()
	noop := store.NewNoop(logger)

	event := &analytics.URLAccessedEvent{
		Key:        "abc123",
		AccessedAt: time.Now(),
		ClientIP:   "127.0.0.1",
		UserAgent:  "TestAgent/1.0",
		Referrer:   "https://referrer.com",
	}

	err := noop.SaveURLAccessed(context.Background(), event)

	require.NoError(t, err)
}

func TestNoop_SaveURLDeleted(t *testing.T) {
	noop := store.NewNoop(zap.NewNop())

	err := noop.SaveURLDeleted(context.Background(), &analytics.URLDeletedEvent{
		Key:       "abc123",
		DeletedAt: time.Now(),
	})

	require.NoError(t, err)
}
