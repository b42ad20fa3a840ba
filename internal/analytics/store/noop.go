package store

import (
	"context"

	"github.com/serroba/turl/internal/analytics"
	"go.uber.org/zap"
)

// Noop is a no-op implementation of analytics.Store that logs events.
type Noop struct {
	logger *zap.Logger
}

// NewNoop creates a new no-op analytics store.
func NewNoop(logger *zap.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) SaveURLCreated(_ context.Context, event *analytics.URLCreatedEvent) error {
	n.logger.Info("url created event received",
		zap.String("key", event.Key),
		zap.String("longUrl", event.LongURL),
		zap.Bool("custom", event.Custom),
		zap.Time("createdAt", event.CreatedAt),
	)

	return nil
}

func (n *Noop) SaveURLAccessed(_ context.Context, event *analytics.URLAccessedEvent) error {
	n.logger.Info("url accessed event received",
		zap.String("key", event.Key),
		zap.Time("accessedAt", event.AccessedAt),
		zap.String("referrer", event.Referrer),
	)

	return nil
}

func (n *Noop) SaveURLDeleted(_ context.Context, event *analytics.URLDeletedEvent) error {
	n.logger.Info("url deleted event received",
		zap.String("key", event.Key),
		zap.Time("deletedAt", event.DeletedAt),
	)

	return nil
}
