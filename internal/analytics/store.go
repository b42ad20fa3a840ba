package analytics

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/turl/internal/messaging"
	"go.uber.org/zap"
)

// Store defines the interface for persisting analytics events.
type Store interface {
	SaveURLCreated(ctx context.Context, event *URLCreatedEvent) error
	SaveURLAccessed(ctx context.Context, event *URLAccessedEvent) error
	SaveURLDeleted(ctx context.Context, event *URLDeletedEvent) error
}

// RegisterConsumers adds one consumer per analytics topic to group.
func RegisterConsumers(group *messaging.ConsumerGroup, subscriber message.Subscriber, store Store, logger *zap.Logger) {
	group.Add(messaging.NewConsumer(subscriber, TopicURLCreated, store.SaveURLCreated, logger))
	group.Add(messaging.NewConsumer(subscriber, TopicURLAccessed, store.SaveURLAccessed, logger))
	group.Add(messaging.NewConsumer(subscriber, TopicURLDeleted, store.SaveURLDeleted, logger))
}

// Publishers bundles the typed publish functions used by the HTTP layer.
type Publishers struct {
	URLCreated  messaging.Publish[URLCreatedEvent]
	URLAccessed messaging.Publish[URLAccessedEvent]
	URLDeleted  messaging.Publish[URLDeletedEvent]
}

// NewPublishers binds every analytics topic to publisher.
func NewPublishers(publisher message.Publisher) Publishers {
	return Publishers{
		URLCreated:  messaging.NewPublishFunc[URLCreatedEvent](publisher, TopicURLCreated),
		URLAccessed: messaging.NewPublishFunc[URLAccessedEvent](publisher, TopicURLAccessed),
		URLDeleted:  messaging.NewPublishFunc[URLDeletedEvent](publisher, TopicURLDeleted),
	}
}

// DiscardPublishers drops every event.
func DiscardPublishers() Publishers {
	return Publishers{
		URLCreated:  messaging.Discard[URLCreatedEvent](),
		URLAccessed: messaging.Discard[URLAccessedEvent](),
		URLDeleted:  messaging.Discard[URLDeletedEvent](),
	}
}
