package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Handler processes a single event. Handlers are synchronous and easy to test.
type Handler[T any] func(ctx context.Context, event *T) error

// Consumer subscribes to a topic and processes messages with a typed handler.
type Consumer[T any] struct {
	subscriber message.Subscriber
	topic      string
	handler    Handler[T]
	logger     *zap.Logger
	cancel     context.CancelFunc
	done       chan struct{}
	started    bool
}

// NewConsumer creates a new generic consumer for a specific event type.
func NewConsumer[T any](
	subscriber message.Subscriber,
	topic string,
	handler Handler[T],
	logger *zap.Logger,
) *Consumer[T] {
	return &Consumer[T]{
		subscriber: subscriber,
		topic:      topic,
		handler:    handler,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Topic returns the topic this consumer subscribes to.
func (c *Consumer[T]) Topic() string {
	return c.topic
}

// Start begins consuming messages from the topic.
func (c *Consumer[T]) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	msgs, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.topic, err)
	}

	c.started = true

	go c.consumeLoop(ctx, msgs)

	return nil
}

func (c *Consumer[T]) consumeLoop(ctx context.Context, msgs <-chan *message.Message) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			c.handleMessage(ctx, msg)
		}
	}
}

func (c *Consumer[T]) handleMessage(ctx context.Context, msg *message.Message) {
	logger := c.logger.With(
		zap.String("topic", c.topic),
		zap.String("messageId", msg.UUID),
	)

	var event T
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		// Redelivery cannot fix a malformed payload.
		logger.Error("dropping undecodable event", zap.Error(err))
		msg.Ack()

		return
	}

	if err := c.handler(ctx, &event); err != nil {
		logger.Error("failed to handle event", zap.Error(err))
		msg.Nack()

		return
	}

	msg.Ack()

	logger.Debug("processed event")
}

// Shutdown stops the consumer and waits for in-flight messages to complete.
// It returns immediately for a consumer that never started.
func (c *Consumer[T]) Shutdown() error {
	if c.cancel != nil {
		c.cancel()
	}

	if !c.started {
		return nil
	}

	<-c.done

	return nil
}
