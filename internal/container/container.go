// Package container wires the application with samber/do. Each *Package function registers
// lazy providers; binaries pick the packages they need.
package container

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/turl/internal/analytics"
	analyticsstore "github.com/serroba/turl/internal/analytics/store"
	"github.com/serroba/turl/internal/handlers"
	"github.com/serroba/turl/internal/health"
	"github.com/serroba/turl/internal/logging"
	"github.com/serroba/turl/internal/messaging"
	"github.com/serroba/turl/internal/metrics"
	"github.com/serroba/turl/internal/middleware"
	"github.com/serroba/turl/internal/persistence"
	"github.com/serroba/turl/internal/persistence/migrations"
	"github.com/serroba/turl/internal/shortener"
	"github.com/serroba/turl/internal/store"
	"go.uber.org/zap"
)

const (
	connectTimeout = 10 * time.Second
	consumerGroup  = "turl-analytics"
)

// RedisClient closes the client when the injector shuts down.
type RedisClient struct {
	*redis.Client
}

func (c *RedisClient) Shutdown() error {
	return c.Close()
}

func LoggerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		return logging.New(logging.Config{
			Format: opts.LogFormat,
			Level:  opts.LogLevel,
			File:   opts.LogFile,
		})
	})
}

func MetricsPackage(i *do.Injector) {
	do.Provide(i, func(_ *do.Injector) (*metrics.Metrics, error) {
		return metrics.New(), nil
	})
}

// PostgresPackage provides the session store, migrating the schema first when enabled.
func PostgresPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*persistence.Store, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		if opts.Migrate {
			if err := migrate(opts.DatabaseURL, logger); err != nil {
				return nil, err
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}

		return persistence.New(pool,
			persistence.WithTimeout(opts.Timeout()),
			persistence.WithLogger(logger),
		), nil
	})
}

func migrate(databaseURL string, logger *zap.Logger) (err error) {
	m, err := migrations.New(databaseURL, logger)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := m.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	return m.Up()
}

func RedisPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*RedisClient, error) {
		opts := do.MustInvoke[*Options](i)

		return &RedisClient{Client: redis.NewClient(&redis.Options{Addr: opts.RedisAddr})}, nil
	})
}

// ServicePackage provides the shortener service over the PostgreSQL directory and ledger.
func ServicePackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*shortener.Service, error) {
		opts := do.MustInvoke[*Options](i)
		db := do.MustInvoke[*persistence.Store](i)

		return shortener.NewService(store.NewDirectory(db), store.NewLedger(db),
			shortener.WithBaseURL(opts.PublicURL()),
			shortener.WithOperationTimeout(opts.Timeout()),
			shortener.WithAllocationRetries(opts.MaxRetries),
			shortener.WithServiceRecorder(do.MustInvoke[*metrics.Metrics](i)),
			shortener.WithLogger(do.MustInvoke[*zap.Logger](i)),
		), nil
	})
}

// PublisherGroupPackage provides the analytics publishers, backed by a Redis stream when enabled.
func PublisherGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		client := do.MustInvoke[*RedisClient](i)
		logger := do.MustInvoke[*zap.Logger](i)

		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client: client.Client,
		}, logging.NewWatermillAdapter(logger))
		if err != nil {
			return nil, fmt.Errorf("create publisher: %w", err)
		}

		return messaging.NewPublisherGroup(publisher), nil
	})

	do.Provide(i, func(i *do.Injector) (analytics.Publishers, error) {
		if !do.MustInvoke[*Options](i).Analytics {
			return analytics.DiscardPublishers(), nil
		}

		group, err := do.Invoke[*messaging.PublisherGroup](i)
		if err != nil {
			return analytics.Publishers{}, err
		}

		return analytics.NewPublishers(group.Publisher()), nil
	})
}

// ConsumerGroupPackage provides a consumer group draining every analytics topic.
func ConsumerGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		opts := do.MustInvoke[*Options](i)
		client := do.MustInvoke[*RedisClient](i)
		logger := do.MustInvoke[*zap.Logger](i)

		subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        client.Client,
			ConsumerGroup: consumerGroup,
		}, logging.NewWatermillAdapter(logger))
		if err != nil {
			return nil, fmt.Errorf("create subscriber: %w", err)
		}

		var sink analytics.Store

		switch opts.AnalyticsStore {
		case "redis":
			sink = analyticsstore.NewRedis(client.Client)
		case "noop":
			sink = analyticsstore.NewNoop(logger)
		default:
			_ = subscriber.Close()

			return nil, fmt.Errorf("unknown analytics store %q", opts.AnalyticsStore)
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		analytics.RegisterConsumers(group, subscriber, sink, logger)

		return group, nil
	})
}

// HTTPPackage provides the router and the huma API with every route registered.
func HTTPPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*chi.Mux, error) {
		m := do.MustInvoke[*metrics.Metrics](i)

		router := chi.NewMux()
		router.Use(middleware.Metrics(m))
		router.Handle("/metrics", m.Handler())

		return router, nil
	})

	do.Provide(i, func(i *do.Injector) (huma.API, error) {
		router := do.MustInvoke[*chi.Mux](i)
		logger := do.MustInvoke[*zap.Logger](i)

		api := humachi.New(router, huma.DefaultConfig("URL Shortener", "1.0.0"))
		api.UseMiddleware(middleware.RequestMeta(api))

		urlHandler := handlers.NewURLHandler(
			do.MustInvoke[*shortener.Service](i),
			do.MustInvoke[analytics.Publishers](i),
			logger,
		)
		handlers.RegisterRoutes(api, urlHandler)

		health.RegisterRoutes(api, health.NewHandler(map[string]health.Checker{
			"postgres": do.MustInvoke[*persistence.Store](i),
			"redis":    health.NewRedisChecker(do.MustInvoke[*RedisClient](i).Client),
		}))

		return api, nil
	})
}
