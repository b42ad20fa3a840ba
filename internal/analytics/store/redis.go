package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/turl/internal/analytics"
)

const (
	linkPrefix     = "turl:link:"
	leaderboardKey = "turl:clicks"
	dailyPrefix    = "turl:clicks:"
	dailyTTL       = 35 * 24 * time.Hour
)

// Redis keeps a near real time click tally per key, fed from the event stream.
// The relational click ledger stays authoritative.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis creates a Redis analytics store.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func (r *Redis) SaveURLCreated(ctx context.Context, event *analytics.URLCreatedEvent) error {
	return r.client.HSet(ctx, linkPrefix+event.Key,
		"long_url", event.LongURL,
		"url_id", event.URLID,
		"custom", strconv.FormatBool(event.Custom),
		"created_at", event.CreatedAt.UTC().Format(time.RFC3339),
	).Err()
}

func (r *Redis) SaveURLAccessed(ctx context.Context, event *analytics.URLAccessedEvent) error {
	day := dailyPrefix + event.AccessedAt.UTC().Format("2006-01-02")

	pipe := r.client.TxPipeline()
	pipe.ZIncrBy(ctx, leaderboardKey, 1, event.Key)
	pipe.HIncrBy(ctx, linkPrefix+event.Key, "clicks", 1)
	pipe.HSet(ctx, linkPrefix+event.Key, "last_access", event.AccessedAt.UTC().Format(time.RFC3339))
	pipe.ZIncrBy(ctx, day, 1, event.Key)
	pipe.Expire(ctx, day, dailyTTL)
	_, err := pipe.Exec(ctx)

	return err
}

func (r *Redis) SaveURLDeleted(ctx context.Context, event *analytics.URLDeletedEvent) error {
	pipe := r.client.TxPipeline()
	pipe.ZRem(ctx, leaderboardKey, event.Key)
	pipe.HSet(ctx, linkPrefix+event.Key, "deleted_at", event.DeletedAt.UTC().Format(time.RFC3339))
	_, err := pipe.Exec(ctx)

	return err
}

// Clicks returns the tallied clicks for key.
func (r *Redis) Clicks(ctx context.Context, key string) (int64, error) {
	n, err := r.client.HGet(ctx, linkPrefix+key, "clicks").Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}

	return n, err
}

// Top returns up to n keys with the most clicks, highest first.
func (r *Redis) Top(ctx context.Context, n int64) ([]redis.Z, error) {
	return r.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, n-1).Result()
}
