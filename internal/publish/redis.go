package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/nft-market/internal/model"
)

const purgeBatch = 100

// RedisConfig names the channel and key prefix used by RedisPublisher.
type RedisConfig struct {
	Channel       string
	ListingPrefix string
}

// RedisPublisher publishes events to Redis and maintains the listing cache.
type RedisPublisher struct {
	client redis.UniversalClient
	cfg    RedisConfig
	logger *slog.Logger
}

// NewRedisPublisher creates a publisher on an existing client.
func NewRedisPublisher(client redis.UniversalClient, cfg RedisConfig, logger *slog.Logger) *RedisPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Channel == "" {
		cfg.Channel = "market.events"
	}
	if cfg.ListingPrefix == "" {
		cfg.ListingPrefix = "listing:"
	}
	return &RedisPublisher{client: client, cfg: cfg, logger: logger}
}

// Name identifies the publisher as a dispatch sink.
func (p *RedisPublisher) Name() string { return "redis" }

// ListingKey returns the cache key for an asset.
func (p *RedisPublisher) ListingKey(k model.AssetKey) string {
	return p.cfg.ListingPrefix + k.Contract.String() + ":" + k.TokenID
}

// Publish announces e and updates the listing cache in one MULTI/EXEC.
func (p *RedisPublisher) Publish(ctx context.Context, e model.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	key := p.ListingKey(e.Key)
	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		switch e.Type {
		case model.EventListingCreated:
			pipe.HSet(ctx, key,
				"seller", e.Seller.String(),
				"price", e.Price.String(),
				"event_id", e.ID.String(),
				"listed_at", e.OccurredAt.UnixMilli(),
			)
		case model.EventListingRemoved, model.EventListingSold:
			pipe.Del(ctx, key)
		}
		pipe.Publish(ctx, p.cfg.Channel, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish %s: %w", e.Type, err)
	}

	p.logger.Debug("published event to redis", "event_id", e.ID, "key", key)
	return nil
}

// PurgeListings deletes every cached listing hash under the prefix and
// returns how many were removed. The registry starts empty, so hashes left
// by a previous run are stale.
func (p *RedisPublisher) PurgeListings(ctx context.Context) (int, error) {
	var (
		batch   []string
		removed int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := p.client.Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("purge listing cache: %w", err)
		}
		removed += int(n)
		batch = batch[:0]
		return nil
	}

	iter := p.client.Scan(ctx, 0, p.cfg.ListingPrefix+"*", purgeBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == purgeBatch {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan listing cache: %w", err)
	}
	if err := flush(); err != nil {
		return removed, err
	}

	if removed > 0 {
		p.logger.Info("purged stale listing cache", "keys", removed, "prefix", p.cfg.ListingPrefix)
	}
	return removed, nil
}
