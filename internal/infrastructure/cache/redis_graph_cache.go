package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/barterloop/backend/internal/domain/barter"
)

// RedisGraphCache shares graph snapshots across instances through
// Redis. Graphs serialize as JSON snapshots keyed by pool fingerprint;
// Redis handles TTL expiry.
type RedisGraphCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisGraphCache creates a graph cache on a fresh Redis connection
func NewRedisGraphCache(cfg RedisConfig, ttl time.Duration, logger *zap.Logger) (*RedisGraphCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisGraphCacheWithClient(client, "", ttl, logger), nil
}

// NewRedisGraphCacheWithClient creates a graph cache on an existing
// Redis client. Useful when sharing a client across components.
func NewRedisGraphCacheWithClient(client *redis.Client, keyPrefix string, ttl time.Duration, logger *zap.Logger) *RedisGraphCache {
	if keyPrefix == "" {
		keyPrefix = "barter:graph:"
	}
	if ttl <= 0 {
		ttl = DefaultGraphCacheTTL
	}
	return &RedisGraphCache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		logger:    logger,
	}
}

// Get fetches and rebuilds the graph stored under the fingerprint.
// Cache trouble (connection loss, corrupt payload) degrades to a miss:
// the caller rebuilds from the database instead of failing the request.
func (c *RedisGraphCache) Get(ctx context.Context, fingerprint string) (*barter.Graph, bool) {
	payload, err := c.client.Get(ctx, c.keyPrefix+fingerprint).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("graph cache read failed",
				zap.String("fingerprint", fingerprint),
				zap.Error(err))
		}
		return nil, false
	}

	var snapshot barter.GraphSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		c.logger.Warn("graph cache payload corrupt, discarding",
			zap.String("fingerprint", fingerprint),
			zap.Error(err))
		_ = c.client.Del(ctx, c.keyPrefix+fingerprint).Err()
		return nil, false
	}

	return barter.RestoreGraph(snapshot), true
}

// Set stores the graph snapshot with the configured TTL
func (c *RedisGraphCache) Set(ctx context.Context, fingerprint string, g *barter.Graph) {
	payload, err := json.Marshal(g.Snapshot())
	if err != nil {
		c.logger.Warn("graph snapshot marshal failed",
			zap.String("fingerprint", fingerprint),
			zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, c.keyPrefix+fingerprint, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("graph cache write failed",
			zap.String("fingerprint", fingerprint),
			zap.Error(err))
	}
}

// Close closes the underlying Redis client
func (c *RedisGraphCache) Close() error {
	return c.client.Close()
}
