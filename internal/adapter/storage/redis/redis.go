// Package redis holds the Redis-backed adapters: the withdrawal replay
// cache, rate-limit counters, the sweep lease lock and event pub/sub.
package redis

import (
	"context"
	"fmt"
	"time"

	"status-promo-marketplace/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// healthKey is written by the health check; rate limits and sweep locks
// need a writable instance, not just one that answers PING.
const healthKey = "marketplace:health"

// NewClient creates a Redis client and verifies connectivity.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	log.Info().
		Str("addr", cfg.Addr()).
		Int("db", cfg.DB).
		Msg("redis connected")

	return client, nil
}

// HealthCheck implements ports.HealthChecker for Redis.
type HealthCheck struct {
	client *goredis.Client
}

// NewHealthCheck creates a Redis health checker.
func NewHealthCheck(client *goredis.Client) *HealthCheck {
	return &HealthCheck{client: client}
}

// Ping writes a short-lived key.
func (h *HealthCheck) Ping(ctx context.Context) error {
	return h.client.Set(ctx, healthKey, time.Now().UTC().Format(time.RFC3339), 10*time.Second).Err()
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "redis"
}
