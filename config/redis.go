package config

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ConnectRedis dials the configured Redis with bounded retry and exponential
// backoff. Returns the client and a lock client on success. Callers treat a
// failure as "Redis disabled"; the mapping cache and the SLA leader lock are
// optional layers.
func ConnectRedis(ctx context.Context, cfg RedisConfig, logger zerolog.Logger) (*redis.Client, *redislock.Client, error) {
	if !cfg.Enabled() {
		return nil, nil, fmt.Errorf("redis not configured")
	}

	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 5
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		err := client.Ping(ctx).Err()
		if err == nil {
			logger.Info().Str("addr", cfg.Addr).Int("attempt", attempt).Msg("[redis] connected")
			return client, redislock.New(client), nil
		}
		lastErr = err
		_ = client.Close()

		if attempt == attempts {
			break
		}
		sleep := time.Second << uint(min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.Warn().Err(lastErr).Str("addr", cfg.Addr).Int("attempt", attempt).
			Dur("retry_in", sleep).Msg("[redis] connect failed")

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, nil, fmt.Errorf("redis unreachable after %d attempts: %w", attempts, lastErr)
}
