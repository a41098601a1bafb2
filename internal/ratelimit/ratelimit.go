// Package ratelimit enforces per-key request budgets in front of the HTTP
// handlers. Budgets are kept either in process (token buckets) or in Redis
// (fixed windows) so several API instances can share them.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chamados-app/chamados-api/internal/config"
)

// Decision is the outcome of consuming one unit of a budget.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      time.Duration
	RetryAfter time.Duration
}

// Store consumes budget for a key.
type Store interface {
	Take(ctx context.Context, key string) (Decision, error)
}

// NewStore builds the store selected by cfg.Backend for one policy.
func NewStore(ctx context.Context, cfg config.RateLimitConfig, client *redis.Client, name string, limit int, window time.Duration) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		store := NewMemoryStore(limit, window)
		store.StartJanitor(ctx)
		return store, nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("rate limit policy %s: redis backend selected without a client", name)
		}
		return NewRedisStore(client, cfg.KeyPrefix+":"+name, limit, window), nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.Backend)
	}
}
