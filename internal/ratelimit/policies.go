package ratelimit

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/chamados-app/chamados-api/internal/config"
)

// Policies groups the budgets applied by the router.
type Policies struct {
	Global Policy
	Auth   Policy
	User   Policy
}

// NewPolicies builds the global, auth and per-user policies from config.
// client may be nil when the memory backend is selected.
func NewPolicies(ctx context.Context, cfg config.RateLimitConfig, client *redis.Client) (*Policies, error) {
	global, err := NewStore(ctx, cfg, client, "global", cfg.GlobalLimit, cfg.GlobalWindow)
	if err != nil {
		return nil, err
	}
	authStore, err := NewStore(ctx, cfg, client, "auth", cfg.AuthLimit, cfg.AuthWindow)
	if err != nil {
		return nil, err
	}
	user, err := NewStore(ctx, cfg, client, "user", cfg.UserLimit, cfg.UserWindow)
	if err != nil {
		return nil, err
	}

	return &Policies{
		Global: Policy{
			Name:    "global",
			Limit:   cfg.GlobalLimit,
			Window:  cfg.GlobalWindow,
			Store:   global,
			Key:     IPKey(cfg.TrustProxy),
			Message: "too many requests, try again shortly",
		},
		Auth: Policy{
			Name:    "auth",
			Limit:   cfg.AuthLimit,
			Window:  cfg.AuthWindow,
			Store:   authStore,
			Key:     IPKey(cfg.TrustProxy),
			Message: "too many authentication attempts, wait a few minutes",
		},
		User: Policy{
			Name:    "user",
			Limit:   cfg.UserLimit,
			Window:  cfg.UserWindow,
			Store:   user,
			Key:     UserOrIPKey(cfg.TrustProxy),
			Message: "too many requests, slow down",
		},
	}, nil
}
