package ratelimit

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/chamados-app/chamados-api/pkg/util/errorutil"
)

// Policy names a budget, where it is stored and how requests are keyed.
type Policy struct {
	Name    string
	Limit   int
	Window  time.Duration
	Store   Store
	Key     KeyFunc
	Message string
}

// Middleware enforces policy and advertises it with the IETF draft-7
// RateLimit and RateLimit-Policy headers.
func Middleware(policy Policy, logger *zap.Logger) fiber.Handler {
	if policy.Key == nil {
		policy.Key = IPKey(false)
	}
	if policy.Message == "" {
		policy.Message = "too many requests, try again later"
	}
	policyHeader := fmt.Sprintf("%d;w=%d", policy.Limit, int(policy.Window.Seconds()))

	return func(c *fiber.Ctx) error {
		key := policy.Key(c)
		dec, err := policy.Store.Take(c.UserContext(), key)
		if err != nil {
			logger.Warn("rate limit store unavailable; allowing request",
				zap.String("policy", policy.Name),
				zap.String("key", key),
				zap.Error(err),
			)
			return c.Next()
		}

		c.Set("RateLimit-Policy", policyHeader)
		c.Set("RateLimit", fmt.Sprintf("limit=%d, remaining=%d, reset=%d", dec.Limit, dec.Remaining, seconds(dec.Reset)))

		if !dec.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(max(1, seconds(dec.RetryAfter))))
			logger.Info("rate limit exceeded", zap.String("policy", policy.Name), zap.String("key", key))
			return apperrors.NewTooManyRequests(policy.Message)
		}
		return c.Next()
	}
}

func seconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
