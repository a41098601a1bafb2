package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/chamados-app/chamados-api/pkg/util/errorutil"
)

type failingStore struct{}

func (failingStore) Take(context.Context, string) (Decision, error) {
	return Decision{}, errors.New("redis: connection refused")
}

func newApp(policy Policy) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Message)
		},
	})
	app.Use(Middleware(policy, zap.NewNop()))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })
	return app
}

func TestMiddlewareRejectsOverBudget(t *testing.T) {
	policy := Policy{
		Name:    "auth",
		Limit:   2,
		Window:  15 * time.Minute,
		Store:   NewMemoryStore(2, 15*time.Minute),
		Key:     func(*fiber.Ctx) string { return "k" },
		Message: "slow down",
	}
	app := newApp(policy)

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, resp.StatusCode)
		}
		if resp.Header.Get("RateLimit-Policy") != "2;w=900" {
			t.Fatalf("unexpected policy header %q", resp.Header.Get("RateLimit-Policy"))
		}
		if resp.Header.Get("RateLimit") == "" {
			t.Fatalf("missing RateLimit header")
		}
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get(fiber.HeaderRetryAfter) == "" {
		t.Fatalf("missing Retry-After")
	}
}

func TestMiddlewareFailsOpen(t *testing.T) {
	app := newApp(Policy{Name: "global", Limit: 1, Window: time.Minute, Store: failingStore{}})

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected store errors to let requests through, got %d", resp.StatusCode)
		}
	}
}
