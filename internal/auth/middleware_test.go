package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/chamados-app/chamados-api/internal/config"
	"github.com/chamados-app/chamados-api/internal/domain"
	"github.com/chamados-app/chamados-api/internal/repository/repotest"
	apperrors "github.com/chamados-app/chamados-api/pkg/util/errorutil"
)

func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
}

func TestAuthMiddleware(t *testing.T) {
	store := repotest.NewStore()
	user := &domain.User{Name: "Bia", Email: "bia@example.com", PasswordHash: "x", Role: domain.RoleUser}
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	tm := NewTokenManager("access", "refresh", time.Minute, time.Hour)
	valid, _, _ := tm.GenerateAccessToken(user)
	ghost, _, _ := tm.GenerateAccessToken(&domain.User{ID: 999, Name: "ghost"})
	refresh, _, _ := tm.GenerateRefreshToken(user)

	app := newTestApp()
	mw := NewAuthMiddleware(tm, store.Users())
	app.Get("/me", mw.Handle, func(c *fiber.Ctx) error {
		p, ok := PrincipalFromContext(c)
		if !ok || p.UserID != user.ID {
			return fiber.ErrInternalServerError
		}
		return c.SendStatus(http.StatusOK)
	})
	app.Get("/admin", mw.Handle, RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	cases := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"missing header", "/me", "", http.StatusUnauthorized},
		{"wrong scheme", "/me", "Basic " + valid, http.StatusUnauthorized},
		{"garbage token", "/me", "Bearer abc", http.StatusUnauthorized},
		{"refresh token", "/me", "Bearer " + refresh, http.StatusUnauthorized},
		{"deleted user", "/me", "Bearer " + ghost, http.StatusUnauthorized},
		{"valid", "/me", "Bearer " + valid, http.StatusOK},
		{"lowercase scheme", "/me", "bearer " + valid, http.StatusOK},
		{"non admin", "/admin", "Bearer " + valid, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tc.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
		})
	}
}

func TestRefreshCookie(t *testing.T) {
	rc := NewRefreshCookie(config.AuthConfig{
		CookieName:      "refresh_token",
		CookiePath:      "/api/usuarios",
		RefreshTokenTTL: 7 * 24 * time.Hour,
	})

	app := fiber.New()
	app.Get("/set", func(c *fiber.Ctx) error {
		rc.Set(c, "tok", time.Now().Add(rc.MaxAge))
		return c.SendStatus(http.StatusNoContent)
	})
	app.Get("/clear", func(c *fiber.Ctx) error {
		rc.Clear(c)
		return c.SendStatus(http.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/set", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	cookies := resp.Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != "refresh_token" || c.Value != "tok" || !c.HttpOnly || c.Path != "/api/usuarios" {
		t.Fatalf("unexpected cookie %+v", c)
	}
	if c.MaxAge != 7*24*60*60 {
		t.Fatalf("unexpected max age %d", c.MaxAge)
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Fatalf("expected SameSite=Lax, got %v", c.SameSite)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/clear", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	cookies = resp.Cookies()
	if len(cookies) != 1 || cookies[0].Value != "" || cookies[0].Path != "/api/usuarios" {
		t.Fatalf("unexpected cleared cookie %+v", cookies)
	}
}
