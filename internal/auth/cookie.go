package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/chamados-app/chamados-api/internal/config"
)

// RefreshCookie writes and clears the HTTP-only refresh token cookie. The
// cookie path limits it to the users routes so it never rides along with
// ticket requests.
type RefreshCookie struct {
	Name   string
	Path   string
	Secure bool
	MaxAge time.Duration
}

// NewRefreshCookie builds the cookie settings from auth config.
func NewRefreshCookie(cfg config.AuthConfig) RefreshCookie {
	name := cfg.CookieName
	if name == "" {
		name = "refresh_token"
	}
	path := cfg.CookiePath
	if path == "" {
		path = "/"
	}
	return RefreshCookie{Name: name, Path: path, Secure: cfg.CookieSecure, MaxAge: cfg.RefreshTokenTTL}
}

// Set stores token in the response cookie.
func (rc RefreshCookie) Set(c *fiber.Ctx, token string, expiresAt time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     rc.Name,
		Value:    token,
		Path:     rc.Path,
		MaxAge:   int(rc.MaxAge.Seconds()),
		Expires:  expiresAt,
		HTTPOnly: true,
		Secure:   rc.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// Clear expires the cookie with the same scope it was set with.
func (rc RefreshCookie) Clear(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     rc.Name,
		Value:    "",
		Path:     rc.Path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   rc.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// Read returns the refresh token sent by the client, if any.
func (rc RefreshCookie) Read(c *fiber.Ctx) string {
	return c.Cookies(rc.Name)
}
