package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/chamados-app/chamados-api/internal/api/http/handlers"
	"github.com/chamados-app/chamados-api/internal/auth"
	"github.com/chamados-app/chamados-api/internal/ratelimit"
	"github.com/chamados-app/chamados-api/internal/storage"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Index          *handlers.IndexHandler
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Posts          *handlers.PostsHandler
	AuthMiddleware *auth.AuthMiddleware
	Recaptcha      *auth.Recaptcha
	// RateLimits is nil when rate limiting is disabled.
	RateLimits *ratelimit.Policies
	UploadDir  string
	Logger     *zap.Logger
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	global, authLimit, userLimit := cfg.limiters()

	app.Get("/", cfg.Index.Index)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.AuthMiddleware.Handle, auth.RequireAdmin(), cfg.Metrics.Snapshot)
	app.Static(storage.PublicPrefix, cfg.UploadDir, fiber.Static{Browse: false, MaxAge: 86400})

	api := app.Group("/api", global)

	users := api.Group("/usuarios")
	users.Post("/register", authLimit, cfg.Recaptcha.Handle, cfg.Users.Register)
	users.Post("/login", authLimit, cfg.Recaptcha.Handle, cfg.Users.Login)
	users.Post("/refresh", authLimit, cfg.Users.Refresh)
	users.Post("/logout", cfg.Users.Logout)
	users.Get("/me", cfg.AuthMiddleware.Handle, cfg.Users.Me)

	tickets := api.Group("/chamados", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated(), userLimit)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:id", cfg.Tickets.ReplaceTicket)
	tickets.Patch("/:id", cfg.Tickets.PatchTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)

	posts := api.Group("/posts")
	posts.Get("/", cfg.Posts.ListPosts)
	posts.Post("/", cfg.Posts.CreatePost)
	posts.Get("/usuario/:usuarioId", cfg.Posts.ListUserPosts)
	posts.Get("/:id", cfg.Posts.GetPost)
	posts.Put("/:id", cfg.Posts.ReplacePost)
	posts.Patch("/:id", cfg.Posts.PatchPost)
	posts.Delete("/:id", cfg.Posts.DeletePost)
}

func (cfg RouteConfig) limiters() (global, authLimit, user fiber.Handler) {
	if cfg.RateLimits == nil {
		pass := func(c *fiber.Ctx) error { return c.Next() }
		return pass, pass, pass
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return ratelimit.Middleware(cfg.RateLimits.Global, logger),
		ratelimit.Middleware(cfg.RateLimits.Auth, logger),
		ratelimit.Middleware(cfg.RateLimits.User, logger)
}
