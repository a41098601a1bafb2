package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/chamados-app/chamados-api/internal/api/http/handlers"
	"github.com/chamados-app/chamados-api/internal/auth"
	"github.com/chamados-app/chamados-api/internal/config"
	"github.com/chamados-app/chamados-api/internal/events"
	"github.com/chamados-app/chamados-api/internal/observability"
	"github.com/chamados-app/chamados-api/internal/ratelimit"
	"github.com/chamados-app/chamados-api/internal/repository"
	"github.com/chamados-app/chamados-api/internal/service"
	"github.com/chamados-app/chamados-api/internal/storage"
	"github.com/chamados-app/chamados-api/internal/worker"
)

// AppDependencies carries everything the HTTP application is assembled from.
type AppDependencies struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	UserRepo   repository.UserRepository
	TicketRepo repository.TicketRepository
	PostRepo   repository.PostRepository
	Images     *storage.ImageStore
	Dispatcher events.Dispatcher
	// RateLimits is nil when rate limiting is disabled.
	RateLimits *ratelimit.Policies
	Health     map[string]handlers.Pinger
}

// NewApp builds services, handlers and the fiber application.
func NewApp(deps AppDependencies) *fiber.App {
	cfg := deps.Config
	logger := deps.Logger
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = events.NewInMemoryDispatcher()
	}
	worker.StartImageCleanupWorker(dispatcher, deps.Images, logger)
	worker.StartTicketAuditLogger(dispatcher, logger)

	tokens := auth.NewTokenManager(cfg.Auth.AccessSecret, cfg.Auth.RefreshSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:     deps.UserRepo,
		TokenManager: tokens,
		Logger:       logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: deps.TicketRepo,
		Images:     deps.Images,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	postService := service.NewPostService(deps.PostRepo)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    int(deps.Images.MaxBytes()) + 1<<20,
		ErrorHandler: ErrorHandler(logger, deps.Metrics),
	})
	RegisterMiddlewares(app, MiddlewareConfig{
		Logger:      logger,
		Metrics:     deps.Metrics,
		Timeout:     cfg.App.RequestTimeout(),
		CORSOrigins: cfg.App.CORSOrigins,
	})
	RegisterRoutes(app, RouteConfig{
		Index:          handlers.NewIndexHandler(cfg.App.Name, cfg.App.Version),
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps.Health),
		Metrics:        handlers.NewMetricsHandler(deps.Metrics),
		Users:          handlers.NewUsersHandler(authService, auth.NewRefreshCookie(cfg.Auth)),
		Tickets:        handlers.NewTicketsHandler(ticketService, cfg.App.PublicBaseURL),
		Posts:          handlers.NewPostsHandler(postService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, deps.UserRepo),
		Recaptcha:      auth.NewRecaptcha(cfg.Recaptcha, logger),
		RateLimits:     deps.RateLimits,
		UploadDir:      deps.Images.Dir(),
		Logger:         logger,
	})
	return app
}
