package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httptransport "github.com/chamados-app/chamados-api/internal/api/http"
	"github.com/chamados-app/chamados-api/internal/api/http/handlers"
	"github.com/chamados-app/chamados-api/internal/config"
	"github.com/chamados-app/chamados-api/internal/events"
	"github.com/chamados-app/chamados-api/internal/observability"
	"github.com/chamados-app/chamados-api/internal/persistence"
	"github.com/chamados-app/chamados-api/internal/ratelimit"
	"github.com/chamados-app/chamados-api/internal/repository"
	"github.com/chamados-app/chamados-api/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer rdb.Close()

	images, err := storage.NewImageStore(cfg.Upload, logger)
	if err != nil {
		logger.Fatal("failed to prepare upload dir", zap.Error(err))
	}

	var limits *ratelimit.Policies
	if cfg.RateLimit.Enabled {
		var client *redis.Client
		if rdb.Enabled() {
			client = rdb.Client
		}
		limits, err = ratelimit.NewPolicies(ctx, cfg.RateLimit, client)
		if err != nil {
			logger.Fatal("failed to configure rate limits", zap.Error(err))
		}
	}

	health := map[string]handlers.Pinger{"postgres": pg}
	if rdb.Enabled() {
		health["redis"] = rdb
	}

	pool := pg.PoolHandle()
	app := httptransport.NewApp(httptransport.AppDependencies{
		Config:     cfg,
		Logger:     logger,
		Metrics:    observability.NewMetrics(),
		UserRepo:   repository.NewUserRepository(pool),
		TicketRepo: repository.NewTicketRepository(pool),
		PostRepo:   repository.NewPostRepository(pool),
		Images:     images,
		Dispatcher: events.NewInMemoryDispatcher(),
		RateLimits: limits,
		Health:     health,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("rate_limit_backend", cfg.RateLimit.Backend))

	waitForShutdown(logger)

	if err := app.Shutdown(); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
