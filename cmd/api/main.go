package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/evaluation-service/internal/api/http"
	"github.com/spec-kit/evaluation-service/internal/api/http/handlers"
	"github.com/spec-kit/evaluation-service/internal/auth"
	"github.com/spec-kit/evaluation-service/internal/config"
	"github.com/spec-kit/evaluation-service/internal/events"
	"github.com/spec-kit/evaluation-service/internal/observability"
	"github.com/spec-kit/evaluation-service/internal/persistence"
	"github.com/spec-kit/evaluation-service/internal/ratelimit"
	"github.com/spec-kit/evaluation-service/internal/repository"
	"github.com/spec-kit/evaluation-service/internal/service"
	"github.com/spec-kit/evaluation-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
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
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	tokenManager := auth.NewTokenManager(cfg.Survey.TokenSecret, cfg.Survey.TokenTTL())
	evaluationRepo := repository.NewEvaluationRepository(pg.PoolHandle())

	evaluationService := service.NewEvaluationService(service.EvaluationDependencies{
		EvaluationRepo: evaluationRepo,
		TokenManager:   tokenManager,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		Logger:         logger,
		MaxNoteLength:  cfg.Survey.MaxNoteLength,
	})

	apiKey, err := auth.NewAPIKeyMiddleware(cfg.Survey.APIAuthSecret)
	if err != nil {
		logger.Fatal("failed to init api auth", zap.Error(err))
	}
	if cfg.Survey.APIAuthSecret == "" {
		logger.Warn("SURVEY_API_AUTH_SECRET not set; back-office endpoints are unguarded")
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewLimiter(redis.Client, cfg.RateLimit.RequestsPerMin, time.Minute, logger)
	}

	app := fiber.New(fiber.Config{
		ProxyHeader: fiber.HeaderXForwardedFor,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis)
	evaluationsHandler := handlers.NewEvaluationsHandler(evaluationService)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:      healthHandler,
		Evaluations: evaluationsHandler,
		APIKey:      apiKey,
		RateLimiter: limiter,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
