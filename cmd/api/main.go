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

	httptransport "github.com/spec-kit/portfolio-service/internal/api/http"
	"github.com/spec-kit/portfolio-service/internal/api/http/handlers"
	"github.com/spec-kit/portfolio-service/internal/auth"
	"github.com/spec-kit/portfolio-service/internal/cache"
	"github.com/spec-kit/portfolio-service/internal/config"
	"github.com/spec-kit/portfolio-service/internal/events"
	"github.com/spec-kit/portfolio-service/internal/lock"
	"github.com/spec-kit/portfolio-service/internal/observability"
	"github.com/spec-kit/portfolio-service/internal/persistence"
	"github.com/spec-kit/portfolio-service/internal/repository"
	"github.com/spec-kit/portfolio-service/internal/service"
	"github.com/spec-kit/portfolio-service/internal/worker"
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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, cfg.Assignment.Workers, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics("portfolio")
	dispatcher := events.NewInMemoryDispatcher(logger)
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, metrics), logger)

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	teamRepo := repository.NewTeamRepository(pool)
	entityRepo := repository.NewEntityRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)
	batchRepo := repository.NewBatchRepository(pool)

	var (
		locker     lock.Locker = lock.NewKeyedMutex()
		scopeCache service.ScopeCache
	)
	if redis.Available(ctx) {
		locker = lock.NewRedisLocker(redis.Client, "portfolio:lock:", logger)
		scopeCache = cache.NewRedisScopeCache(redis.Client, "portfolio:scope:")
	} else {
		logger.Warn("redis unavailable at startup; entity locks are process-local and scope caching is off")
	}

	scopeService := service.NewScopeService(service.ScopeDependencies{
		TeamRepo: teamRepo,
		UserRepo: userRepo,
		Cache:    scopeCache,
		Config:   cfg.Scope,
		Logger:   logger,
		Metrics:  metrics,
	})
	ownershipService := service.NewOwnershipService(service.OwnershipDependencies{
		AssignmentRepo: assignmentRepo,
		EntityRepo:     entityRepo,
		Scopes:         scopeService,
	})
	auditService := service.NewAuditService(batchRepo)
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		Ownership:      ownershipService,
		AssignmentRepo: assignmentRepo,
		EntityRepo:     entityRepo,
		UserRepo:       userRepo,
		Scopes:         scopeService,
		Audit:          auditService,
		Locker:         locker,
		Dispatcher:     dispatcher,
		Logger:         logger,
		Config:         cfg.Assignment,
	})
	classificationService := service.NewClassificationService(service.ClassificationDependencies{
		Ownership:      ownershipService,
		AssignmentRepo: assignmentRepo,
		Locker:         locker,
		Dispatcher:     dispatcher,
		Logger:         logger,
		Config:         cfg.Assignment,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, userRepo, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Assignments:    handlers.NewAssignmentHandler(assignmentService, classificationService),
		Ownership:      handlers.NewOwnershipHandler(ownershipService, scopeService),
		Batches:        handlers.NewBatchHandler(auditService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
