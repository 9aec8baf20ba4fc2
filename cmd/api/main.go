package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/kursadbilgin/wapanel/internal/auth"
	"github.com/kursadbilgin/wapanel/internal/config"
	"github.com/kursadbilgin/wapanel/internal/handler"
	"github.com/kursadbilgin/wapanel/internal/infra/postgresql"
	"github.com/kursadbilgin/wapanel/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/wapanel/internal/infra/redis"
	"github.com/kursadbilgin/wapanel/internal/observability"
	"github.com/kursadbilgin/wapanel/internal/provider"
	"github.com/kursadbilgin/wapanel/internal/queue"
	"github.com/kursadbilgin/wapanel/internal/repository"
	"github.com/kursadbilgin/wapanel/internal/service"
	"github.com/kursadbilgin/wapanel/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("wapanel api exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	defer rabbit.Close()

	metrics := observability.NewMetrics()

	campaignRepo := repository.NewGormCampaignRepo(db)
	conversationRepo := repository.NewGormConversationRepo(db)
	messageRepo := repository.NewGormMessageRepo(db)
	userRepo := repository.NewGormUserRepo(db)

	sender, err := provider.NewWhatsAppClient(cfg.MetaBaseURL, cfg.MetaAPIVersion, cfg.MetaAccessToken)
	if err != nil {
		return fmt.Errorf("whatsapp client initialization failed: %w", err)
	}

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		return fmt.Errorf("rate limiter initialization failed: %w", err)
	}
	dispatchLock, err := infraredis.NewRedisDispatchLock(rdb, uuid.NewString())
	if err != nil {
		return fmt.Errorf("dispatch lock initialization failed: %w", err)
	}

	publisher := queue.NewRabbitMQPublisher(rabbit)
	consumer := queue.NewRabbitMQConsumer(rabbit, cfg.DispatchConcurrency, logger)

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, time.Duration(cfg.JWTExpiryMinutes)*time.Minute)
	if err != nil {
		return fmt.Errorf("token manager initialization failed: %w", err)
	}
	authService, err := auth.NewService(userRepo, tokens, logger)
	if err != nil {
		return fmt.Errorf("auth service initialization failed: %w", err)
	}

	campaignService, err := service.NewCampaignService(campaignRepo, publisher, logger)
	if err != nil {
		return fmt.Errorf("campaign service initialization failed: %w", err)
	}

	inboxService, err := service.NewInboxService(conversationRepo, messageRepo, sender, logger)
	if err != nil {
		return fmt.Errorf("inbox service initialization failed: %w", err)
	}
	inboxService.SetMetrics(metrics)

	dispatcher, err := service.NewDispatcher(
		campaignRepo,
		sender,
		rateLimiter,
		dispatchLock,
		time.Duration(cfg.SendDelayMillis)*time.Millisecond,
		logger,
	)
	if err != nil {
		return fmt.Errorf("dispatcher initialization failed: %w", err)
	}
	dispatcher.SetMetrics(metrics)

	worker, err := service.NewDispatchWorker(consumer, dispatcher, cfg.DispatchConcurrency, logger)
	if err != nil {
		return fmt.Errorf("dispatch worker initialization failed: %w", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterWebhookRoutes(app, inboxService, cfg.WebhookVerifyToken, logger); err != nil {
		return fmt.Errorf("webhook route registration failed: %w", err)
	}

	api := app.Group("/api")
	if err := handler.RegisterAuthRoutes(api, authService); err != nil {
		return fmt.Errorf("auth route registration failed: %w", err)
	}

	// Everything registered after this point requires a bearer token.
	api.Use(auth.Middleware(authService))
	if err := handler.RegisterCampaignRoutes(api, campaignService); err != nil {
		return fmt.Errorf("campaign route registration failed: %w", err)
	}
	if err := handler.RegisterConversationRoutes(api, inboxService); err != nil {
		return fmt.Errorf("conversation route registration failed: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("wapanel api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		return worker.Start(groupCtx)
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("wapanel api stopped")
	return nil
}
