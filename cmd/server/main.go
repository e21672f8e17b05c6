package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/transaction-approval-ledger/internal/config"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/events/kafka"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/http/handler"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/http/middleware"
	interfaces "github.com/sheikh-saqib/transaction-approval-ledger/internal/interfaces"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/ledger"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/lock"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/logging"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/notify"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/seed"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/storage/postgres"
)

const demoTokenTTL = 24 * time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if !cfg.EnvFileLoaded {
		logger.Debug("no .env file found, relying on environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store
	var store interfaces.LedgerStore
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer closeDB(db, logger)
		if err := postgres.Migrate(db, logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		store = postgres.NewPostgresLedgerStore(db)
	default:
		store = memory.NewMemoryLedgerStore()
	}
	logger.Info("store ready", zap.String("driver", cfg.StoreDriver))

	// Account locks
	var locker interfaces.AccountLocker = lock.NewMemoryLocker()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		locker = lock.NewRedisLocker(client, lock.DefaultOptions(), logger)
		logger.Info("using redis account locks", zap.String("addr", cfg.RedisAddr))
	}

	// Notifications
	var publisher interfaces.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafka.NewPublisher(cfg.KafkaBrokers)
		defer kp.Close()
		publisher = kafka.NewBreakerPublisher(kp, kafka.DefaultBreakerSettings(), logger)
		logger.Info("publishing notifications to kafka", zap.Strings("brokers", cfg.KafkaBrokers))
	}
	hub := notify.NewHub(0)
	dispatcher := notify.NewDispatcher(notify.Config{
		Hub:         hub,
		Publisher:   publisher,
		TopicPrefix: cfg.KafkaTopicPrefix,
		QueueSize:   cfg.NotifyQueueSize,
		Logger:      logger,
	})
	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		dispatcher.Run(ctx)
	}()

	svc := ledger.NewService(store, dispatcher,
		ledger.WithLocker(locker),
		ledger.WithLogger(logger),
	)

	if cfg.SeedDemo {
		if err := seedDemo(ctx, cfg, svc, store, logger); err != nil {
			return err
		}
	}

	// HTTP
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.FrontendURL,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
	}))

	h := handler.New(svc, hub, logger)
	h.Done = ctx
	h.Register(app, cfg.JWTSecret, store)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("env", cfg.Env), zap.String("port", cfg.Port))
		serverErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-serverErr:
		stop()
		<-dispatcherDone
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	<-dispatcherDone
	logger.Info("server exited")
	return nil
}

func seedDemo(ctx context.Context, cfg *config.Config, svc *ledger.Service, store interfaces.LedgerStore, logger *zap.Logger) error {
	res, err := seed.Run(ctx, svc, store, logger)
	if err != nil {
		return fmt.Errorf("seed demo data: %w", err)
	}

	adminToken, err := middleware.IssueToken(cfg.JWTSecret, res.Admin.ID, res.Admin.Role, demoTokenTTL)
	if err != nil {
		return err
	}
	userToken, err := middleware.IssueToken(cfg.JWTSecret, res.User.ID, res.User.Role, demoTokenTTL)
	if err != nil {
		return err
	}
	logger.Info("demo bearer tokens",
		zap.String("admin_token", adminToken),
		zap.String("user_token", userToken),
	)
	return nil
}

func closeDB(db *sql.DB, logger *zap.Logger) {
	if err := db.Close(); err != nil {
		logger.Warn("close database", zap.Error(err))
		return
	}
	logger.Info("database connection closed")
}
