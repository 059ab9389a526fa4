package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"booklend/internal/adapters/http/middleware"
	"booklend/internal/adapters/http/routes"
	"booklend/internal/adapters/notification"
	"booklend/internal/adapters/persistence/memory"
	"booklend/internal/adapters/persistence/models"
	"booklend/internal/adapters/persistence/repositories"
	"booklend/internal/config"
	"booklend/internal/core/domain"
	"booklend/internal/core/services"
	"booklend/internal/pkg/apikey"
	"booklend/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "booklend/docs" // Swagger docs
)

// @title Booklend API
// @version 1.0
// @description Book lending transaction engine API

// @contact.name API Support

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.AppMode, cfg.Log.Level)
	if err != nil {
		log.Fatalf("❌ Failed to create logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	if !cfg.EnvFileFound {
		zlog.Warn("⚠️ .env file not found, using environment variables")
	}
	zlog.Info("✅ Configuration loaded", zap.String("mode", cfg.AppMode), zap.String("store", cfg.Store.Driver))

	store, notifier := openStore(cfg, zlog)
	defer func() {
		if err := store.Close(); err != nil {
			zlog.Error("❌ Failed to close store", zap.Error(err))
		}
	}()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(registry)

	// Services
	calculator, err := domain.NewCommissionCalculator(cfg.Commission)
	if err != nil {
		zlog.Fatal("❌ Invalid commission policy", zap.Error(err))
	}
	backoff := services.Backoff{Base: cfg.Notification.BackoffBase, Max: cfg.Notification.BackoffMax}
	notifyService := services.NewNotificationService(notifier, store.Outbox(), backoff, metrics, zlog)
	resolver, err := services.NewComplaintResolver(store, cfg.Dispute, notifyService, metrics, zlog)
	if err != nil {
		zlog.Fatal("❌ Invalid dispute policy", zap.Error(err))
	}
	coordinator := services.NewConfirmationCoordinator(store, notifyService, metrics, zlog)
	transactionService := services.NewTransactionService(store, calculator, coordinator, resolver, notifyService, metrics, zlog)
	commissionService := services.NewCommissionService(calculator, zlog)

	if cfg.IsDev() {
		if err := config.NewSeeder(transactionService, zlog).Run(context.Background()); err != nil {
			zlog.Warn("⚠️ Failed to seed development data", zap.Error(err))
		}
	}

	// Notification redelivery
	redelivery := services.NewRedeliveryService(store.Outbox(), notifier, backoff, cfg.Notification.MaxAttempts, metrics, zlog)
	if err := redelivery.Start(cfg.Notification.RedeliveryCron); err != nil {
		zlog.Fatal("❌ Failed to start notification redelivery", zap.Error(err))
	}
	defer redelivery.Stop()

	if cfg.Payment.APIKey == "" {
		zlog.Warn("⚠️ PAYMENT_API_KEY not set, payment callbacks will be rejected")
	} else {
		zlog.Info("🔑 Payment callback key loaded", zap.String("fingerprint", apikey.Hash(cfg.Payment.APIKey)[:12]))
	}

	app := fiber.New(fiber.Config{
		AppName:      "Booklend API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	middleware.Setup(app, cfg, rateLimitStorage(cfg, zlog))

	routes.Setup(app, routes.Deps{
		Config:       cfg,
		Store:        store,
		Transactions: transactionService,
		Commission:   commissionService,
		Gatherer:     registry,
		Log:          zlog,
	})

	go gracefulShutdown(app, zlog)

	zlog.Info("🚀 Server starting", zap.String("port", cfg.Port), zap.String("mode", cfg.AppMode))
	if err := app.Listen(":" + cfg.Port); err != nil {
		zlog.Fatal("❌ Failed to start server", zap.Error(err))
	}
}

// openStore opens the configured store and the notifier that goes with it
func openStore(cfg *config.Config, zlog *zap.Logger) (repositories.Store, services.Notifier) {
	if cfg.Store.Driver == config.StoreMemory {
		zlog.Warn("⚠️ Using in-memory store, data is lost on restart")
		return memory.NewStore(), notification.NewLogNotifier(zlog)
	}

	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		zlog.Fatal("❌ Failed to connect to database", zap.Error(err))
	}
	zlog.Info("✅ Database connected",
		zap.String("driver", cfg.Database.Driver),
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName),
	)

	if err := models.AutoMigrate(db); err != nil {
		zlog.Fatal("❌ Failed to auto migrate", zap.Error(err))
	}
	zlog.Info("✅ Database migration completed")

	notifiers := notification.Multi{notification.NewMessageNotifier(db)}
	if cfg.Notification.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(notification.WebhookConfig{
			URL:     cfg.Notification.WebhookURL,
			Timeout: cfg.Notification.WebhookTimeout,
		}, zlog))
		zlog.Info("✅ Webhook notifications enabled")
	}

	return repositories.NewGormStore(db), notifiers
}

// rateLimitStorage returns redis storage when REDIS_ADDR is set, nil otherwise
func rateLimitStorage(cfg *config.Config, zlog *zap.Logger) fiber.Storage {
	if cfg.Redis.Addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		zlog.Warn("⚠️ Redis unreachable, rate limiting per instance", zap.Error(err))
		_ = client.Close()
		return nil
	}

	zlog.Info("✅ Redis connected for rate limiting", zap.String("addr", cfg.Redis.Addr))
	return middleware.NewRedisStorage(client)
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App, zlog *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("🛑 Shutting down server...")
	if err := app.Shutdown(); err != nil {
		zlog.Error("❌ Error during shutdown", zap.Error(err))
	}
	zlog.Info("✅ Server stopped gracefully")
}
