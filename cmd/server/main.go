package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/api"
	"github.com/jafarshop/opsapi/internal/config"
	"github.com/jafarshop/opsapi/internal/courier"
	"github.com/jafarshop/opsapi/internal/events"
	"github.com/jafarshop/opsapi/internal/lock"
	"github.com/jafarshop/opsapi/internal/repository"
	"github.com/jafarshop/opsapi/internal/repository/memory"
	"github.com/jafarshop/opsapi/internal/repository/postgres"
	"github.com/jafarshop/opsapi/internal/service"
	"github.com/jafarshop/opsapi/internal/shopify"
	"github.com/jafarshop/opsapi/internal/storage"
	"github.com/jafarshop/opsapi/internal/whatsapp"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.Environment == "production" {
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	logger.Info("Starting ops API server",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
		zap.String("storage", cfg.StorageDriver),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	var repos *repository.Repositories
	switch cfg.StorageDriver {
	case "memory":
		logger.Warn("Using in-memory storage; data is lost on restart")
		repos = memory.NewRepositories(logger)
	default:
		db, err := postgres.NewConnection(cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		applied, err := postgres.RunMigrations(ctx, db, "migrations")
		if err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		logger.Info("Migrations applied", zap.Strings("files", applied))

		repos = postgres.NewRepositories(db, logger)
	}

	// Order events: Pub/Sub, then plain webhook, then nothing
	var publisher events.Publisher = events.Noop{}
	switch {
	case cfg.PubSub.ProjectID != "":
		p, err := events.NewPubSubPublisher(ctx, cfg.PubSub, logger)
		if err != nil {
			logger.Fatal("Failed to create Pub/Sub publisher", zap.Error(err))
		}
		publisher = p
	case cfg.OrderEventsWebhookURL != "":
		publisher = events.NewHTTPPublisher(cfg.OrderEventsWebhookURL, logger)
	}
	defer publisher.Close()

	var uploader storage.Uploader = storage.Noop{}
	if cfg.GCS.Bucket != "" {
		u, err := storage.NewGCSUploader(ctx, cfg.GCS, logger)
		if err != nil {
			logger.Fatal("Failed to create GCS client", zap.Error(err))
		}
		defer u.Close()
		uploader = u
	}

	var locker lock.Locker = lock.Noop{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis not reachable at startup", zap.Error(err))
		}
		locker = lock.NewRedisLocker(rdb, 5*time.Second, logger)
	}

	svc := service.New(service.Deps{
		Config:   cfg,
		Repos:    repos,
		Shopify:  shopify.NewClientFactory(cfg.Shopify.APIVersion, logger),
		Payments: shopify.NewPaymentClient(cfg.Shopify, logger),
		Couriers: courier.NewFactory(cfg.Vendors, logger),
		WhatsApp: whatsapp.NewClient(cfg.Vendors.InteraktBaseURL, logger),
		Events:   publisher,
		Storage:  uploader,
		Locker:   locker,
		Logger:   logger,
	})

	// Initialize router
	router := api.NewRouter(cfg, repos, svc, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	if cfg.Tracking.SyncInterval > 0 {
		go svc.Shipping.RunTrackingSyncLoop(ctx)
		logger.Info("Tracking sync job started", zap.Duration("interval", cfg.Tracking.SyncInterval))
	}

	logger.Info("Server started successfully", zap.String("address", srv.Addr))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
