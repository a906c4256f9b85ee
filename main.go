package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"venue-backend/config"
	"venue-backend/controllers"
	"venue-backend/routes"
	"venue-backend/services"
)

func main() {
	// Load .env (optional)
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	if envErr != nil {
		logger.Info(".env not loaded, using process environment")
	}

	db, err := config.ConnectDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}

	var (
		store       services.DraftStore
		redisClient *redis.Client
	)
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		redisClient, err = config.NewRedisClient(context.Background(), cfg)
		if err != nil {
			logger.Fatal("redis connect failed", zap.Error(err))
		}
		store = services.NewRedisDraftStore(redisClient, "venue:draft", cfg.SessionTTL)
		logger.Info("session drafts in redis", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.SessionTTL))
	default:
		store = services.NewMemoryDraftStore()
		logger.Info("session drafts in memory")
	}

	// Initialize services
	catalog := services.NewCatalogService(db, logger.Named("catalog"))
	ledger := services.NewLedgerService(db, cfg.Location)
	orders := services.NewOrderService(db, ledger, catalog, logger.Named("orders"))
	payments := services.NewPaymentService(db, catalog, logger.Named("payments"))
	sessions := services.NewSessionService(store, ledger, orders, catalog, logger.Named("sessions"))

	// Build router
	router := routes.SetupRouter(routes.Controllers{
		Rooms:    controllers.NewRoomController(catalog, ledger, logger),
		Catalog:  controllers.NewCatalogController(catalog, logger),
		Orders:   controllers.NewOrderController(orders, payments, logger),
		Sessions: controllers.NewSessionController(sessions, logger),
		Auth:     controllers.NewAuthController(catalog, logger),
	}, cfg.CORSOrigins, logger.Named("http"))

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("timezone", cfg.Location.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with timeout
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info("server stopped")
}
