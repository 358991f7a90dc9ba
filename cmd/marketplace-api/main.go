// Command marketplace-api boots the marketplace HTTP service: it loads and
// validates configuration, constructs every dependency explicitly, and owns
// their lifecycle through graceful shutdown. No component creates its own
// clients.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dawidbera/secure-serverless-marketplace/internal/assets"
	"github.com/dawidbera/secure-serverless-marketplace/internal/catalog"
	"github.com/dawidbera/secure-serverless-marketplace/internal/config"
	"github.com/dawidbera/secure-serverless-marketplace/internal/httpx"
	"github.com/dawidbera/secure-serverless-marketplace/internal/kvstore"
	"github.com/dawidbera/secure-serverless-marketplace/internal/kvstore/memory"
	"github.com/dawidbera/secure-serverless-marketplace/internal/kvstore/redisstore"
	"github.com/dawidbera/secure-serverless-marketplace/internal/orderlog"
	ordersqlite "github.com/dawidbera/secure-serverless-marketplace/internal/orderlog/sqlite"
	"github.com/dawidbera/secure-serverless-marketplace/internal/orders"
	"github.com/dawidbera/secure-serverless-marketplace/internal/pkg/cache"
	"github.com/dawidbera/secure-serverless-marketplace/internal/pkg/fieldcrypt"
	"github.com/dawidbera/secure-serverless-marketplace/internal/pkg/telemetry"
)

func main() {
	telemetry.InitLogger()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, "marketplace-api", cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	var (
		store       kvstore.Store
		listings    cache.Cache
		redisClient *redis.Client
	)
	switch cfg.StoreBackend {
	case config.BackendRedis:
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		store = redisstore.New(redisClient, cfg.Keyspace)
		listings = cache.NewRedisCache(redisClient, cfg.Keyspace)
	default:
		store = memory.New()
	}

	var cipher fieldcrypt.Cipher
	if key := cfg.FieldKey(); key != nil {
		cipher, err = fieldcrypt.NewAESGCM(key)
		if err != nil {
			slog.Error("failed to initialise field cipher", "error", err)
			os.Exit(1)
		}
	}

	var audit orderlog.Repository
	if cfg.OrderLogPath != "" {
		repo, err := ordersqlite.Open(cfg.OrderLogPath)
		if err != nil {
			slog.Error("failed to open order audit log", "path", cfg.OrderLogPath, "error", err)
			os.Exit(1)
		}
		defer repo.Close()
		audit = repo
	}

	catalogSvc := catalog.NewService(store, cipher, listings, cfg.CacheTTL)
	coordinator := orders.NewCoordinator(store, audit)
	ledger := orders.NewLedger(store)
	presigner := assets.NewPresigner([]byte(cfg.AssetSigningKey), cfg.AssetBaseURL, cfg.AssetURLTTL)

	handler := httpx.NewHandler(catalogSvc, coordinator, ledger, presigner)
	router := httpx.NewRouter(handler, []byte(cfg.AuthSigningKey))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("marketplace api listening", "addr", cfg.HTTPAddr, "backend", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	slog.Info("marketplace api stopped")
}
