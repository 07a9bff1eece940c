package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/time/rate"

	"github.com/greenrow/lot-auction/pkg/auth"
	"github.com/greenrow/lot-auction/pkg/clock"
	pkgdb "github.com/greenrow/lot-auction/pkg/database"
	"github.com/greenrow/lot-auction/services/auction-service/internal/adapters/api"
	"github.com/greenrow/lot-auction/services/auction-service/internal/adapters/cache"
	"github.com/greenrow/lot-auction/services/auction-service/internal/adapters/database"
	"github.com/greenrow/lot-auction/services/auction-service/internal/config"
	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/alerts"
	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/bids"
	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/lots"
)

func main() {
	migrate := flag.Bool("migrate", false, "apply database migrations before serving")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *migrate {
		if err := pkgdb.Migrate(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
			logger.Error("Migrations failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Migrations applied", "dir", cfg.Database.MigrationsDir)
	}

	// 1. Initialize Postgres Connection Pool
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("Unable to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if pingErr := pool.Ping(ctx); pingErr != nil {
		logger.Error("Unable to ping database", "error", pingErr)
		os.Exit(1)
	}
	logger.Info("Postgres Connected")

	// 2. Lot registry, optionally behind Redis
	var lotRegistry lots.Registry = database.NewPostgresLotRepository(pool)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis connection failed, lot reads go to Postgres", "error", err)
		} else {
			logger.Info("Redis Connected")
		}
		lotRegistry = cache.NewLotCache(lotRegistry, rdb, cfg.Redis.LotTTL, logger)
	}

	// 3. Caller identity
	publicKey, err := os.ReadFile(cfg.Auth.PublicKeyPath)
	if err != nil {
		logger.Error("Unable to read JWT public key", "path", cfg.Auth.PublicKeyPath, "error", err)
		os.Exit(1)
	}
	signer, err := auth.NewSignerFromPublicKey(publicKey, cfg.Auth.Issuer)
	if err != nil {
		logger.Error("Invalid JWT public key", "error", err)
		os.Exit(1)
	}

	// 4. Repositories and services
	clk := clock.System()
	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.Database.LockTimeout)
	auctionService := bids.NewAuctionService(
		txManager,
		lotRegistry,
		database.NewPostgresBidRepository(pool),
		database.NewPostgresOutboxRepository(clk),
		clk,
		logger,
	)
	alertService := alerts.NewService(database.NewPostgresAlertRepository(pool), lotRegistry, clk, logger)

	router := api.NewRouter(
		api.RouterConfig{
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			BidRateLimit:   rate.Limit(cfg.HTTP.BidRateLimit),
			BidRateBurst:   cfg.HTTP.BidRateBurst,
		},
		auctionService,
		alertService,
		auth.Middleware(signer),
		logger,
	)

	// 5. Start Server
	// Use h2c for HTTP/2 without TLS (common for internal services / local dev)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           h2c.NewHandler(router, &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down API...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", "error", err)
		}
	}()

	logger.Info("Starting Auction Service API", "addr", cfg.HTTP.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("API stopped")
}
