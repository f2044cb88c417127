package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coinnovac/hazelnut/internal/infra/gateway/tonbridge"
	"github.com/coinnovac/hazelnut/internal/infra/postgres"
	infraRedis "github.com/coinnovac/hazelnut/internal/infra/redis"
	"github.com/coinnovac/hazelnut/internal/platform/ledger"
	"github.com/coinnovac/hazelnut/internal/platform/manifest"
	"github.com/coinnovac/hazelnut/internal/platform/notify"
	"github.com/coinnovac/hazelnut/internal/platform/session"
	"github.com/coinnovac/hazelnut/internal/platform/submit"
	"github.com/coinnovac/hazelnut/internal/platform/user"
	"github.com/coinnovac/hazelnut/internal/transport/httpapi"
	"github.com/coinnovac/hazelnut/internal/transport/httpapi/handler"
	"github.com/coinnovac/hazelnut/internal/transport/httpapi/middleware"
	"github.com/coinnovac/hazelnut/pkg/config"
	"github.com/coinnovac/hazelnut/pkg/logger"
)

func main() {
	// Create context that listens for termination signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewDefault(cfg.Env)
	log.Info("Starting Hazelnut API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	// Initialize Redis client (ledger mirror and, without Postgres, users)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Redis connection established")

	// Initialize storage: Postgres when configured, Redis otherwise
	var (
		userRepo    user.Repository
		ledgerStore ledger.Store
		pinger      handler.DatabasePinger
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.NewPool(ctx, postgres.Config{URL: cfg.DatabaseURL})
		if err != nil {
			log.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		log.Info("Database connection established")

		userRepo = postgres.NewUserRepository(db.Pool)
		ledgerStore = postgres.NewLedgerStore(db.Pool)
		pinger = db
	} else {
		userRepo = infraRedis.NewUserRepository(redisClient)
		ledgerStore = infraRedis.NewLedgerStore(redisClient, log)
		pinger = redisPinger{redisClient}
		log.Info("DATABASE_URL not set, using Redis for all storage")
	}

	// Notifications surface lifecycle events to the operator log
	notifier := notify.NewLogNotifier(log)

	// Verify the TON Connect manifest before exposing wallet features.
	// An unreachable or malformed manifest disables them for this run.
	manifestValidator := manifest.NewValidator(cfg.ManifestTimeout, notifier, log)
	manifestOK := manifestValidator.Validate(ctx, cfg.ManifestURL)
	if manifestOK {
		log.Info("TON Connect manifest verified", "url", cfg.ManifestURL)
	} else {
		log.Error("TON Connect manifest verification failed, wallet features disabled", "url", cfg.ManifestURL)
	}

	// Initialize the wallet provider bridge and session manager
	provider := tonbridge.NewClient(cfg.BridgeURL, log)
	sessionMgr := session.NewManager(&session.Config{
		ProviderWaitTimeout:  cfg.ProviderWaitTimeout,
		ProviderPollInterval: cfg.ProviderPollInterval,
		MaxReconnectAttempts: cfg.ReconnectMaxAttempts,
		ReconnectBaseDelay:   cfg.ReconnectBaseDelay,
	}, provider, notifier, log)
	go provider.PollEvents(ctx)

	if manifestOK {
		// Pick up a previously authorized wallet, if any
		if err := sessionMgr.Restore(ctx); err != nil {
			log.Warn("Wallet session restore skipped", "error", err)
		}
	}

	// Initialize platform services
	ledgerSvc := ledger.NewService(ledgerStore, ledger.Pricing{
		TONPriceMicroUSD:   cfg.TONPriceMicroUSD,
		TokenPriceMicroUSD: cfg.TokenPriceMicroUSD,
	}, notifier, log)
	submitter := submit.NewSubmitter(&submit.Config{
		ValidityWindow: cfg.TxValidityWindow,
	}, sessionMgr, ledgerSvc, notifier, log)
	userSvc := user.NewService(userRepo, log)
	jwtSvc := middleware.NewJWTService(cfg.JWTSecret)

	// Initialize HTTP handlers
	authHandler := handler.NewAuthHandler(userSvc, jwtSvc)
	transactionHandler := handler.NewTransactionHandler(submitter, ledgerSvc, sessionMgr, cfg.TreasuryAddress)
	portfolioHandler := handler.NewPortfolioHandler(ledgerSvc)
	profitHandler := handler.NewProfitHandler(ledgerSvc)
	healthHandler := handler.NewHealthHandler(pinger)

	// Wallet routes are only mounted behind a verified manifest
	var walletHandler *handler.WalletHandler
	if manifestOK {
		walletHandler = handler.NewWalletHandler(sessionMgr, userSvc)
	}

	// Create JWT middleware
	jwtMiddleware := middleware.JWTMiddleware(jwtSvc)

	// Determine allowed origins for CORS
	allowedOrigins := []string{"http://localhost:5173", "http://localhost:5174"} // Vite ports
	if cfg.IsProduction() {
		if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
			allowedOrigins = []string{origins}
		}
	}

	// Create HTTP router
	routerCfg := httpapi.Config{
		Logger:             log,
		AllowedOrigins:     allowedOrigins,
		AuthHandler:        authHandler,
		WalletHandler:      walletHandler,
		TransactionHandler: transactionHandler,
		PortfolioHandler:   portfolioHandler,
		ProfitHandler:      profitHandler,
		HealthHandler:      healthHandler,
		JWTMiddleware:      jwtMiddleware,
	}
	r := httpapi.NewRouter(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()
	log.Info("Shutdown signal received")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("Server stopped gracefully")
}

// redisPinger adapts the Redis client to the health probe interface
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
