package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"shiftlog/internal/app"
	"shiftlog/internal/config"
	"shiftlog/internal/handler"
	"shiftlog/internal/oracle"
	internalRedis "shiftlog/internal/redis"
	"shiftlog/internal/service"
	"shiftlog/internal/store"
	mongoStore "shiftlog/internal/store/mongo"
	postgresStore "shiftlog/internal/store/postgres"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before the stores so we can instrument them).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s", cfg.NewRelic.AppName)
		}
	}

	// Initialize the ledger store.
	ledgerStore, err := newLedgerStore(ctx, cfg, nrApp)
	if err != nil {
		log.Fatalf("failed to initialize ledger store: %v", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := ledgerStore.Close(closeCtx); err != nil {
			log.Printf("failed to close ledger store: %v", err)
		}
	}()
	log.Printf("Connected to ledger store (%s)", cfg.Store.Driver)

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	// Wire dependencies and hydrate the ledger.
	server, shiftService := wireServer(ledgerStore, redisClient, nrApp, cfg)
	if err := shiftService.Load(ctx); err != nil {
		log.Fatalf("failed to load ledger: %v", err)
	}
	log.Println("Ledger loaded")

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// newLedgerStore builds the configured store backend.
func newLedgerStore(ctx context.Context, cfg *config.Config, nrApp *newrelic.Application) (store.LedgerStore, error) {
	switch cfg.Store.Driver {
	case "postgres":
		db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
		if err != nil {
			return nil, err
		}
		pg := postgresStore.New(db)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		return pg, nil
	default:
		client, err := app.NewMongoClient(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		return mongoStore.New(client, cfg.Mongo.Database), nil
	}
}

// wireServer wires all dependencies and returns the HTTP server plus the
// shift service (which still needs its initial Load).
func wireServer(ledgerStore store.LedgerStore, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config) (*http.Server, *service.ShiftService) {
	// Initialize the leaderboard cache.
	statsCache := internalRedis.NewStatsCache(redisClient)

	// Initialize the odometer oracle.
	oracleClient := oracle.NewGeminiClient(oracle.GeminiConfig{
		APIKey:  cfg.Oracle.APIKey,
		Model:   cfg.Oracle.Model,
		BaseURL: cfg.Oracle.BaseURL,
		Timeout: cfg.Oracle.Timeout,
	})

	// Initialize services.
	shiftService := service.NewShiftService(ledgerStore, oracleClient,
		service.WithLeaderboardCache(statsCache))
	statsService := service.NewStatsService(shiftService, statsCache)

	// Initialize handlers.
	driverHandler := handler.NewDriverHandler(shiftService)
	shiftHandler := handler.NewShiftHandler(shiftService)
	tripHandler := handler.NewTripHandler(shiftService)
	statsHandler := handler.NewStatsHandler(statsService)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		DriverHandler: driverHandler,
		ShiftHandler:  shiftHandler,
		TripHandler:   tripHandler,
		StatsHandler:  statsHandler,
		LedgerStore:   ledgerStore,
		RedisClient:   redisClient,
		NewRelicApp:   nrApp,
	})

	// Create HTTP server.
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return server, shiftService
}
