package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/n0umen0n/hypha-migration-suite/internal/api"
	"github.com/n0umen0n/hypha-migration-suite/internal/blockchain/evm"
	"github.com/n0umen0n/hypha-migration-suite/internal/blockchain/telos"
	"github.com/n0umen0n/hypha-migration-suite/internal/config"
	"github.com/n0umen0n/hypha-migration-suite/internal/database"
	"github.com/n0umen0n/hypha-migration-suite/internal/migration"
	"github.com/n0umen0n/hypha-migration-suite/internal/service"
	"github.com/n0umen0n/hypha-migration-suite/internal/worker"
)

func main() {
	// Initialize logger
	logger, err := initLogger()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting Hypha Migration Service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Configuration loaded",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("telos_endpoint", cfg.Telos.RPCEndpoint),
		zap.String("base_endpoint", cfg.Base.RPCEndpoint),
		zap.String("issuance_mode", cfg.Base.IssuanceMode),
		zap.Bool("ledger_durable", cfg.Database.Enabled()))

	// Issuance ledger: durable when a database is configured, in-memory
	// otherwise. The in-memory ledger still guards against double issuance
	// within this process.
	var ledger service.Ledger
	var db *database.DB
	if cfg.Database.Enabled() {
		db, err = database.Connect(database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		migrationPath := "internal/database/migrations/001_schema.sql"
		if err := database.RunMigrations(db, migrationPath); err != nil {
			logger.Warn("Failed to run migrations (may already be applied)", zap.Error(err))
		}
		ledger = db
		logger.Info("Issuance ledger backed by PostgreSQL")
	} else {
		ledger = service.NewMemoryLedger()
		logger.Warn("No database configured, issuance ledger is in-memory only")
	}

	// Source ledger client
	telosClient, err := telos.NewClient(telos.Config{
		RPCEndpoint:    cfg.Telos.RPCEndpoint,
		RequestTimeout: cfg.Telos.RequestTimeout,
		RequestsPerSec: cfg.Telos.RequestsPerSec,
		Burst:          cfg.Telos.RequestBurst,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create Telos client", zap.Error(err))
	}

	// Destination chain client and token binding
	evmClient, err := evm.NewClient(cfg.Base.RPCEndpoint, cfg.Operator.PrivateKey, logger)
	if err != nil {
		logger.Fatal("Failed to create EVM client", zap.Error(err))
	}
	defer evmClient.Close()

	token, err := evm.NewToken(evmClient, cfg.Base.TokenAddress, evm.IssuanceMode(cfg.Base.IssuanceMode), logger)
	if err != nil {
		logger.Fatal("Failed to create token binding", zap.Error(err))
	}

	// Verification and issuance services
	params := migration.Params{
		Contract:   cfg.Telos.MigrationContract,
		Table:      cfg.Telos.MigrationTable,
		ActionName: cfg.Telos.MigrationAction,
		Symbol:     cfg.Telos.TokenSymbol,
	}
	stateVerifier := migration.NewStateVerifier(telosClient, params, logger)
	proofVerifier := migration.NewProofVerifier(telosClient, params, logger)
	orchestrator := migration.NewOrchestrator(stateVerifier, proofVerifier, logger)

	coordinator := service.NewIssuanceCoordinator(
		token, ledger, cfg.Base.TokenDecimals, cfg.Base.ConfirmTimeout, logger)
	balanceService := service.NewBalanceService(token, logger)

	logger.Info("Services initialized")

	// API handlers and router
	apiHandler := api.NewHandler(
		orchestrator, coordinator, balanceService,
		telosClient, evmClient, cfg.Database.Enabled(), logger)
	router := api.SetupRouter(apiHandler, logger)

	// Create HTTP server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute, // issuance waits for confirmation
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", serverAddr))
		serverErrors <- httpServer.ListenAndServe()
	}()

	// Receipt reconciler for unconfirmed issuances, durable ledger only
	var reconciler *worker.Reconciler
	if db != nil {
		reconciler = worker.NewReconciler(db, evmClient, worker.DefaultPollInterval, logger)
		reconciler.Start()
	}

	logger.Info("Service initialized successfully",
		zap.String("status", "ready"),
		zap.Int("port", cfg.Server.Port))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatal("HTTP server error", zap.Error(err))
	case sig := <-quit:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	}

	logger.Info("Shutting down service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if reconciler != nil {
		if err := reconciler.Shutdown(10 * time.Second); err != nil {
			logger.Error("Reconciler shutdown error", zap.Error(err))
		}
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
		httpServer.Close()
	} else {
		logger.Info("HTTP server stopped gracefully")
	}

	logger.Info("Service stopped successfully")
}

func initLogger() (*zap.Logger, error) {
	env := os.Getenv("ENV")
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
