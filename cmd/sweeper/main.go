package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tiktox/dhiorfans-ledger/internal/adapter"
	"github.com/tiktox/dhiorfans-ledger/internal/config"
	"github.com/tiktox/dhiorfans-ledger/internal/logger"
	"github.com/tiktox/dhiorfans-ledger/internal/monitor"
	"github.com/tiktox/dhiorfans-ledger/internal/store"
	"github.com/tiktox/dhiorfans-ledger/internal/sweeper"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadSweeperConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:     cfg.Debug,
		SentryDSN: cfg.SentryDSN,
		Tags: map[string]string{
			"service": "ledger-sweeper",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Dhiorfans Ledger Sweeper")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}

	// Configure connection pool
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	dataStore := store.NewStore(db)
	clock := adapter.NewClock()

	// Wire the monitor
	monitorCfg := monitor.DefaultConfig()
	monitorCfg.MetricsWindow = cfg.Monitor.MetricsWindow
	monitorCfg.TransactionSampleLimit = cfg.Monitor.TransactionSampleLimit
	monitorCfg.AccountSampleLimit = cfg.Monitor.AccountSampleLimit
	monitorCfg.RepairPageSize = cfg.Monitor.RepairPageSize
	monitorCfg.RepairConcurrency = cfg.Monitor.RepairConcurrency
	monitorSvc := monitor.NewService(dataStore, clock, monitorCfg)

	// Initialize the diagnostic sweeper
	diagnosticSweeper := sweeper.NewDiagnosticSweeper(&sweeper.DiagnosticSweeperConfig{
		Interval:         cfg.DiagnosticSweeper.Interval,
		RepairOnCritical: cfg.DiagnosticSweeper.RepairOnCritical,
	}, monitorSvc, clock)

	logger.InfoCtx(ctx, "Initialized diagnostic sweeper",
		zap.Duration("interval", cfg.DiagnosticSweeper.Interval),
		zap.Bool("repair_on_critical", cfg.DiagnosticSweeper.RepairOnCritical),
	)

	// Start the sweeper in a goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := diagnosticSweeper.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.ErrorCtx(ctx, err)
	}

	// Cancel context to stop the sweeper
	cancel()

	// Give the sweeper time to shut down gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := diagnosticSweeper.Stop(shutdownCtx); err != nil {
		logger.ErrorCtx(shutdownCtx, err)
	}

	logger.InfoCtx(shutdownCtx, "Sweeper stopped")
}
