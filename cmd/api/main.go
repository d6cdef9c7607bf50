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
	"github.com/tiktox/dhiorfans-ledger/internal/api/middleware"
	"github.com/tiktox/dhiorfans-ledger/internal/api/server"
	"github.com/tiktox/dhiorfans-ledger/internal/cache"
	"github.com/tiktox/dhiorfans-ledger/internal/config"
	"github.com/tiktox/dhiorfans-ledger/internal/domain"
	"github.com/tiktox/dhiorfans-ledger/internal/ledger"
	"github.com/tiktox/dhiorfans-ledger/internal/logger"
	"github.com/tiktox/dhiorfans-ledger/internal/monitor"
	"github.com/tiktox/dhiorfans-ledger/internal/notifier"
	"github.com/tiktox/dhiorfans-ledger/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadAPIConfig(*configFile, *envPath)
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
			"service": "ledger-api",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Dhiorfans Ledger API")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}

	// Configure connection pool
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}

	// Run schema migrations
	if err := store.Migrate(db); err != nil {
		logger.FatalCtx(ctx, "Failed to migrate database", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	dataStore := store.NewStore(db)
	clock := adapter.NewClock()

	// Notification bridge: JetStream when configured, otherwise a no-op sink
	var sink notifier.Notifier
	if cfg.NATS.URL != "" {
		sink, err = notifier.NewJetStream(ctx, notifier.Config{
			URL:            cfg.NATS.URL,
			StreamName:     cfg.NATS.StreamName,
			SubjectPrefix:  cfg.NATS.SubjectPrefix,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: cfg.NATS.ConnectionName,
		})
		if err != nil {
			logger.FatalCtx(ctx, "Failed to connect to NATS", zap.Error(err), zap.String("url", cfg.NATS.URL))
		}
		logger.InfoCtx(ctx, "Connected to NATS", zap.String("url", cfg.NATS.URL))
	} else {
		sink = notifier.NewNoop()
		logger.WarnCtx(ctx, "NATS URL not configured, token notifications are disabled")
	}
	defer sink.Close()

	// Wire the ledger engine
	accountCache := cache.New(cfg.Cache.TTL, clock)
	retryer := adapter.NewRetryer(cfg.Retry.MaxAttempts, cfg.Retry.InitialInterval, cfg.Retry.OperationTimeout)
	ledgerSvc := ledger.NewService(dataStore, accountCache, retryer, sink, clock, domain.DefaultRewardPolicy())
	defer ledgerSvc.Close()

	// Wire the monitor
	monitorCfg := monitor.DefaultConfig()
	monitorCfg.MetricsWindow = cfg.Monitor.MetricsWindow
	monitorCfg.TransactionSampleLimit = cfg.Monitor.TransactionSampleLimit
	monitorCfg.AccountSampleLimit = cfg.Monitor.AccountSampleLimit
	monitorCfg.RepairPageSize = cfg.Monitor.RepairPageSize
	monitorCfg.RepairConcurrency = cfg.Monitor.RepairConcurrency
	monitorSvc := monitor.NewService(dataStore, clock, monitorCfg)

	// Create and start server
	srv := server.New(server.Config{
		Debug:        cfg.Debug,
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		Auth: middleware.AuthConfig{
			JWTPublicKey: cfg.Auth.JWTPublicKey,
			APIKeys:      cfg.Auth.APIKeys,
		},
	}, ledgerSvc, monitorSvc)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.ErrorCtx(ctx, err)
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorCtx(shutdownCtx, err)
	}

	logger.InfoCtx(shutdownCtx, "API server stopped")
}
