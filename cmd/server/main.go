package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/modelgate/modelgate/internal/api"
	"github.com/modelgate/modelgate/internal/app"
	"github.com/modelgate/modelgate/internal/cache"
	"github.com/modelgate/modelgate/internal/database"
	"github.com/modelgate/modelgate/internal/ledger"
	"github.com/modelgate/modelgate/internal/payments"
	"github.com/modelgate/modelgate/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "modelgate: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	log := logger.WithModule("server")

	db, err := database.Open(cfg.Database.DatabaseConfig())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := database.AutoMigrateAll(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	// The session cache and rate limiter share one store. Redis when
	// configured, otherwise the database-backed fallback.
	var store cache.Store
	if cfg.Cache.Redis.Enabled {
		redisStore, err := cache.NewRedisStore(cfg.Cache.Redis.RedisConfig())
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() { _ = redisStore.Close() }()
		store = redisStore
		log.Info("cache backend ready", zap.String("backend", "redis"))
	} else {
		store = cache.NewDatabaseStore(db)
		log.Info("cache backend ready", zap.String("backend", "database"))
	}

	ledgerClient, err := ledger.NewEthereumClient(ctx, cfg.Ledger.LedgerConfig())
	if err != nil {
		return fmt.Errorf("connect ledger: %w", err)
	}
	defer ledgerClient.Close()

	attempts := payments.NewAttemptRecorder(db)
	defer attempts.Flush()

	router, err := api.NewRouter(api.Dependencies{
		DB:       db,
		Config:   cfg,
		Cache:    store,
		Ledger:   ledgerClient,
		Attempts: attempts,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.Int("port", cfg.Server.Port),
			zap.String("network", ledgerClient.Network()),
			zap.String("chain_id", ledgerClient.ChainID().String()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
