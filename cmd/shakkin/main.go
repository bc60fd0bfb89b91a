package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"shakkin/internal/backend"
	"shakkin/internal/cache"
	"shakkin/internal/cli"
	"shakkin/internal/config"
	apphttp "shakkin/internal/http"
	applog "shakkin/internal/log"
	"shakkin/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.MustLoadConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	// a nil *amqp.Client must not become a non-nil interface
	var publisher services.EventPublisher
	if result.Publisher != nil {
		publisher = result.Publisher
	}

	checks := map[string]func(context.Context) error{}
	if p, ok := result.Backend.(interface{ Ping(context.Context) error }); ok {
		checks["storage"] = p.Ping
	}

	projections, stopCache, err := setupCache(ctx, cfg, logger, checks)
	if err != nil {
		logger.Error("Failed to initialize projection cache", "error", err, "cache_backend", cfg.CacheBackend)
		cli.RunCleanup(logger, 10*time.Second, result.Cleanup)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Loans:           services.NewLoanService(result.Backend, publisher),
		Portfolio:       services.NewPortfolioService(result.Backend),
		Snapshots:       result.Backend,
		Cache:           projections,
		Logger:          logger,
		ReadinessChecks: checks,
	})

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting shakkin server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"cache_backend", cfg.CacheBackend,
			"amqp", publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("Server error", "error", err, "port", cfg.Port)
			exitCode = 1
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	cli.RunCleanup(logger, 10*time.Second, func() error {
		return errors.Join(stopCache(), result.Cleanup())
	})
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// setupCache builds the projection response cache. The returned stop
// function releases whatever the cache holds.
func setupCache(ctx context.Context, cfg *config.Config, logger *applog.Logger, checks map[string]func(context.Context) error) (cache.Cache[[]byte], func() error, error) {
	if cfg.CacheBackend == "redis" {
		rc, err := cache.NewRedisCache(ctx, cfg.RedisAddr, "shakkin", cfg.CacheTTL)
		if err != nil {
			return nil, nil, err
		}
		checks["cache"] = rc.Ping
		logger.Info("Using Redis projection cache", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
		return rc, rc.Close, nil
	}

	lru := cache.NewLRUCache[[]byte](cfg.CacheSize, cfg.CacheTTL)
	manager := cache.NewManager()
	manager.Register(lru)
	manager.StartCleanup(time.Minute)
	logger.Info("Using in-memory projection cache", "size", cfg.CacheSize, "ttl", cfg.CacheTTL)
	return lru, func() error {
		manager.Stop()
		return nil
	}, nil
}
