// Package cli provides the process bootstrap shared by cmd/bilancio,
// cmd/bilancio-worker and cmd/bilancioctl.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bilancio/internal/backend"
	"bilancio/internal/cache"
	"bilancio/internal/config"
	"bilancio/internal/core"
	"bilancio/internal/currency"
	"bilancio/internal/log"
	"bilancio/internal/services"
)

// SetupLogger builds the process logger at the named level and format and
// installs it as the slog default. An unknown format falls back to text.
func SetupLogger(level, format string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	f, err := log.ParseFormat(format)
	if err == nil {
		cfg.Format = f
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to text logs", log.FieldError, err.Error())
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment, overlays
// the policy file when one is set, and validates the result.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if cfg.PolicyFile != "" {
		if err := cfg.ApplyPolicyFile(cfg.PolicyFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// App holds the components every command shares.
type App struct {
	Config      *config.Config
	Backend     *backend.BackendResult
	Registry    *currency.Registry
	Caches      *cache.Manager
	Aggregation *services.AggregationService
	Logger      *log.Logger
}

// NewApp opens the configured backend and wires the read side.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	be, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	currencies := cache.NewLRUCache[core.Currency](cfg.CurrencyCacheSize, cfg.CurrencyCacheTTL)
	caches := cache.NewManager(logger)
	caches.Register(currencies)
	registry := currency.NewRegistry(be.Store, currencies)

	precedence, err := cfg.Precedence()
	if err != nil {
		_ = be.Cleanup()
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		_ = be.Cleanup()
		return nil, err
	}
	agg := services.NewAggregationService(be.Store, registry, services.AggregationConfig{
		Tolerance:     cfg.BalanceTolerance,
		TagPrecedence: precedence,
		Location:      loc,
		Workers:       cfg.AggregationWorkers,
	}, logger)
	caches.StartCleanup(cfg.CurrencyCacheTTL)

	return &App{
		Config:      cfg,
		Backend:     be,
		Registry:    registry,
		Caches:      caches,
		Aggregation: agg,
		Logger:      logger,
	}, nil
}

// Close stops cache cleanup and releases the backend.
func (a *App) Close() error {
	a.Caches.Stop()
	return a.Backend.Cleanup()
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
