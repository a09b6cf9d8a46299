// Package cli provides common initialization for cmd/immo and
// cmd/immo-worker.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"immo/internal/backend"
	"immo/internal/billing"
	"immo/internal/cache"
	"immo/internal/config"
	"immo/internal/core"
	"immo/internal/log"
	"immo/internal/services"
)

// overviewCacheSize bounds the number of cached year overviews.
const overviewCacheSize = 200

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger creates the text logger for level and makes it the default.
func SetupLogger(level, component string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := log.NewText(os.Stdout, lvl, component)
	log.SetDefault(logger)
	return logger, nil
}

// LoadConfig loads the environment configuration and validates it.
func LoadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// App is the service graph shared by the server and the one-shot commands.
type App struct {
	Config      *config.Config
	Logger      *log.Logger
	Backend     *backend.Result
	Statements  *services.StatementService
	Portfolio   *services.PortfolioService
	Overview    *services.OverviewService
	Backup      *services.BackupService
	AnnualCosts *services.AnnualCostBooker

	caches *cache.Manager
}

// pinger is implemented by stores with a live connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// Bootstrap opens the configured backend and builds the services on top
// of it. Close releases everything it opened.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, err
	}

	engine := billing.NewEngine(billing.WithResolver(
		billing.NewResolver(billing.WithPersonsMode(billing.PersonsMode(cfg.PersonsKeyMode))),
	))

	opts := []services.StatementOption{services.WithPersistConcurrency(cfg.PersistConcurrency)}
	if res.Publisher != nil {
		opts = append(opts, services.WithPublisher(res.Publisher))
	}

	app := &App{
		Config:     cfg,
		Logger:     logger,
		Backend:    res,
		Statements: services.NewStatementService(res.Repository, engine, opts...),
		Backup:     services.NewBackupService(res.Repository),
	}

	var overviewCache cache.Cache[core.YearOverview]
	if cfg.CacheTTL > 0 {
		lru := cache.NewLRUCache[core.YearOverview](overviewCacheSize, cfg.CacheTTL)
		app.caches = cache.NewManager()
		app.caches.Register(lru)
		app.caches.StartCleanup(cfg.CacheTTL)
		overviewCache = lru
	}
	app.Overview = services.NewOverviewService(res.Repository, overviewCache)
	app.Portfolio = services.NewPortfolioService(res.Repository, app.Overview)
	app.AnnualCosts = services.NewAnnualCostBooker(res.Repository, app.Overview.Invalidate)

	logger.Info("Services initialized",
		"backend", cfg.DataBackend,
		"persons_key_mode", cfg.PersonsKeyMode,
		"overview_cache_ttl", cfg.CacheTTL.String(),
		"amqp_enabled", res.Publisher != nil)
	return app, nil
}

// Ready checks the store connection when the backend has one.
func (a *App) Ready(ctx context.Context) error {
	if p, ok := a.Backend.Repository.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close stops cache cleanup and releases the backend.
func (a *App) Close() error {
	if a.caches != nil {
		a.caches.Stop()
	}
	if a.Backend != nil && a.Backend.Cleanup != nil {
		return a.Backend.Cleanup()
	}
	return nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		cancel()

		if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}
