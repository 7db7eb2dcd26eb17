// Package app wires the publisher service together and manages its
// lifecycle: configuration, storage, platform adapters, the orchestrator,
// the dispatch worker pool, and the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/gopost/publisher/internal/api"
	"github.com/gopost/publisher/internal/bundle"
	"github.com/gopost/publisher/internal/config"
	"github.com/gopost/publisher/internal/database"
	"github.com/gopost/publisher/internal/ledger"
	"github.com/gopost/publisher/internal/logger"
	"github.com/gopost/publisher/internal/metrics"
	"github.com/gopost/publisher/internal/orchestrator"
	"github.com/gopost/publisher/internal/platform"
	"github.com/gopost/publisher/internal/platform/blogger"
	"github.com/gopost/publisher/internal/platform/wordpress"
	"github.com/gopost/publisher/internal/worker"
)

const (
	shutdownTimeout = 30 * time.Second
	pingTimeout     = 5 * time.Second
)

// App holds the assembled service.
type App struct {
	config       *config.Config
	logger       logger.Logger
	store        *bundle.Store
	ledger       *ledger.Ledger
	db           *sqlx.DB
	redisClient  redis.UniversalClient
	orchestrator *orchestrator.Orchestrator
	dispatcher   *worker.Dispatcher
	httpServer   *http.Server
}

// Options configures New.
type Options struct {
	ConfigPath string
	Version    string
}

// New loads configuration and initializes every component. Nothing is
// started yet; call Run to serve.
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	log = log.With(
		logger.String("service", "publisher"),
		logger.String("version", opts.Version),
	)

	store, err := bundle.NewStore(cfg.Storage.BundlesDir)
	if err != nil {
		return nil, fmt.Errorf("open bundle store: %w", err)
	}

	led, err := ledger.Open(cfg.Storage.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("open execution ledger: %w", err)
	}

	a := &App{config: cfg, logger: log, store: store, ledger: led}

	jobs, err := a.buildJobStore()
	if err != nil {
		a.closeQuietly()
		return nil, err
	}

	tracker, err := a.buildMetricsTracker()
	if err != nil {
		a.closeQuietly()
		return nil, err
	}

	registry, err := a.buildRegistry()
	if err != nil {
		a.closeQuietly()
		return nil, err
	}

	orchOpts := []orchestrator.Option{}
	if tracker != nil {
		orchOpts = append(orchOpts, orchestrator.WithMetrics(tracker))
	}
	orch := orchestrator.New(jobs, store, led, registry, log, orchOpts...)

	dispatcher := worker.NewDispatcher(orch.Process, worker.Config{
		QueueSize:  cfg.Worker.QueueSize,
		Workers:    cfg.Worker.Workers,
		JobTimeout: cfg.Worker.JobTimeout,
	}, log)
	orch.SetEnqueue(dispatcher.Enqueue)

	var stats api.StatsSource
	if tracker != nil {
		stats = tracker
	}
	router := api.NewRouter(orch, led, store, stats, api.Config{
		CORSOrigins: cfg.Server.CORSOrigins,
		Debug:       cfg.Debug,
	}, log)
	a.addHealthChecks(router)

	a.orchestrator = orch
	a.dispatcher = dispatcher
	a.httpServer = router.NewServer(cfg.Server.Address)
	return a, nil
}

// buildJobStore returns the PostgreSQL repository when the database is
// enabled, otherwise an in-memory store that loses jobs on restart.
func (a *App) buildJobStore() (orchestrator.JobStore, error) {
	if !a.config.Database.Enabled {
		a.logger.Info("database disabled, using in-memory job store")
		return orchestrator.NewMemoryStore(), nil
	}

	db, err := database.Connect(database.Config{
		Host:     a.config.Database.Host,
		Port:     a.config.Database.Port,
		User:     a.config.Database.User,
		Password: a.config.Database.Password,
		DBName:   a.config.Database.DBName,
		SSLMode:  a.config.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	a.db = db
	return database.NewJobRepository(db), nil
}

// buildMetricsTracker connects Redis and creates the outcome tracker.
// Returns nil when Redis is disabled; the orchestrator and API both
// tolerate a missing tracker.
func (a *App) buildMetricsTracker() (*metrics.Tracker, error) {
	if !a.config.Redis.Enabled {
		a.logger.Info("redis disabled, outcome stats unavailable")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.config.Redis.Addr,
		Password: a.config.Redis.Password,
		DB:       a.config.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	a.redisClient = client
	var platforms []string
	if a.config.WordPress.Enabled {
		platforms = append(platforms, "wordpress")
	}
	if a.config.Blogger.Enabled {
		platforms = append(platforms, "blogger")
	}
	return metrics.NewTracker(client, platforms, prometheus.DefaultRegisterer, a.logger), nil
}

// buildRegistry creates one adapter per enabled platform.
func (a *App) buildRegistry() (*platform.Registry, error) {
	var adapters []platform.Adapter

	if a.config.WordPress.Enabled {
		wp, err := wordpress.NewAdapter(wordpress.Config{
			BaseURL:           a.config.WordPress.BaseURL,
			Username:          a.config.WordPress.Username,
			AppPassword:       a.config.WordPress.AppPassword,
			SiteTimezone:      a.config.WordPress.SiteTimezone,
			DisambiguateSlugs: a.config.WordPress.DisambiguateSlugs,
		}, a.store, nil, a.logger)
		if err != nil {
			return nil, fmt.Errorf("create wordpress adapter: %w", err)
		}
		adapters = append(adapters, wp)
	}

	if a.config.Blogger.Enabled {
		adapters = append(adapters, blogger.NewAdapter(blogger.Config{
			Client: blogger.ClientConfig{
				BlogID:       a.config.Blogger.BlogID,
				ClientID:     a.config.Blogger.ClientID,
				ClientSecret: a.config.Blogger.ClientSecret,
				RefreshToken: a.config.Blogger.RefreshToken,
			},
		}, a.logger))
	}

	return platform.NewRegistry(adapters...), nil
}

func (a *App) addHealthChecks(router *api.Router) {
	if a.db != nil {
		db := a.db
		router.AddHealthCheck("database", func(ctx context.Context) error {
			return db.PingContext(ctx)
		})
	}
	if a.redisClient != nil {
		client := a.redisClient
		router.AddHealthCheck("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}
}

// Run starts the worker pool and HTTP server, then blocks until a
// shutdown signal arrives or the server fails.
func (a *App) Run(ctx context.Context) error {
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()
	a.dispatcher.Start(workerCtx)

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening",
			logger.String("address", a.httpServer.Addr))
		serverErr <- a.httpServer.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutting down", logger.String("signal", sig.String()))
		a.shutdown()
		return nil
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", logger.Error(err))
			a.shutdown()
			return err
		}
		a.shutdown()
		return nil
	}
}

// shutdown stops components in dependency order: stop accepting HTTP
// traffic, drain the worker pool, then wait for inline jobs.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("http server shutdown error", logger.Error(err))
	}
	a.dispatcher.Stop()
	a.orchestrator.Wait()
	a.logger.Info("service stopped")
}

// Close releases connections and flushes the logger.
func (a *App) Close() error {
	a.closeQuietly()
	return a.logger.Sync()
}

func (a *App) closeQuietly() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("close redis client", logger.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", logger.Error(err))
		}
	}
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.logger.Warn("close ledger", logger.Error(err))
		}
	}
}

// Logger returns the application logger.
func (a *App) Logger() logger.Logger {
	return a.logger
}
