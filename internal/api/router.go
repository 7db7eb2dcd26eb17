// Package api exposes the publishing service over HTTP: submit publish
// jobs, inspect job state and ledger history, browse bundles, and read
// outcome statistics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gopost/publisher/internal/domain"
	"github.com/gopost/publisher/internal/logger"
	"github.com/gopost/publisher/internal/metrics"
	"github.com/gopost/publisher/internal/orchestrator"
)

const (
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 60 * time.Second
	defaultIdleTimeout  = 120 * time.Second
	healthCheckTimeout  = 2 * time.Second
	serviceVersion      = "1.0.0"
)

// JobService is the orchestrator surface the API consumes.
type JobService interface {
	Submit(ctx context.Context, req orchestrator.Request) (*domain.PublishJob, error)
	Job(ctx context.Context, id string) (*domain.PublishJob, error)
	Jobs(ctx context.Context, limit int) ([]*domain.PublishJob, error)
	Cancel(ctx context.Context, id string) error
}

// LedgerReader reads a job's execution history.
type LedgerReader interface {
	ReadAll(jobID string) ([]domain.LedgerEntry, error)
}

// BundleReader lists and loads bundles.
type BundleReader interface {
	List() ([]string, error)
	Load(id string) (*domain.Bundle, error)
}

// StatsSource provides aggregated publish outcomes.
type StatsSource interface {
	Stats(ctx context.Context) (*metrics.Stats, error)
	RecentPublishes(ctx context.Context, limit int) ([]metrics.RecentPublish, error)
}

// HealthCheck probes one dependency, nil means healthy.
type HealthCheck func(ctx context.Context) error

// Router holds the API dependencies.
type Router struct {
	jobs     JobService
	ledger   LedgerReader
	bundles  BundleReader
	stats    StatsSource
	checks   map[string]HealthCheck
	gatherer prometheus.Gatherer
	cors     []string
	debug    bool
	logger   logger.Logger
}

// Config holds router settings.
type Config struct {
	CORSOrigins []string
	Debug       bool
	// Gatherer serves /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// NewRouter creates a router. Stats may be nil when no tracker is
// configured; the stats endpoints then return 404.
func NewRouter(jobs JobService, led LedgerReader, bundles BundleReader, stats StatsSource, cfg Config, log logger.Logger) *Router {
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Router{
		jobs:     jobs,
		ledger:   led,
		bundles:  bundles,
		stats:    stats,
		checks:   make(map[string]HealthCheck),
		gatherer: gatherer,
		cors:     cfg.CORSOrigins,
		debug:    cfg.Debug,
		logger:   log,
	}
}

// AddHealthCheck registers a named dependency probe for /health.
func (r *Router) AddHealthCheck(name string, check HealthCheck) {
	r.checks[name] = check
}

// Engine builds the gin engine with middleware and all routes.
func (r *Router) Engine() *gin.Engine {
	if !r.debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware(r.cors))
	engine.Use(requestLogger(r.logger))

	engine.GET("/health", r.health)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))

	v1 := engine.Group("/api/v1")

	v1.POST("/publish", r.submitJob)

	jobs := v1.Group("/jobs")
	jobs.GET("", r.listJobs)
	jobs.GET("/:id", r.getJob)
	jobs.POST("/:id/cancel", r.cancelJob)
	jobs.GET("/:id/ledger", r.getJobLedger)

	bundles := v1.Group("/bundles")
	bundles.GET("", r.listBundles)
	bundles.GET("/:id", r.getBundle)

	stats := v1.Group("/stats")
	stats.GET("/overview", r.getStats)
	stats.GET("/recent", r.getRecentPublishes)

	return engine
}

// NewServer wraps the engine in an http.Server with sane timeouts.
func (r *Router) NewServer(address string) *http.Server {
	return &http.Server{
		Addr:         address,
		Handler:      r.Engine(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}
}

// health reports the service status and every registered dependency
// probe. Any failing probe degrades the status but the endpoint still
// returns 200 so load balancers keep routing during partial outages.
func (r *Router) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := "healthy"
	deps := gin.H{}
	for name, check := range r.checks {
		if err := check(ctx); err != nil {
			status = "degraded"
			deps[name] = gin.H{"connected": false, "error": err.Error()}
		} else {
			deps[name] = gin.H{"connected": true}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       status,
		"service":      "publisher",
		"version":      serviceVersion,
		"dependencies": deps,
	})
}
