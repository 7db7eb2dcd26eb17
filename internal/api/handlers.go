package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gopost/publisher/internal/domain"
	"github.com/gopost/publisher/internal/logger"
	"github.com/gopost/publisher/internal/orchestrator"
)

const defaultListLimit = 50

// submitJob handles POST /api/v1/publish. The job is accepted
// immediately; validation and dispatch happen asynchronously.
func (r *Router) submitJob(c *gin.Context) {
	var req orchestrator.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	job, err := r.jobs.Submit(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		r.logger.Error("failed to submit publish job",
			logger.String("bundle_id", req.BundleID),
			logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to submit job"})
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// getJob handles GET /api/v1/jobs/:id.
func (r *Router) getJob(c *gin.Context) {
	job, err := r.jobs.Job(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		r.logger.Error("failed to load job",
			logger.String("job_id", c.Param("id")),
			logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// listJobs handles GET /api/v1/jobs.
func (r *Router) listJobs(c *gin.Context) {
	limit := queryInt(c, "limit", defaultListLimit)
	jobs, err := r.jobs.Jobs(c.Request.Context(), limit)
	if err != nil {
		r.logger.Error("failed to list jobs", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

// cancelJob handles POST /api/v1/jobs/:id/cancel. Cancelling a terminal
// job is a conflict, not an error in the service.
func (r *Router) cancelJob(c *gin.Context) {
	err := r.jobs.Cancel(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "cancellation requested"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
	case errors.Is(err, domain.ErrIllegalTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		r.logger.Error("failed to cancel job",
			logger.String("job_id", c.Param("id")),
			logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel job"})
	}
}

// getJobLedger handles GET /api/v1/jobs/:id/ledger. The job is looked up
// first so an unknown id is a 404 rather than an empty history.
func (r *Router) getJobLedger(c *gin.Context) {
	jobID := c.Param("id")
	if _, err := r.jobs.Job(c.Request.Context(), jobID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		r.logger.Error("failed to load job",
			logger.String("job_id", jobID),
			logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}

	entries, err := r.ledger.ReadAll(jobID)
	if err != nil {
		r.logger.Error("failed to read ledger",
			logger.String("job_id", jobID),
			logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read ledger"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// listBundles handles GET /api/v1/bundles.
func (r *Router) listBundles(c *gin.Context) {
	ids, err := r.bundles.List()
	if err != nil {
		r.logger.Error("failed to list bundles", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list bundles"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bundles": ids, "count": len(ids)})
}

// getBundle handles GET /api/v1/bundles/:id. Content is not inlined;
// clients wanting the HTML fetch the bundle from storage.
func (r *Router) getBundle(c *gin.Context) {
	b, err := r.bundles.Load(c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "bundle not found"})
			return
		}
		r.logger.Error("failed to load bundle",
			logger.String("bundle_id", c.Param("id")),
			logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load bundle"})
		return
	}
	c.JSON(http.StatusOK, b)
}

// getStats handles GET /api/v1/stats/overview.
func (r *Router) getStats(c *gin.Context) {
	if r.stats == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "stats not configured"})
		return
	}
	stats, err := r.stats.Stats(c.Request.Context())
	if err != nil {
		r.logger.Error("failed to get stats", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// getRecentPublishes handles GET /api/v1/stats/recent.
func (r *Router) getRecentPublishes(c *gin.Context) {
	if r.stats == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "stats not configured"})
		return
	}
	limit := queryInt(c, "limit", defaultListLimit)
	recent, err := r.stats.RecentPublishes(c.Request.Context(), limit)
	if err != nil {
		r.logger.Error("failed to get recent publishes", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve recent publishes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"publishes": recent, "count": len(recent)})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.DefaultQuery(name, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
