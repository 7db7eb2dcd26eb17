// Package metrics tracks publish outcomes in Redis for the dashboard and
// in Prometheus for scraping. Metrics are best-effort: a Redis outage must
// never fail a publish job, so errors are logged and swallowed at the
// orchestrator boundary.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/gopost/publisher/internal/domain"
	"github.com/gopost/publisher/internal/logger"
)

// Tracker records terminal job outcomes. It implements the orchestrator's
// MetricsSink.
type Tracker struct {
	client    redis.UniversalClient
	keys      *redisKeys
	platforms []string
	prom      *promMetrics
	logger    logger.Logger
	now       func() time.Time
}

// NewTracker creates a tracker. The platforms list drives Stats
// aggregation; reg receives the Prometheus counters.
func NewTracker(client redis.UniversalClient, platforms []string, reg prometheus.Registerer, log logger.Logger) *Tracker {
	return &Tracker{
		client:    client,
		keys:      newRedisKeys(keyPrefix),
		platforms: platforms,
		prom:      newPromMetrics(reg),
		logger:    log,
		now:       time.Now,
	}
}

// JobSucceeded implements orchestrator.MetricsSink.
func (t *Tracker) JobSucceeded(ctx context.Context, job *domain.PublishJob) {
	platform := string(job.Platform)
	t.prom.publishes.WithLabelValues(platform, "succeeded").Inc()

	ttl := counterTTLDays * hoursPerDay * time.Hour
	pipe := t.client.Pipeline()
	pipe.Incr(ctx, t.keys.Succeeded(platform))
	pipe.Expire(ctx, t.keys.Succeeded(platform), ttl)

	recent := RecentPublish{
		JobID:       job.ID,
		BundleID:    job.BundleID,
		Platform:    platform,
		PublishedAt: t.now().UTC(),
	}
	if job.Result != nil {
		recent.PublishedURL = job.Result.PublishedURL
	}
	if data, err := json.Marshal(recent); err == nil {
		pipe.LPush(ctx, KeyRecentPublishes, data)
		pipe.LTrim(ctx, KeyRecentPublishes, 0, MaxRecentPublishes-1)
		pipe.Expire(ctx, KeyRecentPublishes, recentTTLDays*hoursPerDay*time.Hour)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		t.logger.Warn("failed to record publish success",
			logger.String("job_id", job.ID),
			logger.String("platform", platform),
			logger.Error(err))
	}
}

// JobFailed implements orchestrator.MetricsSink.
func (t *Tracker) JobFailed(ctx context.Context, job *domain.PublishJob) {
	platform := string(job.Platform)
	kind := string(domain.KindPlatform)
	if job.Error != nil {
		kind = string(job.Error.Kind)
	}
	t.prom.publishes.WithLabelValues(platform, "failed").Inc()
	t.prom.failures.WithLabelValues(platform, kind).Inc()

	ttl := counterTTLDays * hoursPerDay * time.Hour
	pipe := t.client.Pipeline()
	pipe.Incr(ctx, t.keys.Failed(platform))
	pipe.Expire(ctx, t.keys.Failed(platform), ttl)
	pipe.Incr(ctx, t.keys.FailedKind(platform, kind))
	pipe.Expire(ctx, t.keys.FailedKind(platform, kind), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		t.logger.Warn("failed to record publish failure",
			logger.String("job_id", job.ID),
			logger.String("platform", platform),
			logger.Error(err))
	}
}

// Stats returns aggregated outcome counters per platform.
func (t *Tracker) Stats(ctx context.Context) (*Stats, error) {
	pipe := t.client.Pipeline()
	succeededCmds := make(map[string]*redis.StringCmd, len(t.platforms))
	failedCmds := make(map[string]*redis.StringCmd, len(t.platforms))
	for _, platform := range t.platforms {
		succeededCmds[platform] = pipe.Get(ctx, t.keys.Succeeded(platform))
		failedCmds[platform] = pipe.Get(ctx, t.keys.Failed(platform))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	stats := &Stats{Platforms: make([]PlatformStats, 0, len(t.platforms))}
	for _, platform := range t.platforms {
		ps := PlatformStats{Name: platform}
		// Missing keys count as zero.
		if v, err := succeededCmds[platform].Int64(); err == nil {
			ps.Succeeded = v
			stats.TotalSucceeded += v
		}
		if v, err := failedCmds[platform].Int64(); err == nil {
			ps.Failed = v
			stats.TotalFailed += v
		}
		stats.Platforms = append(stats.Platforms, ps)
	}
	return stats, nil
}

// RecentPublishes returns the most recent successful publishes, newest
// first.
func (t *Tracker) RecentPublishes(ctx context.Context, limit int) ([]RecentPublish, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > MaxRecentPublishes {
		limit = MaxRecentPublishes
	}

	results, err := t.client.LRange(ctx, KeyRecentPublishes, 0, int64(limit-1)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []RecentPublish{}, nil
		}
		return nil, err
	}

	publishes := make([]RecentPublish, 0, len(results))
	for _, raw := range results {
		var p RecentPublish
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			t.logger.Warn("failed to unmarshal recent publish", logger.Error(err))
			continue
		}
		publishes = append(publishes, p)
	}
	return publishes, nil
}
