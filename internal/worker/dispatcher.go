// Package worker provides the background dispatch worker that drains the
// publish queue and drives each job to a terminal state.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/gopost/publisher/internal/logger"
)

const (
	defaultQueueSize  = 256
	defaultWorkers    = 4
	defaultJobTimeout = 10 * time.Minute
)

// Processor runs one queued job to completion. Errors are infrastructure
// failures; job-level failures are recorded on the job itself.
type Processor func(ctx context.Context, jobID string) error

// Config holds dispatcher settings.
type Config struct {
	QueueSize  int
	Workers    int
	JobTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:  defaultQueueSize,
		Workers:    defaultWorkers,
		JobTimeout: defaultJobTimeout,
	}
}

// Dispatcher fans queued job ids out to a fixed pool of workers. Each job
// is processed under its own timeout so one stuck platform cannot pin a
// worker forever.
type Dispatcher struct {
	process Processor
	logger  logger.Logger

	queue      chan string
	workers    int
	jobTimeout time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(process Processor, cfg Config, log logger.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = defaultJobTimeout
	}

	return &Dispatcher{
		process:    process,
		logger:     log,
		queue:      make(chan string, cfg.QueueSize),
		workers:    cfg.Workers,
		jobTimeout: cfg.JobTimeout,
		stopChan:   make(chan struct{}),
	}
}

// Enqueue hands a job id to the worker pool. Blocks when the queue is
// full; returns immediately once the dispatcher is stopped.
func (d *Dispatcher) Enqueue(jobID string) {
	select {
	case d.queue <- jobID:
	case <-d.stopChan:
		d.logger.Warn("dispatcher stopped, dropping job", logger.String("job_id", jobID))
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run(ctx)
	}

	d.logger.Info("dispatch worker started",
		logger.Int("workers", d.workers),
		logger.Int("queue_size", cap(d.queue)))
}

// Stop stops accepting work and waits for in-flight jobs to finish.
// Jobs still queued are dropped; they remain in the created state and can
// be re-enqueued on restart.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	close(d.stopChan)
	d.wg.Wait()
	d.logger.Info("dispatch worker stopped")
}

// IsRunning reports whether the pool has been started.
func (d *Dispatcher) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

// Stats returns current dispatcher statistics.
func (d *Dispatcher) Stats() map[string]any {
	return map[string]any{
		"queued":      len(d.queue),
		"queue_size":  cap(d.queue),
		"workers":     d.workers,
		"job_timeout": d.jobTimeout.String(),
		"running":     d.IsRunning(),
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case jobID := <-d.queue:
			d.processOne(ctx, jobID)
		case <-d.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) processOne(ctx context.Context, jobID string) {
	jobCtx, cancel := context.WithTimeout(ctx, d.jobTimeout)
	defer cancel()

	if err := d.process(jobCtx, jobID); err != nil {
		d.logger.Error("job processing failed",
			logger.String("job_id", jobID),
			logger.Error(err))
	}
}
