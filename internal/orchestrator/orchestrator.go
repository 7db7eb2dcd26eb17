// Package orchestrator drives publish jobs through their lifecycle:
// created, validating, scheduling, dispatching, and finally succeeded or
// failed. The orchestrator is the only writer of job state.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gopost/publisher/internal/bundle"
	"github.com/gopost/publisher/internal/domain"
	"github.com/gopost/publisher/internal/logger"
	"github.com/gopost/publisher/internal/platform"
	"github.com/gopost/publisher/internal/scheduler"
)

// BundleSource loads immutable content bundles, satisfied by the bundle
// store.
type BundleSource interface {
	Load(id string) (*domain.Bundle, error)
}

// ExecutionLedger is the append-only attempt log the orchestrator and
// adapters write to.
type ExecutionLedger interface {
	Append(entry domain.LedgerEntry) (int, error)
	LastSequence(jobID string) int
}

// MetricsSink receives terminal job outcomes. Optional; a nil sink
// disables outcome tracking.
type MetricsSink interface {
	JobSucceeded(ctx context.Context, job *domain.PublishJob)
	JobFailed(ctx context.Context, job *domain.PublishJob)
}

// Request is a submission to publish one bundle to one platform. Mode and
// Datetime override the bundle's own schedule request when set.
type Request struct {
	BundleID string `json:"bundle_id"`
	Platform string `json:"platform"`
	Mode     string `json:"mode,omitempty"`
	Datetime string `json:"datetime,omitempty"`
}

// Orchestrator owns the publish job state machine. Failed jobs are never
// retried in place; resubmission creates a fresh job with its own ledger
// history.
type Orchestrator struct {
	jobs     JobStore
	bundles  BundleSource
	ledger   ExecutionLedger
	registry *platform.Registry
	metrics  MetricsSink
	logger   logger.Logger
	now      func() time.Time

	// enqueue hands a job id to the dispatch worker. When unset, jobs are
	// processed on a goroutine owned by the orchestrator itself.
	enqueue func(jobID string)

	mu            sync.Mutex
	cancels       map[string]context.CancelFunc
	pendingCancel map[string]bool

	wg sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics attaches an outcome sink.
func WithMetrics(m MetricsSink) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator.
func New(jobs JobStore, bundles BundleSource, led ExecutionLedger, registry *platform.Registry, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		jobs:          jobs,
		bundles:       bundles,
		ledger:        led,
		registry:      registry,
		logger:        log,
		now:           time.Now,
		cancels:       make(map[string]context.CancelFunc),
		pendingCancel: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetEnqueue routes submitted jobs through the given queue instead of
// inline goroutines. Must be called before the first Submit.
func (o *Orchestrator) SetEnqueue(enqueue func(jobID string)) {
	o.enqueue = enqueue
}

// Submit validates the request shape, records a new job in the created
// state, and hands it to the dispatcher. Content-level validation happens
// asynchronously in the validating state.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*domain.PublishJob, error) {
	if req.BundleID == "" {
		return nil, fmt.Errorf("%w: bundle_id is required", domain.ErrInvalidRequest)
	}
	p, err := domain.ParsePlatform(req.Platform)
	if err != nil {
		return nil, err
	}
	mode := domain.PublishMode(req.Mode)
	if req.Mode != "" && !mode.Valid() {
		return nil, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidRequest, req.Mode)
	}

	now := o.now().UTC()
	job := &domain.PublishJob{
		ID:                uuid.NewString(),
		BundleID:          req.BundleID,
		Platform:          p,
		Mode:              mode,
		RequestedDatetime: req.Datetime,
		State:             domain.StateCreated,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := o.jobs.Insert(ctx, job); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	o.logger.Info("publish job submitted",
		logger.String("job_id", job.ID),
		logger.String("bundle_id", job.BundleID),
		logger.String("platform", string(job.Platform)))

	if o.enqueue != nil {
		o.enqueue(job.ID)
	} else {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if err := o.Process(context.Background(), job.ID); err != nil {
				o.logger.Error("job processing failed",
					logger.String("job_id", job.ID),
					logger.Error(err))
			}
		}()
	}
	return job, nil
}

// Job returns one job by id.
func (o *Orchestrator) Job(ctx context.Context, id string) (*domain.PublishJob, error) {
	return o.jobs.Get(ctx, id)
}

// Jobs lists recent jobs, newest first.
func (o *Orchestrator) Jobs(ctx context.Context, limit int) ([]*domain.PublishJob, error) {
	return o.jobs.List(ctx, limit)
}

// Cancel requests cancellation of a non-terminal job. A job already being
// dispatched is interrupted at its next retry boundary; a job still queued
// is failed as cancelled before any platform call happens. Terminal jobs
// cannot be cancelled.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	job, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.State.Terminal() {
		return fmt.Errorf("%w: job %s is already %s", domain.ErrIllegalTransition, jobID, job.State)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if cancel, ok := o.cancels[jobID]; ok {
		cancel()
	} else {
		o.pendingCancel[jobID] = true
	}
	return nil
}

// Wait blocks until all inline-spawned jobs have finished, used during
// shutdown.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Process runs one job through the state machine to a terminal state. A
// terminal job is left untouched, so redelivery of a queue entry is
// harmless. The returned error reports infrastructure failures only; job
// failures are recorded on the job itself.
func (o *Orchestrator) Process(ctx context.Context, jobID string) error {
	job, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job.State.Terminal() {
		return nil
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.registerCancel(jobID, cancel)
	defer o.unregisterCancel(jobID)

	// Validating.
	if err := o.advance(ctx, job, domain.StateValidating); err != nil {
		return err
	}
	if jobCtx.Err() != nil {
		return o.fail(ctx, job, domain.KindCancelled, "cancelled before validation")
	}
	b, err := o.bundles.Load(job.BundleID)
	if err != nil {
		return o.fail(ctx, job, domain.KindValidation, fmt.Sprintf("load bundle %s: %v", job.BundleID, err))
	}
	if violations := bundle.Validate(b); len(violations) > 0 {
		return o.fail(ctx, job, domain.KindValidation, violationMessage(violations))
	}

	// The request overrides the bundle's own schedule; unset fields fall
	// back to what the bundle was packaged with.
	sched := domain.ScheduleRequest{Mode: job.Mode, Datetime: job.RequestedDatetime}
	if sched.Mode == "" {
		sched.Mode = b.Schedule.Mode
		job.Mode = sched.Mode
	}
	if sched.Datetime == "" {
		sched.Datetime = b.Schedule.Datetime
	}

	// Scheduling.
	if err := o.advance(ctx, job, domain.StateScheduling); err != nil {
		return err
	}
	resolved, err := scheduler.Resolve(sched, o.now())
	if err != nil {
		return o.fail(ctx, job, domain.KindOf(err), err.Error())
	}

	// Dispatching.
	if err := o.advance(ctx, job, domain.StateDispatching); err != nil {
		return err
	}
	adapter, err := o.registry.Lookup(job.Platform)
	if err != nil {
		return o.fail(ctx, job, domain.KindPlatform, fmt.Sprintf("no adapter configured for %s", job.Platform))
	}

	rec := &ledgerRecorder{ledger: o.ledger, jobID: job.ID, now: o.now}
	var ref *domain.PlatformPostRef
	switch resolved.Mode {
	case domain.ModeDraft:
		ref, err = adapter.PublishDraft(jobCtx, rec, b)
	case domain.ModePublish:
		ref, err = adapter.PublishNow(jobCtx, rec, b)
	case domain.ModeSchedule:
		ref, err = adapter.Schedule(jobCtx, rec, b, *resolved.Instant)
	}
	if err != nil {
		return o.fail(ctx, job, domain.KindOf(err), err.Error())
	}

	job.AttemptCount = o.ledger.LastSequence(job.ID)
	if err := job.Succeed(ref); err != nil {
		return err
	}
	if err := o.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persist job %s: %w", job.ID, err)
	}
	if o.metrics != nil {
		o.metrics.JobSucceeded(ctx, job)
	}
	o.logger.Info("publish job succeeded",
		logger.String("job_id", job.ID),
		logger.String("platform", string(job.Platform)),
		logger.String("platform_id", ref.PlatformID),
		logger.Int("attempts", job.AttemptCount))
	return nil
}

func (o *Orchestrator) advance(ctx context.Context, job *domain.PublishJob, to domain.JobState) error {
	if err := job.Transition(to); err != nil {
		return err
	}
	if err := o.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persist job %s: %w", job.ID, err)
	}
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, job *domain.PublishJob, kind domain.ErrorKind, message string) error {
	lastSeq := o.ledger.LastSequence(job.ID)
	job.AttemptCount = lastSeq
	if err := job.Fail(kind, message, lastSeq); err != nil {
		return err
	}
	if err := o.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persist job %s: %w", job.ID, err)
	}
	if o.metrics != nil {
		o.metrics.JobFailed(ctx, job)
	}
	o.logger.Warn("publish job failed",
		logger.String("job_id", job.ID),
		logger.String("platform", string(job.Platform)),
		logger.String("kind", string(kind)),
		logger.String("message", message))
	return nil
}

func (o *Orchestrator) registerCancel(jobID string, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancels[jobID] = cancel
	if o.pendingCancel[jobID] {
		delete(o.pendingCancel, jobID)
		cancel()
	}
}

func (o *Orchestrator) unregisterCancel(jobID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.cancels, jobID)
	delete(o.pendingCancel, jobID)
}

func violationMessage(violations []bundle.Violation) string {
	parts := make([]string, len(violations))
	for i, v := range violations {
		parts[i] = fmt.Sprintf("%s: %s", v.Field, v.Message)
	}
	return strings.Join(parts, "; ")
}

// ledgerRecorder binds the shared ledger to one job for the duration of a
// dispatch.
type ledgerRecorder struct {
	ledger ExecutionLedger
	jobID  string
	now    func() time.Time
}

// Record implements platform.Recorder.
func (r *ledgerRecorder) Record(attempt int, requestSummary, responseSummary string) error {
	_, err := r.ledger.Append(domain.LedgerEntry{
		JobID:           r.jobID,
		AttemptNumber:   attempt,
		RequestSummary:  requestSummary,
		ResponseSummary: responseSummary,
		Timestamp:       r.now().UTC(),
	})
	return err
}
