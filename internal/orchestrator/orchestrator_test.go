package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopost/publisher/internal/domain"
	"github.com/gopost/publisher/internal/ledger"
	"github.com/gopost/publisher/internal/logger"
	"github.com/gopost/publisher/internal/platform"
)

type bundleMap map[string]*domain.Bundle

func (m bundleMap) Load(id string) (*domain.Bundle, error) {
	b, ok := m[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

// fakeAdapter simulates a platform: each call records the configured
// number of ledger attempts, then returns either the configured error or
// a post ref. When blocking is enabled it waits for cancellation instead.
type fakeAdapter struct {
	name     domain.Platform
	attempts int
	err      error
	blocking bool
	started  chan struct{}

	mu        sync.Mutex
	calls     int
	scheduled []time.Time
}

func newFakeAdapter(name domain.Platform) *fakeAdapter {
	return &fakeAdapter{name: name, attempts: 1, started: make(chan struct{}, 8)}
}

func (f *fakeAdapter) Name() domain.Platform { return f.name }

func (f *fakeAdapter) publish(ctx context.Context, rec platform.Recorder) (*domain.PlatformPostRef, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	f.started <- struct{}{}

	if f.blocking {
		<-ctx.Done()
		return nil, domain.WrapError(domain.KindCancelled, ctx.Err(), "cancelled during backoff")
	}
	for i := 1; i <= f.attempts; i++ {
		if err := rec.Record(i, "POST /posts payload=empty", "status=503 body=empty"); err != nil {
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.PlatformPostRef{
		PlatformID:   "post-1",
		PublishedURL: "https://example.com/post-1",
	}, nil
}

func (f *fakeAdapter) PublishDraft(ctx context.Context, rec platform.Recorder, _ *domain.Bundle) (*domain.PlatformPostRef, error) {
	return f.publish(ctx, rec)
}

func (f *fakeAdapter) PublishNow(ctx context.Context, rec platform.Recorder, _ *domain.Bundle) (*domain.PlatformPostRef, error) {
	return f.publish(ctx, rec)
}

func (f *fakeAdapter) Schedule(ctx context.Context, rec platform.Recorder, _ *domain.Bundle, whenUTC time.Time) (*domain.PlatformPostRef, error) {
	f.mu.Lock()
	f.scheduled = append(f.scheduled, whenUTC)
	f.mu.Unlock()
	return f.publish(ctx, rec)
}

type outcomeSink struct {
	mu        sync.Mutex
	succeeded int
	failed    map[domain.ErrorKind]int
}

func newOutcomeSink() *outcomeSink {
	return &outcomeSink{failed: make(map[domain.ErrorKind]int)}
}

func (s *outcomeSink) JobSucceeded(context.Context, *domain.PublishJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.succeeded++
}

func (s *outcomeSink) JobFailed(_ context.Context, job *domain.PublishJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[job.Error.Kind]++
}

type fixture struct {
	orch    *Orchestrator
	store   *MemoryStore
	ledger  *ledger.Ledger
	adapter *fakeAdapter
	sink    *outcomeSink
	bundles bundleMap
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	led, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { led.Close() })

	adapter := newFakeAdapter(domain.PlatformWordPress)
	bundles := bundleMap{
		"bundle-1": {
			ID:       "bundle-1",
			Title:    "My Post",
			Content:  "<p>hello</p>",
			Schedule: domain.ScheduleRequest{Mode: domain.ModeDraft},
		},
	}
	store := NewMemoryStore()
	sink := newOutcomeSink()
	orch := New(store, bundles, led, platform.NewRegistry(adapter), logger.NewNopLogger(),
		WithMetrics(sink))
	// Tests drive Process themselves for determinism.
	orch.SetEnqueue(func(string) {})

	return &fixture{orch: orch, store: store, ledger: led, adapter: adapter, sink: sink, bundles: bundles}
}

func (f *fixture) submit(t *testing.T, req Request) *domain.PublishJob {
	t.Helper()
	job, err := f.orch.Submit(context.Background(), req)
	require.NoError(t, err)
	return job
}

func (f *fixture) run(t *testing.T, jobID string) *domain.PublishJob {
	t.Helper()
	require.NoError(t, f.orch.Process(context.Background(), jobID))
	job, err := f.orch.Job(context.Background(), jobID)
	require.NoError(t, err)
	return job
}

func TestProcessDraftSucceeds(t *testing.T) {
	f := newFixture(t)
	f.adapter.attempts = 3

	job := f.submit(t, Request{BundleID: "bundle-1", Platform: "wordpress", Mode: "draft"})
	assert.Equal(t, domain.StateCreated, job.State)

	done := f.run(t, job.ID)
	assert.Equal(t, domain.StateSucceeded, done.State)
	require.NotNil(t, done.Result)
	assert.Equal(t, "post-1", done.Result.PlatformID)
	assert.Equal(t, 3, done.AttemptCount, "attempt count mirrors the ledger")
	assert.Nil(t, done.Error)
	assert.Equal(t, 1, f.sink.succeeded)
}

func TestProcessDefaultsToBundleSchedule(t *testing.T) {
	f := newFixture(t)
	f.bundles["bundle-1"].Schedule = domain.ScheduleRequest{
		Mode:     domain.ModeSchedule,
		Datetime: time.Now().Add(time.Hour).Format(time.RFC3339),
	}

	job := f.submit(t, Request{BundleID: "bundle-1", Platform: "wordpress"})
	done := f.run(t, job.ID)

	assert.Equal(t, domain.StateSucceeded, done.State)
	assert.Equal(t, domain.ModeSchedule, done.Mode)
	require.Len(t, f.adapter.scheduled, 1)
	assert.Equal(t, time.UTC, f.adapter.scheduled[0].Location())
}

func TestProcessMissingBundleFailsValidation(t *testing.T) {
	f := newFixture(t)

	job := f.submit(t, Request{BundleID: "no-such-bundle", Platform: "wordpress", Mode: "draft"})
	done := f.run(t, job.ID)

	assert.Equal(t, domain.StateFailed, done.State)
	require.NotNil(t, done.Error)
	assert.Equal(t, domain.KindValidation, done.Error.Kind)
	assert.Equal(t, 0, f.adapter.calls, "invalid jobs never reach the platform")
	assert.Equal(t, 1, f.sink.failed[domain.KindValidation])
}

func TestProcessInvalidBundleFailsWithViolations(t *testing.T) {
	f := newFixture(t)
	f.bundles["bundle-1"].Title = ""

	job := f.submit(t, Request{BundleID: "bundle-1", Platform: "wordpress", Mode: "draft"})
	done := f.run(t, job.ID)

	assert.Equal(t, domain.StateFailed, done.State)
	require.NotNil(t, done.Error)
	assert.Equal(t, domain.KindValidation, done.Error.Kind)
	assert.Contains(t, done.Error.Message, "title")
}

func TestProcessPastScheduleFailsScheduling(t *testing.T) {
	f := newFixture(t)

	job := f.submit(t, Request{
		BundleID: "bundle-1",
		Platform: "wordpress",
		Mode:     "schedule",
		Datetime: "2020-01-01T00:00:00Z",
	})
	done := f.run(t, job.ID)

	assert.Equal(t, domain.StateFailed, done.State)
	require.NotNil(t, done.Error)
	assert.Equal(t, domain.KindSchedule, done.Error.Kind)
	assert.Equal(t, 0, f.adapter.calls)
}

func TestProcessAdapterFailureRecordsKindAndAttempts(t *testing.T) {
	f := newFixture(t)
	f.adapter.attempts = 5
	f.adapter.err = domain.NewError(domain.KindRetryExhausted, "gave up after 5 attempts")

	job := f.submit(t, Request{BundleID: "bundle-1", Platform: "wordpress", Mode: "publish"})
	done := f.run(t, job.ID)

	assert.Equal(t, domain.StateFailed, done.State)
	require.NotNil(t, done.Error)
	assert.Equal(t, domain.KindRetryExhausted, done.Error.Kind)
	assert.Equal(t, 5, done.AttemptCount)
	assert.Equal(t, 5, done.Error.LastSequence)
}

func TestCancelBeforeProcessing(t *testing.T) {
	f := newFixture(t)

	job := f.submit(t, Request{BundleID: "bundle-1", Platform: "wordpress", Mode: "draft"})
	require.NoError(t, f.orch.Cancel(context.Background(), job.ID))

	done := f.run(t, job.ID)
	assert.Equal(t, domain.StateFailed, done.State)
	require.NotNil(t, done.Error)
	assert.Equal(t, domain.KindCancelled, done.Error.Kind)
	assert.Equal(t, 0, f.adapter.calls)
}

func TestCancelDuringDispatch(t *testing.T) {
	f := newFixture(t)
	f.adapter.blocking = true

	job := f.submit(t, Request{BundleID: "bundle-1", Platform: "wordpress", Mode: "publish"})

	processDone := make(chan error, 1)
	go func() {
		processDone <- f.orch.Process(context.Background(), job.ID)
	}()

	select {
	case <-f.adapter.started:
	case <-time.After(5 * time.Second):
		t.Fatal("adapter never started")
	}
	require.NoError(t, f.orch.Cancel(context.Background(), job.ID))
	require.NoError(t, <-processDone)

	done, err := f.orch.Job(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, done.State)
	assert.Equal(t, domain.KindCancelled, done.Error.Kind)
}

func TestCancelTerminalJobRejected(t *testing.T) {
	f := newFixture(t)

	job := f.submit(t, Request{BundleID: "bundle-1", Platform: "wordpress", Mode: "draft"})
	f.run(t, job.ID)

	err := f.orch.Cancel(context.Background(), job.ID)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}

func TestProcessTerminalJobIsNoop(t *testing.T) {
	f := newFixture(t)

	job := f.submit(t, Request{BundleID: "bundle-1", Platform: "wordpress", Mode: "draft"})
	first := f.run(t, job.ID)
	again := f.run(t, job.ID)

	assert.Equal(t, first.State, again.State)
	assert.Equal(t, first.AttemptCount, again.AttemptCount)
	assert.Equal(t, 1, f.adapter.calls, "terminal jobs must not be re-dispatched")
}

func TestResubmissionCreatesFreshJob(t *testing.T) {
	f := newFixture(t)
	f.adapter.err = domain.NewError(domain.KindPlatform, "boom")

	first := f.submit(t, Request{BundleID: "bundle-1", Platform: "wordpress", Mode: "draft"})
	failed := f.run(t, first.ID)
	require.Equal(t, domain.StateFailed, failed.State)

	f.adapter.err = nil
	second := f.submit(t, Request{BundleID: "bundle-1", Platform: "wordpress", Mode: "draft"})
	require.NotEqual(t, first.ID, second.ID)

	succeeded := f.run(t, second.ID)
	assert.Equal(t, domain.StateSucceeded, succeeded.State)

	// The failed job is untouched by the resubmission.
	stillFailed, err := f.orch.Job(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, stillFailed.State)
}

func TestSubmitRejectsMalformedRequests(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  Request
	}{
		{"missing bundle id", Request{Platform: "wordpress"}},
		{"unknown platform", Request{BundleID: "bundle-1", Platform: "medium"}},
		{"unknown mode", Request{BundleID: "bundle-1", Platform: "wordpress", Mode: "later"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orch.Submit(context.Background(), tt.req)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}
}

func TestMemoryStoreListNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Insert(context.Background(), &domain.PublishJob{
			ID:        fmt.Sprintf("job-%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	jobs, err := store.List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-2", jobs[0].ID)
	assert.Equal(t, "job-1", jobs[1].ID)
}
