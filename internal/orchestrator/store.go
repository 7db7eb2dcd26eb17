package orchestrator

import (
	"context"
	"sort"
	"sync"

	"github.com/gopost/publisher/internal/domain"
)

// JobStore persists publish jobs. Implementations must return
// domain.ErrNotFound for unknown ids.
type JobStore interface {
	Insert(ctx context.Context, job *domain.PublishJob) error
	Update(ctx context.Context, job *domain.PublishJob) error
	Get(ctx context.Context, id string) (*domain.PublishJob, error)
	List(ctx context.Context, limit int) ([]*domain.PublishJob, error)
}

// MemoryStore is an in-process JobStore, used by tests and by deployments
// that run without PostgreSQL. Jobs are stored by value so callers cannot
// mutate stored state behind the orchestrator's back.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.PublishJob
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]domain.PublishJob)}
}

// Insert implements JobStore.
func (s *MemoryStore) Insert(_ context.Context, job *domain.PublishJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

// Update implements JobStore.
func (s *MemoryStore) Update(_ context.Context, job *domain.PublishJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return domain.ErrNotFound
	}
	s.jobs[job.ID] = *job
	return nil
}

// Get implements JobStore.
func (s *MemoryStore) Get(_ context.Context, id string) (*domain.PublishJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

// List implements JobStore, newest first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]*domain.PublishJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*domain.PublishJob, 0, len(s.jobs))
	for id := range s.jobs {
		job := s.jobs[id]
		jobs = append(jobs, &job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID > jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}
