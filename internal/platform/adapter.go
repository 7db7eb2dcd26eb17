// Package platform defines the contract every publishing adapter
// implements and the registry the orchestrator selects adapters from.
package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/gopost/publisher/internal/domain"
)

// Recorder writes one execution-ledger entry per external call attempt.
// Adapters record every attempt themselves, success or failure, before the
// call result is consumed; the retry engine stays ledger-agnostic. A
// recording failure must be propagated, never swallowed.
type Recorder interface {
	Record(attempt int, requestSummary, responseSummary string) error
}

// Adapter translates a bundle into platform-specific calls. All three
// operations resolve taxonomy terms, upload or rewrite images, submit the
// post payload, and return the platform-native post reference. Each
// network call is wrapped individually by the retry engine so a transient
// failure on one image does not force re-upload of the others.
type Adapter interface {
	// Name returns the platform this adapter serves.
	Name() domain.Platform

	// PublishDraft creates the post without publishing it. The returned
	// ref has no published URL.
	PublishDraft(ctx context.Context, rec Recorder, b *domain.Bundle) (*domain.PlatformPostRef, error)

	// PublishNow creates and immediately publishes the post.
	PublishNow(ctx context.Context, rec Recorder, b *domain.Bundle) (*domain.PlatformPostRef, error)

	// Schedule creates the post and registers it for future delivery at
	// whenUTC. Each adapter re-projects the UTC instant into its
	// platform's required representation.
	Schedule(ctx context.Context, rec Recorder, b *domain.Bundle, whenUTC time.Time) (*domain.PlatformPostRef, error)
}

// Registry is the closed lookup table of configured adapters.
type Registry struct {
	adapters map[domain.Platform]Adapter
}

// NewRegistry creates a registry from the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[domain.Platform]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Register adds or replaces an adapter.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Name()] = a
}

// Lookup returns the adapter for a platform, or ErrNotFound if the
// platform has no configured adapter.
func (r *Registry) Lookup(p domain.Platform) (Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("adapter for platform %s: %w", p, domain.ErrNotFound)
	}
	return a, nil
}

// Platforms returns the configured platform names.
func (r *Registry) Platforms() []domain.Platform {
	names := make([]domain.Platform, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
