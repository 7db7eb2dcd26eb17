package domain_test

import (
	"errors"
	"testing"

	"github.com/gopost/publisher/internal/domain"
)

func TestPublishJob_Transition(t *testing.T) {
	testCases := []struct {
		name    string
		from    domain.JobState
		to      domain.JobState
		wantErr bool
	}{
		{name: "created to validating", from: domain.StateCreated, to: domain.StateValidating},
		{name: "validating to scheduling", from: domain.StateValidating, to: domain.StateScheduling},
		{name: "validating to failed", from: domain.StateValidating, to: domain.StateFailed},
		{name: "scheduling to dispatching", from: domain.StateScheduling, to: domain.StateDispatching},
		{name: "scheduling to failed", from: domain.StateScheduling, to: domain.StateFailed},
		{name: "dispatching to succeeded", from: domain.StateDispatching, to: domain.StateSucceeded},
		{name: "dispatching to failed", from: domain.StateDispatching, to: domain.StateFailed},
		{name: "created to dispatching is illegal", from: domain.StateCreated, to: domain.StateDispatching, wantErr: true},
		{name: "validating to succeeded is illegal", from: domain.StateValidating, to: domain.StateSucceeded, wantErr: true},
		{name: "succeeded is immutable", from: domain.StateSucceeded, to: domain.StateFailed, wantErr: true},
		{name: "failed is immutable", from: domain.StateFailed, to: domain.StateDispatching, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			job := &domain.PublishJob{State: tc.from}
			err := job.Transition(tc.to)

			if tc.wantErr {
				if !errors.Is(err, domain.ErrIllegalTransition) {
					t.Fatalf("Transition(%s -> %s) = %v, want ErrIllegalTransition", tc.from, tc.to, err)
				}
				if job.State != tc.from {
					t.Errorf("state mutated on illegal transition: %s", job.State)
				}
				return
			}

			if err != nil {
				t.Fatalf("Transition(%s -> %s) unexpected error: %v", tc.from, tc.to, err)
			}
			if job.State != tc.to {
				t.Errorf("state = %s, want %s", job.State, tc.to)
			}
		})
	}
}

func TestPublishJob_FailRecordsError(t *testing.T) {
	job := &domain.PublishJob{State: domain.StateDispatching}

	if err := job.Fail(domain.KindRetryExhausted, "gave up", 7); err != nil {
		t.Fatalf("Fail() error: %v", err)
	}
	if job.State != domain.StateFailed {
		t.Errorf("state = %s, want failed", job.State)
	}
	if job.Error == nil || job.Error.Kind != domain.KindRetryExhausted {
		t.Errorf("error = %+v, want RetryExhausted", job.Error)
	}
	if job.Error.LastSequence != 7 {
		t.Errorf("last sequence = %d, want 7", job.Error.LastSequence)
	}

	// A terminal job rejects further mutation.
	if err := job.Fail(domain.KindPlatform, "again", 8); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Errorf("second Fail() = %v, want ErrIllegalTransition", err)
	}
}

func TestKindOf(t *testing.T) {
	wrapped := domain.WrapError(domain.KindAuth, errors.New("401"), "credentials rejected")

	if got := domain.KindOf(wrapped); got != domain.KindAuth {
		t.Errorf("KindOf(wrapped) = %s, want AuthError", got)
	}
	if got := domain.KindOf(errors.New("plain")); got != domain.KindPlatform {
		t.Errorf("KindOf(plain) = %s, want PlatformError", got)
	}
}

func TestParsePlatform(t *testing.T) {
	if _, err := domain.ParsePlatform("wordpress"); err != nil {
		t.Errorf("ParsePlatform(wordpress) error: %v", err)
	}
	if _, err := domain.ParsePlatform("medium"); err == nil {
		t.Error("ParsePlatform(medium) should fail")
	}
}
