package domain

import (
	"fmt"
	"time"
)

// Platform identifies a publishing target.
type Platform string

const (
	PlatformWordPress Platform = "wordpress"
	PlatformBlogger   Platform = "blogger"
)

// ParsePlatform converts a wire string into a Platform.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformWordPress, PlatformBlogger:
		return Platform(s), nil
	default:
		return "", fmt.Errorf("%w: unknown platform %q", ErrInvalidRequest, s)
	}
}

// JobState is the lifecycle state of a publish job.
type JobState string

const (
	StateCreated     JobState = "created"
	StateValidating  JobState = "validating"
	StateScheduling  JobState = "scheduling"
	StateDispatching JobState = "dispatching"
	StateSucceeded   JobState = "succeeded"
	StateFailed      JobState = "failed"
)

// Terminal reports whether the state is final. Terminal jobs are immutable.
func (s JobState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// legalTransitions enumerates every allowed state change. Anything absent
// here is rejected, including any mutation of a terminal state.
var legalTransitions = map[JobState][]JobState{
	StateCreated:     {StateValidating},
	StateValidating:  {StateScheduling, StateFailed},
	StateScheduling:  {StateDispatching, StateFailed},
	StateDispatching: {StateSucceeded, StateFailed},
}

// PlatformPostRef is the platform-native reference returned on success.
// PublishedURL is empty for drafts.
type PlatformPostRef struct {
	PlatformID   string            `json:"platform_id"`
	PublishedURL string            `json:"published_url,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// JobError records why a job failed.
type JobError struct {
	Kind         ErrorKind `json:"kind"`
	Message      string    `json:"message"`
	LastSequence int       `json:"last_sequence,omitempty"`
}

// PublishJob is one attempt to deliver one bundle to one platform. Jobs are
// created by the orchestrator, mutated only by the orchestrator, and never
// deleted; failed jobs are re-submitted as new jobs rather than retried in
// place.
type PublishJob struct {
	ID       string      `db:"id"        json:"job_id"`
	BundleID string      `db:"bundle_id" json:"bundle_id"`
	Platform Platform    `db:"platform"  json:"platform"`
	Mode     PublishMode `db:"mode"      json:"mode"`

	// RequestedDatetime is the raw user-supplied timestamp. It is kept
	// unparsed so a malformed value fails in the scheduling state, not
	// at submission.
	RequestedDatetime string `db:"requested_datetime" json:"requested_datetime,omitempty"`

	State        JobState         `db:"state"         json:"state"`
	Result       *PlatformPostRef `db:"-"             json:"result,omitempty"`
	Error        *JobError        `db:"-"             json:"error,omitempty"`
	AttemptCount int              `db:"attempt_count" json:"attempt_count"`
	CreatedAt    time.Time        `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at"    json:"updated_at"`
}

// Transition moves the job to the given state, updating UpdatedAt.
// Illegal transitions, including any change to a terminal job, return
// ErrIllegalTransition.
func (j *PublishJob) Transition(to JobState) error {
	for _, next := range legalTransitions[j.State] {
		if next == to {
			j.State = to
			j.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, j.State, to)
}

// Fail transitions the job to StateFailed and records the error.
func (j *PublishJob) Fail(kind ErrorKind, message string, lastSequence int) error {
	if err := j.Transition(StateFailed); err != nil {
		return err
	}
	j.Error = &JobError{Kind: kind, Message: message, LastSequence: lastSequence}
	return nil
}

// Succeed transitions the job to StateSucceeded and records the post ref.
func (j *PublishJob) Succeed(ref *PlatformPostRef) error {
	if err := j.Transition(StateSucceeded); err != nil {
		return err
	}
	j.Result = ref
	return nil
}
