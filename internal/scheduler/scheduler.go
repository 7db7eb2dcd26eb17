// Package scheduler resolves a user-supplied schedule request into the
// single UTC instant handed to every adapter. Each adapter re-projects
// that instant into whatever representation its platform demands.
package scheduler

import (
	"time"

	"github.com/gopost/publisher/internal/domain"
)

// Resolved is the outcome of resolving a schedule request. Instant is nil
// for drafts, the current time for immediate publishing, and the converted
// user timestamp for scheduled posts. Always UTC.
type Resolved struct {
	Mode    domain.PublishMode
	Instant *time.Time
}

// Resolve computes the publish instant for a request. Schedule-mode
// timestamps must carry an explicit UTC offset and be strictly in the
// future relative to nowUTC; anything else is a ScheduleError.
func Resolve(req domain.ScheduleRequest, nowUTC time.Time) (Resolved, error) {
	switch req.Mode {
	case domain.ModeDraft:
		return Resolved{Mode: domain.ModeDraft}, nil

	case domain.ModePublish:
		instant := nowUTC.UTC()
		return Resolved{Mode: domain.ModePublish, Instant: &instant}, nil

	case domain.ModeSchedule:
		if req.Datetime == "" {
			return Resolved{}, domain.NewError(domain.KindSchedule, "datetime is required when mode is schedule")
		}
		local, err := time.Parse(time.RFC3339, req.Datetime)
		if err != nil {
			return Resolved{}, domain.WrapError(domain.KindSchedule, err, "datetime %q must be RFC3339 with an explicit UTC offset", req.Datetime)
		}
		instant := local.UTC()
		if !instant.After(nowUTC.UTC()) {
			return Resolved{}, domain.NewError(domain.KindSchedule, "scheduled instant %s is not in the future", instant.Format(time.RFC3339))
		}
		return Resolved{Mode: domain.ModeSchedule, Instant: &instant}, nil

	default:
		return Resolved{}, domain.NewError(domain.KindSchedule, "unknown publish mode %q", req.Mode)
	}
}
