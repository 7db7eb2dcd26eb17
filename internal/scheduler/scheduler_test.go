package scheduler_test

import (
	"testing"
	"time"

	"github.com/gopost/publisher/internal/domain"
	"github.com/gopost/publisher/internal/scheduler"
)

var now = time.Date(2025, 8, 31, 12, 0, 0, 0, time.UTC)

func TestResolve_Draft(t *testing.T) {
	resolved, err := scheduler.Resolve(domain.ScheduleRequest{Mode: domain.ModeDraft}, now)
	if err != nil {
		t.Fatalf("resolve draft: %v", err)
	}
	if resolved.Instant != nil {
		t.Errorf("draft instant = %v, want nil", resolved.Instant)
	}
}

func TestResolve_PublishUsesNow(t *testing.T) {
	resolved, err := scheduler.Resolve(domain.ScheduleRequest{Mode: domain.ModePublish}, now)
	if err != nil {
		t.Fatalf("resolve publish: %v", err)
	}
	if resolved.Instant == nil || !resolved.Instant.Equal(now) {
		t.Errorf("publish instant = %v, want %v", resolved.Instant, now)
	}
}

func TestResolve_ScheduleConvertsToUTC(t *testing.T) {
	resolved, err := scheduler.Resolve(domain.ScheduleRequest{
		Mode:     domain.ModeSchedule,
		Datetime: "2025-09-01T09:00:00+09:00",
	}, now)
	if err != nil {
		t.Fatalf("resolve schedule: %v", err)
	}

	want := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	if !resolved.Instant.Equal(want) {
		t.Errorf("instant = %v, want %v", resolved.Instant, want)
	}

	// Lossless round trip: projecting the UTC instant back into the
	// original offset reproduces the user's local timestamp.
	jst := time.FixedZone("JST", 9*3600)
	if got := resolved.Instant.In(jst).Format(time.RFC3339); got != "2025-09-01T09:00:00+09:00" {
		t.Errorf("round trip = %s", got)
	}
}

func TestResolve_ScheduleErrors(t *testing.T) {
	testCases := []struct {
		name     string
		datetime string
	}{
		{name: "missing datetime", datetime: ""},
		{name: "naive timestamp", datetime: "2025-09-01 09:00:00"},
		{name: "past instant", datetime: "2025-08-31T11:00:00+00:00"},
		{name: "exactly now", datetime: "2025-08-31T12:00:00Z"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := scheduler.Resolve(domain.ScheduleRequest{
				Mode:     domain.ModeSchedule,
				Datetime: tc.datetime,
			}, now)
			if err == nil {
				t.Fatal("expected error")
			}
			if domain.KindOf(err) != domain.KindSchedule {
				t.Errorf("kind = %s, want ScheduleError", domain.KindOf(err))
			}
		})
	}
}
