package validate

import (
	"context"
	"testing"
	"time"

	"github.com/ringward/ringward"
	"github.com/ringward/ringward/timer"
)

func testSchedule() *ringward.Schedule {
	return &ringward.Schedule{
		ID:              "sched_1",
		Name:            "hydration",
		WindowStart:     9 * 60,
		WindowEnd:       17 * 60,
		IntervalMinutes: 30,
		ActiveDays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
		CycleMode: ringward.CycleModeRepeating,
		Timezone:  "UTC",
	}
}

// monday 2025-11-03 10:00 UTC
var now = time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)

func armedState(t *testing.T, timers *timer.Memory, next time.Time) *ringward.RuntimeState {
	t.Helper()
	if err := timers.Arm(context.Background(), "sched_1", timer.RoleRing, next); err != nil {
		t.Fatalf("Failed to arm: %v", err)
	}
	return &ringward.RuntimeState{
		ScheduleID:      "sched_1",
		NextTriggerTime: &next,
		DayAnchor:       ringward.StartOfDay(now),
	}
}

func TestCheckHealthyState(t *testing.T) {
	timers := timer.NewMemory()
	st := armedState(t, timers, now.Add(30*time.Minute))

	res := Check(context.Background(), testSchedule(), st, timers, now)
	if !res.Valid() {
		t.Errorf("Expected valid, got issues %v", res.Issues)
	}
	if res.Action != ringward.RepairNone {
		t.Errorf("Expected no repair action, got %s", res.Action)
	}
}

func TestCheckMissingRuntimeState(t *testing.T) {
	res := Check(context.Background(), testSchedule(), nil, timer.NewMemory(), now)

	if !res.Has(ringward.IssueMissingRuntimeState) {
		t.Errorf("Expected missing-runtime-state, got %v", res.Issues)
	}
	if res.Action != ringward.RepairReschedule {
		t.Errorf("Expected reschedule action, got %s", res.Action)
	}
}

func TestCheckStaleNextTrigger(t *testing.T) {
	timers := timer.NewMemory()
	st := armedState(t, timers, now.Add(-5*time.Minute))

	res := Check(context.Background(), testSchedule(), st, timers, now)
	if !res.Has(ringward.IssueStaleNextTrigger) {
		t.Errorf("Expected stale-next-trigger, got %v", res.Issues)
	}
	if res.Action != ringward.RepairReschedule {
		t.Errorf("Expected reschedule action, got %s", res.Action)
	}
}

func TestCheckMissingTimerRegistration(t *testing.T) {
	timers := timer.NewMemory()
	st := armedState(t, timers, now.Add(30*time.Minute))
	timers.Drop("sched_1", timer.RoleRing)

	res := Check(context.Background(), testSchedule(), st, timers, now)
	if !res.Has(ringward.IssueMissingTimerRegistration) {
		t.Errorf("Expected missing-timer-registration, got %v", res.Issues)
	}
}

func TestCheckPausedStateSkipsTimerQuery(t *testing.T) {
	// Paused state with no next trigger and no registration is healthy
	until := now.Add(15 * time.Minute)
	st := &ringward.RuntimeState{
		ScheduleID:  "sched_1",
		Paused:      true,
		PausedUntil: &until,
		DayAnchor:   ringward.StartOfDay(now),
	}

	res := Check(context.Background(), testSchedule(), st, timer.NewMemory(), now)
	if !res.Valid() {
		t.Errorf("Paused state should be valid, got %v", res.Issues)
	}
}

func TestCheckWindowMismatch(t *testing.T) {
	timers := timer.NewMemory()

	tests := []struct {
		name string
		next time.Time
	}{
		{"outside window", time.Date(2025, 11, 3, 19, 0, 0, 0, time.UTC)},
		{"inactive day", time.Date(2025, 11, 8, 10, 0, 0, 0, time.UTC)}, // Saturday
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := armedState(t, timers, tt.next)
			res := Check(context.Background(), testSchedule(), st, timers, now)
			if !res.Has(ringward.IssueWindowMismatch) {
				t.Errorf("Expected window-mismatch, got %v", res.Issues)
			}
		})
	}
}

func TestCheckWindowEndIsPermitted(t *testing.T) {
	timers := timer.NewMemory()
	st := armedState(t, timers, time.Date(2025, 11, 3, 17, 0, 0, 0, time.UTC))

	res := Check(context.Background(), testSchedule(), st, timers, now)
	if res.Has(ringward.IssueWindowMismatch) {
		t.Error("The final ring at the window end should not be a mismatch")
	}
}

func TestCheckCorruptSchedule(t *testing.T) {
	s := testSchedule()
	s.ActiveDays = nil

	res := Check(context.Background(), s, nil, timer.NewMemory(), now)
	if res.Action != ringward.RepairDeactivate {
		t.Errorf("Corrupt schedule should deactivate, got %s", res.Action)
	}
}

func TestCheckTimerQueryFailureIsNotAnIssue(t *testing.T) {
	timers := timer.NewMemory()
	st := armedState(t, timers, now.Add(30*time.Minute))
	timers.QueryErr = context.DeadlineExceeded

	res := Check(context.Background(), testSchedule(), st, timers, now)
	if res.Has(ringward.IssueMissingTimerRegistration) {
		t.Error("A failed timer query must not be reported as a missing registration")
	}
}

func TestCheckCollectsMultipleIssues(t *testing.T) {
	timers := timer.NewMemory()
	// Stale, unregistered, and on a Saturday all at once
	st := armedState(t, timers, time.Date(2025, 11, 1, 10, 0, 0, 0, time.UTC))
	timers.Drop("sched_1", timer.RoleRing)

	res := Check(context.Background(), testSchedule(), st, timers, now)
	if len(res.Issues) < 3 {
		t.Errorf("Expected at least 3 issues, got %v", res.Issues)
	}
}
