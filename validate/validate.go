// Package validate inspects a schedule, its persisted runtime state, and
// the timer facility, and reports any divergence between them. It performs
// no mutation and is safe to call speculatively; the recovery package acts
// on its findings.
package validate

import (
	"context"
	"time"

	"github.com/ringward/ringward"
	"github.com/ringward/ringward/timer"
)

// Result is the validator's verdict on one schedule
type Result struct {
	Issues []ringward.ValidationIssue
	Action ringward.RepairAction
}

// Valid reports whether no issues were found
func (r Result) Valid() bool {
	return len(r.Issues) == 0
}

// Has reports whether a specific issue was found
func (r Result) Has(issue ringward.ValidationIssue) bool {
	for _, i := range r.Issues {
		if i == issue {
			return true
		}
	}
	return false
}

// Check compares the runtime state the engine believes in against the
// schedule's constraints and the timer facility's answers. A nil state for
// an active schedule is itself an issue. Timer queries are best-effort: a
// query failure is not an issue (the adapter may be transiently unreachable)
// and the state is judged on the remaining rules.
func Check(ctx context.Context, s *ringward.Schedule, st *ringward.RuntimeState, timers timer.Adapter, now time.Time) Result {
	if err := s.Validate(); err != nil {
		// Corrupt schedules are beyond repair by rescheduling
		return Result{Action: ringward.RepairDeactivate}
	}

	var issues []ringward.ValidationIssue

	if st == nil {
		issues = append(issues, ringward.IssueMissingRuntimeState)
		return Result{Issues: issues, Action: ringward.RepairReschedule}
	}

	// A state that is neither paused nor stopped must carry a next trigger;
	// without one the schedule is dead even though a record exists
	if !st.Paused && !st.StoppedForToday && st.NextTriggerTime == nil {
		issues = append(issues, ringward.IssueMissingRuntimeState)
	}

	if st.NextTriggerTime != nil && st.NextTriggerTime.Before(now) {
		issues = append(issues, ringward.IssueStaleNextTrigger)
	}

	if !st.Paused && !st.StoppedForToday && st.NextTriggerTime != nil {
		armed, err := timers.IsArmed(ctx, s.ID, timer.RoleRing)
		if err == nil && !armed {
			issues = append(issues, ringward.IssueMissingTimerRegistration)
		}
	}

	if st.NextTriggerTime != nil {
		if !withinSchedule(s, *st.NextTriggerTime) {
			issues = append(issues, ringward.IssueWindowMismatch)
		}
	}

	if len(issues) == 0 {
		return Result{Action: ringward.RepairNone}
	}
	return Result{Issues: issues, Action: ringward.RepairReschedule}
}

// withinSchedule reports whether the instant falls on an active day inside
// the window, evaluated in the schedule's timezone
func withinSchedule(s *ringward.Schedule, t time.Time) bool {
	loc, err := s.Location()
	if err != nil {
		return false
	}
	local := t.In(loc)
	return s.DayActive(local.Weekday()) && s.WindowContains(local)
}
