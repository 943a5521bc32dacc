// Package recovery repairs divergence between persisted runtime state and
// the platform timer facility. The validator finds the issues; the manager
// here executes the suggested repair without ever bypassing the trigger
// calculator.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ringward/ringward"
	"github.com/ringward/ringward/metrics"
	"github.com/ringward/ringward/storage"
	"github.com/ringward/ringward/timer"
	"github.com/ringward/ringward/trigger"
	"github.com/ringward/ringward/validate"
)

// Result reports the outcome of one recovery pass
type Result struct {
	ScheduleID     string
	Success        bool
	Action         ringward.RepairAction
	Issues         []ringward.ValidationIssue
	NewNextTrigger *time.Time
	Err            error
}

// Manager loads a schedule and its state, validates them, and executes the
// repair the validator suggests
type Manager struct {
	store   storage.Storage
	timers  timer.Adapter
	metrics metrics.Collector

	now func() time.Time
}

// NewManager creates a recovery manager
func NewManager(store storage.Storage, timers timer.Adapter) *Manager {
	return &Manager{
		store:   store,
		timers:  timers,
		metrics: metrics.NewNoOp(),
		now:     time.Now,
	}
}

// SetMetrics sets the metrics collector for this manager
func (m *Manager) SetMetrics(c metrics.Collector) {
	m.metrics = c
}

// SetClock overrides the manager's clock; tests use this for determinism
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Recover validates the schedule's runtime state and repairs it if needed.
// Calling it twice with no intervening change is a no-op the second time.
// Collaborator failures are caught and reported in the result, never
// leaving the runtime state half-written.
func (m *Manager) Recover(ctx context.Context, scheduleID string) Result {
	started := m.now()
	defer func() {
		m.metrics.ObserveRecoveryDuration(time.Since(started))
	}()

	s, err := m.store.LoadSchedule(ctx, scheduleID)
	if err != nil {
		return Result{ScheduleID: scheduleID, Err: fmt.Errorf("failed to load schedule: %w", err)}
	}

	st, err := m.store.LoadRuntimeState(ctx, scheduleID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return Result{ScheduleID: scheduleID, Err: fmt.Errorf("failed to load runtime state: %w", err)}
	}

	now := m.now()
	res := validate.Check(ctx, s, st, m.timers, now)
	for _, issue := range res.Issues {
		m.metrics.IncValidationIssues(string(issue))
	}

	switch res.Action {
	case ringward.RepairNone:
		next := st.NextTriggerTime
		return Result{ScheduleID: scheduleID, Success: true, Action: ringward.RepairNone, NewNextTrigger: next}

	case ringward.RepairDeactivate:
		// The schedule itself is corrupt; the calculator is never consulted
		if err := m.deactivate(ctx, scheduleID); err != nil {
			return Result{ScheduleID: scheduleID, Action: ringward.RepairDeactivate, Issues: res.Issues, Err: err}
		}
		m.metrics.IncRecoveries(string(ringward.RepairDeactivate))
		return Result{ScheduleID: scheduleID, Success: true, Action: ringward.RepairDeactivate, Issues: res.Issues}

	default:
		return m.reschedule(ctx, s, st, res.Issues, now)
	}
}

// reschedule recomputes the next trigger from the current time, writes the
// repaired state once, and re-arms the timer
func (m *Manager) reschedule(ctx context.Context, s *ringward.Schedule, st *ringward.RuntimeState, issues []ringward.ValidationIssue, now time.Time) Result {
	next := trigger.Next(s, now)
	if next == nil {
		// A valid repeating schedule cannot run dry; this is an exhausted
		// one-shot cycle, so the repair is retirement
		if err := m.deactivate(ctx, s.ID); err != nil {
			return Result{ScheduleID: s.ID, Action: ringward.RepairDeactivate, Issues: issues, Err: err}
		}
		m.metrics.IncRecoveries(string(ringward.RepairDeactivate))
		return Result{ScheduleID: s.ID, Success: true, Action: ringward.RepairDeactivate, Issues: issues}
	}

	loc, _ := s.Location()
	if st == nil {
		st = &ringward.RuntimeState{ScheduleID: s.ID}
	}
	st.NextTriggerTime = next
	st.Paused = false
	st.PausedUntil = nil
	st.StoppedForToday = false
	if st.DayAnchor.IsZero() || !ringward.SameDay(st.DayAnchor.In(loc), now.In(loc)) {
		st.DayAnchor = ringward.StartOfDay(now.In(loc))
		st.TodayTriggerCount = 0
		st.TodayManualDismissCount = 0
		st.TodayAutoDismissCount = 0
	}

	if err := m.store.SaveRuntimeState(ctx, st); err != nil {
		return Result{ScheduleID: s.ID, Action: ringward.RepairReschedule, Issues: issues,
			Err: fmt.Errorf("failed to save runtime state: %w", err)}
	}

	if err := m.timers.Arm(ctx, s.ID, timer.RoleRing, *next); err != nil {
		m.metrics.IncTimerFaults("arm")
		return Result{ScheduleID: s.ID, Action: ringward.RepairReschedule, Issues: issues, NewNextTrigger: next,
			Err: fmt.Errorf("failed to arm ring timer: %w", err)}
	}

	m.metrics.IncRecoveries(string(ringward.RepairReschedule))
	return Result{ScheduleID: s.ID, Success: true, Action: ringward.RepairReschedule, Issues: issues, NewNextTrigger: next}
}

// deactivate cancels registrations, then removes state and the active
// pointer, in that order
func (m *Manager) deactivate(ctx context.Context, scheduleID string) error {
	for _, role := range []timer.Role{timer.RoleRing, timer.RoleResume, timer.RoleRollover} {
		if err := m.timers.Cancel(ctx, scheduleID, role); err != nil {
			m.metrics.IncTimerFaults("cancel")
		}
	}
	if err := m.store.DeleteRuntimeState(ctx, scheduleID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to delete runtime state: %w", err)
	}
	if err := m.store.ClearActiveSchedule(ctx, scheduleID); err != nil {
		return fmt.Errorf("failed to clear active schedule: %w", err)
	}
	m.metrics.SetScheduleActive(false)
	m.metrics.SetSchedulePaused(false)
	return nil
}
