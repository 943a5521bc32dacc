// Package engine drives the runtime state machine for the single active
// schedule: activation, ring handling, pause/resume, stop-for-today, and
// day rollover. Every mutation of a schedule's runtime state happens under
// that schedule's lock, and every transition that changes the next trigger
// re-arms or cancels the timer facility in the same logical step.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ringward/ringward"
	"github.com/ringward/ringward/concurrency"
	"github.com/ringward/ringward/id"
	"github.com/ringward/ringward/metrics"
	"github.com/ringward/ringward/storage"
	"github.com/ringward/ringward/timer"
	"github.com/ringward/ringward/trigger"
)

var (
	// ErrNotActive is returned for operations on a schedule with no runtime state
	ErrNotActive = errors.New("schedule is not active")
	// ErrAlreadyPaused rejects pausing a paused schedule
	ErrAlreadyPaused = errors.New("schedule is already paused")
	// ErrNotPaused rejects resuming a schedule that is not paused
	ErrNotPaused = errors.New("schedule is not paused")
	// ErrStoppedForToday rejects pausing a schedule that is stopped for the day
	ErrStoppedForToday = errors.New("schedule is stopped for today")
	// ErrPauseInPast rejects a pause that would already be over
	ErrPauseInPast = errors.New("pause end is not in the future")
	// ErrPauseBeyondWindow rejects a pause extending past the window end or
	// into another day. Such pauses are rejected outright, never truncated.
	ErrPauseBeyondWindow = errors.New("pause end falls outside today's window")
	// ErrCycleComplete is returned when activating a one-shot schedule whose
	// cycle has already run out of days
	ErrCycleComplete = errors.New("one-shot cycle is already complete")
)

// Config holds engine-level configuration
type Config struct {
	// DispatchWorkers is the number of ring-delivery workers (default 1,
	// which preserves delivery order)
	DispatchWorkers int
}

// Engine orchestrates schedule activation and runtime transitions
type Engine struct {
	store    storage.Storage
	timers   timer.Adapter
	notify   ringward.Notifier
	metrics  metrics.Collector
	locks    *concurrency.KeyedMutex
	dispatch *concurrency.Dispatcher

	now func() time.Time
}

// New creates an engine over the given collaborators
func New(store storage.Storage, timers timer.Adapter, notify ringward.Notifier, config Config) *Engine {
	return &Engine{
		store:    store,
		timers:   timers,
		notify:   notify,
		metrics:  metrics.NewNoOp(),
		locks:    concurrency.NewKeyedMutex(),
		dispatch: concurrency.NewDispatcher(config.DispatchWorkers),
		now:      time.Now,
	}
}

// SetMetrics sets the metrics collector for this engine
func (e *Engine) SetMetrics(m metrics.Collector) {
	e.metrics = m
}

// SetClock overrides the engine's clock; tests use this for determinism
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Start starts the ring-delivery workers
func (e *Engine) Start() {
	e.dispatch.Start()
}

// Stop drains pending ring deliveries and stops the workers
func (e *Engine) Stop() {
	e.dispatch.Stop()
}

// FireHandler returns the wake callback to wire into a self-driving timer
// adapter. It routes each timer role to its transition.
func (e *Engine) FireHandler() timer.FireFunc {
	return func(scheduleID string, role timer.Role, at time.Time) {
		ctx := context.Background()
		switch role {
		case timer.RoleRing:
			e.HandleFire(ctx, scheduleID, at)
		case timer.RoleResume:
			e.HandleResumeWake(ctx, scheduleID, at)
		case timer.RoleRollover:
			e.HandleRolloverWake(ctx, scheduleID, at)
		}
	}
}

// Activate makes the schedule the single active one. Any previously active
// schedule is deactivated inside the same activation boundary.
func (e *Engine) Activate(ctx context.Context, s *ringward.Schedule) error {
	if err := s.Validate(); err != nil {
		return err
	}

	e.locks.Lock(s.ID)
	defer e.locks.Unlock(s.ID)

	if err := e.store.SaveSchedule(ctx, s); err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}

	previous, err := e.store.SwapActiveSchedule(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("failed to activate schedule: %w", err)
	}
	if previous != "" {
		e.teardown(ctx, previous)
		if err := e.store.DeleteRuntimeState(ctx, previous); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to delete previous runtime state: %w", err)
		}
	}

	loc, _ := s.Location()
	now := e.now().In(loc)

	next := trigger.Next(s, now)
	if next == nil {
		// A valid schedule only runs dry when a one-shot cycle is over
		if clearErr := e.store.ClearActiveSchedule(ctx, s.ID); clearErr != nil {
			return fmt.Errorf("failed to clear exhausted schedule: %w", clearErr)
		}
		return ErrCycleComplete
	}

	st := &ringward.RuntimeState{
		ScheduleID:      s.ID,
		NextTriggerTime: next,
		DayAnchor:       ringward.StartOfDay(now),
	}
	if err := e.store.SaveRuntimeState(ctx, st); err != nil {
		return fmt.Errorf("failed to save runtime state: %w", err)
	}

	e.metrics.SetScheduleActive(true)
	e.metrics.SetSchedulePaused(false)

	if err := e.arm(ctx, s.ID, timer.RoleRing, *next); err != nil {
		// State is persisted; the validator will catch the missing
		// registration and recovery will re-arm
		return err
	}
	return nil
}

// Deactivate retires the schedule: outstanding registrations are canceled
// first, then runtime state is deleted and the active pointer cleared.
func (e *Engine) Deactivate(ctx context.Context, scheduleID string) error {
	e.locks.Lock(scheduleID)
	defer e.locks.Unlock(scheduleID)

	return e.retire(ctx, scheduleID)
}

// HandleFire processes a ring wake for the schedule. Fires that arrive
// while paused or stopped, or outside the schedule's window, are stale
// registrations and are dropped without ringing; the window check makes a
// missed cancellation self-healing.
func (e *Engine) HandleFire(ctx context.Context, scheduleID string, at time.Time) error {
	e.locks.Lock(scheduleID)
	defer e.locks.Unlock(scheduleID)

	s, err := e.store.LoadSchedule(ctx, scheduleID)
	if err != nil {
		return fmt.Errorf("failed to load schedule: %w", err)
	}
	if err := s.Validate(); err != nil {
		e.retire(ctx, scheduleID)
		return err
	}

	st, err := e.store.LoadRuntimeState(ctx, scheduleID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to load runtime state: %w", err)
		}
		// Fire without state: rebuild from scratch
		loc, _ := s.Location()
		st = &ringward.RuntimeState{
			ScheduleID: scheduleID,
			DayAnchor:  ringward.StartOfDay(at.In(loc)),
		}
	}

	loc, _ := s.Location()
	local := at.In(loc)
	rollover(st, local)

	if st.Paused || st.StoppedForToday {
		return nil
	}

	if s.DayActive(local.Weekday()) && s.WindowContains(local) {
		fired := e.now()
		st.LastTriggerTime = &at
		st.TodayTriggerCount++

		ev := ringward.RingEvent{
			ID:          id.GenerateRingID(scheduleID, at),
			ScheduleID:  scheduleID,
			ScheduledAt: at,
			FiredAt:     fired,
			RingOfDay:   st.TodayTriggerCount,
		}
		e.dispatch.Submit(func() { e.notify.Ring(ev) })

		e.metrics.IncRings(scheduleID)
		e.metrics.ObserveRingLatency(scheduleID, fired.Sub(at))
	}

	next := trigger.NextAfter(s, local)
	if next == nil {
		// One-shot cycle complete
		return e.retire(ctx, scheduleID)
	}

	st.NextTriggerTime = next
	if err := e.store.SaveRuntimeState(ctx, st); err != nil {
		return fmt.Errorf("failed to save runtime state: %w", err)
	}
	return e.arm(ctx, scheduleID, timer.RoleRing, *next)
}

// Pause suspends ringing until the given instant. The pause must end today,
// inside the window; anything else is rejected rather than reinterpreted.
func (e *Engine) Pause(ctx context.Context, scheduleID string, until time.Time) error {
	e.locks.Lock(scheduleID)
	defer e.locks.Unlock(scheduleID)

	s, st, err := e.load(ctx, scheduleID)
	if err != nil {
		return err
	}
	if st.Paused {
		return ErrAlreadyPaused
	}
	if st.StoppedForToday {
		return ErrStoppedForToday
	}

	loc, _ := s.Location()
	now := e.now().In(loc)
	until = until.In(loc)

	if !until.After(now) {
		return ErrPauseInPast
	}
	if !ringward.SameDay(now, until) {
		return ErrPauseBeyondWindow
	}
	if ringward.MinuteOfDay(until) > s.WindowEnd {
		return ErrPauseBeyondWindow
	}

	e.cancel(ctx, scheduleID, timer.RoleRing)

	st.Paused = true
	st.PausedUntil = &until
	st.NextTriggerTime = nil
	if err := e.store.SaveRuntimeState(ctx, st); err != nil {
		return fmt.Errorf("failed to save runtime state: %w", err)
	}

	e.metrics.SetSchedulePaused(true)
	return e.arm(ctx, scheduleID, timer.RoleResume, until)
}

// Resume lifts a pause immediately and reschedules from the current time
func (e *Engine) Resume(ctx context.Context, scheduleID string) error {
	e.locks.Lock(scheduleID)
	defer e.locks.Unlock(scheduleID)

	s, st, err := e.load(ctx, scheduleID)
	if err != nil {
		return err
	}
	if !st.Paused {
		return ErrNotPaused
	}

	e.cancel(ctx, scheduleID, timer.RoleResume)
	return e.resume(ctx, s, st)
}

// HandleResumeWake processes the wake armed for the end of a pause. Unlike
// Resume it tolerates finding nothing to do: the user may already have
// resumed or deactivated by the time the wake lands.
func (e *Engine) HandleResumeWake(ctx context.Context, scheduleID string, at time.Time) error {
	e.locks.Lock(scheduleID)
	defer e.locks.Unlock(scheduleID)

	s, st, err := e.load(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, ErrNotActive) {
			return nil
		}
		return err
	}
	if !st.Paused {
		return nil
	}
	return e.resume(ctx, s, st)
}

// resume clears pause flags and schedules the next ring from now
func (e *Engine) resume(ctx context.Context, s *ringward.Schedule, st *ringward.RuntimeState) error {
	loc, _ := s.Location()
	now := e.now().In(loc)

	st.Paused = false
	st.PausedUntil = nil
	rollover(st, now)

	next := trigger.Next(s, now)
	if next == nil {
		return e.retire(ctx, s.ID)
	}

	st.NextTriggerTime = next
	if err := e.store.SaveRuntimeState(ctx, st); err != nil {
		return fmt.Errorf("failed to save runtime state: %w", err)
	}

	e.metrics.SetSchedulePaused(false)
	return e.arm(ctx, s.ID, timer.RoleRing, *next)
}

// StopForToday silences the schedule until the next active day. A rollover
// wake at that day's window start brings it back; restarts and recovery
// checks also clear the flag once the day has changed.
func (e *Engine) StopForToday(ctx context.Context, scheduleID string) error {
	e.locks.Lock(scheduleID)
	defer e.locks.Unlock(scheduleID)

	s, st, err := e.load(ctx, scheduleID)
	if err != nil {
		return err
	}
	if st.Paused {
		return ErrAlreadyPaused
	}
	if st.StoppedForToday {
		return nil
	}

	e.cancel(ctx, scheduleID, timer.RoleRing)

	loc, _ := s.Location()
	now := e.now().In(loc)

	wake := trigger.Next(s, ringward.StartOfDay(now).AddDate(0, 0, 1))
	if wake == nil {
		// Stopping the last day of a one-shot cycle completes it
		return e.retire(ctx, scheduleID)
	}

	st.StoppedForToday = true
	st.NextTriggerTime = nil
	if err := e.store.SaveRuntimeState(ctx, st); err != nil {
		return fmt.Errorf("failed to save runtime state: %w", err)
	}
	return e.arm(ctx, scheduleID, timer.RoleRollover, *wake)
}

// HandleRolloverWake processes the wake armed for the day after a
// stop-for-today. It clears the stop flag and resumes normal scheduling.
func (e *Engine) HandleRolloverWake(ctx context.Context, scheduleID string, at time.Time) error {
	e.locks.Lock(scheduleID)
	defer e.locks.Unlock(scheduleID)

	s, st, err := e.load(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, ErrNotActive) {
			return nil
		}
		return err
	}

	loc, _ := s.Location()
	rollover(st, at.In(loc))

	if st.Paused || st.StoppedForToday || st.NextTriggerTime != nil {
		// Rollover did not land on a new day, or something else already
		// rescheduled; persist the anchor update and leave the rest alone
		return e.store.SaveRuntimeState(ctx, st)
	}

	next := trigger.Next(s, at.In(loc))
	if next == nil {
		return e.retire(ctx, scheduleID)
	}

	st.NextTriggerTime = next
	if err := e.store.SaveRuntimeState(ctx, st); err != nil {
		return fmt.Errorf("failed to save runtime state: %w", err)
	}
	return e.arm(ctx, scheduleID, timer.RoleRing, *next)
}

// ReportDismissal records how the notification collaborator dismissed a ring
func (e *Engine) ReportDismissal(ctx context.Context, scheduleID string, kind ringward.DismissKind) error {
	e.locks.Lock(scheduleID)
	defer e.locks.Unlock(scheduleID)

	s, st, err := e.load(ctx, scheduleID)
	if err != nil {
		return err
	}

	loc, _ := s.Location()
	rollover(st, e.now().In(loc))

	switch kind {
	case ringward.DismissManual:
		st.TodayManualDismissCount++
	case ringward.DismissAuto:
		st.TodayAutoDismissCount++
	default:
		return fmt.Errorf("unknown dismiss kind %q", kind)
	}

	e.metrics.IncDismissals(scheduleID, string(kind))
	return e.store.SaveRuntimeState(ctx, st)
}

// State returns the schedule's current runtime state
func (e *Engine) State(ctx context.Context, scheduleID string) (*ringward.RuntimeState, error) {
	st, err := e.store.LoadRuntimeState(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotActive
		}
		return nil, err
	}
	return st, nil
}

// load fetches the schedule and its runtime state, mapping a missing state
// to ErrNotActive
func (e *Engine) load(ctx context.Context, scheduleID string) (*ringward.Schedule, *ringward.RuntimeState, error) {
	s, err := e.store.LoadSchedule(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrNotActive
		}
		return nil, nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	st, err := e.store.LoadRuntimeState(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrNotActive
		}
		return nil, nil, fmt.Errorf("failed to load runtime state: %w", err)
	}
	return s, st, nil
}

// retire cancels every registration, then deletes runtime state and clears
// the active pointer, in that order. Cancellation failures are recorded and
// ignored: a leftover registration is self-healing via the fire-time check.
func (e *Engine) retire(ctx context.Context, scheduleID string) error {
	e.teardown(ctx, scheduleID)

	if err := e.store.DeleteRuntimeState(ctx, scheduleID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to delete runtime state: %w", err)
	}
	if err := e.store.ClearActiveSchedule(ctx, scheduleID); err != nil {
		return fmt.Errorf("failed to clear active schedule: %w", err)
	}

	e.metrics.SetScheduleActive(false)
	e.metrics.SetSchedulePaused(false)
	return nil
}

// teardown best-effort cancels all timer roles for a schedule
func (e *Engine) teardown(ctx context.Context, scheduleID string) {
	for _, role := range []timer.Role{timer.RoleRing, timer.RoleResume, timer.RoleRollover} {
		e.cancel(ctx, scheduleID, role)
	}
}

// arm registers a wake, recording any platform failure
func (e *Engine) arm(ctx context.Context, scheduleID string, role timer.Role, at time.Time) error {
	if err := e.timers.Arm(ctx, scheduleID, role, at); err != nil {
		e.metrics.IncTimerFaults("arm")
		return fmt.Errorf("failed to arm %s timer: %w", role, err)
	}
	return nil
}

// cancel best-effort removes a registration, recording any failure
func (e *Engine) cancel(ctx context.Context, scheduleID string, role timer.Role) {
	if err := e.timers.Cancel(ctx, scheduleID, role); err != nil {
		e.metrics.IncTimerFaults("cancel")
	}
}

// rollover resets the per-day flags and counters when the instant has moved
// past the day the anchor marks
func rollover(st *ringward.RuntimeState, now time.Time) {
	if ringward.SameDay(st.DayAnchor.In(now.Location()), now) {
		return
	}
	st.DayAnchor = ringward.StartOfDay(now)
	st.StoppedForToday = false
	st.TodayTriggerCount = 0
	st.TodayManualDismissCount = 0
	st.TodayAutoDismissCount = 0
}
