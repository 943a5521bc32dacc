package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ringward/ringward"
	"github.com/ringward/ringward/storage"
	"github.com/ringward/ringward/timer"
	"github.com/ringward/ringward/trigger"
)

// RestartReport is the structured outcome of the post-restart check
type RestartReport struct {
	ActiveScheduleFound bool
	ScheduleID          string
	StateValid          bool
	Rescheduled         bool
	Deactivated         bool
	MissedRings         int
	NextTrigger         *time.Time
	Errors              []string
}

// RestartValidator runs once per boot: it screens the active schedule for
// corruption, hands it to the recovery manager, and double-checks that the
// repaired next trigger is actually armed.
type RestartValidator struct {
	store   storage.Storage
	timers  timer.Adapter
	manager *Manager

	now func() time.Time
}

// NewRestartValidator creates a restart validator sharing the manager's
// store and timer adapter
func NewRestartValidator(store storage.Storage, timers timer.Adapter, manager *Manager) *RestartValidator {
	return &RestartValidator{
		store:   store,
		timers:  timers,
		manager: manager,
		now:     time.Now,
	}
}

// SetClock overrides the validator's clock; tests use this for determinism
func (r *RestartValidator) SetClock(now func() time.Time) {
	r.now = now
	r.manager.SetClock(now)
}

// Run performs the restart check. A transiently unavailable persistence
// layer aborts the run with the error recorded and state untouched; the
// check never half-repairs.
func (r *RestartValidator) Run(ctx context.Context) RestartReport {
	report := RestartReport{}

	activeID, err := r.store.ActiveScheduleID(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("load active schedule: %v", err))
		return report
	}
	if activeID == "" {
		// Nothing active is a successful no-op
		report.StateValid = true
		return report
	}

	report.ActiveScheduleFound = true
	report.ScheduleID = activeID

	s, err := r.store.LoadSchedule(ctx, activeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Dangling pointer: the schedule record is gone
			if clearErr := r.store.ClearActiveSchedule(ctx, activeID); clearErr != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("clear dangling active pointer: %v", clearErr))
			} else {
				report.Deactivated = true
			}
			return report
		}
		report.Errors = append(report.Errors, fmt.Sprintf("load schedule: %v", err))
		return report
	}

	// Corruption screening: a corrupt schedule is deactivated and deleted,
	// never handed to the calculator
	if err := s.Validate(); err != nil {
		report.Errors = append(report.Errors, err.Error())
		res := r.manager.Recover(ctx, activeID)
		if res.Err != nil {
			report.Errors = append(report.Errors, res.Err.Error())
			return report
		}
		if delErr := r.store.DeleteSchedule(ctx, activeID); delErr != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("delete corrupt schedule: %v", delErr))
			return report
		}
		report.Deactivated = true
		return report
	}

	// Pauses do not survive the timer facility across a reboot: a live
	// pause needs its resume wake re-armed, an expired one is lifted so
	// the recovery pass below reschedules from now
	if st, stErr := r.store.LoadRuntimeState(ctx, activeID); stErr == nil && st.Paused && st.PausedUntil != nil {
		if st.PausedUntil.After(r.now()) {
			report.StateValid = true
			armed, qErr := r.timers.IsArmed(ctx, activeID, timer.RoleResume)
			if qErr != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("confirm resume registration: %v", qErr))
				return report
			}
			if !armed {
				if err := r.timers.Arm(ctx, activeID, timer.RoleResume, *st.PausedUntil); err != nil {
					report.Errors = append(report.Errors, fmt.Sprintf("re-arm resume timer: %v", err))
					return report
				}
				report.Rescheduled = true
			}
			return report
		}

		st.Paused = false
		st.PausedUntil = nil
		if err := r.store.SaveRuntimeState(ctx, st); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("lift expired pause: %v", err))
			return report
		}
	}

	// A stop-for-today behaves the same way: still on the stopped day the
	// rollover wake is re-armed, on a later day the stop is lifted
	if st, stErr := r.store.LoadRuntimeState(ctx, activeID); stErr == nil && st.StoppedForToday {
		loc, _ := s.Location()
		now := r.now().In(loc)
		if ringward.SameDay(st.DayAnchor.In(loc), now) {
			report.StateValid = true
			wake := trigger.Next(s, ringward.StartOfDay(now).AddDate(0, 0, 1))
			if wake == nil {
				// The stop covered the one-shot cycle's last day
				if err := r.manager.deactivate(ctx, activeID); err != nil {
					report.Errors = append(report.Errors, err.Error())
					return report
				}
				report.Deactivated = true
				return report
			}
			armed, qErr := r.timers.IsArmed(ctx, activeID, timer.RoleRollover)
			if qErr != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("confirm rollover registration: %v", qErr))
				return report
			}
			if !armed {
				if err := r.timers.Arm(ctx, activeID, timer.RoleRollover, *wake); err != nil {
					report.Errors = append(report.Errors, fmt.Sprintf("re-arm rollover timer: %v", err))
					return report
				}
				report.Rescheduled = true
			}
			return report
		}

		st.StoppedForToday = false
		if err := r.store.SaveRuntimeState(ctx, st); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("lift expired stop: %v", err))
			return report
		}
	}

	report.MissedRings = r.countMissedRings(ctx, s)

	res := r.manager.Recover(ctx, activeID)
	if res.Err != nil {
		report.Errors = append(report.Errors, res.Err.Error())
		return report
	}

	report.StateValid = len(res.Issues) == 0
	report.Rescheduled = res.Action == ringward.RepairReschedule
	report.Deactivated = res.Action == ringward.RepairDeactivate
	report.NextTrigger = res.NewNextTrigger

	if report.Deactivated || res.NewNextTrigger == nil {
		return report
	}

	// Confirm the post-recovery trigger really is armed; re-arm if the
	// platform lost it between the recovery pass and now
	armed, err := r.timers.IsArmed(ctx, activeID, timer.RoleRing)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("confirm timer registration: %v", err))
		return report
	}
	if !armed {
		if err := r.timers.Arm(ctx, activeID, timer.RoleRing, *res.NewNextTrigger); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("re-arm ring timer: %v", err))
			return report
		}
		report.Rescheduled = true
	}

	return report
}

// countMissedRings reports how many rings fell between the last known
// trigger and now while the process was down; informational only
func (r *RestartValidator) countMissedRings(ctx context.Context, s *ringward.Schedule) int {
	st, err := r.store.LoadRuntimeState(ctx, s.ID)
	if err != nil || st == nil || st.LastTriggerTime == nil {
		return 0
	}

	missed, err := trigger.OccurrencesBetween(s, *st.LastTriggerTime, r.now())
	if err != nil {
		return 0
	}
	return len(missed)
}
