package ringward

import (
	"time"
)

// CycleMode determines whether a schedule keeps firing indefinitely or
// retires after one pass over its active days.
type CycleMode string

const (
	CycleModeRepeating CycleMode = "Repeating"
	CycleModeOneShot   CycleMode = "OneShot"
)

// DismissKind classifies how a ring notification was dismissed
type DismissKind string

const (
	DismissManual DismissKind = "Manual"
	DismissAuto   DismissKind = "Auto"
)

// ValidationIssue labels a divergence between persisted runtime state and
// the timer facility. Issues are transient: they are produced by the
// validator and consumed immediately by the recovery manager, never stored.
type ValidationIssue string

const (
	IssueMissingRuntimeState      ValidationIssue = "missing-runtime-state"
	IssueStaleNextTrigger         ValidationIssue = "stale-next-trigger"
	IssueMissingTimerRegistration ValidationIssue = "missing-timer-registration"
	IssueWindowMismatch           ValidationIssue = "window-mismatch"
)

// RepairAction is the validator's suggested remedy for a set of issues
type RepairAction string

const (
	RepairNone       RepairAction = "None"
	RepairReschedule RepairAction = "Recompute_And_Reschedule"
	RepairDeactivate RepairAction = "Deactivate"
)

// MinutesPerDay is the upper bound for window offsets (minute resolution)
const MinutesPerDay = 24 * 60

// MinIntervalMinutes is the smallest ring interval a schedule may declare
const MinIntervalMinutes = 5

// Schedule is the immutable definition of a recurring ring window: rings
// fire every IntervalMinutes inside [WindowStart, WindowEnd] on each day in
// ActiveDays. Window offsets are minutes since local midnight.
type Schedule struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	WindowStart     int            `json:"window_start"`
	WindowEnd       int            `json:"window_end"`
	IntervalMinutes int            `json:"interval_minutes"`
	ActiveDays      []time.Weekday `json:"active_days"`
	CycleMode       CycleMode      `json:"cycle_mode"`
	Timezone        string         `json:"timezone"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// RuntimeState is the mutable, persisted record tracking an active
// schedule's trigger/pause/stop status. At most one schedule has an active
// RuntimeState; the activation boundary enforces that, not this type.
type RuntimeState struct {
	ScheduleID      string     `json:"schedule_id"`
	LastTriggerTime *time.Time `json:"last_trigger_time,omitempty"`
	NextTriggerTime *time.Time `json:"next_trigger_time,omitempty"`
	Paused          bool       `json:"paused"`
	PausedUntil     *time.Time `json:"paused_until,omitempty"`
	StoppedForToday bool       `json:"stopped_for_today"`
	DayAnchor       time.Time  `json:"day_anchor"`

	// Per-day counters, reset when DayAnchor rolls over
	TodayTriggerCount       int `json:"today_trigger_count"`
	TodayManualDismissCount int `json:"today_manual_dismiss_count"`
	TodayAutoDismissCount   int `json:"today_auto_dismiss_count"`

	UpdatedAt time.Time `json:"updated_at"`
}

// RingEvent is delivered to the Notifier when a schedule fires
type RingEvent struct {
	ID          string    `json:"id"`
	ScheduleID  string    `json:"schedule_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	FiredAt     time.Time `json:"fired_at"`
	RingOfDay   int       `json:"ring_of_day"`
}

// Notifier is the downstream notification/UI collaborator. Presenting the
// ring and reporting the dismissal kind back to the engine is its job.
type Notifier interface {
	Ring(ev RingEvent)
}

// NotifierFunc adapts a plain function to the Notifier interface
type NotifierFunc func(ev RingEvent)

func (f NotifierFunc) Ring(ev RingEvent) { f(ev) }
