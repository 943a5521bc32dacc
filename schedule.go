package ringward

import (
	"fmt"
	"time"

	"github.com/ringward/ringward/id"
)

// ConfigurationError marks a schedule whose definition is corrupt. It is
// always fatal to that schedule: the engine deactivates it and never retries.
type ConfigurationError struct {
	ScheduleID string
	Reason     string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("schedule %s is corrupt: %s", e.ScheduleID, e.Reason)
}

// NewSchedule creates a schedule with a deterministic ID derived from its name
func NewSchedule(name string, windowStart, windowEnd, intervalMinutes int, days []time.Weekday, mode CycleMode) *Schedule {
	now := time.Now()
	return &Schedule{
		ID:              id.GenerateScheduleID(name),
		Name:            name,
		WindowStart:     windowStart,
		WindowEnd:       windowEnd,
		IntervalMinutes: intervalMinutes,
		ActiveDays:      days,
		CycleMode:       mode,
		Timezone:        "UTC",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Validate screens the schedule for corruption. A schedule that fails this
// check must never reach the trigger calculator.
func (s *Schedule) Validate() error {
	if s.ID == "" {
		return &ConfigurationError{ScheduleID: s.ID, Reason: "empty id"}
	}
	if len(s.ActiveDays) == 0 {
		return &ConfigurationError{ScheduleID: s.ID, Reason: "no active days"}
	}
	if s.WindowStart < 0 || s.WindowEnd > MinutesPerDay {
		return &ConfigurationError{ScheduleID: s.ID, Reason: "window outside the day"}
	}
	if s.WindowStart >= s.WindowEnd {
		return &ConfigurationError{ScheduleID: s.ID, Reason: "window start not before window end"}
	}
	if s.IntervalMinutes < MinIntervalMinutes {
		return &ConfigurationError{ScheduleID: s.ID, Reason: fmt.Sprintf("interval below %d minutes", MinIntervalMinutes)}
	}
	if s.IntervalMinutes > s.WindowEnd-s.WindowStart {
		return &ConfigurationError{ScheduleID: s.ID, Reason: "interval longer than window"}
	}
	switch s.CycleMode {
	case CycleModeRepeating, CycleModeOneShot:
	default:
		return &ConfigurationError{ScheduleID: s.ID, Reason: fmt.Sprintf("unknown cycle mode %q", s.CycleMode)}
	}
	if _, err := s.Location(); err != nil {
		return &ConfigurationError{ScheduleID: s.ID, Reason: fmt.Sprintf("invalid timezone %q", s.Timezone)}
	}
	return nil
}

// Location resolves the schedule's timezone, defaulting to UTC
func (s *Schedule) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

// DayActive reports whether the schedule rings on the given weekday
func (s *Schedule) DayActive(day time.Weekday) bool {
	for _, d := range s.ActiveDays {
		if d == day {
			return true
		}
	}
	return false
}

// DistinctDayCount returns the number of distinct active weekdays. A one-shot
// cycle visits each selected day at most once, so this bounds its look-ahead.
func (s *Schedule) DistinctDayCount() int {
	seen := make(map[time.Weekday]struct{}, len(s.ActiveDays))
	for _, d := range s.ActiveDays {
		seen[d] = struct{}{}
	}
	return len(seen)
}

// WindowContains reports whether the instant's time of day falls inside
// [WindowStart, WindowEnd]. The window end itself is a permitted ring.
func (s *Schedule) WindowContains(t time.Time) bool {
	m := MinuteOfDay(t)
	return m >= s.WindowStart && m <= s.WindowEnd
}

// MinuteOfDay returns the instant's offset in minutes since its midnight
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// StartOfDay truncates the instant to midnight in its own location
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether two instants fall on the same calendar date
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ParseClock parses a "15:04" wall-clock string into minutes since midnight
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return MinuteOfDay(t), nil
}

// FormatClock renders minutes since midnight as a "15:04" wall-clock string
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
