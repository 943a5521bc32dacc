// Package trigger computes ring instants from a schedule definition. It is
// pure: no clocks, no I/O, safe to call concurrently.
package trigger

import (
	"fmt"
	"time"

	"github.com/ringward/ringward"
)

// MaxSearchDays bounds the forward scan for the next active day
const MaxSearchDays = 7

// MaxOccurrenceIterations is the safety limit for occurrence enumeration
const MaxOccurrenceIterations = 10000

// Next returns the next valid ring instant for from, or nil when the
// schedule has no further ring (a one-shot cycle that has run out of days,
// or a corrupt schedule).
//
// An instant exactly on the window start is returned as-is; any later
// in-window instant advances to the next slot on the interval grid. The
// ring exactly at the window end is the final permitted ring of a day, and
// anything at or after it moves the search to the next active day.
func Next(s *ringward.Schedule, from time.Time) *time.Time {
	if s.Validate() != nil {
		return nil
	}

	loc, err := s.Location()
	if err != nil {
		return nil
	}
	from = from.In(loc)

	if s.DayActive(from.Weekday()) {
		minute := ringward.MinuteOfDay(from)
		switch {
		case minute < s.WindowStart:
			t := at(from, s.WindowStart)
			return &t
		case from.Equal(at(from, s.WindowStart)):
			// Exactly on the window start: that instant is itself a ring
			return &from
		case minute < s.WindowEnd:
			elapsed := minute - s.WindowStart
			k := elapsed/s.IntervalMinutes + 1
			candidate := s.WindowStart + k*s.IntervalMinutes
			if candidate <= s.WindowEnd {
				t := at(from, candidate)
				return &t
			}
		}
	}

	return nextDayStart(s, from)
}

// nextDayStart scans forward for the next date whose weekday is active and
// returns its window start. The look-ahead is one week for repeating
// schedules; a one-shot cycle visits each selected day at most once, so its
// scan is bounded by the number of distinct active days.
func nextDayStart(s *ringward.Schedule, from time.Time) *time.Time {
	limit := MaxSearchDays
	if s.CycleMode == ringward.CycleModeOneShot {
		limit = s.DistinctDayCount()
	}

	day := ringward.StartOfDay(from)
	for i := 1; i <= limit; i++ {
		day = day.AddDate(0, 0, 1)
		if s.DayActive(day.Weekday()) {
			t := at(day, s.WindowStart)
			return &t
		}
	}
	return nil
}

// NextAfter returns the earliest valid ring instant strictly after from.
// The engine uses it to advance past a ring that just fired; on the minute
// grid this is Next of the following minute.
func NextAfter(s *ringward.Schedule, from time.Time) *time.Time {
	return Next(s, from.Add(time.Minute))
}

// OccurrencesBetween enumerates the ring instants in (start, end], in order.
// The restart validator uses it to report how many rings were missed while
// the process was down.
func OccurrencesBetween(s *ringward.Schedule, start, end time.Time) ([]time.Time, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var occurrences []time.Time
	current := start
	iterations := 0

	for {
		iterations++
		if iterations > MaxOccurrenceIterations {
			return nil, fmt.Errorf("too many iterations while computing occurrences")
		}

		next := NextAfter(s, current)
		if next == nil || next.After(end) {
			break
		}
		occurrences = append(occurrences, *next)
		current = *next
	}

	return occurrences, nil
}

// at rebuilds the given day at a minute-of-day offset in the day's location
func at(day time.Time, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minute/60, minute%60, 0, 0, day.Location())
}
