package ringward

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validSchedule() *Schedule {
	return &Schedule{
		ID:              "sched_1",
		Name:            "work hours",
		WindowStart:     9 * 60,
		WindowEnd:       17 * 60,
		IntervalMinutes: 30,
		ActiveDays:      []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		CycleMode:       CycleModeRepeating,
		Timezone:        "UTC",
	}
}

func TestScheduleValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Schedule)
		reason string
	}{
		{"valid", func(s *Schedule) {}, ""},
		{"empty id", func(s *Schedule) { s.ID = "" }, "empty id"},
		{"no active days", func(s *Schedule) { s.ActiveDays = nil }, "no active days"},
		{"negative window start", func(s *Schedule) { s.WindowStart = -10 }, "window outside the day"},
		{"window end past midnight", func(s *Schedule) { s.WindowEnd = MinutesPerDay + 1 }, "window outside the day"},
		{"inverted window", func(s *Schedule) { s.WindowStart, s.WindowEnd = 17 * 60, 9 * 60 }, "window start not before window end"},
		{"zero-length window", func(s *Schedule) { s.WindowEnd = s.WindowStart }, "window start not before window end"},
		{"interval too small", func(s *Schedule) { s.IntervalMinutes = 4 }, "interval below"},
		{"interval exceeds window", func(s *Schedule) { s.IntervalMinutes = 8*60 + 1 }, "interval longer than window"},
		{"interval equals window", func(s *Schedule) { s.IntervalMinutes = 8 * 60 }, ""},
		{"unknown cycle mode", func(s *Schedule) { s.CycleMode = "Sometimes" }, "unknown cycle mode"},
		{"bad timezone", func(s *Schedule) { s.Timezone = "Mars/Olympus" }, "invalid timezone"},
		{"empty timezone defaults", func(s *Schedule) { s.Timezone = "" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSchedule()
			tt.mutate(s)
			err := s.Validate()

			if tt.reason == "" {
				if err != nil {
					t.Errorf("Expected valid schedule, got %v", err)
				}
				return
			}

			var confErr *ConfigurationError
			if !errors.As(err, &confErr) {
				t.Fatalf("Expected ConfigurationError, got %v", err)
			}
			if !strings.Contains(confErr.Reason, tt.reason) {
				t.Errorf("Reason = %q, want it to mention %q", confErr.Reason, tt.reason)
			}
		})
	}
}

func TestNewScheduleDeterministicID(t *testing.T) {
	a := NewSchedule("morning", 9*60, 12*60, 15, []time.Weekday{time.Monday}, CycleModeRepeating)
	b := NewSchedule("morning", 9*60, 12*60, 15, []time.Weekday{time.Monday}, CycleModeRepeating)
	if a.ID != b.ID {
		t.Errorf("Same name should yield the same ID: %s vs %s", a.ID, b.ID)
	}
	if !strings.HasPrefix(a.ID, "sched_") {
		t.Errorf("ID %q should carry the sched_ prefix", a.ID)
	}

	c := NewSchedule("evening", 9*60, 12*60, 15, []time.Weekday{time.Monday}, CycleModeRepeating)
	if a.ID == c.ID {
		t.Error("Different names should yield different IDs")
	}
}

func TestWindowContains(t *testing.T) {
	s := validSchedule()
	day := time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		clock string
		want  bool
	}{
		{"08:59", false},
		{"09:00", true},
		{"12:30", true},
		{"17:00", true}, // the window end is itself a permitted ring
		{"17:01", false},
	}

	for _, tt := range tests {
		minute, err := ParseClock(tt.clock)
		if err != nil {
			t.Fatalf("Failed to parse %q: %v", tt.clock, err)
		}
		at := day.Add(time.Duration(minute) * time.Minute)
		if got := s.WindowContains(at); got != tt.want {
			t.Errorf("WindowContains(%s) = %v, want %v", tt.clock, got, tt.want)
		}
	}
}

func TestDayActive(t *testing.T) {
	s := validSchedule()
	if !s.DayActive(time.Monday) || s.DayActive(time.Tuesday) {
		t.Error("DayActive should reflect ActiveDays membership")
	}
}

func TestDistinctDayCount(t *testing.T) {
	s := validSchedule()
	s.ActiveDays = []time.Weekday{time.Monday, time.Monday, time.Friday}
	if got := s.DistinctDayCount(); got != 2 {
		t.Errorf("DistinctDayCount = %d, want 2 with duplicates collapsed", got)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:00", 540, false},
		{"17:00", 1020, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"9am", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q) should fail", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatClockRoundTrip(t *testing.T) {
	for _, minute := range []int{0, 540, 1020, 1439} {
		back, err := ParseClock(FormatClock(minute))
		if err != nil {
			t.Fatalf("Round trip of %d failed: %v", minute, err)
		}
		if back != minute {
			t.Errorf("Round trip of %d yielded %d", minute, back)
		}
	}
}

func TestDayHelpers(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")
	at := time.Date(2025, 11, 3, 22, 45, 12, 0, loc)

	start := StartOfDay(at)
	if start.Hour() != 0 || start.Minute() != 0 || start.Location() != loc {
		t.Errorf("StartOfDay = %s, want local midnight", start)
	}
	if !SameDay(at, start) {
		t.Error("An instant shares its day with its own midnight")
	}
	if SameDay(at, at.Add(2*time.Hour)) {
		t.Error("22:45 and 00:45 next day are different days")
	}
	if MinuteOfDay(at) != 22*60+45 {
		t.Errorf("MinuteOfDay = %d, want %d", MinuteOfDay(at), 22*60+45)
	}
}
