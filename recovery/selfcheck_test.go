package recovery

import (
	"context"
	"testing"

	"github.com/ringward/ringward"
	"github.com/ringward/ringward/timer"
)

func TestNewSelfCheckSpecValidation(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, timer.NewMemory())

	if _, err := NewSelfCheck(store, m, "not a cron spec"); err == nil {
		t.Error("Invalid cadence should be rejected")
	}
	if _, err := NewSelfCheck(store, m, ""); err != nil {
		t.Errorf("Empty cadence should fall back to the default: %v", err)
	}
	if _, err := NewSelfCheck(store, m, "*/5 * * * *"); err != nil {
		t.Errorf("Five-minute cadence should parse: %v", err)
	}
}

func TestSelfCheckRepairsActiveSchedule(t *testing.T) {
	store := newFakeStore()
	timers := timer.NewMemory()
	m := NewManager(store, timers)
	m.SetClock(fixedClock(monday(10, 5)))
	ctx := context.Background()

	store.SaveSchedule(ctx, weekdaySchedule("sched_1"))
	store.SwapActiveSchedule(ctx, "sched_1")
	stale := monday(10, 0)
	store.SaveRuntimeState(ctx, &ringward.RuntimeState{
		ScheduleID:      "sched_1",
		NextTriggerTime: &stale,
		DayAnchor:       ringward.StartOfDay(monday(10, 5)),
	})

	c, err := NewSelfCheck(store, m, DefaultSelfCheckSpec)
	if err != nil {
		t.Fatalf("Failed to create self-check: %v", err)
	}
	c.checkOnce(ctx)

	st, err := store.LoadRuntimeState(ctx, "sched_1")
	if err != nil {
		t.Fatalf("Failed to load state: %v", err)
	}
	if st.NextTriggerTime == nil || !st.NextTriggerTime.Equal(monday(10, 30)) {
		t.Errorf("NextTriggerTime = %v, want %s", st.NextTriggerTime, monday(10, 30))
	}
	if armed, _ := timers.IsArmed(ctx, "sched_1", timer.RoleRing); !armed {
		t.Error("Ring timer should be armed after the check")
	}
}

func TestSelfCheckNoActiveScheduleIsQuiet(t *testing.T) {
	store := newFakeStore()
	timers := timer.NewMemory()
	c, err := NewSelfCheck(store, NewManager(store, timers), "")
	if err != nil {
		t.Fatalf("Failed to create self-check: %v", err)
	}

	c.checkOnce(context.Background())
	if timers.ArmCalls() != 0 {
		t.Errorf("Nothing should be armed, got %d calls", timers.ArmCalls())
	}
}
