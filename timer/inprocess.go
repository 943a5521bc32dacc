package timer

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InProcess is an Adapter backed by in-process timers: one goroutine per
// registration that sleeps until the target instant and then invokes the
// fire callback. It cannot wake a sleeping host, so production deployments
// put a platform alarm facility behind the Adapter interface instead; this
// implementation makes the engine runnable and testable without one.
type InProcess struct {
	fire FireFunc

	mu      sync.Mutex
	pending map[string]*registration
	closed  bool
}

type registration struct {
	at     time.Time
	stopCh chan struct{}
}

// NewInProcess creates an in-process adapter delivering wakes to fire
func NewInProcess(fire FireFunc) *InProcess {
	return &InProcess{
		fire:    fire,
		pending: make(map[string]*registration),
	}
}

// Arm schedules a one-shot wake at the given instant, replacing any
// existing registration for the same schedule/role pair
func (p *InProcess) Arm(ctx context.Context, scheduleID string, role Role, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return &Error{Op: "arm", ScheduleID: scheduleID, Role: role, Err: fmt.Errorf("adapter closed")}
	}

	key := Key(scheduleID, role)
	if existing, ok := p.pending[key]; ok {
		close(existing.stopCh)
	}

	reg := &registration{at: at, stopCh: make(chan struct{})}
	p.pending[key] = reg

	go p.wait(scheduleID, role, reg)
	return nil
}

// wait sleeps until the registration's instant, then fires. A past instant
// fires immediately.
func (p *InProcess) wait(scheduleID string, role Role, reg *registration) {
	duration := time.Until(reg.at)
	if duration < 0 {
		duration = 0
	}
	timer := time.NewTimer(duration)

	select {
	case <-timer.C:
		p.mu.Lock()
		// Only fire if this registration is still the live one for its key
		live := p.pending[Key(scheduleID, role)] == reg
		if live {
			delete(p.pending, Key(scheduleID, role))
		}
		p.mu.Unlock()

		if live {
			p.fire(scheduleID, role, reg.at)
		}
	case <-reg.stopCh:
		timer.Stop()
	}
}

func (p *InProcess) Cancel(ctx context.Context, scheduleID string, role Role) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := Key(scheduleID, role)
	if reg, ok := p.pending[key]; ok {
		close(reg.stopCh)
		delete(p.pending, key)
	}
	return nil
}

func (p *InProcess) IsArmed(ctx context.Context, scheduleID string, role Role) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.pending[Key(scheduleID, role)]
	return ok, nil
}

// Close cancels every outstanding registration and rejects further arms
func (p *InProcess) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for key, reg := range p.pending {
		close(reg.stopCh)
		delete(p.pending, key)
	}
}
