package timer

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-memory Adapter that records registrations without ever
// firing them. Tests and dry runs use it to observe what the engine armed;
// its fault hooks simulate a platform that refuses or lies.
type Memory struct {
	mu          sync.RWMutex
	armed       map[string]time.Time
	armCalls    int
	cancelCalls int

	// Fault injection, nil by default
	ArmErr    error
	CancelErr error
	QueryErr  error
	// LieDisarmed makes IsArmed report false regardless of registrations
	LieDisarmed bool
}

// NewMemory creates an empty in-memory adapter
func NewMemory() *Memory {
	return &Memory{armed: make(map[string]time.Time)}
}

func (m *Memory) Arm(ctx context.Context, scheduleID string, role Role, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.armCalls++
	if m.ArmErr != nil {
		return &Error{Op: "arm", ScheduleID: scheduleID, Role: role, Err: m.ArmErr}
	}
	m.armed[Key(scheduleID, role)] = at
	return nil
}

func (m *Memory) Cancel(ctx context.Context, scheduleID string, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelCalls++
	if m.CancelErr != nil {
		return &Error{Op: "cancel", ScheduleID: scheduleID, Role: role, Err: m.CancelErr}
	}
	delete(m.armed, Key(scheduleID, role))
	return nil
}

func (m *Memory) IsArmed(ctx context.Context, scheduleID string, role Role) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.QueryErr != nil {
		return false, &Error{Op: "query", ScheduleID: scheduleID, Role: role, Err: m.QueryErr}
	}
	if m.LieDisarmed {
		return false, nil
	}
	_, ok := m.armed[Key(scheduleID, role)]
	return ok, nil
}

// ArmedAt returns the registered instant for a schedule/role pair, if any
func (m *Memory) ArmedAt(scheduleID string, role Role) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	at, ok := m.armed[Key(scheduleID, role)]
	return at, ok
}

// Drop removes a registration behind the engine's back, simulating a
// platform that lost the wake (the divergence the validator exists to catch)
func (m *Memory) Drop(scheduleID string, role Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.armed, Key(scheduleID, role))
}

// ArmCalls returns how many times Arm was invoked
func (m *Memory) ArmCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.armCalls
}

// CancelCalls returns how many times Cancel was invoked
func (m *Memory) CancelCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cancelCalls
}

// ArmedCount returns the number of live registrations
func (m *Memory) ArmedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.armed)
}
