// Package timer abstracts the platform's exact wake-timer primitive. The
// engine only ever asks for one-shot wakes keyed by schedule ID and role;
// everything else about the platform facility is out of its hands, which is
// why all three operations are fallible and why the validator treats the
// adapter's answers as best-effort.
package timer

import (
	"context"
	"fmt"
	"time"
)

// Role names the purpose of a registration. A schedule may hold one
// registration per role at a time.
type Role string

const (
	// RoleRing is the next ring of the window
	RoleRing Role = "ring"
	// RoleResume ends a pause, tied to the runtime state's PausedUntil
	RoleResume Role = "resume"
	// RoleRollover wakes the engine at the next active day's window start
	// after a stop-for-today
	RoleRollover Role = "rollover"
)

// Adapter is the narrow boundary to the platform timer facility. Arm must be
// able to fire even in a low-power state; IsArmed is best-effort (some
// platforms can only confirm a registration exists, not its target time).
type Adapter interface {
	Arm(ctx context.Context, scheduleID string, role Role, at time.Time) error
	Cancel(ctx context.Context, scheduleID string, role Role) error
	IsArmed(ctx context.Context, scheduleID string, role Role) (bool, error)
}

// FireFunc receives wake callbacks from an adapter that drives itself
type FireFunc func(scheduleID string, role Role, at time.Time)

// Key produces the registration key for a schedule/role pair
func Key(scheduleID string, role Role) string {
	return fmt.Sprintf("%s/%s", scheduleID, role)
}

// Error wraps a platform timer failure with the operation that hit it
type Error struct {
	Op         string
	ScheduleID string
	Role       Role
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("timer %s %s: %v", e.Op, Key(e.ScheduleID, e.Role), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
