// Package storage defines the persistence boundary for schedules and their
// runtime state. Each call is individually atomic; the engine never assumes
// cross-call transactions, with the single exception of the active-schedule
// swap, which implementations must perform in one transaction.
package storage

import (
	"context"
	"errors"

	"github.com/ringward/ringward"
)

// ErrNotFound is wrapped by implementations when a record does not exist
var ErrNotFound = errors.New("not found")

// Storage persists schedules, their runtime state, and the single
// active-schedule pointer
type Storage interface {
	// Schedule operations
	SaveSchedule(ctx context.Context, s *ringward.Schedule) error
	LoadSchedule(ctx context.Context, scheduleID string) (*ringward.Schedule, error)
	DeleteSchedule(ctx context.Context, scheduleID string) error
	ListSchedules(ctx context.Context) ([]*ringward.Schedule, error)

	// Runtime state operations
	SaveRuntimeState(ctx context.Context, st *ringward.RuntimeState) error
	LoadRuntimeState(ctx context.Context, scheduleID string) (*ringward.RuntimeState, error)
	DeleteRuntimeState(ctx context.Context, scheduleID string) error

	// Active-schedule pointer. At most one schedule is active at a time;
	// SwapActiveSchedule enforces that atomically and returns the previous
	// holder so the caller can tear it down.
	ActiveScheduleID(ctx context.Context) (string, error)
	SwapActiveSchedule(ctx context.Context, scheduleID string) (previous string, err error)
	ClearActiveSchedule(ctx context.Context, scheduleID string) error

	// Close closes the storage connection
	Close() error
}
