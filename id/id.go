package id

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Namespace UUIDs for different entity types (UUIDv5 requires a namespace)
var (
	ScheduleNamespace = uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	RingNamespace     = uuid.MustParse("7c9e667a-7425-40de-944b-e07fc1f90ae7")
)

// GenerateScheduleID generates a deterministic ID for a schedule based on its name
func GenerateScheduleID(name string) string {
	id := uuid.NewSHA1(ScheduleNamespace, []byte(name))
	return fmt.Sprintf("sched_%s", id.String())
}

// GenerateRingID generates a deterministic ID for a ring event based on the
// schedule ID and the scheduled instant, so a replayed fire yields the same ID
func GenerateRingID(scheduleID string, scheduledAt time.Time) string {
	timeStr := scheduledAt.UTC().Format(time.RFC3339)
	combined := fmt.Sprintf("%s:%s", scheduleID, timeStr)
	id := uuid.NewSHA1(RingNamespace, []byte(combined))
	return fmt.Sprintf("ring_%s", id.String())
}
