package metrics

import (
	"sync"
	"time"
)

// Collector defines the interface for collecting engine metrics
type Collector interface {
	// Gauges - current state
	SetScheduleActive(active bool)
	SetSchedulePaused(paused bool)

	// Counters - event tracking
	IncRings(scheduleID string)
	IncDismissals(scheduleID, kind string)
	IncValidationIssues(issue string)
	IncRecoveries(action string)
	IncTimerFaults(op string)

	// Histograms - duration tracking
	ObserveRingLatency(scheduleID string, latency time.Duration)
	ObserveRecoveryDuration(duration time.Duration)

	// Query methods for testing and monitoring
	IsScheduleActive() bool
	IsSchedulePaused() bool
	GetRings(scheduleID string) int64
	GetDismissals(scheduleID, kind string) int64
	GetValidationIssues(issue string) int64
	GetRecoveries(action string) int64
	GetTimerFaults(op string) int64
}

// NoOp is a collector that does nothing
type NoOp struct{}

func NewNoOp() *NoOp {
	return &NoOp{}
}

func (m *NoOp) SetScheduleActive(active bool)                              {}
func (m *NoOp) SetSchedulePaused(paused bool)                              {}
func (m *NoOp) IncRings(scheduleID string)                                 {}
func (m *NoOp) IncDismissals(scheduleID, kind string)                      {}
func (m *NoOp) IncValidationIssues(issue string)                           {}
func (m *NoOp) IncRecoveries(action string)                                {}
func (m *NoOp) IncTimerFaults(op string)                                   {}
func (m *NoOp) ObserveRingLatency(scheduleID string, d time.Duration)      {}
func (m *NoOp) ObserveRecoveryDuration(d time.Duration)                    {}
func (m *NoOp) IsScheduleActive() bool                                     { return false }
func (m *NoOp) IsSchedulePaused() bool                                     { return false }
func (m *NoOp) GetRings(scheduleID string) int64                           { return 0 }
func (m *NoOp) GetDismissals(scheduleID, kind string) int64                { return 0 }
func (m *NoOp) GetValidationIssues(issue string) int64                     { return 0 }
func (m *NoOp) GetRecoveries(action string) int64                          { return 0 }
func (m *NoOp) GetTimerFaults(op string) int64                             { return 0 }

// InMemory is a simple in-memory collector for testing and basic monitoring
type InMemory struct {
	mu sync.RWMutex

	// Gauges
	active bool
	paused bool

	// Counters - using maps with composite keys
	rings            map[string]int64 // key: scheduleID
	dismissals       map[string]int64 // key: "scheduleID:kind"
	validationIssues map[string]int64 // key: issue
	recoveries       map[string]int64 // key: action
	timerFaults      map[string]int64 // key: op

	// Histograms - storing observations
	ringLatencies     map[string][]time.Duration // key: scheduleID
	recoveryDurations []time.Duration
}

func NewInMemory() *InMemory {
	return &InMemory{
		rings:            make(map[string]int64),
		dismissals:       make(map[string]int64),
		validationIssues: make(map[string]int64),
		recoveries:       make(map[string]int64),
		timerFaults:      make(map[string]int64),
		ringLatencies:    make(map[string][]time.Duration),
	}
}

// Gauges

func (m *InMemory) SetScheduleActive(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = active
}

func (m *InMemory) SetSchedulePaused(paused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = paused
}

func (m *InMemory) IsScheduleActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

func (m *InMemory) IsSchedulePaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

// Counters

func (m *InMemory) IncRings(scheduleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rings[scheduleID]++
}

func (m *InMemory) IncDismissals(scheduleID, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dismissals[scheduleID+":"+kind]++
}

func (m *InMemory) IncValidationIssues(issue string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validationIssues[issue]++
}

func (m *InMemory) IncRecoveries(action string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recoveries[action]++
}

func (m *InMemory) IncTimerFaults(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timerFaults[op]++
}

func (m *InMemory) GetRings(scheduleID string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rings[scheduleID]
}

func (m *InMemory) GetDismissals(scheduleID, kind string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dismissals[scheduleID+":"+kind]
}

func (m *InMemory) GetValidationIssues(issue string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.validationIssues[issue]
}

func (m *InMemory) GetRecoveries(action string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recoveries[action]
}

func (m *InMemory) GetTimerFaults(op string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.timerFaults[op]
}

// Histograms

func (m *InMemory) ObserveRingLatency(scheduleID string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ringLatencies[scheduleID] = append(m.ringLatencies[scheduleID], latency)
}

func (m *InMemory) ObserveRecoveryDuration(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recoveryDurations = append(m.recoveryDurations, duration)
}

// GetRingLatencies returns the recorded ring latencies for a schedule
func (m *InMemory) GetRingLatencies(scheduleID string) []time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	latencies := m.ringLatencies[scheduleID]
	result := make([]time.Duration, len(latencies))
	copy(result, latencies)
	return result
}

// GetRecoveryDurations returns the recorded recovery durations
func (m *InMemory) GetRecoveryDurations() []time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]time.Duration, len(m.recoveryDurations))
	copy(result, m.recoveryDurations)
	return result
}

// Reset clears all metrics (useful for testing)
func (m *InMemory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = false
	m.paused = false
	m.rings = make(map[string]int64)
	m.dismissals = make(map[string]int64)
	m.validationIssues = make(map[string]int64)
	m.recoveries = make(map[string]int64)
	m.timerFaults = make(map[string]int64)
	m.ringLatencies = make(map[string][]time.Duration)
	m.recoveryDurations = nil
}
