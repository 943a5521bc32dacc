package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ringward/ringward/storage"
)

// DefaultSelfCheckSpec runs the periodic self-check every 15 minutes
const DefaultSelfCheckSpec = "*/15 * * * *"

// SelfCheck periodically re-runs the validator/recovery pair for the active
// schedule, catching divergence that arises between restarts (a missed
// wake-up, a platform that dropped a registration). The cadence is a cron
// expression so deployments can align it with their power-saving windows.
type SelfCheck struct {
	store    storage.Storage
	manager  *Manager
	schedule cron.Schedule
	stopCh   chan struct{}
}

// NewSelfCheck creates a self-check loop with the given cron cadence
func NewSelfCheck(store storage.Storage, manager *Manager, spec string) (*SelfCheck, error) {
	if spec == "" {
		spec = DefaultSelfCheckSpec
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid self-check spec %s: %w", spec, err)
	}

	return &SelfCheck{
		store:    store,
		manager:  manager,
		schedule: schedule,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start starts the self-check goroutine
func (c *SelfCheck) Start(ctx context.Context) {
	go c.run(ctx)
}

// run is the main self-check loop
func (c *SelfCheck) run(ctx context.Context) {
	for {
		next := c.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-c.stopCh:
			timer.Stop()
			return
		case <-timer.C:
			c.checkOnce(ctx)
		}
	}
}

// checkOnce recovers the active schedule, if any. Failures are swallowed:
// the next tick retries, and recovery is idempotent.
func (c *SelfCheck) checkOnce(ctx context.Context) {
	activeID, err := c.store.ActiveScheduleID(ctx)
	if err != nil || activeID == "" {
		return
	}
	c.manager.Recover(ctx, activeID)
}

// Stop stops the self-check loop
func (c *SelfCheck) Stop() {
	close(c.stopCh)
}
