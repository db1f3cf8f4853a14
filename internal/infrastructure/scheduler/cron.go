package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"newscrawler/internal/ports"
)

// CronScheduler runs recurring jobs on standard cron expressions.
type CronScheduler struct {
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler evaluating specs in the given location.
func NewCronScheduler(loc *time.Location) *CronScheduler {
	return &CronScheduler{cron: cron.New(cron.WithLocation(loc))}
}

// Add registers a job under a cron spec.
func (c *CronScheduler) Add(spec string, job func()) error {
	_, err := c.cron.AddFunc(spec, job)
	return err
}

// Start begins evaluating registered specs in a background goroutine.
func (c *CronScheduler) Start() {
	c.cron.Start()
}

// Stop halts scheduling and waits for running jobs, bounded by ctx.
func (c *CronScheduler) Stop(ctx context.Context) error {
	select {
	case <-c.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
