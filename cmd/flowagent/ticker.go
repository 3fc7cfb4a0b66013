// Copyright Contributors to the KubeTask project

package main

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// ticker fires a callback on a fixed interval using a cron schedule's
// "@every" form, so the polling cadence goes through the same
// scheduling machinery as any other cron entry.
type ticker struct {
	c *cron.Cron
}

// newTicker schedules fn to run every intervalSeconds seconds.
func newTicker(intervalSeconds int, fn func()) (*ticker, error) {
	c := cron.New(cron.WithSeconds())
	spec := fmt.Sprintf("@every %ds", intervalSeconds)
	if _, err := c.AddFunc(spec, fn); err != nil {
		return nil, fmt.Errorf("ticker: schedule: %w", err)
	}
	return &ticker{c: c}, nil
}

// Start begins firing the scheduled function in the background.
func (t *ticker) Start() {
	t.c.Start()
}

// Stop waits for any in-progress fire to finish, then halts future runs.
func (t *ticker) Stop() {
	<-t.c.Stop().Done()
}
