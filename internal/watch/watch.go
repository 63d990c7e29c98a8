package watch

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	appLog "streamsched/internal/log"
)

// Runner is one reconciliation pass. Each tick is an independent run; an
// error is logged and the schedule keeps going.
type Runner func(ctx context.Context) error

// Run executes fn immediately, then again on every tick of the cron
// expression spec, until ctx is cancelled. It returns an error only for an
// unparseable spec.
func Run(ctx context.Context, spec string, fn Runner) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if err := fn(ctx); err != nil {
			appLog.Error("scheduled run failed", err, "spec", spec)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid watch schedule %q: %w", spec, err)
	}

	appLog.Info("watch mode", "spec", spec)
	if err := fn(ctx); err != nil {
		appLog.Error("initial run failed", err)
	}

	c.Start()
	<-ctx.Done()

	// Let an in-flight tick finish before returning.
	<-c.Stop().Done()
	return nil
}
