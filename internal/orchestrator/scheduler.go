package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

// cronRunner is the slice of *cron.Cron the orchestrator uses; tests
// substitute a fake to avoid waiting on wall-clock schedules.
type cronRunner interface {
	AddFunc(spec string, cmd func()) (cron.EntryID, error)
	Start()
	Stop() context.Context
}

// Start registers the suite on its cron schedule and starts the timer.
// With the scheduler disabled in config this is a no-op; runs can still
// be triggered directly through RunSuite.
func (o *Orchestrator) Start() error {
	if !o.cfg.Scheduler.Enabled {
		if o.logger != nil {
			o.logger.Info().Msg("Scheduler disabled, suite runs on demand only")
		}
		return nil
	}

	if o.cron == nil {
		o.cron = cron.New()
	}

	spec := o.cfg.Scheduler.Cron
	if _, err := o.cron.AddFunc(spec, func() {
		if _, err := o.RunSuite(context.Background()); err != nil {
			if errors.Is(err, ErrRunInProgress) {
				if o.logger != nil {
					o.logger.Warn().Msg("Previous suite run still executing, skipping this tick")
				}
				return
			}
			if o.logger != nil {
				o.logger.Error().Err(err).Msg("Scheduled suite run failed")
			}
		}
	}); err != nil {
		return fmt.Errorf("failed to register suite schedule %q: %w", spec, err)
	}

	o.cron.Start()
	if o.logger != nil {
		o.logger.Info().Str("cron", spec).Msg("Suite scheduler started")
	}
	return nil
}

// Stop halts the schedule and waits for an in-flight run to finish.
func (o *Orchestrator) Stop() {
	if o.cron == nil {
		return
	}
	<-o.cron.Stop().Done()
	if o.logger != nil {
		o.logger.Info().Msg("Suite scheduler stopped")
	}
}
