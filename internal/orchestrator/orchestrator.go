// Package orchestrator runs the scheduled suite: CSV ingest, calendar
// ingest, reconciliation, job projection, sync verification, and line
// reconciliation, in that order. Each step is gated by the Automations
// control table and its outcome is written back there and journaled
// locally.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/tidyhost/turnsync/internal/common"
	"github.com/tidyhost/turnsync/internal/ingest/feed"
	"github.com/tidyhost/turnsync/internal/interfaces"
	"github.com/tidyhost/turnsync/internal/models"
	"github.com/tidyhost/turnsync/internal/projector"
	"github.com/tidyhost/turnsync/internal/reconcile"
	"github.com/tidyhost/turnsync/internal/webhook"
)

// Step names double as row keys in the Automations control table.
const (
	StepCSVIngest          = "CSV Ingest"
	StepCalendarIngest     = "Calendar Ingest"
	StepReconciliation     = "Reconciliation"
	StepJobProjection      = "Job Projection"
	StepSyncVerification   = "Sync Verification"
	StepLineReconciliation = "Line Reconciliation"
)

// ErrRunInProgress is returned when a suite run is requested while another
// is still executing. Runs never overlap.
var ErrRunInProgress = errors.New("suite run already in progress")

// Deps carries the orchestrator's collaborators.
type Deps struct {
	Reservations interfaces.ReservationStore
	Properties   interfaces.PropertyStore
	Automations  interfaces.AutomationStore
	Runs         interfaces.RunStorage
	Projector    *projector.Projector
	Fetcher      *feed.Fetcher
	Queue        *webhook.Queue
	Logger       arbor.ILogger
}

// Orchestrator owns the suite lifecycle and its cron schedule.
type Orchestrator struct {
	cfg         *common.Config
	store       interfaces.ReservationStore
	properties  interfaces.PropertyStore
	automations interfaces.AutomationStore
	runs        interfaces.RunStorage
	projector   *projector.Projector
	fetcher     *feed.Fetcher
	queue       *webhook.Queue
	loc         *time.Location
	logger      arbor.ILogger

	mu      sync.Mutex
	running bool
	cron    cronRunner

	now func() time.Time
}

func New(cfg *common.Config, deps Deps) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		store:       deps.Reservations,
		properties:  deps.Properties,
		automations: deps.Automations,
		runs:        deps.Runs,
		projector:   deps.Projector,
		fetcher:     deps.Fetcher,
		queue:       deps.Queue,
		loc:         cfg.BusinessLocation(),
		logger:      deps.Logger,
		now:         time.Now,
	}
}

func (o *Orchestrator) reconcileConfig() reconcile.Config {
	cfg := reconcile.DefaultConfig()
	if o.cfg.Reconcile.LongTermThresholdDays > 0 {
		cfg.LongTermThresholdDays = o.cfg.Reconcile.LongTermThresholdDays
	}
	if o.cfg.Reconcile.MissingCountThreshold > 0 {
		cfg.MissingCountThreshold = o.cfg.Reconcile.MissingCountThreshold
	}
	if o.cfg.Reconcile.MissingGraceHours > 0 {
		cfg.MissingGrace = time.Duration(o.cfg.Reconcile.MissingGraceHours) * time.Hour
	}
	return cfg
}

// RunSuite executes the full step sequence once. A step failure is
// recorded and the suite continues; only a failure to load properties
// aborts, since every step depends on them.
func (o *Orchestrator) RunSuite(ctx context.Context) (*models.RunSummary, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, ErrRunInProgress
	}
	o.running = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	timeout := time.Duration(o.cfg.Scheduler.RunTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 600 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	run := &models.RunSummary{
		ID:        uuid.NewString(),
		StartedAt: o.now(),
	}
	if o.logger != nil {
		o.logger.Info().Str("run_id", run.ID).Msg("Suite run starting")
	}

	// Webhook events spilled to disk while the queue was full get another
	// chance at the top of every run, when the workers have caught up.
	if o.queue != nil {
		if replayed, err := o.queue.ReplayOverflow(); err != nil {
			if o.logger != nil {
				o.logger.Warn().Err(err).Msg("Webhook overflow replay failed")
			}
		} else if replayed > 0 && o.logger != nil {
			o.logger.Info().Int("replayed", replayed).Msg("Webhook overflow events re-enqueued")
		}
	}

	props, err := o.properties.ListProperties(ctx)
	if err != nil {
		run.Steps = append(run.Steps, models.StepOutcome{
			Step:      "Property Load",
			StartedAt: run.StartedAt,
			Message:   statusMessage(markerFailure, err.Error()),
		})
		run.FinishedAt = o.now()
		o.saveRun(run)
		return run, err
	}

	propMap := make(map[string]*models.Property, len(props))
	propValues := make([]models.Property, 0, len(props))
	var tasks []feed.Task
	for _, p := range props {
		propMap[p.ID] = p
		propValues = append(propValues, *p)
		for _, url := range p.FeedURLs {
			if url != "" {
				tasks = append(tasks, feed.Task{PropertyID: p.ID, URL: url})
			}
		}
	}

	tracker := reconcile.NewSessionTracker()
	rec := reconcile.NewReconciler(o.store, tracker, o.reconcileConfig(), o.loc, o.logger)

	o.runStep(ctx, run, StepCSVIngest, func(ctx context.Context) (map[string]int, error) {
		return o.stepCSVIngest(ctx, rec, propValues)
	})
	o.runStep(ctx, run, StepCalendarIngest, func(ctx context.Context) (map[string]int, error) {
		return o.stepCalendarIngest(ctx, rec, tracker, tasks)
	})
	o.runStep(ctx, run, StepReconciliation, func(ctx context.Context) (map[string]int, error) {
		return o.stepReconciliation(ctx, rec)
	})
	o.runStep(ctx, run, StepJobProjection, func(ctx context.Context) (map[string]int, error) {
		stats, err := o.projector.RunProjection(ctx, propMap)
		return stats.Map(), err
	})
	o.runStep(ctx, run, StepSyncVerification, func(ctx context.Context) (map[string]int, error) {
		stats, err := o.projector.VerifySync(ctx)
		return stats.Map(), err
	})
	o.runStep(ctx, run, StepLineReconciliation, func(ctx context.Context) (map[string]int, error) {
		stats, err := o.projector.ReconcileLines(ctx)
		return stats.Map(), err
	})

	run.FinishedAt = o.now()
	o.saveRun(run)

	if o.logger != nil {
		failed := 0
		for _, s := range run.Steps {
			if !s.Success {
				failed++
			}
		}
		o.logger.Info().
			Str("run_id", run.ID).
			Int("steps", len(run.Steps)).
			Int("failed", failed).
			Str("duration", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()).
			Msg("Suite run finished")
	}
	return run, nil
}

// runStep consults the Automations gate, executes the step, and records
// the outcome in both the control table and the run summary.
func (o *Orchestrator) runStep(ctx context.Context, run *models.RunSummary, name string, fn func(context.Context) (map[string]int, error)) {
	outcome := models.StepOutcome{Step: name, StartedAt: o.now()}

	enabled := true
	if o.automations != nil {
		var err error
		enabled, err = o.automations.StepEnabled(ctx, name)
		if err != nil {
			// A broken gate must not stop the suite; treat as enabled.
			enabled = true
			if o.logger != nil {
				o.logger.Warn().Err(err).Str("step", name).Msg("Automation gate check failed, running step anyway")
			}
		}
	}

	if !enabled {
		outcome.Skipped = true
		outcome.Success = true
		outcome.Message = statusMessage(markerSkipped, "disabled in control table")
		if o.logger != nil {
			o.logger.Info().Str("step", name).Msg("Step disabled, skipping")
		}
	} else {
		stats, err := fn(ctx)
		outcome.Duration = o.now().Sub(outcome.StartedAt)
		outcome.Stats = stats
		if err != nil {
			outcome.Message = statusMessage(markerFailure, err.Error())
			if o.logger != nil {
				o.logger.Error().Err(err).Str("step", name).Msg("Step failed")
			}
		} else {
			outcome.Success = true
			outcome.Message = statusMessage(markerSuccess, summarizeStats(stats))
			if o.logger != nil {
				o.logger.Info().Str("step", name).Str("result", outcome.Message).Msg("Step finished")
			}
		}
	}

	if o.automations != nil {
		if err := o.automations.RecordOutcome(ctx, name, outcome); err != nil && o.logger != nil {
			o.logger.Warn().Err(err).Str("step", name).Msg("Failed to record step outcome")
		}
	}
	run.Steps = append(run.Steps, outcome)
}

// saveRun journals the summary. The run context may already be expired,
// so the write gets its own short deadline.
func (o *Orchestrator) saveRun(run *models.RunSummary) {
	if o.runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.runs.SaveRun(ctx, run); err != nil && o.logger != nil {
		o.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to journal run summary")
	}
}
