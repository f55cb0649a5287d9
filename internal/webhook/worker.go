package webhook

import (
	"context"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/tidyhost/turnsync/internal/interfaces"
	"github.com/tidyhost/turnsync/internal/models"
	"github.com/tidyhost/turnsync/internal/recordstore"
)

// Processor applies one webhook event to the record store. Idempotent:
// re-applying an event writes the same values.
type Processor struct {
	store  interfaces.ReservationStore
	logger arbor.ILogger
}

func NewProcessor(store interfaces.ReservationStore, logger arbor.ILogger) *Processor {
	return &Processor{store: store, logger: logger}
}

// Apply maps the event onto the active record linked to its job id.
// Events for renamed (old_) jobs and unknown jobs are dropped silently;
// both are routine, not errors.
func (p *Processor) Apply(ctx context.Context, e models.WebhookEvent) error {
	if e.JobID == "" || strings.HasPrefix(e.JobID, models.OldJobIDPrefix) {
		return nil
	}

	rec, err := p.store.ActiveByJobID(ctx, e.JobID)
	if err != nil {
		return err
	}
	if rec == nil {
		if p.logger != nil {
			p.logger.Debug().Str("job_id", e.JobID).Msg("Webhook for unknown job dropped")
		}
		return nil
	}

	fields := make(map[string]any)
	if status, ok := models.WorkStatusMap[strings.ToLower(strings.TrimSpace(e.WorkStatus))]; ok {
		if rec.JobStatus != status {
			fields[recordstore.FieldJobStatus] = string(status)
		}
	}
	if e.ScheduledStart != nil {
		prev := rec.ScheduledServiceTime
		if prev == nil || !prev.Equal(*e.ScheduledStart) {
			fields[recordstore.FieldScheduledServiceTime] = recordstore.FormatTimestamp(*e.ScheduledStart)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return p.store.Update(ctx, rec.RecordID, fields)
}

// Pool drains the queue with a small fixed number of workers.
type Pool struct {
	queue     *Queue
	processor *Processor
	workers   int
	logger    arbor.ILogger

	wg sync.WaitGroup
}

func NewPool(queue *Queue, processor *Processor, workers int, logger arbor.ILogger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{queue: queue, processor: processor, workers: workers, logger: logger}
}

// Start launches the workers. They exit when the queue is closed or the
// context is canceled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(worker int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case e, ok := <-p.queue.Events():
					if !ok {
						return
					}
					if err := p.processor.Apply(ctx, e); err != nil && p.logger != nil {
						p.logger.Warn().Err(err).
							Int("worker", worker).
							Str("event_id", e.ID).
							Str("job_id", e.JobID).
							Msg("Webhook event failed")
					}
				}
			}
		}(i)
	}
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}
