package projector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tidyhost/turnsync/internal/fieldservice"
	"github.com/tidyhost/turnsync/internal/models"
	"github.com/tidyhost/turnsync/internal/recordstore"
)

const syncTimeLayout = "2006-01-02 15:04 MST"

// VerifySync re-fetches every linked job and compares its scheduled start
// to the record's desired service time, at minute granularity in the
// business timezone. The diagnostic message is written only on divergence
// so a later Synced state does not erase it.
func (p *Projector) VerifySync(ctx context.Context) (Stats, error) {
	records, err := p.store.ListActive(ctx)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if rec.Status == models.StatusRemoved || rec.FinalServiceTime == nil {
			continue
		}
		stats.Verified++

		if err := p.verifyRecord(ctx, rec, &stats); err != nil {
			stats.Errors++
			p.logError(err, rec, "Sync verification failed")
		}
	}
	return stats, nil
}

func (p *Projector) verifyRecord(ctx context.Context, rec *models.Reservation, stats *Stats) error {
	if !rec.HasLiveJob() {
		stats.NotCreated++
		return p.writeSyncState(ctx, rec, models.SyncStatusNotCreated, "", nil)
	}

	job, err := p.fs.GetJob(ctx, rec.ServiceJobID)
	if err != nil {
		var apiErr *fieldservice.APIError
		if errors.As(err, &apiErr) && apiErr.IsNotFound() {
			stats.NotCreated++
			return p.writeSyncState(ctx, rec, models.SyncStatusNotCreated, "", nil)
		}
		return err
	}
	if job.Schedule.ScheduledStart == nil {
		stats.NotCreated++
		return p.writeSyncState(ctx, rec, models.SyncStatusNotCreated, "", nil)
	}

	desired := rec.FinalServiceTime.In(p.loc)
	observed := job.Schedule.ScheduledStart.In(p.loc)

	status := models.SyncStatusSynced
	details := ""
	switch {
	case !models.SameDate(desired, observed):
		status = models.SyncStatusWrongDate
		details = fmt.Sprintf("Job scheduled for %s, expected %s (checked %s)",
			observed.Format(syncTimeLayout), desired.Format(syncTimeLayout),
			p.now().In(p.loc).Format(syncTimeLayout))
	case desired.Hour() != observed.Hour() || desired.Minute() != observed.Minute():
		status = models.SyncStatusWrongTime
		details = fmt.Sprintf("Job time %s differs from expected %s (checked %s)",
			observed.Format("15:04"), desired.Format("15:04"),
			p.now().In(p.loc).Format(syncTimeLayout))
	}

	switch status {
	case models.SyncStatusSynced:
		stats.Synced++
	case models.SyncStatusWrongDate:
		stats.WrongDate++
	case models.SyncStatusWrongTime:
		stats.WrongTime++
	}

	return p.writeSyncState(ctx, rec, status, details, &observed)
}

// writeSyncState patches the sync fields, skipping the write entirely when
// nothing changed.
func (p *Projector) writeSyncState(ctx context.Context, rec *models.Reservation, status models.SyncStatus, details string, observed *time.Time) error {
	fields := make(map[string]any)
	if rec.SyncStatus != status {
		fields[recordstore.FieldSyncStatus] = string(status)
	}
	if details != "" {
		fields[recordstore.FieldScheduleSyncDetails] = details
	}
	if observed != nil {
		prev := rec.ScheduledServiceTime
		if prev == nil || !prev.Equal(*observed) {
			fields[recordstore.FieldScheduledServiceTime] = recordstore.FormatTimestamp(*observed)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return p.store.Update(ctx, rec.RecordID, fields)
}
