package reconcile

import (
	"context"
	"time"

	"github.com/tidyhost/turnsync/internal/identity"
	"github.com/tidyhost/turnsync/internal/models"
	"github.com/tidyhost/turnsync/internal/recordstore"
)

// EvaluateRemovals walks the active records of every feed observed this
// run. Records whose UID reappeared get their missing counters reset;
// records that stayed missing are incremented and, once every safety
// condition holds, superseded by a Removed clone. A transient feed outage
// must never cancel real work, hence the count-and-grace machinery.
func (r *Reconciler) EvaluateRemovals(ctx context.Context) error {
	for feedURL := range r.tracker.ObservedFeeds() {
		records, err := r.store.ActiveByFeedURL(ctx, feedURL)
		if err != nil {
			return err
		}

		for _, rec := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			if rec.Status == models.StatusRemoved {
				continue
			}

			if r.tracker.UIDObserved(feedURL, rec.UID) {
				if rec.MissingCount > 0 {
					if err := r.resetMissing(ctx, rec); err != nil {
						return err
					}
				}
				continue
			}

			// Cross-UID rescue: the booking may have reappeared under a
			// rotated UID. Same fingerprint in this run means it is alive.
			if r.tracker.SeenFingerprint(identity.FingerprintOf(rec)) {
				r.stats.Rescued++
				continue
			}

			if err := r.recordMiss(ctx, rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Reconciler) recordMiss(ctx context.Context, rec *models.Reservation) error {
	now := r.now()
	count := rec.MissingCount + 1
	since := rec.MissingSince
	if since == nil {
		since = &now
	}

	if r.removalEligible(rec, count, since) {
		if err := r.removeRecord(ctx, rec); err != nil {
			return err
		}
		r.stats.Removed++
		return nil
	}

	fields := map[string]any{
		recordstore.FieldMissingCount: count,
	}
	if rec.MissingSince == nil {
		fields[recordstore.FieldMissingSince] = recordstore.FormatTimestamp(now)
	}
	if err := r.store.Update(ctx, rec.RecordID, fields); err != nil {
		return err
	}
	r.stats.MissingIncrements++
	return nil
}

// removalEligible applies the safety conditions. All of them must hold;
// any doubt keeps the record alive for another run.
func (r *Reconciler) removalEligible(rec *models.Reservation, count int, since *time.Time) bool {
	if count < r.cfg.MissingCountThreshold {
		return false
	}
	now := r.now()
	if since == nil || now.Sub(*since) < r.cfg.MissingGrace {
		return false
	}
	if rec.JobStatus == models.JobStatusScheduled || rec.JobStatus == models.JobStatusInProgress {
		return false
	}

	today := models.DateOnly(now.In(r.loc))
	checkIn := models.DateOnly(rec.CheckIn)
	checkOut := models.DateOnly(rec.CheckOut)

	daysToCheckIn := int(checkIn.Sub(today).Hours() / 24)
	if daysToCheckIn == 0 || daysToCheckIn == 1 {
		return false
	}
	daysToCheckOut := int(checkOut.Sub(today).Hours() / 24)
	if daysToCheckOut == 0 || daysToCheckOut == 1 {
		return false
	}
	return true
}
