package reconcile

import (
	"context"

	"github.com/tidyhost/turnsync/internal/models"
	"github.com/tidyhost/turnsync/internal/recordstore"
)

// RecomputeFlags derives the per-property scheduling flags (overlapping
// dates, same-day turnover, owner arriving, long-term guest) across all
// active records and writes back only the records whose flags changed.
func (r *Reconciler) RecomputeFlags(ctx context.Context) error {
	records, err := r.store.ListActive(ctx)
	if err != nil {
		return err
	}

	byProperty := make(map[string][]*models.Reservation)
	for _, rec := range records {
		if rec.Status == models.StatusRemoved || rec.PropertyID == "" {
			continue
		}
		byProperty[rec.PropertyID] = append(byProperty[rec.PropertyID], rec)
	}

	for _, entries := range byProperty {
		for _, rec := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			if rec.EntryType != models.EntryTypeReservation {
				continue
			}

			flags := r.deriveFlags(rec, entries)
			fields := flagUpdates(rec, flags)
			if len(fields) == 0 {
				continue
			}
			if err := r.store.Update(ctx, rec.RecordID, fields); err != nil {
				return err
			}
			r.stats.FlagUpdates++
		}
	}
	return nil
}

type derivedFlags struct {
	sameDay       bool
	overlapping   bool
	ownerArriving bool
	longTerm      bool
}

func (r *Reconciler) deriveFlags(rec *models.Reservation, entries []*models.Reservation) derivedFlags {
	var flags derivedFlags

	for _, other := range entries {
		if other.RecordID == rec.RecordID {
			continue
		}
		if other.EntryType == models.EntryTypeReservation {
			if rec.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(rec.CheckOut) {
				flags.overlapping = true
			}
			if models.SameDate(other.CheckIn, rec.CheckOut) {
				flags.sameDay = true
			}
		}
	}

	flags.ownerArriving = ownerArrivesAfter(rec, entries)
	if flags.ownerArriving {
		// An owner arrival is signaled by its own flag and the service
		// time policy, never by same-day. Keep whatever value the record
		// already carries rather than overwriting it from reservations
		// alone.
		flags.sameDay = rec.SameDayTurnover
	}
	if rec.SameDayOverride != nil {
		flags.sameDay = *rec.SameDayOverride
	}

	flags.longTerm = rec.Nights() >= r.cfg.LongTermThresholdDays
	return flags
}

// ownerArrivesAfter reports whether the next entry at the property, by
// check-in on or after this record's check-out, is an owner block starting
// within one day. Maintenance blocks do not count as owner arrivals.
func ownerArrivesAfter(rec *models.Reservation, entries []*models.Reservation) bool {
	var next *models.Reservation
	for _, other := range entries {
		if other.RecordID == rec.RecordID || other.CheckIn.Before(rec.CheckOut) {
			continue
		}
		if next == nil || other.CheckIn.Before(next.CheckIn) {
			next = other
		}
	}
	if next == nil || next.EntryType != models.EntryTypeBlock {
		return false
	}
	if next.BlockType == models.BlockTypeMaintenance {
		return false
	}
	return int(models.DateOnly(next.CheckIn).Sub(models.DateOnly(rec.CheckOut)).Hours()/24) <= 1
}

// flagUpdates builds the minimal field patch for changed flags.
func flagUpdates(rec *models.Reservation, flags derivedFlags) map[string]any {
	fields := make(map[string]any)
	if rec.SameDayTurnover != flags.sameDay {
		fields[recordstore.FieldSameDay] = flags.sameDay
	}
	if rec.OverlappingDates != flags.overlapping {
		fields[recordstore.FieldOverlapping] = flags.overlapping
	}
	if rec.OwnerArriving != flags.ownerArriving {
		fields[recordstore.FieldOwnerArriving] = flags.ownerArriving
	}
	if rec.LongTermGuest != flags.longTerm {
		fields[recordstore.FieldLongTermGuest] = flags.longTerm
	}
	return fields
}
