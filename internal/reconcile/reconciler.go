package reconcile

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/tidyhost/turnsync/internal/identity"
	"github.com/tidyhost/turnsync/internal/interfaces"
	"github.com/tidyhost/turnsync/internal/models"
	"github.com/tidyhost/turnsync/internal/recordstore"
)

// Outcome is the per-event result of reconciliation.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeModified  Outcome = "modified"
	OutcomeDuplicate Outcome = "duplicate_ignored"
	OutcomeRemoved   Outcome = "removed"
	OutcomeSkipped   Outcome = "skipped"
)

// Config carries the reconciler thresholds.
type Config struct {
	LongTermThresholdDays int
	MissingCountThreshold int
	MissingGrace          time.Duration

	// ModificationGrace is the wait before the re-query that guards
	// against a concurrent writer having already superseded the record.
	ModificationGrace time.Duration
}

func DefaultConfig() Config {
	return Config{
		LongTermThresholdDays: 14,
		MissingCountThreshold: 3,
		MissingGrace:          12 * time.Hour,
		ModificationGrace:     100 * time.Millisecond,
	}
}

// Stats counts reconciler work within one run.
type Stats struct {
	Created           int
	Unchanged         int
	Modified          int
	DuplicatesIgnored int
	Removed           int
	Healed            int
	Skipped           int
	MissingIncrements int
	MissingResets     int
	Rescued           int
	FlagUpdates       int
}

// Map renders the stats for outcome reporting.
func (s Stats) Map() map[string]int {
	return map[string]int{
		"created":            s.Created,
		"unchanged":          s.Unchanged,
		"modified":           s.Modified,
		"duplicates_ignored": s.DuplicatesIgnored,
		"removed":            s.Removed,
		"healed":             s.Healed,
		"skipped":            s.Skipped,
		"missing_increments": s.MissingIncrements,
		"missing_resets":     s.MissingResets,
		"rescued":            s.Rescued,
		"flag_updates":       s.FlagUpdates,
	}
}

// Reconciler converges the record store onto the normalized event stream.
// A run is serial: ProcessEvent is not called concurrently.
type Reconciler struct {
	store   interfaces.ReservationStore
	tracker *SessionTracker
	cfg     Config
	loc     *time.Location
	logger  arbor.ILogger

	stats Stats
	now   func() time.Time
	sleep func(time.Duration)
}

func NewReconciler(store interfaces.ReservationStore, tracker *SessionTracker, cfg Config, loc *time.Location, logger arbor.ILogger) *Reconciler {
	return &Reconciler{
		store:   store,
		tracker: tracker,
		cfg:     cfg,
		loc:     loc,
		logger:  logger,
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// Stats returns the counters accumulated so far in this run.
func (r *Reconciler) Stats() Stats {
	return r.stats
}

// Tracker exposes the session tracker so ingest paths can pre-register
// observed UIDs for feeds that produced no events.
func (r *Reconciler) Tracker() *SessionTracker {
	return r.tracker
}

// ProcessEvent applies one normalized event to the store.
func (r *Reconciler) ProcessEvent(ctx context.Context, e *models.NormalizedEvent) (Outcome, error) {
	if !e.Removal {
		// Duplicate suppression must run before any store lookup: a
		// dynamic-UID feed would otherwise mint a fresh record for every
		// repeated appearance of the same booking.
		if !r.tracker.FirstSeen(identity.NewFingerprint(e)) {
			r.stats.DuplicatesIgnored++
			return OutcomeDuplicate, nil
		}
		r.tracker.ObserveUID(e.FeedURL, e.UID)
	}

	active, err := r.store.ActiveByUID(ctx, e.UID, e.FeedURL)
	if err != nil {
		return OutcomeSkipped, err
	}

	if e.Removal {
		if len(active) == 0 {
			r.stats.Skipped++
			return OutcomeSkipped, nil
		}
		newest, err := r.healDuplicates(ctx, active)
		if err != nil {
			return OutcomeSkipped, err
		}
		if err := r.removeRecord(ctx, newest); err != nil {
			return OutcomeSkipped, err
		}
		r.stats.Removed++
		return OutcomeRemoved, nil
	}

	if len(active) == 0 {
		if err := r.createFromEvent(ctx, e); err != nil {
			return OutcomeSkipped, err
		}
		r.stats.Created++
		return OutcomeCreated, nil
	}

	newest, err := r.healDuplicates(ctx, active)
	if err != nil {
		return OutcomeSkipped, err
	}

	if identity.SignatureOfEvent(e, newest) == identity.SignatureOfRecord(newest) {
		if newest.MissingCount > 0 {
			if err := r.resetMissing(ctx, newest); err != nil {
				return OutcomeUnchanged, err
			}
		}
		r.stats.Unchanged++
		return OutcomeUnchanged, nil
	}

	// Modification. Wait, then re-query: if another writer already
	// produced a successor, this event is stale.
	r.sleep(r.cfg.ModificationGrace)
	again, err := r.store.ActiveByUID(ctx, e.UID, e.FeedURL)
	if err != nil {
		return OutcomeSkipped, err
	}
	current := newestOf(again)
	if current == nil || current.RecordID != newest.RecordID {
		r.stats.Skipped++
		return OutcomeSkipped, nil
	}

	if err := r.modifyRecord(ctx, newest, e); err != nil {
		return OutcomeSkipped, err
	}
	r.stats.Modified++
	return OutcomeModified, nil
}

// healDuplicates demotes every active record but the newest and returns
// the survivor. Multiple active records for one (UID, feed) are a prior
// inconsistency, not a normal state.
func (r *Reconciler) healDuplicates(ctx context.Context, active []*models.Reservation) (*models.Reservation, error) {
	sortActive(active)
	newest := active[0]
	for _, dup := range active[1:] {
		if err := r.demote(ctx, dup); err != nil {
			return nil, err
		}
		r.stats.Healed++
		if r.logger != nil {
			r.logger.Warn().
				Str("uid", dup.UID).
				Str("record_id", dup.RecordID).
				Msg("Demoted duplicate active record")
		}
	}
	return newest, nil
}

// sortActive orders newest first: descending Last Updated, then ascending
// record id so ties break deterministically.
func sortActive(records []*models.Reservation) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].LastUpdated.Equal(records[j].LastUpdated) {
			return records[i].LastUpdated.After(records[j].LastUpdated)
		}
		return records[i].RecordID < records[j].RecordID
	})
}

func newestOf(records []*models.Reservation) *models.Reservation {
	if len(records) == 0 {
		return nil
	}
	sortActive(records)
	return records[0]
}

func (r *Reconciler) createFromEvent(ctx context.Context, e *models.NormalizedEvent) error {
	now := r.now()
	res := &models.Reservation{
		UID:          e.UID,
		FeedURL:      e.FeedURL,
		EntrySource:  string(e.Source),
		PropertyID:   e.PropertyID,
		CheckIn:      models.DateOnly(e.CheckIn),
		CheckOut:     models.DateOnly(e.CheckOut),
		EntryType:    e.EntryType,
		ServiceType:  e.ServiceType,
		BlockType:    e.BlockType,
		Status:       models.StatusNew,
		SupplierInfo: e.SupplierInfo,
		LastSeen:     &now,
		LastUpdated:  now,
	}
	if e.SameDayOverride != nil {
		res.SameDayOverride = e.SameDayOverride
		res.SameDayTurnover = *e.SameDayOverride
	}

	_, err := r.store.Create(ctx, res)
	return err
}

// modifyRecord supersedes pred with a clone carrying the event's content.
// The clone is created before the predecessor is demoted; a crash between
// the two writes leaves two active records, which the heal path resolves
// on the next run.
func (r *Reconciler) modifyRecord(ctx context.Context, pred *models.Reservation, e *models.NormalizedEvent) error {
	clone := r.cloneOf(pred, models.StatusModified)

	clone.PropertyID = e.PropertyID
	clone.CheckIn = models.DateOnly(e.CheckIn)
	clone.CheckOut = models.DateOnly(e.CheckOut)
	clone.EntryType = e.EntryType
	clone.ServiceType = e.ServiceType
	clone.BlockType = e.BlockType
	clone.EntrySource = string(e.Source)
	if e.Source == models.SourceITripCSV {
		clone.SupplierInfo = e.SupplierInfo
	}
	if e.SameDayOverride != nil {
		clone.SameDayOverride = e.SameDayOverride
		clone.SameDayTurnover = *e.SameDayOverride
	}

	if _, err := r.store.Create(ctx, clone); err != nil {
		return err
	}
	return r.demote(ctx, pred)
}

// removeRecord supersedes a record with a Removed clone. The clone drops
// the job link: a removed booking must never reuse its predecessor's job.
func (r *Reconciler) removeRecord(ctx context.Context, pred *models.Reservation) error {
	clone := r.cloneOf(pred, models.StatusRemoved)
	clone.ServiceJobID = ""
	clone.ServiceAppointmentID = ""
	clone.JobStatus = ""

	if _, err := r.store.Create(ctx, clone); err != nil {
		return err
	}
	if err := r.demote(ctx, pred); err != nil {
		return err
	}
	if r.logger != nil {
		r.logger.Info().
			Str("uid", pred.UID).
			Str("feed", pred.FeedURL).
			Msg("Reservation removed")
	}
	return nil
}

// cloneOf copies everything except the write-blacklist: formula output
// and the sync diagnostic fields stay behind. Job-link fields come along
// from the predecessor, which is by definition the newest active record.
func (r *Reconciler) cloneOf(pred *models.Reservation, status models.Status) *models.Reservation {
	now := r.now()
	clone := *pred
	clone.RecordID = ""
	clone.Status = status
	clone.LastUpdated = now
	clone.LastSeen = &now
	clone.MissingCount = 0
	clone.MissingSince = nil

	clone.FinalServiceTime = nil
	clone.SyncDetails = ""
	clone.ScheduleSyncDetails = ""
	return &clone
}

// demote marks a superseded record Old and renames its job id so a stray
// webhook for the old job cannot find it.
func (r *Reconciler) demote(ctx context.Context, rec *models.Reservation) error {
	fields := map[string]any{
		recordstore.FieldStatus: string(models.StatusOld),
	}
	if rec.ServiceJobID != "" && !strings.HasPrefix(rec.ServiceJobID, models.OldJobIDPrefix) {
		fields[recordstore.FieldServiceJobID] = models.OldJobIDPrefix + rec.ServiceJobID
	}
	return r.store.Update(ctx, rec.RecordID, fields)
}

func (r *Reconciler) resetMissing(ctx context.Context, rec *models.Reservation) error {
	fields := map[string]any{
		recordstore.FieldMissingCount: 0,
		recordstore.FieldMissingSince: nil,
		recordstore.FieldLastSeen:     recordstore.FormatTimestamp(r.now()),
	}
	if err := r.store.Update(ctx, rec.RecordID, fields); err != nil {
		return err
	}
	r.stats.MissingResets++
	return nil
}
