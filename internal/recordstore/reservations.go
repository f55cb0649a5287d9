package recordstore

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/tidyhost/turnsync/internal/interfaces"
	"github.com/tidyhost/turnsync/internal/models"
)

// ReservationRepo implements interfaces.ReservationStore on the gateway.
type ReservationRepo struct {
	store  interfaces.RecordStore
	loc    *time.Location
	logger arbor.ILogger
}

// NewReservationRepo creates a reservation repository. loc is the business
// timezone all calendar dates are interpreted in.
func NewReservationRepo(store interfaces.RecordStore, loc *time.Location, logger arbor.ILogger) interfaces.ReservationStore {
	return &ReservationRepo{
		store:  store,
		loc:    loc,
		logger: logger,
	}
}

func (r *ReservationRepo) ActiveByUID(ctx context.Context, uid, feedURL string) ([]*models.Reservation, error) {
	formula := And(
		Eq(FieldUID, uid),
		Eq(FieldFeedURL, feedURL),
		Ne(FieldStatus, string(models.StatusOld)),
	)
	return r.query(ctx, formula)
}

func (r *ReservationRepo) ActiveByFeedURL(ctx context.Context, feedURL string) ([]*models.Reservation, error) {
	formula := And(
		Eq(FieldFeedURL, feedURL),
		Ne(FieldStatus, string(models.StatusOld)),
	)
	return r.query(ctx, formula)
}

func (r *ReservationRepo) ActiveByProperty(ctx context.Context, propertyID string) ([]*models.Reservation, error) {
	// Linked-record fields expose their display value in formulas, so the
	// lookup goes through a rollup column carrying the raw record id.
	formula := And(
		Eq("Property Record ID", propertyID),
		Ne(FieldStatus, string(models.StatusOld)),
	)
	return r.query(ctx, formula)
}

func (r *ReservationRepo) ActiveByJobID(ctx context.Context, jobID string) (*models.Reservation, error) {
	formula := And(
		Eq(FieldServiceJobID, jobID),
		Ne(FieldStatus, string(models.StatusOld)),
	)
	records, err := r.query(ctx, formula)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (r *ReservationRepo) ListActive(ctx context.Context) ([]*models.Reservation, error) {
	return r.query(ctx, Ne(FieldStatus, string(models.StatusOld)))
}

func (r *ReservationRepo) ListWithJobs(ctx context.Context) ([]*models.Reservation, error) {
	formula := And(
		Ne(FieldStatus, string(models.StatusOld)),
		NotEmpty(FieldServiceJobID),
	)
	return r.query(ctx, formula)
}

func (r *ReservationRepo) Create(ctx context.Context, res *models.Reservation) (string, error) {
	rec, err := r.store.Create(ctx, TableReservations, r.fieldsFor(res))
	if err != nil {
		return "", fmt.Errorf("failed to create reservation %s: %w", res.UID, err)
	}
	res.RecordID = rec.ID
	return rec.ID, nil
}

func (r *ReservationRepo) Update(ctx context.Context, recordID string, fields map[string]any) error {
	if _, err := r.store.Update(ctx, TableReservations, recordID, fields); err != nil {
		return fmt.Errorf("failed to update reservation %s: %w", recordID, err)
	}
	return nil
}

func (r *ReservationRepo) query(ctx context.Context, formula string) ([]*models.Reservation, error) {
	records, err := r.store.List(ctx, TableReservations, interfaces.ListOptions{Formula: formula})
	if err != nil {
		return nil, fmt.Errorf("reservation query failed: %w", err)
	}

	out := make([]*models.Reservation, 0, len(records))
	for i := range records {
		out = append(out, r.FromRecord(&records[i]))
	}
	return out, nil
}

// FromRecord maps a raw store record into the domain model.
func (r *ReservationRepo) FromRecord(rec *interfaces.Record) *models.Reservation {
	f := rec.Fields

	res := &models.Reservation{
		RecordID:    rec.ID,
		UID:         getString(f, FieldUID),
		FeedURL:     getString(f, FieldFeedURL),
		EntrySource: getString(f, FieldEntrySource),

		CheckIn:  getDate(f, FieldCheckIn, r.loc),
		CheckOut: getDate(f, FieldCheckOut, r.loc),

		EntryType:   models.EntryType(getString(f, FieldEntryType)),
		ServiceType: models.ServiceType(getString(f, FieldServiceType)),
		Status:      models.Status(getString(f, FieldStatus)),
		BlockType:   getString(f, FieldBlockType),

		SameDayTurnover:  getBool(f, FieldSameDay),
		OverlappingDates: getBool(f, FieldOverlapping),
		OwnerArriving:    getBool(f, FieldOwnerArriving),
		LongTermGuest:    getBool(f, FieldLongTermGuest),

		SupplierInfo: getString(f, FieldSupplierInfo),

		MissingCount: getInt(f, FieldMissingCount),
		MissingSince: getTimestamp(f, FieldMissingSince),
		LastSeen:     getTimestamp(f, FieldLastSeen),

		ServiceJobID:         getString(f, FieldServiceJobID),
		ServiceAppointmentID: getString(f, FieldServiceAppointmentID),
		JobStatus:            models.JobStatus(getString(f, FieldJobStatus)),

		ScheduledServiceTime: getTimestamp(f, FieldScheduledServiceTime),
		FinalServiceTime:     getTimestamp(f, FieldFinalServiceTime),

		CustomInstructions:     getString(f, FieldCustomInstructions),
		ServiceLineDescription: getString(f, FieldServiceLineDescription),

		SyncStatus:          models.SyncStatus(getString(f, FieldSyncStatus)),
		SyncDetails:         getString(f, FieldSyncDetails),
		ScheduleSyncDetails: getString(f, FieldScheduleSyncDetails),
	}

	if links := getStringSlice(f, FieldProperty); len(links) > 0 {
		res.PropertyID = links[0]
	}

	switch getString(f, FieldSameDayOverride) {
	case "Yes":
		v := true
		res.SameDayOverride = &v
	case "No":
		v := false
		res.SameDayOverride = &v
	}

	if t := getTimestamp(f, FieldLastUpdated); t != nil {
		res.LastUpdated = *t
	} else {
		res.LastUpdated = rec.CreatedTime
	}

	return res
}

// fieldsFor builds the writable field map for a create. The formula field
// (Final Service Time) is owned by the store and never written.
func (r *ReservationRepo) fieldsFor(res *models.Reservation) map[string]any {
	f := map[string]any{
		FieldUID:         res.UID,
		FieldFeedURL:     res.FeedURL,
		FieldEntrySource: res.EntrySource,
		FieldCheckIn:     formatDate(res.CheckIn),
		FieldCheckOut:    formatDate(res.CheckOut),
		FieldEntryType:   string(res.EntryType),
		FieldServiceType: string(res.ServiceType),
		FieldStatus:      string(res.Status),
		FieldLastUpdated: formatTimestamp(res.LastUpdated),
	}

	if res.PropertyID != "" {
		f[FieldProperty] = []string{res.PropertyID}
	}
	if res.BlockType != "" {
		f[FieldBlockType] = res.BlockType
	}
	if res.SupplierInfo != "" {
		f[FieldSupplierInfo] = res.SupplierInfo
	}
	if res.SameDayOverride != nil {
		if *res.SameDayOverride {
			f[FieldSameDayOverride] = "Yes"
		} else {
			f[FieldSameDayOverride] = "No"
		}
	}

	if res.SameDayTurnover {
		f[FieldSameDay] = true
	}
	if res.OverlappingDates {
		f[FieldOverlapping] = true
	}
	if res.OwnerArriving {
		f[FieldOwnerArriving] = true
	}
	if res.LongTermGuest {
		f[FieldLongTermGuest] = true
	}

	if res.MissingCount > 0 {
		f[FieldMissingCount] = res.MissingCount
	}
	if res.MissingSince != nil {
		f[FieldMissingSince] = formatTimestamp(*res.MissingSince)
	}
	if res.LastSeen != nil {
		f[FieldLastSeen] = formatTimestamp(*res.LastSeen)
	}

	if res.ServiceJobID != "" {
		f[FieldServiceJobID] = res.ServiceJobID
	}
	if res.ServiceAppointmentID != "" {
		f[FieldServiceAppointmentID] = res.ServiceAppointmentID
	}
	if res.JobStatus != "" {
		f[FieldJobStatus] = string(res.JobStatus)
	}
	if res.ScheduledServiceTime != nil {
		f[FieldScheduledServiceTime] = formatTimestamp(*res.ScheduledServiceTime)
	}

	if res.CustomInstructions != "" {
		f[FieldCustomInstructions] = res.CustomInstructions
	}
	if res.ServiceLineDescription != "" {
		f[FieldServiceLineDescription] = res.ServiceLineDescription
	}
	if res.SyncStatus != "" {
		f[FieldSyncStatus] = string(res.SyncStatus)
	}
	if res.SyncDetails != "" {
		f[FieldSyncDetails] = res.SyncDetails
	}
	if res.ScheduleSyncDetails != "" {
		f[FieldScheduleSyncDetails] = res.ScheduleSyncDetails
	}

	return f
}
