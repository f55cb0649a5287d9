package recordstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidyhost/turnsync/internal/interfaces"
	"github.com/tidyhost/turnsync/internal/models"
)

func phoenix(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Phoenix")
	require.NoError(t, err)
	return loc
}

func TestFromRecord(t *testing.T) {
	loc := phoenix(t)
	repo := &ReservationRepo{loc: loc}

	rec := &interfaces.Record{
		ID: "rec1",
		Fields: map[string]any{
			FieldUID:              "itrip_unit_1_2025-08-01_2025-08-05_smith",
			FieldFeedURL:          "itrip",
			FieldEntrySource:      "itrip",
			FieldProperty:         []any{"prop1"},
			FieldCheckIn:          "2025-08-01",
			FieldCheckOut:         "2025-08-05",
			FieldEntryType:        "Reservation",
			FieldServiceType:      "Turnover",
			FieldStatus:           "New",
			FieldSameDay:          true,
			FieldMissingCount:     float64(2),
			FieldMissingSince:     "2025-08-01T12:00:00Z",
			FieldServiceJobID:     "job_1",
			FieldJobStatus:        "Scheduled",
			FieldFinalServiceTime: "2025-08-05T10:15:00-07:00",
			FieldSameDayOverride:  "No",
			FieldLastUpdated:      "2025-08-02T08:00:00Z",
		},
	}

	r := repo.FromRecord(rec)

	assert.Equal(t, "rec1", r.RecordID)
	assert.Equal(t, "prop1", r.PropertyID)
	assert.Equal(t, models.EntryTypeReservation, r.EntryType)
	assert.Equal(t, models.StatusNew, r.Status)
	assert.True(t, r.SameDayTurnover)
	assert.Equal(t, 2, r.MissingCount)
	require.NotNil(t, r.MissingSince)
	require.NotNil(t, r.FinalServiceTime)
	require.NotNil(t, r.SameDayOverride)
	assert.False(t, *r.SameDayOverride)

	assert.Equal(t, time.Date(2025, 8, 1, 0, 0, 0, 0, loc), r.CheckIn)
	assert.Equal(t, time.Date(2025, 8, 5, 0, 0, 0, 0, loc), r.CheckOut)
	assert.Equal(t, 4, r.Nights())
}

func TestFieldsFor_OmitsFormulaField(t *testing.T) {
	loc := phoenix(t)
	repo := &ReservationRepo{loc: loc}

	final := time.Now()
	res := &models.Reservation{
		UID:              "uid1",
		FeedURL:          "https://feed.example/a.ics",
		EntrySource:      "ical",
		PropertyID:       "prop1",
		CheckIn:          time.Date(2025, 8, 1, 0, 0, 0, 0, loc),
		CheckOut:         time.Date(2025, 8, 5, 0, 0, 0, 0, loc),
		EntryType:        models.EntryTypeReservation,
		ServiceType:      models.ServiceTypeTurnover,
		Status:           models.StatusNew,
		FinalServiceTime: &final,
		LastUpdated:      time.Now(),
	}

	fields := repo.fieldsFor(res)

	_, hasFormula := fields[FieldFinalServiceTime]
	assert.False(t, hasFormula, "formula field must never be written")
	assert.Equal(t, "2025-08-01", fields[FieldCheckIn])
	assert.Equal(t, []string{"prop1"}, fields[FieldProperty])
}

func TestFromRecord_RoundTripsFields(t *testing.T) {
	loc := phoenix(t)
	repo := &ReservationRepo{loc: loc}

	override := true
	last := time.Date(2025, 8, 2, 8, 0, 0, 0, time.UTC)
	seen := time.Date(2025, 8, 3, 9, 30, 0, 0, time.UTC)
	orig := &models.Reservation{
		UID:             "evolve_unit_7_2025-09-10_2025-09-12_block",
		FeedURL:         "evolve",
		EntrySource:     "evolve_tab2",
		PropertyID:      "prop7",
		CheckIn:         time.Date(2025, 9, 10, 0, 0, 0, 0, loc),
		CheckOut:        time.Date(2025, 9, 12, 0, 0, 0, 0, loc),
		EntryType:       models.EntryTypeBlock,
		ServiceType:     models.ServiceTypeNeedsReview,
		Status:          models.StatusModified,
		BlockType:       "owner",
		SameDayOverride: &override,
		MissingCount:    3,
		LastSeen:        &seen,
		ServiceJobID:    "job_9",
		JobStatus:       models.JobStatusInProgress,
		LastUpdated:     last,
	}

	fields := repo.fieldsFor(orig)
	// Linked records arrive back as []any; checkboxes as bool.
	fields[FieldProperty] = []any{"prop7"}

	back := repo.FromRecord(&interfaces.Record{ID: "recX", Fields: fields})

	assert.Equal(t, orig.UID, back.UID)
	assert.Equal(t, orig.PropertyID, back.PropertyID)
	assert.Equal(t, orig.EntryType, back.EntryType)
	assert.Equal(t, orig.BlockType, back.BlockType)
	assert.Equal(t, orig.Status, back.Status)
	assert.Equal(t, orig.MissingCount, back.MissingCount)
	assert.Equal(t, orig.ServiceJobID, back.ServiceJobID)
	require.NotNil(t, back.SameDayOverride)
	assert.True(t, *back.SameDayOverride)
	assert.True(t, orig.CheckIn.Equal(back.CheckIn))
	assert.True(t, orig.CheckOut.Equal(back.CheckOut))
}
