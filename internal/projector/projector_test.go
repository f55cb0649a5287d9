package projector

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidyhost/turnsync/internal/fieldservice"
	"github.com/tidyhost/turnsync/internal/interfaces"
	"github.com/tidyhost/turnsync/internal/models"
	"github.com/tidyhost/turnsync/internal/recordstore"
)

// fakeStore implements the subset of interfaces.ReservationStore the
// projector touches.
type fakeStore struct {
	records []*models.Reservation
	updates map[string]map[string]any
}

func newFakeStore(records ...*models.Reservation) *fakeStore {
	return &fakeStore{records: records, updates: make(map[string]map[string]any)}
}

func (s *fakeStore) ListActive(context.Context) ([]*models.Reservation, error) {
	return s.records, nil
}

func (s *fakeStore) Update(_ context.Context, recordID string, fields map[string]any) error {
	merged, ok := s.updates[recordID]
	if !ok {
		merged = make(map[string]any)
		s.updates[recordID] = merged
	}
	for k, v := range fields {
		merged[k] = v
	}
	return nil
}

func (s *fakeStore) ActiveByUID(context.Context, string, string) ([]*models.Reservation, error) {
	return nil, nil
}
func (s *fakeStore) ActiveByFeedURL(context.Context, string) ([]*models.Reservation, error) {
	return nil, nil
}
func (s *fakeStore) ActiveByProperty(context.Context, string) ([]*models.Reservation, error) {
	return nil, nil
}
func (s *fakeStore) ActiveByJobID(context.Context, string) (*models.Reservation, error) {
	return nil, nil
}
func (s *fakeStore) ListWithJobs(context.Context) ([]*models.Reservation, error) { return nil, nil }
func (s *fakeStore) Create(context.Context, *models.Reservation) (string, error) {
	return "", nil
}

// fakeFieldService is a scriptable FieldServiceClient.
type fakeFieldService struct {
	jobs        map[string]*interfaces.Job
	lineItems   map[string][]interfaces.LineItem
	createdJobs []*interfaces.CreateJobRequest
	bulkUpdates map[string][]interfaces.LineItem
	apptsByJob  map[string][]interfaces.JobAppointment
}

func newFakeFieldService() *fakeFieldService {
	return &fakeFieldService{
		jobs:        make(map[string]*interfaces.Job),
		lineItems:   make(map[string][]interfaces.LineItem),
		bulkUpdates: make(map[string][]interfaces.LineItem),
		apptsByJob:  make(map[string][]interfaces.JobAppointment),
	}
}

func (f *fakeFieldService) GetJob(_ context.Context, id string) (*interfaces.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, &fieldservice.APIError{StatusCode: http.StatusNotFound, Endpoint: "/jobs/" + id}
	}
	return job, nil
}

func (f *fakeFieldService) CreateJob(_ context.Context, req *interfaces.CreateJobRequest) (*interfaces.Job, error) {
	f.createdJobs = append(f.createdJobs, req)
	job := &interfaces.Job{ID: "job_new", WorkStatus: "scheduled", Schedule: req.Schedule}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeFieldService) ListJobLineItems(_ context.Context, jobID string) ([]interfaces.LineItem, error) {
	items := f.lineItems[jobID]
	out := make([]interfaces.LineItem, len(items))
	copy(out, items)
	return out, nil
}

func (f *fakeFieldService) BulkUpdateLineItems(_ context.Context, jobID string, items []interfaces.LineItem) error {
	f.bulkUpdates[jobID] = items
	return nil
}

func (f *fakeFieldService) ListAppointments(_ context.Context, jobID string) ([]interfaces.JobAppointment, error) {
	return f.apptsByJob[jobID], nil
}

func phoenix(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Phoenix")
	require.NoError(t, err)
	return loc
}

func newTestProjector(t *testing.T, store *fakeStore, fs *fakeFieldService) *Projector {
	t.Helper()
	p := New(store, fs, "emp_1", phoenix(t), nil)
	p.now = func() time.Time { return time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC) }
	p.sleep = func(time.Duration) {}
	return p
}

func testProperty() *models.Property {
	return &models.Property{
		ID:         "prop1",
		Name:       "Desert Rose Villa",
		CustomerID: "cust_1",
		AddressID:  "addr_1",
		TemplateJobIDs: map[models.ServiceType]string{
			models.ServiceTypeTurnover: "tmpl_1",
		},
		JobTypeIDs: map[models.ServiceType]string{
			models.ServiceTypeTurnover: "jt_1",
		},
	}
}

func eligibleRecord(loc *time.Location) *models.Reservation {
	final := time.Date(2025, 9, 5, 10, 15, 0, 0, loc)
	return &models.Reservation{
		RecordID:    "rec1",
		UID:         "uid-1",
		PropertyID:  "prop1",
		CheckIn:     time.Date(2025, 9, 1, 0, 0, 0, 0, loc),
		CheckOut:    time.Date(2025, 9, 5, 0, 0, 0, 0, loc),
		EntryType:   models.EntryTypeReservation,
		ServiceType: models.ServiceTypeTurnover,
		Status:      models.StatusNew,

		FinalServiceTime: &final,
	}
}

func TestRunProjection_CreatesJob(t *testing.T) {
	loc := phoenix(t)
	rec := eligibleRecord(loc)
	store := newFakeStore(rec)
	fs := newFakeFieldService()
	fs.lineItems["tmpl_1"] = []interfaces.LineItem{
		{ID: "li_1", Name: "Template Item", UnitPrice: 9500, Quantity: 1},
		{ID: "li_2", Name: "Supplies", UnitPrice: 500, Quantity: 1},
	}
	fs.apptsByJob["job_new"] = []interfaces.JobAppointment{{ID: "appt_9"}}

	p := newTestProjector(t, store, fs)
	stats, err := p.RunProjection(context.Background(), map[string]*models.Property{"prop1": testProperty()})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.JobsCreated)

	require.Len(t, fs.createdJobs, 1)
	req := fs.createdJobs[0]
	assert.Equal(t, "cust_1", req.CustomerID)
	assert.Equal(t, "addr_1", req.AddressID)
	assert.Equal(t, []string{"emp_1"}, req.AssignedEmployeeIDs)
	assert.Equal(t, "jt_1", req.JobFields.JobTypeID)
	require.NotNil(t, req.Schedule.ScheduledStart)
	assert.True(t, req.Schedule.ScheduledStart.Equal(*rec.FinalServiceTime))
	assert.Equal(t, time.Hour, req.Schedule.ScheduledEnd.Sub(*req.Schedule.ScheduledStart))
	assert.Zero(t, req.Schedule.ArrivalWindow)

	// Template lines cloned onto the new job, first name replaced.
	cloned := fs.bulkUpdates["job_new"]
	require.Len(t, cloned, 2)
	assert.Equal(t, "Turnover STR Next Guest Unknown", cloned[0].Name)
	assert.Empty(t, cloned[0].ID, "clones must not reuse template item ids")
	assert.Equal(t, "Supplies", cloned[1].Name)

	fields := store.updates["rec1"]
	require.NotNil(t, fields)
	assert.Equal(t, "job_new", fields[recordstore.FieldServiceJobID])
	assert.Equal(t, "appt_9", fields[recordstore.FieldServiceAppointmentID])
	assert.Equal(t, string(models.JobStatusScheduled), fields[recordstore.FieldJobStatus])
	assert.Equal(t, "Turnover STR Next Guest Unknown", fields[recordstore.FieldServiceLineDescription])
}

func TestRunProjection_SkipsIneligible(t *testing.T) {
	loc := phoenix(t)

	noFinal := eligibleRecord(loc)
	noFinal.RecordID = "rec2"
	noFinal.FinalServiceTime = nil

	removed := eligibleRecord(loc)
	removed.RecordID = "rec3"
	removed.Status = models.StatusRemoved

	unresolved := eligibleRecord(loc)
	unresolved.RecordID = "rec4"
	unresolved.PropertyID = "prop_unknown"

	store := newFakeStore(noFinal, removed, unresolved)
	fs := newFakeFieldService()

	p := newTestProjector(t, store, fs)
	stats, err := p.RunProjection(context.Background(), map[string]*models.Property{"prop1": testProperty()})
	require.NoError(t, err)
	assert.Zero(t, stats.JobsCreated)
	assert.Empty(t, fs.createdJobs)
}

func TestReconcileLines_UpdatesChangedServiceLine(t *testing.T) {
	loc := phoenix(t)
	rec := eligibleRecord(loc)
	rec.ServiceJobID = "job_5"
	rec.ServiceLineDescription = "Turnover STR Next Guest Unknown"
	rec.SameDayTurnover = true // description now differs

	store := newFakeStore(rec)
	fs := newFakeFieldService()
	fs.lineItems["job_5"] = []interfaces.LineItem{
		{ID: "li_1", Name: "use side gate | Turnover STR Next Guest Unknown"},
	}

	p := newTestProjector(t, store, fs)
	stats, err := p.ReconcileLines(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.LinesUpdated)
	assert.Empty(t, fs.createdJobs, "existing jobs are never recreated")

	updated := fs.bulkUpdates["job_5"]
	require.Len(t, updated, 1)
	assert.Equal(t, "use side gate | SAME DAY Turnover STR", updated[0].Name,
		"manual notes before the pipe survive")
	assert.Equal(t, "SAME DAY Turnover STR", store.updates["rec1"][recordstore.FieldServiceLineDescription])
}

func TestVerifySync(t *testing.T) {
	loc := phoenix(t)
	final := time.Date(2025, 9, 5, 10, 15, 0, 0, loc)

	tests := []struct {
		name        string
		scheduled   time.Time
		wantStatus  models.SyncStatus
		wantDetails bool
	}{
		{"synced", final, models.SyncStatusSynced, false},
		{"synced across zones", final.UTC(), models.SyncStatusSynced, false},
		{"wrong time", final.Add(30 * time.Minute), models.SyncStatusWrongTime, true},
		{"wrong date", final.AddDate(0, 0, 1), models.SyncStatusWrongDate, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := eligibleRecord(loc)
			rec.ServiceJobID = "job_1"
			store := newFakeStore(rec)
			fs := newFakeFieldService()
			scheduled := tt.scheduled
			fs.jobs["job_1"] = &interfaces.Job{
				ID: "job_1", WorkStatus: "scheduled",
				Schedule: interfaces.JobSchedule{ScheduledStart: &scheduled},
			}

			p := newTestProjector(t, store, fs)
			stats, err := p.VerifySync(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, stats.Verified)

			fields := store.updates["rec1"]
			require.NotNil(t, fields)
			assert.Equal(t, string(tt.wantStatus), fields[recordstore.FieldSyncStatus])

			_, hasDetails := fields[recordstore.FieldScheduleSyncDetails]
			assert.Equal(t, tt.wantDetails, hasDetails,
				"diagnostics are written only on divergence")
			assert.NotNil(t, fields[recordstore.FieldScheduledServiceTime],
				"observed time is always recorded")
		})
	}
}

func TestVerifySync_NotCreated(t *testing.T) {
	loc := phoenix(t)

	noJob := eligibleRecord(loc)
	noJob.RecordID = "rec_nojob"

	oldJob := eligibleRecord(loc)
	oldJob.RecordID = "rec_oldjob"
	oldJob.ServiceJobID = "old_job_9"

	missing := eligibleRecord(loc)
	missing.RecordID = "rec_missing"
	missing.ServiceJobID = "job_gone"

	store := newFakeStore(noJob, oldJob, missing)
	fs := newFakeFieldService()

	p := newTestProjector(t, store, fs)
	stats, err := p.VerifySync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.NotCreated)

	for _, id := range []string{"rec_nojob", "rec_oldjob", "rec_missing"} {
		fields := store.updates[id]
		require.NotNil(t, fields, id)
		assert.Equal(t, string(models.SyncStatusNotCreated), fields[recordstore.FieldSyncStatus], id)
	}
}

func TestVerifySync_NoWriteWhenStateUnchanged(t *testing.T) {
	loc := phoenix(t)
	final := time.Date(2025, 9, 5, 10, 15, 0, 0, loc)

	rec := eligibleRecord(loc)
	rec.ServiceJobID = "job_1"
	rec.SyncStatus = models.SyncStatusSynced
	observed := final
	rec.ScheduledServiceTime = &observed

	store := newFakeStore(rec)
	fs := newFakeFieldService()
	fs.jobs["job_1"] = &interfaces.Job{
		ID: "job_1", Schedule: interfaces.JobSchedule{ScheduledStart: &observed},
	}

	p := newTestProjector(t, store, fs)
	_, err := p.VerifySync(context.Background())
	require.NoError(t, err)
	assert.Empty(t, store.updates, "an already-synced record produces no writes")
}
