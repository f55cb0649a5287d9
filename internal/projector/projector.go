package projector

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/tidyhost/turnsync/internal/fieldservice"
	"github.com/tidyhost/turnsync/internal/interfaces"
	"github.com/tidyhost/turnsync/internal/models"
	"github.com/tidyhost/turnsync/internal/recordstore"
)

// maxLineItemLen is the effective limit on a downstream line-item name.
const maxLineItemLen = 200

// Stats counts projector work within one pass.
type Stats struct {
	JobsCreated  int
	LinesUpdated int
	Verified     int
	Synced       int
	WrongDate    int
	WrongTime    int
	NotCreated   int
	Errors       int
}

func (s Stats) Map() map[string]int {
	return map[string]int{
		"jobs_created":  s.JobsCreated,
		"lines_updated": s.LinesUpdated,
		"verified":      s.Verified,
		"synced":        s.Synced,
		"wrong_date":    s.WrongDate,
		"wrong_time":    s.WrongTime,
		"not_created":   s.NotCreated,
		"errors":        s.Errors,
	}
}

// Projector drives the downstream job system from the record store.
type Projector struct {
	store      interfaces.ReservationStore
	fs         interfaces.FieldServiceClient
	employeeID string
	loc        *time.Location
	logger     arbor.ILogger

	now   func() time.Time
	sleep func(time.Duration)
}

func New(store interfaces.ReservationStore, fs interfaces.FieldServiceClient, employeeID string, loc *time.Location, logger arbor.ILogger) *Projector {
	return &Projector{
		store:      store,
		fs:         fs,
		employeeID: employeeID,
		loc:        loc,
		logger:     logger,
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// RunProjection ensures each eligible record has a downstream job. A
// failure on one record is logged and counted, never fatal to the pass.
func (p *Projector) RunProjection(ctx context.Context, properties map[string]*models.Property) (Stats, error) {
	records, err := p.store.ListActive(ctx)
	if err != nil {
		return Stats{}, err
	}
	byProperty := groupByProperty(records)

	var stats Stats
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if rec.Status == models.StatusRemoved || rec.FinalServiceTime == nil || rec.HasLiveJob() {
			continue
		}
		prop, ok := properties[rec.PropertyID]
		if !ok {
			continue
		}

		desired := BuildServiceLine(rec, FindNextEntry(rec, byProperty[rec.PropertyID]))
		if err := p.createJob(ctx, rec, prop, desired); err != nil {
			stats.Errors++
			p.logError(err, rec, "Job creation failed")
			continue
		}
		stats.JobsCreated++
	}
	return stats, nil
}

// ReconcileLines recomputes descriptions for records that already carry a
// job and pushes changed values downstream.
func (p *Projector) ReconcileLines(ctx context.Context) (Stats, error) {
	records, err := p.store.ListActive(ctx)
	if err != nil {
		return Stats{}, err
	}
	byProperty := groupByProperty(records)

	var stats Stats
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if rec.Status == models.StatusRemoved || rec.FinalServiceTime == nil || !rec.HasLiveJob() {
			continue
		}

		desired := BuildServiceLine(rec, FindNextEntry(rec, byProperty[rec.PropertyID]))
		if desired == rec.ServiceLineDescription {
			continue
		}
		if err := p.refreshServiceLine(ctx, rec, desired); err != nil {
			stats.Errors++
			p.logError(err, rec, "Service line update failed")
			continue
		}
		stats.LinesUpdated++
	}
	return stats, nil
}

func groupByProperty(records []*models.Reservation) map[string][]*models.Reservation {
	byProperty := make(map[string][]*models.Reservation)
	for _, rec := range records {
		byProperty[rec.PropertyID] = append(byProperty[rec.PropertyID], rec)
	}
	return byProperty
}

func (p *Projector) logError(err error, rec *models.Reservation, msg string) {
	if p.logger != nil {
		p.logger.Warn().Err(err).Str("uid", rec.UID).Str("record_id", rec.RecordID).Msg(msg)
	}
}

// createJob creates the downstream job for a record, clones the property
// template's line items onto it with the service-line description as the
// first item's name, and links the result back onto the record.
func (p *Projector) createJob(ctx context.Context, rec *models.Reservation, prop *models.Property, desired string) error {
	start := *rec.FinalServiceTime
	end := start.Add(time.Hour)

	job, err := p.fs.CreateJob(ctx, &interfaces.CreateJobRequest{
		CustomerID:          prop.CustomerID,
		AddressID:           prop.AddressID,
		AssignedEmployeeIDs: []string{p.employeeID},
		Schedule: interfaces.JobSchedule{
			ScheduledStart: &start,
			ScheduledEnd:   &end,
			ArrivalWindow:  0,
		},
		JobFields: interfaces.JobFields{JobTypeID: prop.JobTypeFor(rec.ServiceType)},
	})
	if err != nil {
		return err
	}

	if err := p.cloneTemplateLines(ctx, job.ID, prop.TemplateFor(rec.ServiceType), desired); err != nil {
		p.logError(err, rec, "Template line clone failed")
	}

	apptID := p.fetchAppointmentID(ctx, job.ID)

	status := models.JobStatusUnscheduled
	if mapped, ok := models.WorkStatusMap[strings.ToLower(job.WorkStatus)]; ok {
		status = mapped
	}

	fields := map[string]any{
		recordstore.FieldServiceJobID:           job.ID,
		recordstore.FieldJobStatus:              string(status),
		recordstore.FieldServiceLineDescription: desired,
		recordstore.FieldSyncStatus:             string(models.SyncStatusSynced),
		recordstore.FieldScheduledServiceTime:   recordstore.FormatTimestamp(start),
	}
	if apptID != "" {
		fields[recordstore.FieldServiceAppointmentID] = apptID
	}
	return p.store.Update(ctx, rec.RecordID, fields)
}

func (p *Projector) cloneTemplateLines(ctx context.Context, jobID, templateJobID, desired string) error {
	if templateJobID == "" {
		return nil
	}
	items, err := p.fs.ListJobLineItems(ctx, templateJobID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	for i := range items {
		items[i].ID = ""
	}
	items[0].Name = truncateRunes(desired, maxLineItemLen)

	err = p.fs.BulkUpdateLineItems(ctx, jobID, items)
	if err == nil {
		return nil
	}

	// A validation rejection usually means the name is still too long for
	// the downstream field; retry once with a harder cut.
	var apiErr *fieldservice.APIError
	if errors.As(err, &apiErr) {
		items[0].Name = truncateRunes(desired, maxLineItemLen/2)
		return p.fs.BulkUpdateLineItems(ctx, jobID, items)
	}
	return err
}

// fetchAppointmentID tries twice; the appointment is created downstream
// shortly after the job and may not be visible immediately.
func (p *Projector) fetchAppointmentID(ctx context.Context, jobID string) string {
	for attempt := 0; attempt < 2; attempt++ {
		appts, err := p.fs.ListAppointments(ctx, jobID)
		if err == nil && len(appts) > 0 {
			return appts[0].ID
		}
		if attempt == 0 {
			p.sleep(500 * time.Millisecond)
		}
	}
	return ""
}

// refreshServiceLine writes the new description to the record and rewrites
// the auto segment of the downstream line item.
func (p *Projector) refreshServiceLine(ctx context.Context, rec *models.Reservation, desired string) error {
	if err := p.store.Update(ctx, rec.RecordID, map[string]any{
		recordstore.FieldServiceLineDescription: desired,
	}); err != nil {
		return err
	}
	return p.updateLineItem(ctx, rec, desired)
}

// updateLineItem treats the downstream first line-item name as
// "{manual notes} | {auto description}" and rewrites only the segment
// after the pipe. Manual notes entered by the crew survive every update.
func (p *Projector) updateLineItem(ctx context.Context, rec *models.Reservation, desired string) error {
	items, err := p.fs.ListJobLineItems(ctx, rec.ServiceJobID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	current := items[0].Name
	combined := combineLineName(current, desired)
	if combined == current {
		return nil
	}

	items[0].Name = combined
	return p.fs.BulkUpdateLineItems(ctx, rec.ServiceJobID, items)
}

func combineLineName(current, desired string) string {
	var combined string
	if i := strings.Index(current, "|"); i >= 0 {
		manual := strings.TrimRight(current[:i], " ")
		combined = manual + " | " + desired
	} else if current == "" {
		combined = desired
	} else {
		combined = current + " | " + desired
	}
	return truncateRunes(combined, maxLineItemLen)
}
