// Package feed fetches per-property iCalendar feeds with a bounded worker
// pool and normalizes their events. A feed that fails is reported in the
// run statistics without failing the batch.
package feed

import (
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/tidyhost/turnsync/internal/models"
)

var blockKeywords = []string{"block", "unavailable", "not available", "owner", "maintenance"}

// parseCalendar extracts normalized events from one feed body. Events with
// a check-in outside the ingest window are counted as dropped.
func (f *Fetcher) parseCalendar(body io.Reader, propertyID, feedURL string) ([]models.NormalizedEvent, int, error) {
	cal, err := ics.ParseCalendar(body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse calendar: %w", err)
	}

	var events []models.NormalizedEvent
	dropped := 0
	for _, ve := range cal.Events() {
		start, err := eventStart(ve)
		if err != nil {
			dropped++
			continue
		}
		end, err := eventEnd(ve)
		if err != nil {
			dropped++
			continue
		}

		allDay := isAllDay(ve)
		checkIn := f.localDate(start, allDay)
		checkOut := f.localDate(end, allDay)
		if !f.inWindow(checkIn) {
			dropped++
			continue
		}

		uid := ve.Id()
		if uid == "" {
			dropped++
			continue
		}

		summary := ""
		if p := ve.GetProperty(ics.ComponentPropertySummary); p != nil {
			summary = p.Value
		}

		event := models.NormalizedEvent{
			Source:      models.SourceCalendarFeed,
			UID:         uid,
			FeedURL:     feedURL,
			PropertyID:  propertyID,
			CheckIn:     checkIn,
			CheckOut:    checkOut,
			EntryType:   models.EntryTypeReservation,
			ServiceType: models.ServiceTypeTurnover,
			GuestName:   summary,
		}
		if isBlockSummary(summary) {
			event.EntryType = models.EntryTypeBlock
			event.BlockType = blockTypeOf(summary)
			event.GuestName = ""
			if event.BlockType == models.BlockTypeMaintenance {
				event.ServiceType = models.ServiceTypeNeedsReview
			}
		}

		events = append(events, event)
	}

	return events, dropped, nil
}

func eventStart(ve *ics.VEvent) (time.Time, error) {
	if t, err := ve.GetStartAt(); err == nil {
		return t, nil
	}
	return ve.GetAllDayStartAt()
}

func eventEnd(ve *ics.VEvent) (time.Time, error) {
	if t, err := ve.GetEndAt(); err == nil {
		return t, nil
	}
	return ve.GetAllDayEndAt()
}

// isAllDay reports a VALUE=DATE start, the common form in supplier feeds.
func isAllDay(ve *ics.VEvent) bool {
	p := ve.GetProperty(ics.ComponentPropertyDtStart)
	if p == nil {
		return false
	}
	for _, v := range p.ICalParameters["VALUE"] {
		if strings.EqualFold(v, "DATE") {
			return true
		}
	}
	return false
}

// localDate normalizes an event boundary to a business-timezone calendar
// date. All-day values carry a bare date; converting those through UTC
// would shift the date back a day, so the date components are kept as-is.
func (f *Fetcher) localDate(t time.Time, allDay bool) time.Time {
	if allDay {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, f.loc)
	}
	return models.DateOnly(t.In(f.loc))
}

func isBlockSummary(summary string) bool {
	s := strings.ToLower(summary)
	for _, kw := range blockKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func blockTypeOf(summary string) string {
	s := strings.ToLower(summary)
	switch {
	case strings.Contains(s, "owner"):
		return models.BlockTypeOwner
	case strings.Contains(s, "maintenance"):
		return models.BlockTypeMaintenance
	default:
		return models.BlockTypeOther
	}
}
