package csvingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/tidyhost/turnsync/internal/identity"
	"github.com/tidyhost/turnsync/internal/models"
)

// Stats summarizes one ingest run.
type Stats struct {
	Files            int
	Rows             int
	Events           int
	SkippedUnmatched int
	SkippedWindow    int
	SkippedRows      int
}

// Merge adds per-file stats into the run totals.
func (s *Stats) Merge(other Stats) {
	s.Files += other.Files
	s.Rows += other.Rows
	s.Events += other.Events
	s.SkippedUnmatched += other.SkippedUnmatched
	s.SkippedWindow += other.SkippedWindow
	s.SkippedRows += other.SkippedRows
}

// Ingestor reads supplier CSV files from the inbox directory, normalizes
// rows into events, and moves fully-processed files to the done directory.
type Ingestor struct {
	inboxDir     string
	doneDir      string
	index        *PropertyIndex
	loc          *time.Location
	monthsBefore int
	monthsAfter  int
	logger       arbor.ILogger
	now          func() time.Time
}

// Options configures an Ingestor.
type Options struct {
	InboxDir     string
	DoneDir      string
	Location     *time.Location
	MonthsBefore int
	MonthsAfter  int
	Logger       arbor.ILogger
}

func NewIngestor(index *PropertyIndex, opts Options) *Ingestor {
	return &Ingestor{
		inboxDir:     opts.InboxDir,
		doneDir:      opts.DoneDir,
		index:        index,
		loc:          opts.Location,
		monthsBefore: opts.MonthsBefore,
		monthsAfter:  opts.MonthsAfter,
		logger:       opts.Logger,
		now:          time.Now,
	}
}

// Run processes every CSV file currently in the inbox, oldest name first.
// A file that fails stays in the inbox for the next run; files that
// succeed are moved out before Run returns.
func (ing *Ingestor) Run(ctx context.Context) ([]models.NormalizedEvent, Stats, error) {
	entries, err := os.ReadDir(ing.inboxDir)
	if os.IsNotExist(err) {
		return nil, Stats{}, nil
	}
	if err != nil {
		return nil, Stats{}, fmt.Errorf("failed to read inbox %s: %w", ing.inboxDir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var events []models.NormalizedEvent
	var total Stats
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return events, total, err
		}

		path := filepath.Join(ing.inboxDir, name)
		fileEvents, stats, err := ing.ProcessFile(path)
		if err != nil {
			if ing.logger != nil {
				ing.logger.Warn().Err(err).Str("file", name).Msg("CSV file failed, leaving in inbox")
			}
			continue
		}

		if err := ing.moveToDone(path); err != nil {
			return events, total, err
		}

		events = append(events, fileEvents...)
		total.Merge(stats)
		if ing.logger != nil {
			ing.logger.Info().
				Str("file", name).
				Int("rows", stats.Rows).
				Int("events", stats.Events).
				Int("unmatched", stats.SkippedUnmatched).
				Msg("CSV file processed")
		}
	}

	return events, total, nil
}

// ProcessFile parses a single CSV file. The file is not moved here; the
// caller moves it only after a fully successful parse.
func (ing *Ingestor) ProcessFile(path string) ([]models.NormalizedEvent, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, Stats{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, Stats{Files: 1}, nil
	}

	header := rows[0]
	supplier := DetectSupplier(filepath.Base(path), header)
	rr := newRowReader(header, supplier)

	stats := Stats{Files: 1}
	var events []models.NormalizedEvent
	for _, row := range rows[1:] {
		stats.Rows++
		event, skip := ing.normalizeRow(rr, supplier, row)
		switch skip {
		case skipNone:
			events = append(events, *event)
			stats.Events++
		case skipUnmatched:
			stats.SkippedUnmatched++
		case skipWindow:
			stats.SkippedWindow++
		case skipRow:
			stats.SkippedRows++
		}
	}

	return events, stats, nil
}

type skipReason int

const (
	skipNone skipReason = iota
	skipUnmatched
	skipWindow
	skipRow
)

func (ing *Ingestor) normalizeRow(rr *rowReader, supplier Supplier, row []string) (*models.NormalizedEvent, skipReason) {
	rawProperty := rr.Property(row)
	rawCheckIn := rr.CheckIn(row)
	rawCheckOut := rr.CheckOut(row)
	if rawProperty == "" || rawCheckIn == "" || rawCheckOut == "" {
		return nil, skipRow
	}

	checkIn, err := ing.parseDate(supplier, rawCheckIn)
	if err != nil {
		return nil, skipRow
	}
	checkOut, err := ing.parseDate(supplier, rawCheckOut)
	if err != nil {
		return nil, skipRow
	}
	if !ing.inWindow(checkIn) {
		return nil, skipWindow
	}

	var prop *models.Property
	switch supplier {
	case SupplierITrip:
		prop = ing.index.ByName(rawProperty)
	default:
		prop = ing.index.ByListing(rawProperty)
	}
	if prop == nil {
		return nil, skipUnmatched
	}

	guest := rr.Guest(row)
	supplierInfo := rr.Supplier(row)
	status := strings.ToLower(rr.Status(row))

	event := models.NormalizedEvent{
		Source:       models.EventSource(supplier),
		FeedURL:      string(supplier),
		PropertyID:   prop.ID,
		CheckIn:      checkIn,
		CheckOut:     checkOut,
		EntryType:    models.EntryTypeReservation,
		ServiceType:  models.ServiceTypeTurnover,
		GuestName:    guest,
		SupplierInfo: supplierInfo,
	}

	switch supplier {
	case SupplierEvolveTab2:
		// Tab-2 rows only matter when the guest is the owner. Anything
		// else on that sheet is a guest stay already present in the main
		// export.
		if !strings.EqualFold(strings.TrimSpace(guest), strings.TrimSpace(prop.OwnerName)) {
			return nil, skipRow
		}
		switch status {
		case "booked":
		case "cancelled":
			event.Removal = true
		default:
			return nil, skipRow
		}
		event.EntryType = models.EntryTypeBlock
		event.BlockType = models.BlockTypeOwner

	case SupplierEvolve:
		if status == "cancelled" {
			return nil, skipRow
		}

	case SupplierITrip:
		if v := rr.SameDay(row); v != "" {
			override := strings.EqualFold(v, "Yes") || strings.EqualFold(v, "true")
			event.SameDayOverride = &override
		}
	}

	if containsMaintenance(guest) || containsMaintenance(supplierInfo) {
		event.EntryType = models.EntryTypeBlock
		event.ServiceType = models.ServiceTypeNeedsReview
		event.BlockType = models.BlockTypeMaintenance
	}

	event.UID = identity.BuildUID(string(event.Source), prop.Name, checkIn, checkOut, guestLastName(guest, event.EntryType))
	return &event, skipNone
}

func (ing *Ingestor) parseDate(supplier Supplier, raw string) (time.Time, error) {
	layout := "2006-01-02"
	if supplier == SupplierITrip {
		layout = "1/2/2006"
	}
	return time.ParseInLocation(layout, raw, ing.loc)
}

func (ing *Ingestor) inWindow(checkIn time.Time) bool {
	today := models.DateOnly(ing.now().In(ing.loc))
	start := today.AddDate(0, -ing.monthsBefore, 0)
	end := today.AddDate(0, ing.monthsAfter, 0)
	day := models.DateOnly(checkIn)
	return !day.Before(start) && !day.After(end)
}

func (ing *Ingestor) moveToDone(path string) error {
	if err := os.MkdirAll(ing.doneDir, 0o755); err != nil {
		return fmt.Errorf("failed to create done dir: %w", err)
	}
	dest := filepath.Join(ing.doneDir, ing.now().Format("20060102_150405")+"_"+filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return fmt.Errorf("failed to move %s to done: %w", path, err)
	}
	return nil
}

func containsMaintenance(s string) bool {
	return strings.Contains(strings.ToLower(s), "maintenance")
}

// guestLastName extracts the last token of the guest name for the UID.
// Blocks never carry a guest component.
func guestLastName(guest string, entryType models.EntryType) string {
	if entryType == models.EntryTypeBlock {
		return ""
	}
	fields := strings.Fields(guest)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
