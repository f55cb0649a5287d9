package csvingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidyhost/turnsync/internal/models"
)

func testProperties() []models.Property {
	return []models.Property{
		{ID: "prop1", Name: "Desert Rose Villa", OwnerName: "Pat Jones", ListingNumber: "445566"},
		{ID: "prop2", Name: "Cactus Flat", OwnerName: "Sam Lee", ListingNumber: "778899"},
	}
}

func newTestIngestor(t *testing.T) (*Ingestor, string, string) {
	t.Helper()
	loc, err := time.LoadLocation("America/Phoenix")
	require.NoError(t, err)

	inbox := t.TempDir()
	done := filepath.Join(t.TempDir(), "done")

	ing := NewIngestor(NewPropertyIndex(testProperties()), Options{
		InboxDir:     inbox,
		DoneDir:      done,
		Location:     loc,
		MonthsBefore: 6,
		MonthsAfter:  3,
	})
	ing.now = func() time.Time { return time.Date(2025, 8, 15, 12, 0, 0, 0, loc) }
	return ing, inbox, done
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDetectSupplier(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		header   []string
		want     Supplier
	}{
		{"tab2 suffix", "export_tab2.csv", []string{"Guest Name"}, SupplierEvolveTab2},
		{"tab2 suffix wins over header", "export_TAB2.csv", []string{"Property Name"}, SupplierEvolveTab2},
		{"property name column", "daily.csv", []string{"Property Name", "Checkin"}, SupplierITrip},
		{"fallback evolve", "daily.csv", []string{"Listing #", "Check-In"}, SupplierEvolve},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectSupplier(tt.filename, tt.header))
		})
	}
}

func TestRun_ITripFile(t *testing.T) {
	ing, inbox, done := newTestIngestor(t)

	writeFile(t, inbox, "itrip_daily.csv", strings.Join([]string{
		"Property Name,Checkin,Checkout,Tenant Name,Contractor Info,Same Day?",
		"Desert Rose Villa,09/01/2025,09/05/2025,Alice Smith,,Yes",
		"desert rose villa,09/10/2025,09/12/2025,Bob Brown,,",
		"Unknown House,09/01/2025,09/02/2025,Carol White,,",
		"Desert Rose Villa,01/01/2024,01/05/2024,Old Guest,,",
		"Cactus Flat,09/03/2025,09/04/2025,Maintenance Crew,,",
	}, "\n"))

	events, stats, err := ing.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 5, stats.Rows)
	assert.Equal(t, 3, stats.Events)
	assert.Equal(t, 1, stats.SkippedUnmatched)
	assert.Equal(t, 1, stats.SkippedWindow)
	require.Len(t, events, 3)

	first := events[0]
	assert.Equal(t, "prop1", first.PropertyID)
	assert.Equal(t, models.EntryTypeReservation, first.EntryType)
	assert.Equal(t, "itrip_desert_rose_villa_2025-09-01_2025-09-05_smith", first.UID)
	require.NotNil(t, first.SameDayOverride)
	assert.True(t, *first.SameDayOverride)

	// Case-insensitive property match, no override column value.
	assert.Equal(t, "prop1", events[1].PropertyID)
	assert.Nil(t, events[1].SameDayOverride)

	// Maintenance guest becomes a Needs Review block.
	maint := events[2]
	assert.Equal(t, models.EntryTypeBlock, maint.EntryType)
	assert.Equal(t, models.ServiceTypeNeedsReview, maint.ServiceType)
	assert.Equal(t, models.BlockTypeMaintenance, maint.BlockType)

	// Processed file moved to done with a timestamp prefix.
	_, err = os.Stat(filepath.Join(inbox, "itrip_daily.csv"))
	assert.True(t, os.IsNotExist(err))
	entries, err := os.ReadDir(done)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "_itrip_daily.csv"))
	assert.Equal(t, "20250815_120000_itrip_daily.csv", entries[0].Name())
}

func TestRun_EvolveMainFile(t *testing.T) {
	ing, inbox, _ := newTestIngestor(t)

	writeFile(t, inbox, "evolve.csv", strings.Join([]string{
		"Listing #,Check-In,Check-Out,Guest Name,Status",
		"Evolve 445566 Main,2025-09-01,2025-09-05,Alice Smith,booked",
		"Evolve 445566 Main,2025-09-06,2025-09-08,Dan Grey,cancelled",
		"Evolve 000000 Main,2025-09-01,2025-09-02,Eve Black,booked",
	}, "\n"))

	events, stats, err := ing.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, "prop1", events[0].PropertyID)
	assert.Equal(t, models.EventSource("evolve"), events[0].Source)
	assert.Equal(t, 1, stats.SkippedRows, "cancelled main rows are skipped")
	assert.Equal(t, 1, stats.SkippedUnmatched)
}

func TestRun_Tab2OwnerBlocks(t *testing.T) {
	ing, inbox, _ := newTestIngestor(t)

	writeFile(t, inbox, "evolve_tab2.csv", strings.Join([]string{
		"Listing #,Check-In,Check-Out,Guest Name,Status",
		"445566,2025-09-01,2025-09-05,Pat Jones,booked",
		"445566,2025-09-10,2025-09-12,pat jones,cancelled",
		"445566,2025-09-20,2025-09-22,Alice Smith,booked",
	}, "\n"))

	events, stats, err := ing.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, events, 2)

	block := events[0]
	assert.Equal(t, models.EntryTypeBlock, block.EntryType)
	assert.Equal(t, models.BlockTypeOwner, block.BlockType)
	assert.False(t, block.Removal)
	assert.True(t, strings.HasSuffix(block.UID, "_block"), "owner blocks carry no guest component: %s", block.UID)

	cancel := events[1]
	assert.True(t, cancel.Removal)
	assert.Equal(t, models.EntryTypeBlock, cancel.EntryType)

	assert.Equal(t, 1, stats.SkippedRows, "non-owner tab2 rows are skipped")
}

func TestRun_FailedFileStaysInInbox(t *testing.T) {
	ing, inbox, done := newTestIngestor(t)

	writeFile(t, inbox, "broken.csv", "Property Name,Checkin\n\"unterminated")
	writeFile(t, inbox, "good.csv", strings.Join([]string{
		"Property Name,Checkin,Checkout,Tenant Name",
		"Desert Rose Villa,09/01/2025,09/05/2025,Alice Smith",
	}, "\n"))

	events, stats, err := ing.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, 1, stats.Files)

	_, err = os.Stat(filepath.Join(inbox, "broken.csv"))
	assert.NoError(t, err, "failed file must stay for the next run")
	entries, err := os.ReadDir(done)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRun_EmptyInboxMissingDir(t *testing.T) {
	ing, _, _ := newTestIngestor(t)
	ing.inboxDir = filepath.Join(t.TempDir(), "nope")

	events, stats, err := ing.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Zero(t, stats.Files)
}
