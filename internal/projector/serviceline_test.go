package projector

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tidyhost/turnsync/internal/models"
)

func res(serviceType models.ServiceType) *models.Reservation {
	return &models.Reservation{
		RecordID:    "rec1",
		ServiceType: serviceType,
		CheckIn:     time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:    time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC),
	}
}

func TestBuildServiceLine_Variants(t *testing.T) {
	nextGuest := &NextEntry{
		EntryType: models.EntryTypeReservation,
		CheckIn:   time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC),
	}
	ownerBlock := &NextEntry{
		EntryType: models.EntryTypeBlock,
		BlockType: models.BlockTypeOwner,
		CheckIn:   time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC),
	}
	maintBlock := &NextEntry{
		EntryType: models.EntryTypeBlock,
		BlockType: models.BlockTypeMaintenance,
		CheckIn:   time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name  string
		setup func(*models.Reservation)
		next  *NextEntry
		want  string
	}{
		{
			"next guest known",
			func(*models.Reservation) {},
			nextGuest,
			"Turnover STR Next Guest September 8",
		},
		{
			"next guest unknown",
			func(*models.Reservation) {},
			nil,
			"Turnover STR Next Guest Unknown",
		},
		{
			"same day",
			func(r *models.Reservation) { r.SameDayTurnover = true },
			nextGuest,
			"SAME DAY Turnover STR",
		},
		{
			"owner block variant replaces standalone marker",
			func(r *models.Reservation) { r.OwnerArriving = true },
			ownerBlock,
			"OWNER ARRIVING Turnover STR September 5",
		},
		{
			"maintenance block is not an owner arrival",
			func(*models.Reservation) {},
			maintBlock,
			"Turnover STR Next Guest September 5",
		},
		{
			"long term departing",
			func(r *models.Reservation) { r.LongTermGuest = true },
			nextGuest,
			"LONG TERM GUEST DEPARTING - Turnover STR Next Guest September 8",
		},
		{
			"owner arriving suppresses long term marker",
			func(r *models.Reservation) {
				r.LongTermGuest = true
				r.OwnerArriving = true
			},
			ownerBlock,
			"OWNER ARRIVING Turnover STR September 5",
		},
		{
			"custom instructions lead",
			func(r *models.Reservation) { r.CustomInstructions = "Gate code 4411" },
			nextGuest,
			"Gate code 4411 - Turnover STR Next Guest September 8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := res(models.ServiceTypeTurnover)
			tt.setup(r)
			assert.Equal(t, tt.want, BuildServiceLine(r, tt.next))
		})
	}
}

func TestBuildServiceLine_CapTruncatesCustomFirst(t *testing.T) {
	r := res(models.ServiceTypeTurnover)
	r.CustomInstructions = strings.Repeat("x", 400)

	line := BuildServiceLine(r, nil)
	assert.LessOrEqual(t, len([]rune(line)), maxServiceLineLen)
	assert.True(t, strings.HasSuffix(line, "Turnover STR Next Guest Unknown"),
		"the base name survives truncation: %s", line)
	assert.Contains(t, line, "…", "truncated custom text carries the ellipsis")
}

func TestBuildServiceLine_NonASCIIRoundTrips(t *testing.T) {
	r := res(models.ServiceTypeTurnover)
	r.CustomInstructions = "Déjà vu — ключи под ковриком"

	line := BuildServiceLine(r, nil)
	assert.Contains(t, line, "Déjà vu — ключи под ковриком")
}

func TestCombineLineName(t *testing.T) {
	tests := []struct {
		name    string
		current string
		desired string
		want    string
	}{
		{
			"rewrites segment after pipe",
			"crew note: use side door | OLD AUTO TEXT",
			"SAME DAY Turnover STR",
			"crew note: use side door | SAME DAY Turnover STR",
		},
		{
			"appends pipe when absent",
			"crew note only",
			"Turnover STR Next Guest Unknown",
			"crew note only | Turnover STR Next Guest Unknown",
		},
		{
			"empty current takes desired",
			"",
			"Turnover STR",
			"Turnover STR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, combineLineName(tt.current, tt.desired))
		})
	}
}

func TestCombineLineName_CapsAt200(t *testing.T) {
	combined := combineLineName(strings.Repeat("m", 150), strings.Repeat("a", 150))
	assert.Equal(t, maxLineItemLen, len([]rune(combined)))
}

func TestFindNextEntry(t *testing.T) {
	loc := time.UTC
	rec := &models.Reservation{
		RecordID: "rec1",
		CheckIn:  time.Date(2025, 9, 1, 0, 0, 0, 0, loc),
		CheckOut: time.Date(2025, 9, 5, 0, 0, 0, 0, loc),
	}
	entries := []*models.Reservation{
		rec,
		{RecordID: "rec2", CheckIn: time.Date(2025, 9, 10, 0, 0, 0, 0, loc), EntryType: models.EntryTypeReservation},
		{RecordID: "rec3", CheckIn: time.Date(2025, 9, 6, 0, 0, 0, 0, loc), EntryType: models.EntryTypeBlock, BlockType: models.BlockTypeOwner},
		{RecordID: "rec4", CheckIn: time.Date(2025, 8, 20, 0, 0, 0, 0, loc), EntryType: models.EntryTypeReservation},
		{RecordID: "rec5", CheckIn: time.Date(2025, 9, 7, 0, 0, 0, 0, loc), EntryType: models.EntryTypeReservation, Status: models.StatusRemoved},
	}

	next := FindNextEntry(rec, entries)
	if assert.NotNil(t, next) {
		assert.Equal(t, models.EntryTypeBlock, next.EntryType)
		assert.Equal(t, time.Date(2025, 9, 6, 0, 0, 0, 0, loc), next.CheckIn)
	}

	assert.Nil(t, FindNextEntry(&models.Reservation{
		RecordID: "rec9",
		CheckOut: time.Date(2025, 12, 1, 0, 0, 0, 0, loc),
	}, entries))
}
