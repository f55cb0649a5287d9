// Package projector ensures every reservation with a desired service time
// has a matching downstream job, and reports any divergence between the
// two instead of hiding it.
package projector

import (
	"strings"
	"time"

	"github.com/tidyhost/turnsync/internal/models"
)

// maxServiceLineLen caps the record-side description. The downstream
// line-item value has a tighter effective limit, see maxLineItemLen.
const maxServiceLineLen = 255

// NextEntry is the entry following a reservation at the same property.
type NextEntry struct {
	EntryType models.EntryType
	BlockType string
	CheckIn   time.Time
}

// FindNextEntry returns the entry at the property with the earliest
// check-in on or after the record's check-out, or nil.
func FindNextEntry(rec *models.Reservation, entries []*models.Reservation) *NextEntry {
	var next *models.Reservation
	for _, other := range entries {
		if other.RecordID == rec.RecordID || other.Status == models.StatusRemoved {
			continue
		}
		if other.CheckIn.Before(rec.CheckOut) {
			continue
		}
		if next == nil || other.CheckIn.Before(next.CheckIn) {
			next = other
		}
	}
	if next == nil {
		return nil
	}
	return &NextEntry{
		EntryType: next.EntryType,
		BlockType: next.BlockType,
		CheckIn:   models.DateOnly(next.CheckIn),
	}
}

// BuildServiceLine composes the service-line description for a record.
// Components joined by " - ": custom instructions, the owner-arriving and
// long-term markers, then the base name. Overflow beyond 255 characters
// truncates the custom-instructions component first.
func BuildServiceLine(rec *models.Reservation, next *NextEntry) string {
	base, ownerInBase := baseName(rec, next)

	var parts []string
	if rec.OwnerArriving && !ownerInBase {
		parts = append(parts, "OWNER ARRIVING")
	}
	if rec.LongTermGuest && !rec.OwnerArriving {
		parts = append(parts, "LONG TERM GUEST DEPARTING")
	}
	parts = append(parts, base)
	rest := strings.Join(parts, " - ")

	custom := strings.TrimSpace(rec.CustomInstructions)
	if custom == "" {
		return truncateRunes(rest, maxServiceLineLen)
	}

	budget := maxServiceLineLen - runeLen(rest) - len(" - ")
	if budget <= 1 {
		return truncateRunes(rest, maxServiceLineLen)
	}
	if runeLen(custom) > budget {
		custom = truncateRunes(custom, budget-1) + "…"
	}
	return custom + " - " + rest
}

// baseName returns the final component and whether it already carries the
// owner-arriving marker.
func baseName(rec *models.Reservation, next *NextEntry) (string, bool) {
	st := string(rec.ServiceType)

	if rec.SameDayTurnover {
		return "SAME DAY " + st + " STR", false
	}
	if next != nil && next.EntryType == models.EntryTypeBlock && next.BlockType != models.BlockTypeMaintenance {
		return "OWNER ARRIVING " + st + " STR " + next.CheckIn.Format("January 2"), true
	}
	if next != nil {
		return st + " STR Next Guest " + next.CheckIn.Format("January 2"), false
	}
	return st + " STR Next Guest Unknown", false
}

func runeLen(s string) int {
	return len([]rune(s))
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
