package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/tidyhost/turnsync/internal/models"
)

// SignatureFields is the content that participates in change detection.
// Job-system fields are deliberately excluded: downstream churn must never
// look like an upstream modification.
type SignatureFields struct {
	PropertyID   string
	CheckIn      time.Time
	CheckOut     time.Time
	EntryType    models.EntryType
	ServiceType  models.ServiceType
	SameDay      bool
	Overlapping  bool
	SupplierInfo string // only sources that carry it (iTrip)
	BlockType    string // blocks only
}

// Signature returns the content hash governing modification detection.
func (f SignatureFields) Signature() string {
	var b strings.Builder
	b.WriteString(f.PropertyID)
	b.WriteByte('|')
	b.WriteString(f.CheckIn.Format(dateLayout))
	b.WriteByte('|')
	b.WriteString(f.CheckOut.Format(dateLayout))
	b.WriteByte('|')
	b.WriteString(string(f.EntryType))
	b.WriteByte('|')
	b.WriteString(string(f.ServiceType))
	b.WriteByte('|')
	b.WriteString(boolToken(f.SameDay))
	b.WriteByte('|')
	b.WriteString(boolToken(f.Overlapping))
	b.WriteByte('|')
	b.WriteString(strings.TrimSpace(f.SupplierInfo))
	b.WriteByte('|')
	b.WriteString(strings.TrimSpace(f.BlockType))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// SignatureOfRecord computes the change signature of a stored record.
func SignatureOfRecord(r *models.Reservation) string {
	f := SignatureFields{
		PropertyID:  r.PropertyID,
		CheckIn:     models.DateOnly(r.CheckIn),
		CheckOut:    models.DateOnly(r.CheckOut),
		EntryType:   r.EntryType,
		ServiceType: r.ServiceType,
		SameDay:     r.SameDayTurnover,
		Overlapping: r.OverlappingDates,
	}
	if r.EntrySource == string(models.SourceITripCSV) {
		f.SupplierInfo = r.SupplierInfo
	}
	if r.EntryType == models.EntryTypeBlock {
		f.BlockType = r.BlockType
	}
	return f.Signature()
}

// SignatureOfEvent computes the comparable signature of an incoming event.
// The same-day and overlapping flags are derived in the store after
// reconciliation, so for sources without an explicit same-day value the
// event inherits the existing record's derived flags; otherwise a flag
// recompute would masquerade as an upstream modification on the next run.
func SignatureOfEvent(e *models.NormalizedEvent, existing *models.Reservation) string {
	f := SignatureFields{
		PropertyID:  e.PropertyID,
		CheckIn:     models.DateOnly(e.CheckIn),
		CheckOut:    models.DateOnly(e.CheckOut),
		EntryType:   e.EntryType,
		ServiceType: e.ServiceType,
	}

	if existing != nil {
		f.SameDay = existing.SameDayTurnover
		f.Overlapping = existing.OverlappingDates
	}
	if e.SameDayOverride != nil {
		f.SameDay = *e.SameDayOverride
	}

	if e.Source == models.SourceITripCSV {
		f.SupplierInfo = e.SupplierInfo
	}
	if e.EntryType == models.EntryTypeBlock {
		f.BlockType = e.BlockType
	}
	return f.Signature()
}

func boolToken(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
