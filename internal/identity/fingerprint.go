package identity

import (
	"fmt"
	"time"

	"github.com/tidyhost/turnsync/internal/models"
)

// Fingerprint is the fallback logical identity of a booking, used when
// upstream UIDs rotate between fetches: same property, same dates, same
// entry type means the same logical booking within a run.
type Fingerprint struct {
	PropertyID string
	CheckIn    time.Time
	CheckOut   time.Time
	EntryType  models.EntryType
}

// NewFingerprint builds a fingerprint from a normalized event.
func NewFingerprint(e *models.NormalizedEvent) Fingerprint {
	return Fingerprint{
		PropertyID: e.PropertyID,
		CheckIn:    models.DateOnly(e.CheckIn),
		CheckOut:   models.DateOnly(e.CheckOut),
		EntryType:  e.EntryType,
	}
}

// FingerprintOf builds a fingerprint from a reservation record.
func FingerprintOf(r *models.Reservation) Fingerprint {
	return Fingerprint{
		PropertyID: r.PropertyID,
		CheckIn:    models.DateOnly(r.CheckIn),
		CheckOut:   models.DateOnly(r.CheckOut),
		EntryType:  r.EntryType,
	}
}

// Key returns the canonical map key for the fingerprint.
func (f Fingerprint) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s",
		f.PropertyID,
		f.CheckIn.Format(dateLayout),
		f.CheckOut.Format(dateLayout),
		f.EntryType)
}
