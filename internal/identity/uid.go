// Package identity builds stable identifiers for reservation records and
// detects content changes under adversarial upstream behavior (rotating
// UIDs, transient dropouts).
package identity

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Slug collapses runs of non-alphanumerics into single underscores and
// strips leading/trailing underscores. Lowercases the input.
func Slug(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastUnderscore := false
	for _, r := range strings.ToLower(s) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if isAlnum {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	return strings.Trim(b.String(), "_")
}

// BuildUID constructs the deterministic UID for CSV-sourced events.
// Guest defaults to "block" when empty (owner and maintenance blocks carry
// no guest name).
func BuildUID(source, propertyName string, checkIn, checkOut time.Time, guestLastName string) string {
	guest := Slug(guestLastName)
	if guest == "" {
		guest = "block"
	}

	parts := []string{
		strings.ToLower(strings.TrimSpace(source)),
		Slug(propertyName),
		checkIn.Format(dateLayout),
		checkOut.Format(dateLayout),
		guest,
	}
	return strings.Join(parts, "_")
}
