package recordstore

import (
	"encoding/json"
	"strconv"
	"time"
)

// Conversion helpers for the loosely typed field maps the store returns.
// Checkboxes are absent when false; numbers arrive as float64 from JSON.

const dateLayout = "2006-01-02"

func getString(fields map[string]any, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

func getBool(fields map[string]any, name string) bool {
	if v, ok := fields[name].(bool); ok {
		return v
	}
	return false
}

func getInt(fields map[string]any, name string) int {
	switch v := fields[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

func getStringSlice(fields map[string]any, name string) []string {
	raw, ok := fields[name].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// getDate parses a calendar-date field into midnight in loc.
func getDate(fields map[string]any, name string, loc *time.Location) time.Time {
	s := getString(fields, name)
	if s == "" {
		return time.Time{}
	}
	// Some timestamp-typed columns carry a full RFC3339 value.
	if len(s) > len(dateLayout) {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			t = t.In(loc)
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, loc)
		}
		s = s[:len(dateLayout)]
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

func getTimestamp(fields map[string]any, name string) *time.Time {
	s := getString(fields, name)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	return nil
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FormatDate renders a calendar-date field value for a field map.
func FormatDate(t time.Time) string { return formatDate(t) }

// FormatTimestamp renders a timestamp field value for a field map.
func FormatTimestamp(t time.Time) string { return formatTimestamp(t) }
