package orchestrator

import (
	"fmt"
	"sort"
	"strings"
)

// Status markers shown in the Automations table. Upstream error text may
// already carry one; messages are normalized to exactly one leading marker.
const (
	markerSuccess = "✅"
	markerFailure = "❌"
	markerSkipped = "⏭️"
)

var statusMarkers = []string{markerSuccess, markerFailure, markerSkipped, "⚠️"}

// statusMessage prefixes a message with exactly one status marker,
// stripping any markers the message already starts with.
func statusMessage(marker, msg string) string {
	msg = stripStatusMarkers(msg)
	if msg == "" {
		return marker
	}
	return marker + " " + msg
}

func stripStatusMarkers(msg string) string {
	for {
		trimmed := strings.TrimLeft(msg, " ")
		stripped := trimmed
		for _, m := range statusMarkers {
			stripped = strings.TrimPrefix(stripped, m)
		}
		if stripped == trimmed && trimmed == msg {
			return msg
		}
		msg = stripped
	}
}

// summarizeStats renders non-zero counters as "key=value" pairs in stable
// order. An all-zero map reads as "no changes".
func summarizeStats(stats map[string]int) string {
	keys := make([]string, 0, len(stats))
	for k, v := range stats {
		if v != 0 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "no changes"
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, stats[k]))
	}
	return strings.Join(parts, " ")
}
