// Package reconcile converges the record store onto the event stream
// produced by the ingest paths, preserving superseded records as history.
package reconcile

import (
	"sync"

	"github.com/tidyhost/turnsync/internal/identity"
)

// SessionTracker carries per-run observation state. Some feeds emit a
// fresh UID for the same booking on every fetch; the fingerprint set is
// what keeps such sources from creating duplicates, and it doubles as the
// rescue set when evaluating removal candidates.
type SessionTracker struct {
	mu           sync.Mutex
	fingerprints map[string]struct{}
	observedUIDs map[string]map[string]struct{} // feed URL -> UID set
}

func NewSessionTracker() *SessionTracker {
	return &SessionTracker{
		fingerprints: make(map[string]struct{}),
		observedUIDs: make(map[string]map[string]struct{}),
	}
}

// FirstSeen registers a fingerprint and reports whether this is its first
// occurrence in the run. Every later occurrence is a within-run duplicate.
func (t *SessionTracker) FirstSeen(fp identity.Fingerprint) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := fp.Key()
	if _, ok := t.fingerprints[key]; ok {
		return false
	}
	t.fingerprints[key] = struct{}{}
	return true
}

// SeenFingerprint reports whether any event with this fingerprint was
// observed during the run.
func (t *SessionTracker) SeenFingerprint(fp identity.Fingerprint) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.fingerprints[fp.Key()]
	return ok
}

// ObserveUID records that a UID was present in a feed this run.
func (t *SessionTracker) ObserveUID(feedURL, uid string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	uids, ok := t.observedUIDs[feedURL]
	if !ok {
		uids = make(map[string]struct{})
		t.observedUIDs[feedURL] = uids
	}
	uids[uid] = struct{}{}
}

// ObserveFeed marks a feed as fetched this run even when it produced no
// events, so its records still get removal evaluation.
func (t *SessionTracker) ObserveFeed(feedURL string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.observedUIDs[feedURL]; !ok {
		t.observedUIDs[feedURL] = make(map[string]struct{})
	}
}

// UIDObserved reports whether (feedURL, uid) appeared this run.
func (t *SessionTracker) UIDObserved(feedURL, uid string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.observedUIDs[feedURL][uid]
	return ok
}

// ObservedFeeds returns the set of feed URLs with at least one observation.
func (t *SessionTracker) ObservedFeeds() map[string]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	feeds := make(map[string]struct{}, len(t.observedUIDs))
	for url := range t.observedUIDs {
		feeds[url] = struct{}{}
	}
	return feeds
}
