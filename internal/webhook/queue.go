package webhook

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/tidyhost/turnsync/internal/models"
)

const overflowFile = "webhook_overflow.ndjson"

// Queue is the bounded in-process handoff between the HTTP handlers and
// the worker pool. When full, events spill to a disk-backed NDJSON file
// instead of blocking the HTTP path or being lost.
type Queue struct {
	ch          chan models.WebhookEvent
	overflowDir string
	logger      arbor.ILogger

	mu        sync.Mutex
	overflown int
}

func NewQueue(capacity int, overflowDir string, logger arbor.ILogger) *Queue {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Queue{
		ch:          make(chan models.WebhookEvent, capacity),
		overflowDir: overflowDir,
		logger:      logger,
	}
}

// Enqueue hands an event to the workers without blocking. Full queue
// means overflow to disk; the caller still reports success upstream.
func (q *Queue) Enqueue(e models.WebhookEvent) {
	select {
	case q.ch <- e:
	default:
		if err := q.writeOverflow(e); err != nil && q.logger != nil {
			q.logger.Error().Err(err).Str("event_id", e.ID).Msg("Webhook overflow write failed, event lost")
		}
	}
}

// Events is the worker-side channel.
func (q *Queue) Events() <-chan models.WebhookEvent {
	return q.ch
}

// Close stops intake. Pending events remain readable.
func (q *Queue) Close() {
	close(q.ch)
}

// Len reports the number of queued events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// OverflowCount reports how many events spilled to disk since start.
func (q *Queue) OverflowCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.overflown
}

func (q *Queue) overflowPath() string {
	return filepath.Join(q.overflowDir, overflowFile)
}

func (q *Queue) writeOverflow(e models.WebhookEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := os.MkdirAll(q.overflowDir, 0o755); err != nil {
		return fmt.Errorf("failed to create overflow dir: %w", err)
	}
	f, err := os.OpenFile(q.overflowPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open overflow file: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append overflow event: %w", err)
	}

	q.overflown++
	if q.logger != nil {
		q.logger.Warn().Str("event_id", e.ID).Int("total", q.overflown).Msg("Webhook queue full, event written to overflow")
	}
	return nil
}

// ReplayOverflow re-enqueues spilled events and truncates the file. Runs
// at the start of each scheduled suite, when the queue has headroom.
func (q *Queue) ReplayOverflow() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	path := q.overflowPath()
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open overflow file: %w", err)
	}

	var events []models.WebhookEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e models.WebhookEvent
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			if q.logger != nil {
				q.logger.Warn().Err(err).Msg("Skipping malformed overflow line")
			}
			continue
		}
		events = append(events, e)
	}
	scanErr := scanner.Err()
	f.Close()
	if scanErr != nil {
		return 0, fmt.Errorf("failed to read overflow file: %w", scanErr)
	}

	replayed := 0
	for i, e := range events {
		select {
		case q.ch <- e:
			replayed++
		default:
			// Queue filled up mid-replay; rewrite the remainder.
			return replayed, q.rewriteOverflow(events[i:])
		}
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return replayed, fmt.Errorf("failed to remove overflow file: %w", err)
	}
	return replayed, nil
}

func (q *Queue) rewriteOverflow(remaining []models.WebhookEvent) error {
	tmp := q.overflowPath() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create overflow rewrite: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, e := range remaining {
		line, err := json.Marshal(e)
		if err != nil {
			continue
		}
		w.Write(append(line, '\n'))
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, q.overflowPath())
}
