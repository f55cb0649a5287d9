package feed

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/tidyhost/turnsync/internal/models"
)

// Task is one feed to fetch for one property.
type Task struct {
	PropertyID string
	URL        string
}

// FeedFailure records a per-feed fetch or parse error.
type FeedFailure struct {
	URL string
	Err string
}

// Stats summarizes one fetch run.
type Stats struct {
	FeedsAttempted int
	FeedsSucceeded int
	FeedsFailed    int
	EventsSeen     int
	EventsDropped  int
	Failures       []FeedFailure
}

// Fetcher downloads calendar feeds with a bounded number of in-flight
// requests. Each fetch carries its own timeout so one stalled feed cannot
// hold up the batch.
type Fetcher struct {
	httpClient   *http.Client
	concurrency  int
	timeout      time.Duration
	loc          *time.Location
	monthsBefore int
	monthsAfter  int
	logger       arbor.ILogger
	now          func() time.Time
}

// Options configures a Fetcher.
type Options struct {
	Concurrency  int
	Timeout      time.Duration
	Location     *time.Location
	MonthsBefore int
	MonthsAfter  int
	Logger       arbor.ILogger
	HTTPClient   *http.Client
}

func NewFetcher(opts Options) *Fetcher {
	f := &Fetcher{
		httpClient:   opts.HTTPClient,
		concurrency:  opts.Concurrency,
		timeout:      opts.Timeout,
		loc:          opts.Location,
		monthsBefore: opts.MonthsBefore,
		monthsAfter:  opts.MonthsAfter,
		logger:       opts.Logger,
		now:          time.Now,
	}
	if f.httpClient == nil {
		f.httpClient = &http.Client{}
	}
	if f.concurrency <= 0 {
		f.concurrency = 1
	}
	if f.timeout <= 0 {
		f.timeout = 30 * time.Second
	}
	return f
}

type result struct {
	task    Task
	events  []models.NormalizedEvent
	dropped int
	err     error
}

// FetchAll fetches every feed and returns normalized events, the set of
// UIDs observed per feed URL, and run statistics. Per-feed failures are
// reported in Stats without failing the run.
func (f *Fetcher) FetchAll(ctx context.Context, tasks []Task) ([]models.NormalizedEvent, map[string]map[string]struct{}, Stats, error) {
	taskCh := make(chan Task)
	resultCh := make(chan result)

	var wg sync.WaitGroup
	workers := f.concurrency
	if workers > len(tasks) {
		workers = len(tasks)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				events, dropped, err := f.fetchOne(ctx, task)
				resultCh <- result{task: task, events: events, dropped: dropped, err: err}
			}
		}()
	}

	go func() {
		defer close(taskCh)
		for _, task := range tasks {
			select {
			case taskCh <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var events []models.NormalizedEvent
	observed := make(map[string]map[string]struct{})
	stats := Stats{}
	for res := range resultCh {
		stats.FeedsAttempted++
		if res.err != nil {
			stats.FeedsFailed++
			stats.Failures = append(stats.Failures, FeedFailure{URL: res.task.URL, Err: res.err.Error()})
			if f.logger != nil {
				f.logger.Warn().Err(res.err).Str("url", res.task.URL).Msg("Feed fetch failed")
			}
			continue
		}

		stats.FeedsSucceeded++
		stats.EventsSeen += len(res.events)
		stats.EventsDropped += res.dropped

		uids, ok := observed[res.task.URL]
		if !ok {
			uids = make(map[string]struct{})
			observed[res.task.URL] = uids
		}
		for _, e := range res.events {
			uids[e.UID] = struct{}{}
		}
		events = append(events, res.events...)
	}

	if err := ctx.Err(); err != nil {
		return events, observed, stats, err
	}
	return events, observed, stats, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, task Task) ([]models.NormalizedEvent, int, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, task.URL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("feed fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	return f.parseCalendar(resp.Body, task.PropertyID, task.URL)
}

func (f *Fetcher) inWindow(checkIn time.Time) bool {
	today := models.DateOnly(f.now().In(f.loc))
	start := today.AddDate(0, -f.monthsBefore, 0)
	end := today.AddDate(0, f.monthsAfter, 0)
	day := models.DateOnly(checkIn)
	return !day.Before(start) && !day.After(end)
}
