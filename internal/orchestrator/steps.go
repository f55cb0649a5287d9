package orchestrator

import (
	"context"

	"github.com/tidyhost/turnsync/internal/ingest/csvingest"
	"github.com/tidyhost/turnsync/internal/ingest/feed"
	"github.com/tidyhost/turnsync/internal/models"
	"github.com/tidyhost/turnsync/internal/reconcile"
)

func (o *Orchestrator) stepCSVIngest(ctx context.Context, rec *reconcile.Reconciler, props []models.Property) (map[string]int, error) {
	ing := csvingest.NewIngestor(csvingest.NewPropertyIndex(props), csvingest.Options{
		InboxDir:     o.cfg.CSVInboxDir(),
		DoneDir:      o.cfg.CSVDoneDir(),
		Location:     o.loc,
		MonthsBefore: o.cfg.Ingest.WindowMonthsBefore,
		MonthsAfter:  o.cfg.Ingest.WindowMonthsAfter,
		Logger:       o.logger,
	})

	events, stats, err := ing.Run(ctx)
	m := map[string]int{
		"files":             stats.Files,
		"rows":              stats.Rows,
		"events":            stats.Events,
		"skipped_unmatched": stats.SkippedUnmatched,
		"skipped_window":    stats.SkippedWindow,
		"skipped_rows":      stats.SkippedRows,
	}
	if err != nil {
		return m, err
	}
	applyErrs, err := o.applyEvents(ctx, rec, events)
	m["apply_errors"] = applyErrs
	return m, err
}

// stepCalendarIngest fetches every property feed and reconciles the
// results. All UIDs seen in a successfully fetched feed are registered on
// the tracker, including feeds that came back empty, so the removal pass
// later knows which feeds actually reported this run.
func (o *Orchestrator) stepCalendarIngest(ctx context.Context, rec *reconcile.Reconciler, tracker *reconcile.SessionTracker, tasks []feed.Task) (map[string]int, error) {
	events, observed, stats, err := o.fetcher.FetchAll(ctx, tasks)
	m := map[string]int{
		"feeds_attempted": stats.FeedsAttempted,
		"feeds_succeeded": stats.FeedsSucceeded,
		"feeds_failed":    stats.FeedsFailed,
		"events_seen":     stats.EventsSeen,
		"events_dropped":  stats.EventsDropped,
	}
	for url, uids := range observed {
		tracker.ObserveFeed(url)
		for uid := range uids {
			tracker.ObserveUID(url, uid)
		}
	}
	if err != nil {
		return m, err
	}
	applyErrs, err := o.applyEvents(ctx, rec, events)
	m["apply_errors"] = applyErrs
	return m, err
}

// applyEvents pushes normalized events through the reconciler. A failure
// on one event is logged and counted; it does not stop the batch.
func (o *Orchestrator) applyEvents(ctx context.Context, rec *reconcile.Reconciler, events []models.NormalizedEvent) (int, error) {
	errCount := 0
	for i := range events {
		if err := ctx.Err(); err != nil {
			return errCount, err
		}
		if _, err := rec.ProcessEvent(ctx, &events[i]); err != nil {
			errCount++
			if o.logger != nil {
				o.logger.Warn().Err(err).Str("uid", events[i].UID).Msg("Event reconcile failed")
			}
		}
	}
	return errCount, nil
}

func (o *Orchestrator) stepReconciliation(ctx context.Context, rec *reconcile.Reconciler) (map[string]int, error) {
	if err := rec.EvaluateRemovals(ctx); err != nil {
		return rec.Stats().Map(), err
	}
	err := rec.RecomputeFlags(ctx)
	return rec.Stats().Map(), err
}
