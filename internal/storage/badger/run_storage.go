package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/tidyhost/turnsync/internal/models"
)

// RunStorage journals orchestrator runs.
type RunStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

func NewRunStorage(db *BadgerDB, logger arbor.ILogger) *RunStorage {
	return &RunStorage{db: db, logger: logger}
}

// SaveRun upserts one run summary.
func (s *RunStorage) SaveRun(ctx context.Context, run *models.RunSummary) error {
	if err := s.db.Store().Upsert(run.ID, run); err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *RunStorage) ListRuns(ctx context.Context, limit int) ([]*models.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	var runs []*models.RunSummary
	query := badgerhold.Where("ID").Ne("").SortBy("StartedAt").Reverse().Limit(limit)
	if err := s.db.Store().Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}
