package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/tidyhost/turnsync/internal/interfaces"
	"github.com/tidyhost/turnsync/internal/models"
)

// AutomationRepo implements interfaces.AutomationStore over the Automations
// control table.
type AutomationRepo struct {
	store  interfaces.RecordStore
	logger arbor.ILogger
}

// NewAutomationRepo creates an automation repository.
func NewAutomationRepo(store interfaces.RecordStore, logger arbor.ILogger) interfaces.AutomationStore {
	return &AutomationRepo{
		store:  store,
		logger: logger,
	}
}

// StepEnabled reports whether the named step may run. A step without a row
// defaults to enabled; the table is a kill switch, not an allow list.
func (r *AutomationRepo) StepEnabled(ctx context.Context, name string) (bool, error) {
	rec, err := r.find(ctx, name)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return true, nil
	}
	return getBool(rec.Fields, FieldAutomationEnabled), nil
}

// RecordOutcome writes a step outcome to the step's row, creating the row
// on first use.
func (r *AutomationRepo) RecordOutcome(ctx context.Context, name string, outcome models.StepOutcome) error {
	fields := map[string]any{
		FieldAutomationLastRun: outcome.StartedAt.UTC().Format(time.RFC3339),
		FieldAutomationMessage: outcome.Message,
		FieldAutomationSuccess: outcome.Success,
		FieldAutomationSeconds: outcome.Duration.Seconds(),
	}

	if len(outcome.Stats) > 0 {
		if raw, err := json.Marshal(outcome.Stats); err == nil {
			fields[FieldAutomationStats] = string(raw)
		}
	}

	rec, err := r.find(ctx, name)
	if err != nil {
		return err
	}

	if rec == nil {
		fields[FieldAutomationName] = name
		fields[FieldAutomationEnabled] = true
		if _, err := r.store.Create(ctx, TableAutomations, fields); err != nil {
			return fmt.Errorf("failed to create automation row %s: %w", name, err)
		}
		return nil
	}

	if _, err := r.store.Update(ctx, TableAutomations, rec.ID, fields); err != nil {
		return fmt.Errorf("failed to update automation row %s: %w", name, err)
	}
	return nil
}

func (r *AutomationRepo) find(ctx context.Context, name string) (*interfaces.Record, error) {
	records, err := r.store.List(ctx, TableAutomations, interfaces.ListOptions{
		Formula:    Eq(FieldAutomationName, name),
		MaxRecords: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("automation lookup failed for %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}
