package models

import "time"

// StepOutcome is the per-step result written back to the Automations table
// and journaled locally.
type StepOutcome struct {
	Step      string         `json:"step"`
	Success   bool           `json:"success"`
	Duration  time.Duration  `json:"duration"`
	Message   string         `json:"message"`
	Stats     map[string]int `json:"stats,omitempty"`
	Skipped   bool           `json:"skipped"`
	StartedAt time.Time      `json:"started_at"`
}

// RunSummary records one orchestrator suite run.
type RunSummary struct {
	ID         string        `json:"id" badgerhold:"key"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Steps      []StepOutcome `json:"steps"`
}

// Automation mirrors a row of the Automations control table in the record
// store: a named step with an enable switch and last-outcome fields.
type Automation struct {
	RecordID    string
	Name        string
	Enabled     bool
	LastRunAt   *time.Time
	LastMessage string
	LastSuccess bool
}
