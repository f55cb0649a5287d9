package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/tidyhost/turnsync/internal/common"
	"github.com/tidyhost/turnsync/internal/interfaces"
	"github.com/tidyhost/turnsync/internal/webhook"
)

// StatusHandler reports process health and recent orchestrator runs.
type StatusHandler struct {
	logger  arbor.ILogger
	queue   *webhook.Queue
	runs    interfaces.RunStorage
	started time.Time
}

func NewStatusHandler(logger arbor.ILogger, queue *webhook.Queue, runs interfaces.RunStorage) *StatusHandler {
	return &StatusHandler{
		logger:  logger,
		queue:   queue,
		runs:    runs,
		started: time.Now(),
	}
}

// StatusResponse is the GET /api/status payload.
type StatusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Build         string `json:"build"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	QueueDepth    int    `json:"queue_depth"`
	QueueOverflow int    `json:"queue_overflow"`
}

// GetStatus returns process health.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	response := StatusResponse{
		Status:        "ok",
		Version:       common.GetVersion(),
		Build:         common.GetBuild(),
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}
	if h.queue != nil {
		response.QueueDepth = h.queue.Len()
		response.QueueOverflow = h.queue.OverflowCount()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode status response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// GetRuns returns the most recent orchestrator runs from the local journal.
func (h *StatusHandler) GetRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list runs")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(runs); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode runs response")
	}
}
