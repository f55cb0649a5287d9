// Package handlers contains the HTTP surface. Webhook endpoints follow
// the always-200 contract: the sender disables endpoints that return
// non-2xx, so every internal failure is absorbed and handled internally.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/tidyhost/turnsync/internal/models"
	"github.com/tidyhost/turnsync/internal/webhook"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// WebhookHandler accepts field-service job lifecycle events.
type WebhookHandler struct {
	logger          arbor.ILogger
	signatureSecret string
	internalSecret  string
	queue           *webhook.Queue
	now             func() time.Time
}

func NewWebhookHandler(logger arbor.ILogger, signatureSecret, internalSecret string, queue *webhook.Queue) *WebhookHandler {
	return &WebhookHandler{
		logger:          logger,
		signatureSecret: signatureSecret,
		internalSecret:  internalSecret,
		queue:           queue,
		now:             time.Now,
	}
}

// inboundEvent is the minimal parse of the sender's payload.
type inboundEvent struct {
	Event string `json:"event"`
	Job   struct {
		ID         string `json:"id"`
		WorkStatus string `json:"work_status"`
		Schedule   struct {
			ScheduledStart *time.Time `json:"scheduled_start"`
			ScheduledEnd   *time.Time `json:"scheduled_end"`
		} `json:"schedule"`
	} `json:"job"`
}

// HandleEvent verifies, parses, enqueues, responds. No store access here.
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.respond(w, "ignored")
		return
	}

	if !h.authorized(r, body) {
		if h.logger != nil {
			h.logger.Warn().Str("remote", r.RemoteAddr).Msg("Webhook signature verification failed, event dropped")
		}
		h.respond(w, "ignored")
		return
	}

	var in inboundEvent
	if err := json.Unmarshal(body, &in); err != nil {
		// Malformed JSON is a protocol error, the one case that is not
		// absorbed.
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	event := models.WebhookEvent{
		ID:             uuid.NewString(),
		EventType:      in.Event,
		JobID:          in.Job.ID,
		WorkStatus:     in.Job.WorkStatus,
		ScheduledStart: in.Job.Schedule.ScheduledStart,
		ScheduledEnd:   in.Job.Schedule.ScheduledEnd,
		ReceivedAt:     h.now(),
	}
	h.queue.Enqueue(event)

	if h.logger != nil {
		h.logger.Debug().
			Str("event_id", event.ID).
			Str("event", event.EventType).
			Str("job_id", event.JobID).
			Msg("Webhook event accepted")
	}
	h.respond(w, "accepted")
}

// authorized accepts either a valid HMAC signature or the trusted
// forwarder's shared secret.
func (h *WebhookHandler) authorized(r *http.Request, body []byte) bool {
	if webhook.VerifySignature(h.signatureSecret, body, r.Header.Get(webhook.HeaderSignature)) {
		return true
	}
	return webhook.VerifyInternalAuth(h.internalSecret, r.Header.Get(webhook.HeaderInternalAuth))
}

func (h *WebhookHandler) respond(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
