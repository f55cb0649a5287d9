package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/ternarybob/arbor"

	"github.com/tidyhost/turnsync/internal/webhook"
)

const maxEmailBody = 10 << 20 // 10 MiB

// EmailHandler accepts forwarded supplier emails and drops their CSV
// attachments into the ingest inbox. Same always-200 contract as the
// job webhook.
type EmailHandler struct {
	logger   arbor.ILogger
	secret   string // optional; empty disables verification
	inboxDir string
	now      func() time.Time
}

func NewEmailHandler(logger arbor.ILogger, secret, inboxDir string) *EmailHandler {
	return &EmailHandler{
		logger:   logger,
		secret:   secret,
		inboxDir: inboxDir,
		now:      time.Now,
	}
}

// HandleEmail reads a raw RFC 5322 message from the request body and
// extracts CSV attachments.
func (h *EmailHandler) HandleEmail(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEmailBody))
	if err != nil {
		h.respond(w, "ignored", 0)
		return
	}

	if h.secret != "" && !webhook.VerifySignature(h.secret, body, r.Header.Get(webhook.HeaderSignature)) {
		if h.logger != nil {
			h.logger.Warn().Str("remote", r.RemoteAddr).Msg("Email webhook signature verification failed")
		}
		h.respond(w, "ignored", 0)
		return
	}

	saved, err := h.extractAttachments(strings.NewReader(string(body)))
	if err != nil {
		if h.logger != nil {
			h.logger.Warn().Err(err).Msg("Email parse failed, message dropped")
		}
		h.respond(w, "ignored", 0)
		return
	}

	if h.logger != nil {
		h.logger.Info().Int("attachments", saved).Msg("Email webhook processed")
	}
	h.respond(w, "accepted", saved)
}

func (h *EmailHandler) extractAttachments(body io.Reader) (int, error) {
	mr, err := mail.CreateReader(body)
	if err != nil {
		return 0, err
	}

	saved := 0
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return saved, err
		}

		attach, ok := part.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		filename, err := attach.Filename()
		if err != nil || !strings.HasSuffix(strings.ToLower(filename), ".csv") {
			continue
		}

		if err := h.saveAttachment(filename, part.Body); err != nil {
			return saved, err
		}
		saved++
	}
	return saved, nil
}

func (h *EmailHandler) saveAttachment(filename string, body io.Reader) error {
	if err := os.MkdirAll(h.inboxDir, 0o755); err != nil {
		return err
	}

	// Keep only the base name; attachment names are attacker-controlled.
	name := filepath.Base(filepath.Clean(filename))
	dest := filepath.Join(h.inboxDir, h.now().Format("20060102_150405")+"_"+name)

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		return err
	}
	if h.logger != nil {
		h.logger.Info().Str("file", dest).Msg("CSV attachment saved to inbox")
	}
	return nil
}

func (h *EmailHandler) respond(w http.ResponseWriter, status string, saved int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{"status": status, "attachments": saved})
}
