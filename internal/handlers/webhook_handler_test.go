package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidyhost/turnsync/internal/webhook"
)

const (
	sigSecret      = "sig-secret"
	internalSecret = "internal-secret"
)

func newHandler(t *testing.T) (*WebhookHandler, *webhook.Queue) {
	t.Helper()
	q := webhook.NewQueue(10, t.TempDir(), nil)
	return NewWebhookHandler(nil, sigSecret, internalSecret, q), q
}

func post(h http.HandlerFunc, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/service", bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func validBody() []byte {
	return []byte(`{"event":"job.updated","job":{"id":"job_1","work_status":"scheduled","schedule":{"scheduled_start":"2025-09-05T10:15:00Z"}}}`)
}

func TestHandleEvent_SignedEventEnqueued(t *testing.T) {
	h, q := newHandler(t)
	body := validBody()

	w := post(h.HandleEvent, body, map[string]string{
		webhook.HeaderSignature: webhook.Sign(sigSecret, body),
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "accepted")
	require.Equal(t, 1, q.Len())

	e := <-q.Events()
	assert.Equal(t, "job_1", e.JobID)
	assert.Equal(t, "scheduled", e.WorkStatus)
	assert.NotEmpty(t, e.ID)
	require.NotNil(t, e.ScheduledStart)
}

func TestHandleEvent_InternalAuthAccepted(t *testing.T) {
	h, q := newHandler(t)

	w := post(h.HandleEvent, validBody(), map[string]string{
		webhook.HeaderInternalAuth: internalSecret,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, q.Len())
}

// Bad signatures still get 200: non-2xx responses cause the sender to
// disable the endpoint.
func TestHandleEvent_BadSignatureReturns200AndDrops(t *testing.T) {
	h, q := newHandler(t)

	w := post(h.HandleEvent, validBody(), map[string]string{
		webhook.HeaderSignature: "sha256=" + strings.Repeat("0", 64),
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
	assert.Zero(t, q.Len())
}

func TestHandleEvent_NoAuthReturns200AndDrops(t *testing.T) {
	h, q := newHandler(t)
	w := post(h.HandleEvent, validBody(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, q.Len())
}

// Malformed JSON is the one protocol error that is not absorbed.
func TestHandleEvent_MalformedJSONIs400(t *testing.T) {
	h, q := newHandler(t)
	body := []byte(`{"event":`)

	w := post(h.HandleEvent, body, map[string]string{
		webhook.HeaderSignature: webhook.Sign(sigSecret, body),
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, q.Len())
}

func TestHandleEvent_FullQueueStillReturns200(t *testing.T) {
	q := webhook.NewQueue(1, t.TempDir(), nil)
	h := NewWebhookHandler(nil, sigSecret, internalSecret, q)
	body := validBody()
	headers := map[string]string{webhook.HeaderSignature: webhook.Sign(sigSecret, body)}

	for i := 0; i < 3; i++ {
		w := post(h.HandleEvent, body, headers)
		assert.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 2, q.OverflowCount())
}

const testEmail = "From: reports@supplier.example\r\n" +
	"To: ops@tidyhost.example\r\n" +
	"Subject: Daily export\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=BOUNDARY\r\n" +
	"\r\n" +
	"--BOUNDARY\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"Attached.\r\n" +
	"--BOUNDARY\r\n" +
	"Content-Type: text/csv\r\n" +
	"Content-Disposition: attachment; filename=\"daily_export.csv\"\r\n" +
	"\r\n" +
	"Property Name,Checkin,Checkout,Tenant Name\r\n" +
	"Desert Rose Villa,09/01/2025,09/05/2025,Alice Smith\r\n" +
	"--BOUNDARY--\r\n"

func TestHandleEmail_SavesCSVAttachment(t *testing.T) {
	inbox := t.TempDir()
	h := NewEmailHandler(nil, "", inbox)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/email", strings.NewReader(testEmail))
	w := httptest.NewRecorder()
	h.HandleEmail(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"attachments":1`)

	entries, err := os.ReadDir(inbox)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "_daily_export.csv"))

	content, err := os.ReadFile(filepath.Join(inbox, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(content), "Desert Rose Villa")
}

func TestHandleEmail_GarbageBodyStill200(t *testing.T) {
	h := NewEmailHandler(nil, "", t.TempDir())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/email", strings.NewReader("not an email"))
	w := httptest.NewRecorder()
	h.HandleEmail(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
}

func TestHandleEmail_SignatureEnforcedWhenConfigured(t *testing.T) {
	inbox := t.TempDir()
	h := NewEmailHandler(nil, "email-secret", inbox)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/email", strings.NewReader(testEmail))
	w := httptest.NewRecorder()
	h.HandleEmail(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	entries, err := os.ReadDir(inbox)
	require.NoError(t, err)
	assert.Empty(t, entries, "unsigned email must not reach the inbox")

	req = httptest.NewRequest(http.MethodPost, "/webhooks/email", strings.NewReader(testEmail))
	req.Header.Set(webhook.HeaderSignature, webhook.Sign("email-secret", []byte(testEmail)))
	w = httptest.NewRecorder()
	h.HandleEmail(w, req)

	entries, err = os.ReadDir(inbox)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
