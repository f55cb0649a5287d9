// Package recordstore implements the typed gateway over the hosted
// document database. All persisted reservation state flows through here.
package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/tidyhost/turnsync/internal/interfaces"
)

const (
	// DefaultBaseURL is the base URL for the record-store API.
	DefaultBaseURL = "https://api.airtable.com/v0"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// batchUpdateChunk is the store's per-request record limit.
	batchUpdateChunk = 10
)

// Client is a record-store API client implementing interfaces.RecordStore.
type Client struct {
	baseURL    string
	baseID     string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
	retry      *RetryPolicy
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(policy *RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = policy
	}
}

// NewClient creates a new record-store client for one base.
func NewClient(apiKey, baseID string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		baseID:  baseID,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		retry: NewRetryPolicy(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type listResponse struct {
	Records []interfaces.Record `json:"records"`
	Offset  string              `json:"offset"`
}

// List returns records from a table, following pagination offsets until
// the result set is exhausted or MaxRecords is reached.
func (c *Client) List(ctx context.Context, table string, opts interfaces.ListOptions) ([]interfaces.Record, error) {
	var all []interfaces.Record
	offset := ""

	for {
		params := url.Values{}
		if opts.Formula != "" {
			params.Set("filterByFormula", opts.Formula)
		}
		if opts.View != "" {
			params.Set("view", opts.View)
		}
		if opts.MaxRecords > 0 {
			params.Set("maxRecords", strconv.Itoa(opts.MaxRecords))
		}
		for _, f := range opts.Fields {
			params.Add("fields[]", f)
		}
		if offset != "" {
			params.Set("offset", offset)
		}

		var page listResponse
		if err := c.do(ctx, http.MethodGet, c.tablePath(table), params, nil, &page, true); err != nil {
			return nil, err
		}

		all = append(all, page.Records...)

		if page.Offset == "" || (opts.MaxRecords > 0 && len(all) >= opts.MaxRecords) {
			break
		}
		offset = page.Offset
	}

	return all, nil
}

// Find fetches one record by id.
func (c *Client) Find(ctx context.Context, table, id string) (*interfaces.Record, error) {
	var rec interfaces.Record
	if err := c.do(ctx, http.MethodGet, c.tablePath(table)+"/"+id, nil, nil, &rec, true); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create inserts a record. Creation is not blindly retried: a transport
// failure after the request was sent leaves the outcome unknown, and the
// caller must query before trying again.
func (c *Client) Create(ctx context.Context, table string, fields map[string]any) (*interfaces.Record, error) {
	body := map[string]any{"fields": fields}

	var rec interfaces.Record
	if err := c.do(ctx, http.MethodPost, c.tablePath(table), nil, body, &rec, false); err != nil {
		return nil, err
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("table", table).
			Str("record_id", rec.ID).
			Msg("Record created")
	}
	return &rec, nil
}

// Update patches fields on a record.
func (c *Client) Update(ctx context.Context, table, id string, fields map[string]any) (*interfaces.Record, error) {
	body := map[string]any{"fields": fields}

	var rec interfaces.Record
	if err := c.do(ctx, http.MethodPatch, c.tablePath(table)+"/"+id, nil, body, &rec, true); err != nil {
		return nil, err
	}
	return &rec, nil
}

// BatchUpdate patches multiple records, chunked to the store's limit.
func (c *Client) BatchUpdate(ctx context.Context, table string, updates map[string]map[string]any) error {
	type recordPatch struct {
		ID     string         `json:"id"`
		Fields map[string]any `json:"fields"`
	}

	patches := make([]recordPatch, 0, len(updates))
	for id, fields := range updates {
		patches = append(patches, recordPatch{ID: id, Fields: fields})
	}

	for start := 0; start < len(patches); start += batchUpdateChunk {
		end := start + batchUpdateChunk
		if end > len(patches) {
			end = len(patches)
		}

		body := map[string]any{"records": patches[start:end]}
		var resp listResponse
		if err := c.do(ctx, http.MethodPatch, c.tablePath(table), nil, body, &resp, true); err != nil {
			return fmt.Errorf("batch update failed at chunk %d: %w", start/batchUpdateChunk, err)
		}
	}

	return nil
}

// ListLinked fetches the records behind a linked-record field.
func (c *Client) ListLinked(ctx context.Context, table string, ids []string) ([]interfaces.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	terms := make([]string, 0, len(ids))
	for _, id := range ids {
		terms = append(terms, Eq("RECORD_ID()", id))
	}
	return c.List(ctx, table, interfaces.ListOptions{Formula: Or(terms...)})
}

func (c *Client) tablePath(table string) string {
	return fmt.Sprintf("/%s/%s", c.baseID, url.PathEscape(table))
}

// do performs one API call with retries. idempotent=false limits retries
// to failures where the request is known not to have been applied.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any, result any, idempotent bool) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	attempt := 0
	for {
		err := c.doOnce(ctx, method, path, params, payload, result)
		if err == nil {
			return nil
		}

		if !c.retry.ShouldRetry(attempt, err, idempotent) {
			return err
		}

		backoff := c.retry.Backoff(attempt)
		if c.logger != nil {
			c.logger.Debug().
				Int("attempt", attempt+1).
				Str("path", path).
				Dur("backoff", backoff).
				Err(err).
				Msg("Record store retry")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		attempt++
	}
}

func (c *Client) doOnce(ctx context.Context, method, path string, params url.Values, payload []byte, result any) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err, Sent: method != http.MethodGet}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return newAPIError(resp.StatusCode, path, raw)
	}

	if result == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
