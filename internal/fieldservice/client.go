// Package fieldservice provides a client for the downstream field-service
// job API. Requests are throttled by a process-wide token bucket and obey
// the API's RateLimit-Reset header on 429.
package fieldservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/tidyhost/turnsync/internal/interfaces"
)

const (
	// DefaultBaseURL is the base URL for the field-service API.
	DefaultBaseURL = "https://api.housecallpro.com"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultRequestsPerMinute is the default token bucket target.
	DefaultRequestsPerMinute = 300

	// maxAttempts caps retries on 429 responses.
	maxAttempts = 3
)

// Client is a field-service API client implementing
// interfaces.FieldServiceClient.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
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

// WithRateLimit sets the requests-per-minute target.
func WithRateLimit(requestsPerMinute int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 5)
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new field-service API client.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(float64(DefaultRequestsPerMinute)/60.0), 5),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetJob fetches a job by id.
func (c *Client) GetJob(ctx context.Context, id string) (*interfaces.Job, error) {
	var job interfaces.Job
	if err := c.do(ctx, http.MethodGet, "/jobs/"+id, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJob creates a new job.
func (c *Client) CreateJob(ctx context.Context, req *interfaces.CreateJobRequest) (*interfaces.Job, error) {
	var job interfaces.Job
	if err := c.do(ctx, http.MethodPost, "/jobs", req, &job); err != nil {
		return nil, err
	}

	if c.logger != nil {
		c.logger.Info().
			Str("job_id", job.ID).
			Str("customer_id", req.CustomerID).
			Msg("Field-service job created")
	}
	return &job, nil
}

type lineItemsResponse struct {
	Data []interfaces.LineItem `json:"data"`
}

// ListJobLineItems lists the line items on a job.
func (c *Client) ListJobLineItems(ctx context.Context, jobID string) ([]interfaces.LineItem, error) {
	var resp lineItemsResponse
	if err := c.do(ctx, http.MethodGet, "/jobs/"+jobID+"/line_items", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// BulkUpdateLineItems replaces the line items on a job.
func (c *Client) BulkUpdateLineItems(ctx context.Context, jobID string, items []interfaces.LineItem) error {
	body := map[string]any{"line_items": items}
	return c.do(ctx, http.MethodPut, "/jobs/"+jobID+"/line_items/bulk_update", body, nil)
}

type appointmentsResponse struct {
	Appointments []interfaces.JobAppointment `json:"appointments"`
}

// ListAppointments lists the appointments attached to a job.
func (c *Client) ListAppointments(ctx context.Context, jobID string) ([]interfaces.JobAppointment, error) {
	var resp appointmentsResponse
	if err := c.do(ctx, http.MethodGet, "/jobs/"+jobID+"/appointments", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Appointments, nil
}

// do performs one API call, waiting on the token bucket first and
// retrying 429 responses per the RateLimit-Reset header.
func (c *Client) do(ctx context.Context, method, path string, body any, result any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		retryAfter, err := c.doOnce(ctx, method, path, payload, result)
		if err == nil {
			return nil
		}

		var rlErr *RateLimitError
		if !errors.As(err, &rlErr) || attempt == maxAttempts-1 {
			return err
		}

		wait := retryAfter
		if wait <= 0 {
			wait = time.Duration(1<<uint(attempt)) * time.Second
		}
		if c.logger != nil {
			c.logger.Debug().
				Int("attempt", attempt+1).
				Dur("wait", wait).
				Str("path", path).
				Msg("Field service rate limited, backing off")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("field service: retries exhausted for %s %s", method, path)
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte, result any) (time.Duration, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("field service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if reset := resp.Header.Get("RateLimit-Reset"); reset != "" {
			if secs, err := strconv.Atoi(reset); err == nil && secs > 0 {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		io.Copy(io.Discard, resp.Body)
		return retryAfter, &RateLimitError{RetryAfter: retryAfter}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   path,
			Message:    string(raw),
		}
	}

	if result == nil {
		io.Copy(io.Discard, resp.Body)
		return 0, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	return 0, nil
}
