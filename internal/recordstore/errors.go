package recordstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the record store. Callers branch on
// the classification, not the raw status code.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("record store error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Retryable reports whether the failure is transient.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsAuth reports an authentication/authorization failure. These abort the
// run before touching further external state.
func (e *APIError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsValidation reports a permanent validation failure (bad field, bad
// formula). The offending call is skipped and counted, never retried.
func (e *APIError) IsValidation() bool {
	return e.StatusCode == http.StatusUnprocessableEntity || e.StatusCode == http.StatusBadRequest
}

// TransportError is a network-level failure. Sent=true means the request
// may have reached the store, so non-idempotent calls must not retry.
type TransportError struct {
	Err  error
	Sent bool
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("record store transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func newAPIError(status int, endpoint string, raw []byte) *APIError {
	msg := string(raw)

	// The store wraps errors as {"error":{"type":...,"message":...}}.
	var wrapped struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Error.Message != "" {
		msg = wrapped.Error.Message
	}

	return &APIError{
		StatusCode: status,
		Endpoint:   endpoint,
		Message:    msg,
	}
}

// IsAuthError reports whether any error in the chain is an authentication
// failure from the store.
func IsAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsAuth()
}

// IsRetryable reports whether any error in the chain is transient.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	var transport *TransportError
	return errors.As(err, &transport)
}
