// Package errors turns non-2xx responses from third-party APIs into errors.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const maxErrorBody = 64 << 10

// HTTPError is a non-2xx response. Body is the raw response text.
type HTTPError struct {
	StatusCode int
	Body       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Retryable reports whether the status is worth another attempt.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// ParseHTTPError returns nil for 2xx/3xx responses and an *HTTPError
// otherwise. The body is consumed. Message is taken from a JSON "message" or
// "error" field when present.
func ParseHTTPError(resp *http.Response) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &HTTPError{StatusCode: resp.StatusCode, Message: "read error body: " + err.Error()}
	}

	httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		httpErr.Message = payload.Message
		if httpErr.Message == "" {
			httpErr.Message = payload.Error
		}
	}
	return httpErr
}

// StatusCode extracts the status from an *HTTPError anywhere in err's chain.
func StatusCode(err error) (int, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, true
	}
	return 0, false
}

// IsRetryable reports whether err wraps a retryable *HTTPError.
func IsRetryable(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Retryable()
}
