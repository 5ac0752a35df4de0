package courseapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/courseshera/coursesearch/internal/resilience"
)

// APIError is a non-2xx response from the course API.
type APIError struct {
	Operation  string
	StatusCode int
	Status     string
	Detail     string
}

func (e *APIError) Error() string {
	if e == nil {
		return "course api error"
	}
	return fmt.Sprintf("course api %s: %s", e.Operation, e.Detail)
}

// Retryable reports whether the same request may succeed later.
func (e *APIError) Retryable() bool {
	return isRetryableHTTPStatus(e.StatusCode)
}

// errorDetail extracts the message of a FastAPI style {"detail": ...} body,
// falling back to "Request failed (<code>)".
func errorDetail(statusCode int, body []byte) string {
	fallback := fmt.Sprintf("Request failed (%d)", statusCode)

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return fallback
	}

	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return fallback
		}
		return s
	}
	// Validation errors arrive as a list of objects.
	raw := strings.TrimSpace(string(payload.Detail))
	if raw == "" || raw == "null" {
		return fallback
	}
	return raw
}

// Classify tells the executor which failures are worth retrying and which
// should count against the operation's breaker. Transport errors and
// 408/429/5xx are transient; other API errors and cancellations are the
// caller's fault.
func Classify(err error) resilience.Verdict {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ClientFault
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Retryable() {
			return resilience.Transient
		}
		return resilience.ClientFault
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.Transient
	}
	return resilience.Permanent
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	default:
		return statusCode >= 500 && statusCode <= 599
	}
}
