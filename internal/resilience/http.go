package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPStatusError is a non-2xx response from an HTTP collaborator.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string

	// RetryAfter is the parsed Retry-After header, zero if absent.
	RetryAfter time.Duration

	// Err is the client library's own error, if any.
	Err error
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "http status error"
	}
	msg := fmt.Sprintf("%s status: %d", e.Operation, e.StatusCode)
	if e.Status != "" {
		msg = fmt.Sprintf("%s status: %s", e.Operation, e.Status)
	}
	switch {
	case e.Err != nil:
		return msg + ": " + e.Err.Error()
	case strings.TrimSpace(e.Body) != "":
		return msg + ": " + strings.TrimSpace(e.Body)
	}
	return msg
}

func (e *HTTPStatusError) Unwrap() error { return e.Err }

// IsRetryableHTTPStatus reports whether a status is worth retrying:
// 408, 429 and the 5xx gateway family.
func IsRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// ParseRetryAfter parses a Retry-After header given either as delay
// seconds or as an HTTP date. Past dates and malformed values yield zero.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// ClassifyHTTP is the classifier for HTTP collaborators (embedding and
// chat providers). Caller cancellation is never retried; retryable
// statuses, network errors and open breakers are.
func ClassifyHTTP(err error) ErrorClassification {
	if err == nil {
		return ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if IsCircuitOpen(err) {
		return ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if IsRetryableHTTPStatus(statusErr.StatusCode) {
			return ErrorClassification{
				Retryable:     true,
				RecordFailure: true,
				RetryAfter:    statusErr.RetryAfter,
			}
		}
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	return ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}
