// Package fetch retrieves page HTML, statically via colly or through a
// headless JS-rendering fallback, with bounded retries and timeouts.
package fetch

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Page is the result of fetching a URL.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	UsedJS     bool
}

// ErrorKind classifies fetch failures.
type ErrorKind string

const (
	KindTimeout      ErrorKind = "timeout"
	KindHTTPError    ErrorKind = "httpError"
	KindNetworkError ErrorKind = "networkError"
)

// Error is a typed fetch failure surfaced to the orchestrator after the
// fetcher's own retries are exhausted.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient: timeouts, connection
// problems, and 5xx responses. Other HTTP errors are terminal.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindNetworkError:
		return true
	case KindHTTPError:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// AsError extracts a *Error from err when present.
func AsError(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
