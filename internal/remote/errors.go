package remote

import (
	"errors"
	"fmt"
)

// ErrNotFound means the server does not know the tag. Absence on the
// server is meaningful in its own right (the basket was never registered
// or has been deleted), so this is never masked by a local fallback.
var ErrNotFound = errors.New("basket not registered on server")

// RequestError is a failed remote call, classified for the write path:
// retryable failures are enqueued for replay, terminal failures are
// surfaced to the caller with nothing applied.
type RequestError struct {
	// StatusCode is the HTTP status, or 0 for transport-level failures.
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *RequestError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("remote request failed: %s", e.Message)
	}
	return fmt.Sprintf("remote request failed: status %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether err should be queued for later replay
// rather than surfaced as terminal. Transport-level failures (no HTTP
// response at all) are always retryable.
func IsRetryable(err error) bool {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Retryable
	}
	return false
}

// transportError wraps a failure that never produced an HTTP response.
func transportError(err error) *RequestError {
	return &RequestError{Message: err.Error(), Retryable: true}
}

// statusError classifies an HTTP error status. 5xx and 429 are transient
// server conditions worth replaying; other 4xx mean the server rejected
// the request and a replay would be rejected identically.
func statusError(code int, body string) *RequestError {
	return &RequestError{
		StatusCode: code,
		Message:    body,
		Retryable:  code >= 500 || code == 429,
	}
}
