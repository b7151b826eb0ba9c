// Package httpx classifies outbound HTTP failures so callers can tell
// a blip from a dead end without inspecting transport internals.
package httpx

import (
	"context"
	"errors"
	"net"
)

// HTTPStatusCoder is implemented by client errors that carry the
// upstream status code.
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

func IsRetryableHTTPStatus(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

// IsRetryableError reports whether the failure is worth another
// attempt: timeouts, and upstream statuses that signal overload rather
// than rejection.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return IsRetryableHTTPStatus(sc.HTTPStatusCode())
	}
	return false
}
