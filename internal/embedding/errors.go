package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// StatusError carries the HTTP status a provider answered with. A zero
// StatusCode means the request never got a response.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("embedding provider unreachable: %v", e.Err)
	}
	return fmt.Sprintf("embedding provider returned %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether a provider error is worth retrying: network
// failures, per-call timeouts, rate limiting and server errors.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == 0 ||
			se.StatusCode == http.StatusTooManyRequests ||
			se.StatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
