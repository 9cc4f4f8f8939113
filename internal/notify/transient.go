package notify

import (
	"context"
	"errors"
	"net"
	"strings"
)

// transientSignatures are substrings of error text that mark a failure as
// worth retrying: throttling, timeouts, temporary unavailability.
var transientSignatures = []string{
	"throttl",
	"timeout",
	"timed out",
	"unavailable",
	"too many",
	"rate",
	"connection reset",
	"connection refused",
	"temporar",
	"try again",
}

// IsTransient reports whether the failure looks retryable. Anything else is
// treated as permanent and goes straight to the audit trail.
func IsTransient(err error) bool {
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
	msg := strings.ToLower(err.Error())
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
