package notify

import (
	"context"
	"errors"
	"testing"
)

func TestIsTransient(t *testing.T) {
	transient := []error{
		errors.New("dial tcp: i/o timeout"),
		errors.New("smtp: connection timed out"),
		errors.New("service unavailable"),
		errors.New("Throttling: rate exceeded"),
		errors.New("too many connections"),
		errors.New("read: connection reset by peer"),
		context.DeadlineExceeded,
	}
	for _, err := range transient {
		if !IsTransient(err) {
			t.Errorf("expected %q to be transient", err)
		}
	}

	permanent := []error{
		errors.New("550 mailbox does not exist"),
		errors.New("invalid sender address"),
		errors.New("authentication failed"),
	}
	for _, err := range permanent {
		if IsTransient(err) {
			t.Errorf("expected %q to be permanent", err)
		}
	}

	if IsTransient(nil) {
		t.Error("nil error must not be transient")
	}
}
