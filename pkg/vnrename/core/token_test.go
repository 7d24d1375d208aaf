package core

import (
	"errors"
	"testing"
)

func TestCancellationTokenInitialState(t *testing.T) {
	token := NewCancellationToken()

	if token.IsCancellationRequested() {
		t.Error("fresh token should not be cancelled")
	}
	if err := token.Check(); err != nil {
		t.Errorf("Check on fresh token returned %v, want nil", err)
	}
}

func TestCancellationTokenMonotonic(t *testing.T) {
	token := NewCancellationToken()
	token.RequestCancellation("first")

	// Every subsequent Check must fail, no matter how often the
	// cancellation is re-requested.
	for i := 0; i < 3; i++ {
		err := token.Check()
		if err == nil {
			t.Fatalf("Check #%d returned nil after cancellation", i)
		}
		var cerr *CancelledError
		if !errors.As(err, &cerr) {
			t.Fatalf("Check returned %T, want *CancelledError", err)
		}
		token.RequestCancellation("again")
	}
}

func TestCancellationTokenFirstReasonWins(t *testing.T) {
	token := NewCancellationToken()
	token.RequestCancellation("user closed window")
	firstAt := token.RequestedAt()

	token.RequestCancellation("second reason")

	if got := token.Reason(); got != "user closed window" {
		t.Errorf("Reason = %q, want the first reason", got)
	}
	if !token.RequestedAt().Equal(firstAt) {
		t.Error("RequestedAt changed on repeated cancellation")
	}
}

func TestCancellationTokenReset(t *testing.T) {
	token := NewCancellationToken()
	token.RequestCancellation("done with this one")
	token.Reset()

	if token.IsCancellationRequested() {
		t.Error("token still cancelled after Reset")
	}
	if err := token.Check(); err != nil {
		t.Errorf("Check after Reset returned %v, want nil", err)
	}
}

func TestIsCancelled(t *testing.T) {
	if !IsCancelled(&CancelledError{Reason: "stop"}) {
		t.Error("IsCancelled should detect a direct CancelledError")
	}
	if IsCancelled(errors.New("plain error")) {
		t.Error("IsCancelled misclassified a plain error")
	}
}
