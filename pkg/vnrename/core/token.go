package core

import (
	"sync"
	"time"
)

// CancellationToken is a cooperative cancellation flag shared by
// reference between the initiating caller and the worker. Once
// requested it never reverts; a fresh token (or Reset between
// operations) is required to un-cancel. Workers poll Check at
// well-defined loop boundaries, never mid-file.
type CancellationToken struct {
	mu          sync.Mutex
	requested   bool
	reason      string
	requestedAt time.Time
}

// NewCancellationToken returns an untripped token.
func NewCancellationToken() *CancellationToken {
	return &CancellationToken{}
}

// RequestCancellation trips the token. Idempotent: the first reason and
// timestamp win, later calls are no-ops.
func (t *CancellationToken) RequestCancellation(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.requested {
		return
	}
	t.requested = true
	t.reason = reason
	t.requestedAt = time.Now()
}

// Check returns a *CancelledError if cancellation has been requested,
// nil otherwise. This is the explicit checkpoint workers call between
// file operations.
func (t *CancellationToken) Check() *CancelledError {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.requested {
		return &CancelledError{Reason: t.reason}
	}
	return nil
}

// IsCancellationRequested reports the flag without constructing an error.
func (t *CancellationToken) IsCancellationRequested() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requested
}

// Reason returns the recorded cancellation reason, empty if untripped.
func (t *CancellationToken) Reason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// RequestedAt returns when cancellation was first requested.
func (t *CancellationToken) RequestedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requestedAt
}

// Reset clears the token for reuse. Callers must ensure no worker still
// holds a reference expecting the old state; the type does not enforce
// this.
func (t *CancellationToken) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requested = false
	t.reason = ""
	t.requestedAt = time.Time{}
}
