// Package enrich orchestrates website metadata enrichment across many
// organizations. It owns the in-memory state the directory reads
// (per-organization records, loading flags, retry counters, progress and a
// short-lived status message) and drives the metadata endpoint through a
// retry state machine and a batch scheduler.
//
// Only this package writes to the Store; everything else reads it.
package enrich

import (
	"errors"
	"fmt"
	"net/http"
)

// AggregateSweepMessage is the single status line shown when a sweep aborts.
const AggregateSweepMessage = "Some website metadata could not be loaded. Use refresh to try again."

// ErrIncompleteRecord marks a 2xx answer whose record lacks a display field.
// It is retryable: a proxy error page or a skewed server version may be
// transient, and exhaustion still ends in a fallback record.
var ErrIncompleteRecord = errors.New("metadata endpoint returned an incomplete record")

// EndpointError is a non-2xx answer from the metadata endpoint.
type EndpointError struct {
	StatusCode int
	// Message is the endpoint's {"error": ...} text, when present.
	Message string
}

func (e *EndpointError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("metadata endpoint returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("metadata endpoint returned %d", e.StatusCode)
}

// Terminal reports whether retrying cannot change the answer. The endpoint
// answers 400 only for a missing or malformed url parameter.
func (e *EndpointError) Terminal() bool { return e.StatusCode == http.StatusBadRequest }

// IsTerminal reports whether err is a terminal endpoint rejection.
func IsTerminal(err error) bool {
	var ee *EndpointError
	return errors.As(err, &ee) && ee.Terminal()
}

// SweepError is returned by Scheduler.Reconcile when orchestration itself
// fails (a panic outside a task or context cancellation). Loading flags of
// the unfinished candidates have already been cleared when it is returned.
type SweepError struct {
	Cause error
	// Abandoned counts the candidates whose loading flag was cleared.
	Abandoned int
}

func (e *SweepError) Error() string {
	return fmt.Sprintf("enrichment sweep aborted (%d pending): %v", e.Abandoned, e.Cause)
}

func (e *SweepError) Unwrap() error { return e.Cause }
