package main

import "fmt"

// ValidationError wraps a rejected Domain Fingerprint or manual request payload.
// It is the only error class ever surfaced to a caller as a 4xx.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg)
}

// TransientError wraps a network/timeout/429/5xx failure from an external
// dependency (upstream log API, reasoning API). Callers should retry or
// fail over; it is never surfaced past the circuit breaker or poller.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps a malformed payload or schema-violating response
// from an external dependency. Counted as a circuit-breaker failure; the
// current domain still commits via a Fallback verdict.
type PermanentError struct {
	Op  string
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent: %s: %v", e.Op, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// InternalInvariantError marks a detected state inconsistency (cache,
// dedup, breaker). The component that raises it self-heals by resetting
// the offending substate; the current operation still commits via
// Fallback.
type InternalInvariantError struct {
	Component string
	Detail    string
}

func (e *InternalInvariantError) Error() string {
	return fmt.Sprintf("internal invariant violated in %s: %s", e.Component, e.Detail)
}

// ResourceExhaustionError marks a bounded resource (worker pool,
// subscriber queue) that was full when an event needed to be admitted.
// The event is dropped; the system continues.
type ResourceExhaustionError struct {
	Resource string
}

func (e *ResourceExhaustionError) Error() string {
	return fmt.Sprintf("resource exhausted: %s", e.Resource)
}
