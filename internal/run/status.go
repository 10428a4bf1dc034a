package run

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of a single job instance.
type Status string

const (
	StatusPending   Status = "pending"
	StatusBlocked   Status = "blocked"
	StatusReady     Status = "ready"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusSkipped   Status = "skipped"
)

// ErrInvalidTransition is returned when a status change violates the
// instance state machine.
var ErrInvalidTransition = errors.New("invalid status transition")

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled, StatusSkipped:
		return true
	}
	return false
}

// allowedTransition encodes the instance state machine:
//
//	pending → blocked → ready → running → {succeeded|failed|cancelled}
//
// with skipped and cancelled reachable from any non-running, non-terminal
// state (condition false, unmet needs, fail-fast, run-level cancel).
func allowedTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusBlocked || to == StatusReady || to == StatusSkipped || to == StatusCancelled
	case StatusBlocked:
		return to == StatusReady || to == StatusSkipped || to == StatusCancelled
	case StatusReady:
		return to == StatusRunning || to == StatusSkipped || to == StatusCancelled
	case StatusRunning:
		return to == StatusSucceeded || to == StatusFailed || to == StatusCancelled
	}
	return false
}

// Conclusion is the aggregate outcome of a whole pipeline run.
type Conclusion string

const (
	ConclusionSucceeded Conclusion = "success"
	ConclusionFailed    Conclusion = "failure"
	ConclusionCancelled Conclusion = "cancelled"
)

func transitionError(id string, from, to Status) error {
	return fmt.Errorf("%w for %s: %s -> %s", ErrInvalidTransition, id, from, to)
}
