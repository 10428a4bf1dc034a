// Package executor defines the boundary to the external job executor: the
// collaborator that runs a job instance's opaque step list in isolation and
// reports a single terminal outcome plus produced artifacts. The scheduler
// never interprets step contents.
package executor

import (
	"context"

	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/run"
)

// Outcome is the terminal result reported for one executed job instance.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Result is the executor's report for one job instance.
type Result struct {
	Outcome   Outcome
	Artifacts []run.Artifact
	// Err carries exit information for a failed outcome.
	Err error
}

// Executor executes a job instance's steps. Implementations must honor
// context cancellation cooperatively: a cancelled context should yield a
// cancelled outcome, but a late succeeded/failed result is also acceptable.
type Executor interface {
	Execute(ctx context.Context, job *run.JobInstance, tpl *config.JobTemplate, vars map[string]string) Result
}
