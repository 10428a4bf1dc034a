package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/executor"
	"github.com/vk/pipewright/internal/run"
)

// FakeExecutor is a scripted executor. Outcomes are looked up by instance
// ID first, then by template name; unscripted jobs succeed. Gates allow a
// test to control completion order across concurrently running instances.
type FakeExecutor struct {
	mu        sync.Mutex
	outcomes  map[string]executor.Outcome
	artifacts map[string][]run.Artifact
	gates     map[string]chan struct{}
	executed  []string
}

// NewFakeExecutor returns an executor where every job succeeds.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{
		outcomes:  make(map[string]executor.Outcome),
		artifacts: make(map[string][]run.Artifact),
		gates:     make(map[string]chan struct{}),
	}
}

// Script sets the outcome for an instance ID or template name.
func (f *FakeExecutor) Script(key string, outcome executor.Outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[key] = outcome
}

// Produce sets the artifacts reported for an instance ID or template name.
func (f *FakeExecutor) Produce(key string, arts ...run.Artifact) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artifacts[key] = arts
}

// Gate makes the job block until the returned channel is closed, or until
// its context is cancelled.
func (f *FakeExecutor) Gate(key string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gates[key] = gate
	return gate
}

// Executed returns the instance IDs that reached the executor, in start
// order.
func (f *FakeExecutor) Executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.executed))
	copy(out, f.executed)
	return out
}

func (f *FakeExecutor) lookup(m map[string]executor.Outcome, job *run.JobInstance) (executor.Outcome, bool) {
	if o, ok := m[job.ID]; ok {
		return o, true
	}
	o, ok := m[job.Template]
	return o, ok
}

// Execute implements executor.Executor.
func (f *FakeExecutor) Execute(ctx context.Context, job *run.JobInstance, tpl *config.JobTemplate, vars map[string]string) executor.Result {
	f.mu.Lock()
	f.executed = append(f.executed, job.ID)
	gate := f.gates[job.ID]
	if gate == nil {
		gate = f.gates[job.Template]
	}
	outcome, scripted := f.lookup(f.outcomes, job)
	arts := f.artifacts[job.ID]
	if arts == nil {
		arts = f.artifacts[job.Template]
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return executor.Result{Outcome: executor.OutcomeCancelled, Err: ctx.Err()}
		}
	}
	if ctx.Err() != nil {
		return executor.Result{Outcome: executor.OutcomeCancelled, Err: ctx.Err()}
	}

	if !scripted {
		outcome = executor.OutcomeSucceeded
	}
	res := executor.Result{Outcome: outcome}
	switch outcome {
	case executor.OutcomeSucceeded:
		res.Artifacts = arts
	case executor.OutcomeFailed:
		res.Err = errors.New("scripted failure")
	case executor.OutcomeCancelled:
		res.Err = context.Canceled
	}
	return res
}

var _ executor.Executor = (*FakeExecutor)(nil)
