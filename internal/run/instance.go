package run

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// Binding is one resolved matrix axis value on a job instance.
type Binding struct {
	Axis  string
	Value string
}

// Artifact is a named output file produced by a job instance.
type Artifact struct {
	// Name is the path relative to the job working directory, used for
	// glob matching by the release publisher.
	Name string
	// Path is the absolute location on disk.
	Path string
}

// JobInstance is one concrete unit of work: a job template crossed with one
// point of its matrix (or the template itself when there is no matrix).
// Status and artifacts are mutated only by the scheduler and, through
// outcome reporting, the job executor.
type JobInstance struct {
	ID       string
	Template string
	Bindings []Binding

	mu        sync.Mutex
	status    Status
	err       error
	artifacts []Artifact

	// cancelRequested records fail-fast or run-level cancellation intent.
	// It is advisory for a running instance: a late succeeded/failed
	// outcome from the executor is still honored.
	cancelRequested atomic.Bool
}

// NewInstance creates a pending instance for the given template and bindings.
func NewInstance(template string, bindings []Binding) *JobInstance {
	return &JobInstance{
		ID:       instanceID(template, bindings),
		Template: template,
		Bindings: bindings,
		status:   StatusPending,
	}
}

func instanceID(template string, bindings []Binding) string {
	if len(bindings) == 0 {
		return "job." + template
	}
	parts := make([]string, len(bindings))
	for i, b := range bindings {
		parts[i] = fmt.Sprintf("%s=%s", b.Axis, b.Value)
	}
	return fmt.Sprintf("job.%s[%s]", template, strings.Join(parts, ","))
}

// Status returns the instance's current status.
func (j *JobInstance) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Transition moves the instance to the given status, enforcing the state
// machine. Transitioning a terminal instance returns ErrInvalidTransition.
func (j *JobInstance) Transition(to Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !allowedTransition(j.status, to) {
		return transitionError(j.ID, j.status, to)
	}
	j.status = to
	return nil
}

// TryTransition is Transition for call sites where losing the race to a
// concurrent terminal transition is expected. It reports whether the change
// was applied.
func (j *JobInstance) TryTransition(to Status) bool {
	return j.Transition(to) == nil
}

// Err returns the failure recorded on the instance, if any.
func (j *JobInstance) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// SetErr records the failure cause for a failed or skipped instance.
func (j *JobInstance) SetErr(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.err = err
}

// Artifacts returns the artifacts reported by the executor.
func (j *JobInstance) Artifacts() []Artifact {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Artifact, len(j.artifacts))
	copy(out, j.artifacts)
	return out
}

// AddArtifacts appends executor-reported artifacts to the instance.
func (j *JobInstance) AddArtifacts(arts ...Artifact) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.artifacts = append(j.artifacts, arts...)
}

// RequestCancel records cancellation intent on the instance.
func (j *JobInstance) RequestCancel() {
	j.cancelRequested.Store(true)
}

// CancelRequested reports whether cancellation was requested, regardless of
// the outcome the executor eventually reported.
func (j *JobInstance) CancelRequested() bool {
	return j.cancelRequested.Load()
}
