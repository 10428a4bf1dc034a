// Package run holds the owned aggregate for one pipeline execution: the
// triggering event, its resolved variables, and every job instance the run
// owns. Keeping run state on an explicit aggregate (rather than ambient
// globals) keeps concurrent runs isolated.
package run

import (
	"github.com/google/uuid"

	"github.com/vk/pipewright/internal/event"
)

// PipelineRun identifies one execution of a pipeline triggered by a single
// event. The instance set is mutated only by the scheduler.
type PipelineRun struct {
	ID       string
	Pipeline string
	Event    *event.Event

	// Vars maps run variable names (ref, ref_name, event_name, ...) to
	// their resolved string values. Injected into step environments and
	// condition evaluation.
	Vars map[string]string

	instances  []*JobInstance
	byTemplate map[string][]*JobInstance
}

// New allocates a run for the given pipeline and event.
func New(pipeline string, ev *event.Event, vars map[string]string) *PipelineRun {
	return &PipelineRun{
		ID:         uuid.NewString(),
		Pipeline:   pipeline,
		Event:      ev,
		Vars:       vars,
		byTemplate: make(map[string][]*JobInstance),
	}
}

// AddInstances registers expanded instances under their template name,
// preserving expansion order.
func (pr *PipelineRun) AddInstances(template string, insts ...*JobInstance) {
	pr.instances = append(pr.instances, insts...)
	pr.byTemplate[template] = append(pr.byTemplate[template], insts...)
}

// Instances returns every instance owned by the run, in registration order.
func (pr *PipelineRun) Instances() []*JobInstance {
	return pr.instances
}

// InstancesOf returns the instances of one template, in expansion order.
func (pr *PipelineRun) InstancesOf(template string) []*JobInstance {
	return pr.byTemplate[template]
}

// Artifacts returns all artifacts produced by the run's instances.
func (pr *PipelineRun) Artifacts() []Artifact {
	var out []Artifact
	for _, inst := range pr.instances {
		out = append(out, inst.Artifacts()...)
	}
	return out
}

// Conclusion aggregates instance statuses into the run outcome. Severity
// order is failed > cancelled > succeeded; skipped instances never fail a
// run, so a mix of succeeded and skipped is still a success.
func (pr *PipelineRun) Conclusion() Conclusion {
	conclusion := ConclusionSucceeded
	for _, inst := range pr.instances {
		switch inst.Status() {
		case StatusFailed:
			return ConclusionFailed
		case StatusCancelled:
			conclusion = ConclusionCancelled
		}
	}
	return conclusion
}
