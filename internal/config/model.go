package config

import (
	"github.com/hashicorp/hcl/v2"

	"github.com/vk/pipewright/internal/event"
)

// Model is the unified representation of every loaded pipeline definition,
// keyed by pipeline name.
type Model struct {
	Pipelines map[string]*Pipeline
}

// HasRelease reports whether any loaded job template carries a release
// block, meaning a release endpoint must be configured.
func (m *Model) HasRelease() bool {
	for _, p := range m.Pipelines {
		for _, j := range p.Jobs {
			if j.Release != nil {
				return true
			}
		}
	}
	return false
}

// Pipeline is one named pipeline: its trigger rules and its job templates.
type Pipeline struct {
	Name     string
	Triggers []*TriggerRule
	Jobs     []*JobTemplate
}

// Job returns the job template with the given name, or nil.
func (p *Pipeline) Job(name string) *JobTemplate {
	for _, j := range p.Jobs {
		if j.Name == name {
			return j
		}
	}
	return nil
}

// TriggerRule decides whether an inbound event starts a run of its pipeline.
// Rules are evaluated in declaration order, first match wins.
type TriggerRule struct {
	Kind event.Kind

	// Branches holds glob patterns matched against the short ref name of
	// push events, or against the source branch of workflow_run events.
	// Empty means any branch.
	Branches []string

	// Patterns holds glob patterns matched against tag names. Empty means
	// any tag.
	Patterns []string

	// Source and Conclusion constrain workflow_run events: the upstream
	// pipeline name, and the upstream outcome required to trigger
	// (defaults to "success" when unset).
	Source     string
	Conclusion event.Conclusion
}

// JobTemplate is a named, declarative unit of work, possibly expanded across
// a matrix before execution.
type JobTemplate struct {
	Name string

	// Steps are opaque shell commands executed in order by the job executor.
	Steps []string

	// Needs lists job template names that must fully succeed before any
	// instance of this template may start.
	Needs []string

	// Condition is an optional boolean expression over run variables,
	// parsed at load time. Nil means the job always runs.
	Condition hcl.Expression

	// Artifacts holds glob patterns resolved against the job's working
	// directory after a successful run.
	Artifacts []string

	Matrix  *MatrixSpec
	Release *ReleaseSpec
}

// MatrixSpec expands a job template across the cartesian product of its axes.
type MatrixSpec struct {
	// Axes are kept in declaration order; expansion varies the first axis
	// slowest so instance order is reproducible.
	Axes        []Axis
	FailFast    bool
	MaxParallel int
}

// Axis is one named dimension of a matrix.
type Axis struct {
	Name   string
	Values []string
}

// ExistingPolicy selects what the publisher does when a release with the
// same (name, tag) identity already exists.
type ExistingPolicy string

const (
	// ExistingFail treats an existing release as a hard error. This is the
	// only safe policy for immutable tagged channels.
	ExistingFail ExistingPolicy = "fail"
	// ExistingUpdate replaces the files and metadata of the existing
	// release. Intended for draft channels.
	ExistingUpdate ExistingPolicy = "update"
)

// ReleaseSpec describes the publish side-effect attached to a job template.
type ReleaseSpec struct {
	// Files holds glob patterns resolved against the artifacts produced by
	// the run; zero matches is a hard error.
	Files []string

	// Name is an expression over run variables yielding the release name.
	// Nil defaults to the triggering ref name.
	Name hcl.Expression

	Draft         bool
	Prerelease    bool
	Body          string
	GenerateNotes bool
	OnExisting    ExistingPolicy
}
