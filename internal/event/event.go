// Package event defines the inbound events that can start a pipeline run.
package event

import (
	"fmt"
	"strings"
)

// Kind discriminates the event union.
type Kind string

const (
	KindPush        Kind = "push"
	KindPullRequest Kind = "pull_request"
	KindTag         Kind = "tag"
	KindWorkflowRun Kind = "workflow_run"
)

// Conclusion is the terminal outcome reported by an upstream pipeline run.
type Conclusion string

const (
	ConclusionSuccess   Conclusion = "success"
	ConclusionFailure   Conclusion = "failure"
	ConclusionCancelled Conclusion = "cancelled"
)

// Event is a single inbound trigger event. It is immutable once decoded;
// only the fields relevant to its Kind are populated.
type Event struct {
	Kind Kind `json:"kind"`

	// Ref is the full git ref for push and tag events,
	// e.g. "refs/heads/main" or "refs/tags/v1.2.3".
	Ref string `json:"ref,omitempty"`

	// SourceName, Conclusion and SourceBranch describe the upstream run
	// for workflow_run events.
	SourceName   string     `json:"source_name,omitempty"`
	Conclusion   Conclusion `json:"conclusion,omitempty"`
	SourceBranch string     `json:"source_branch,omitempty"`
}

// RefName returns the short ref name with any "refs/heads/" or "refs/tags/"
// prefix stripped, e.g. "main" or "v1.2.3".
func (e *Event) RefName() string {
	name := strings.TrimPrefix(e.Ref, "refs/heads/")
	return strings.TrimPrefix(name, "refs/tags/")
}

// IsTag reports whether the event is a tag push.
func (e *Event) IsTag() bool {
	return e.Kind == KindTag
}

// Validate checks that the event carries the fields its kind requires.
func (e *Event) Validate() error {
	switch e.Kind {
	case KindPush, KindTag:
		if e.Ref == "" {
			return fmt.Errorf("%s event requires a ref", e.Kind)
		}
	case KindPullRequest:
		// No required fields; PR events gate on kind alone.
	case KindWorkflowRun:
		if e.SourceName == "" {
			return fmt.Errorf("workflow_run event requires a source_name")
		}
		switch e.Conclusion {
		case ConclusionSuccess, ConclusionFailure, ConclusionCancelled:
		default:
			return fmt.Errorf("workflow_run event has unknown conclusion %q", e.Conclusion)
		}
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return nil
}
