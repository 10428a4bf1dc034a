package release

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/pipewright/internal/condition"
	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/run"
)

// State is the outcome of one publish attempt.
type State string

const (
	StatePublished State = "published"
	StateSkipped   State = "skipped"
	StateFailed    State = "failed"
)

// Result reports what the publisher did.
type Result struct {
	State     State
	ReleaseID string
	// Reason carries the failure cause when State is StateFailed.
	Reason error
}

// Publisher uploads matched run artifacts to a release endpoint.
type Publisher struct {
	endpoint Endpoint
}

// NewPublisher creates a publisher backed by the given endpoint.
func NewPublisher(endpoint Endpoint) *Publisher {
	return &Publisher{endpoint: endpoint}
}

// Publish evaluates the gate against the run's trigger metadata, resolves
// the spec's file globs against the run's artifacts, and publishes. A false
// gate yields a skipped result, not an error. Zero matched artifacts is a
// hard error. An existing release for the same tag is resolved by the
// spec's on_existing policy.
func (p *Publisher) Publish(ctx context.Context, spec *config.ReleaseSpec, gate hcl.Expression, pr *run.PipelineRun) (*Result, error) {
	logger := ctxlog.FromContext(ctx).With("run_id", pr.ID)

	ok, err := condition.Eval(gate, pr.Vars)
	if err != nil {
		return p.failed(fmt.Errorf("evaluating release gate: %w", err))
	}
	if !ok {
		logger.Info("Release gate false, publish skipped.")
		return &Result{State: StateSkipped}, nil
	}

	files := matchArtifacts(spec.Files, pr.Artifacts())
	if len(files) == 0 {
		return p.failed(fmt.Errorf("%w: globs %v", ErrNoArtifacts, spec.Files))
	}

	tag := pr.Vars["ref_name"]
	name := tag
	if spec.Name != nil {
		name, err = condition.EvalString(spec.Name, pr.Vars)
		if err != nil {
			return p.failed(fmt.Errorf("evaluating release name: %w", err))
		}
	}

	rel := Release{
		Name:       name,
		Tag:        tag,
		Draft:      spec.Draft,
		Prerelease: spec.Prerelease,
		Body:       p.body(spec, pr, files),
	}

	exists, err := p.endpoint.Exists(ctx, tag)
	if err != nil {
		return p.failed(fmt.Errorf("checking for existing release %q: %w", tag, err))
	}

	var id string
	switch {
	case exists && spec.OnExisting == config.ExistingUpdate:
		logger.Info("Release exists, updating.", "tag", tag)
		id, err = p.endpoint.Update(ctx, rel, files)
	case exists:
		return p.failed(fmt.Errorf("%w: tag %q", ErrAlreadyExists, tag))
	default:
		id, err = p.endpoint.Create(ctx, rel, files)
	}
	if err != nil {
		// External cancellation mid-publish surfaces as a failure; the
		// endpoint guarantees no half-created release stays visible.
		return p.failed(fmt.Errorf("publishing release %q: %w", tag, err))
	}

	logger.Info("Release published.", "tag", tag, "release_id", id, "files", len(files))
	return &Result{State: StatePublished, ReleaseID: id}, nil
}

// PublishJob adapts Publish for the scheduler: the job template's own
// condition is the gating condition, and a skipped publish is not an error.
func (p *Publisher) PublishJob(ctx context.Context, tpl *config.JobTemplate, pr *run.PipelineRun) error {
	res, err := p.Publish(ctx, tpl.Release, tpl.Condition, pr)
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Publish finished.", "job", tpl.Name, "state", res.State)
	return nil
}

func (p *Publisher) failed(reason error) (*Result, error) {
	return &Result{State: StateFailed, Reason: reason}, reason
}

// body resolves the release body: a fixed text wins, otherwise generated
// notes when requested.
func (p *Publisher) body(spec *config.ReleaseSpec, pr *run.PipelineRun, files []File) string {
	if spec.Body != "" {
		return spec.Body
	}
	if !spec.GenerateNotes {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Published by pipeline %s (run %s, %s event).\n\n", pr.Pipeline, pr.ID, pr.Event.Kind)
	b.WriteString("Files:\n")
	for _, f := range files {
		fmt.Fprintf(&b, "- %s\n", f.Name)
	}
	return b.String()
}

// matchArtifacts resolves the spec globs against artifact names. Duplicate
// names keep the first artifact that produced them.
func matchArtifacts(globs []string, arts []run.Artifact) []File {
	seen := make(map[string]struct{})
	var files []File
	for _, pattern := range globs {
		for _, art := range arts {
			if _, dup := seen[art.Name]; dup {
				continue
			}
			if ok, err := path.Match(pattern, art.Name); err == nil && ok {
				seen[art.Name] = struct{}{}
				files = append(files, File{Name: art.Name, Path: art.Path})
			}
		}
	}
	return files
}
