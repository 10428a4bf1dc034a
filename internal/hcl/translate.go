package hcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/event"
)

// exprOrNil normalizes the placeholder gohcl substitutes for an absent
// optional expression attribute: that placeholder references no variables
// and evaluates to null. The model wants nil for "not set", so conditions
// default to true and release names default to the tag. A real user
// expression passes through untouched.
func exprOrNil(expr hcl.Expression) hcl.Expression {
	if expr == nil {
		return nil
	}
	if len(expr.Variables()) > 0 {
		return expr
	}
	val, diags := expr.Value(nil)
	if !diags.HasErrors() && val.IsNull() {
		return nil
	}
	return expr
}

// translatePipeline converts the HCL-specific pipeline schema into the
// format-agnostic model, applying defaults.
func translatePipeline(ps *pipelineSchema) (*config.Pipeline, error) {
	p := &config.Pipeline{Name: ps.Name}

	if ps.On != nil {
		for _, r := range ps.On.Push {
			p.Triggers = append(p.Triggers, &config.TriggerRule{
				Kind:     event.KindPush,
				Branches: r.Branches,
			})
		}
		for range ps.On.PullRequest {
			p.Triggers = append(p.Triggers, &config.TriggerRule{Kind: event.KindPullRequest})
		}
		for _, r := range ps.On.Tag {
			p.Triggers = append(p.Triggers, &config.TriggerRule{
				Kind:     event.KindTag,
				Patterns: r.Patterns,
			})
		}
		for _, r := range ps.On.WorkflowRun {
			rule := &config.TriggerRule{
				Kind:       event.KindWorkflowRun,
				Source:     r.Source,
				Conclusion: event.Conclusion(r.Conclusion),
				Branches:   r.Branches,
			}
			if r.Conclusion == "" {
				rule.Conclusion = event.ConclusionSuccess
			}
			p.Triggers = append(p.Triggers, rule)
		}
	}

	for _, js := range ps.Jobs {
		tpl, err := translateJob(js)
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", js.Name, err)
		}
		p.Jobs = append(p.Jobs, tpl)
	}
	return p, nil
}

func translateJob(js *jobSchema) (*config.JobTemplate, error) {
	tpl := &config.JobTemplate{
		Name:      js.Name,
		Steps:     js.Steps,
		Needs:     js.Needs,
		Condition: exprOrNil(js.Condition),
		Artifacts: js.Artifacts,
	}

	if js.Matrix != nil {
		m := &config.MatrixSpec{
			// Fail-fast is the default for matrix groups; opting out is
			// explicit.
			FailFast:    true,
			MaxParallel: js.Matrix.MaxParallel,
		}
		if js.Matrix.FailFast != nil {
			m.FailFast = *js.Matrix.FailFast
		}
		if m.MaxParallel < 0 {
			return nil, fmt.Errorf("max_parallel must not be negative")
		}
		for _, ax := range js.Matrix.Axes {
			m.Axes = append(m.Axes, config.Axis{Name: ax.Name, Values: ax.Values})
		}
		tpl.Matrix = m
	}

	if js.Release != nil {
		r := &config.ReleaseSpec{
			Files:         js.Release.Files,
			Name:          exprOrNil(js.Release.Name),
			Draft:         js.Release.Draft,
			Prerelease:    js.Release.Prerelease,
			Body:          js.Release.Body,
			GenerateNotes: js.Release.GenerateNotes,
			OnExisting:    config.ExistingPolicy(js.Release.OnExisting),
		}
		if js.Release.OnExisting == "" {
			r.OnExisting = config.ExistingFail
		}
		tpl.Release = r
	}
	return tpl, nil
}
