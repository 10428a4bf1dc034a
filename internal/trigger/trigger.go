// Package trigger decides whether an inbound event starts a pipeline run,
// and binds the run-scoped variables resolved from the event.
package trigger

import (
	"context"
	"path"

	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/event"
	"github.com/vk/pipewright/internal/run"
)

// Evaluate matches the event against the pipeline's trigger rules in
// declaration order, first match wins. A non-matching event yields nil:
// no run starts, and that is not an error. On a match it allocates the
// pipeline run with variables resolved from the event.
func Evaluate(ctx context.Context, p *config.Pipeline, ev *event.Event) *run.PipelineRun {
	logger := ctxlog.FromContext(ctx).With("pipeline", p.Name, "event", ev.Kind)

	for _, rule := range p.Triggers {
		if !matches(rule, ev) {
			continue
		}
		pr := run.New(p.Name, ev, Variables(ev))
		logger.Info("Trigger matched, run created.", "run_id", pr.ID, "ref", ev.Ref)
		return pr
	}

	logger.Debug("No trigger rule matched event.")
	return nil
}

func matches(rule *config.TriggerRule, ev *event.Event) bool {
	if rule.Kind != ev.Kind {
		return false
	}
	switch ev.Kind {
	case event.KindPush:
		return matchAny(rule.Branches, ev.RefName())
	case event.KindTag:
		return matchAny(rule.Patterns, ev.RefName())
	case event.KindPullRequest:
		return true
	case event.KindWorkflowRun:
		// An upstream failure or cancellation never starts a dependent
		// run; that is deliberate decoupling, not an error state.
		if ev.Conclusion != event.ConclusionSuccess {
			return false
		}
		if rule.Conclusion != "" && rule.Conclusion != ev.Conclusion {
			return false
		}
		if rule.Source != "" && rule.Source != ev.SourceName {
			return false
		}
		return matchAny(rule.Branches, ev.SourceBranch)
	}
	return false
}

// matchAny reports whether name matches any of the glob patterns. An empty
// pattern list matches everything. Patterns are validated at load time, so
// a malformed pattern here simply fails to match.
func matchAny(patterns []string, name string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pat := range patterns {
		if ok, err := path.Match(pat, name); err == nil && ok {
			return true
		}
	}
	return false
}

// Variables resolves the run variables bound from an event. These are the
// names exposed to conditions (as event.<name>) and to step environments.
func Variables(ev *event.Event) map[string]string {
	vars := map[string]string{
		"event_name": string(ev.Kind),
	}
	switch ev.Kind {
	case event.KindPush, event.KindTag:
		vars["ref"] = ev.Ref
		vars["ref_name"] = ev.RefName()
	case event.KindWorkflowRun:
		vars["source_name"] = ev.SourceName
		vars["source_branch"] = ev.SourceBranch
		vars["conclusion"] = string(ev.Conclusion)
		vars["ref_name"] = ev.SourceBranch
	}
	return vars
}
