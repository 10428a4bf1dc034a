package app

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/event"
	"github.com/vk/pipewright/internal/run"
	"github.com/vk/pipewright/internal/scheduler"
	"github.com/vk/pipewright/internal/trigger"
)

// ErrRunFailed marks an overall pipeline run failure, as opposed to a usage
// or startup problem.
var ErrRunFailed = errors.New("pipeline run failed")

// Run decodes the event payload, evaluates triggers across every loaded
// pipeline, and drives each triggered run to its terminal state. An event
// that matches no trigger is a no-op, not an error.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		stop := a.startHealthcheckServer(ctx, a.config.HealthcheckPort)
		defer stop()
	}

	ev, err := event.DecodeFile(a.config.EventPath)
	if err != nil {
		return err
	}
	a.logger.Info("Event received.", "kind", ev.Kind, "ref", ev.Ref)

	// Deterministic pipeline evaluation order.
	names := make([]string, 0, len(a.model.Pipelines))
	for name := range a.model.Pipelines {
		names = append(names, name)
	}
	sort.Strings(names)

	var failed []string
	triggered := 0
	for _, name := range names {
		p := a.model.Pipelines[name]
		pr := trigger.Evaluate(ctx, p, ev)
		if pr == nil {
			continue
		}
		triggered++
		if err := a.runPipeline(ctx, p, pr); err != nil {
			a.logger.Error("Pipeline run failed.", "pipeline", name, "run_id", pr.ID, "error", err)
			failed = append(failed, name)
		}
	}

	if triggered == 0 {
		a.logger.Info("No pipeline triggered by event, nothing to do.")
		return nil
	}
	if len(failed) > 0 {
		if ctx.Err() != nil {
			// Keep the cancellation visible to the caller so the
			// entrypoint can report an interrupted run distinctly.
			return fmt.Errorf("%w: %v: %w", ErrRunFailed, failed, context.Canceled)
		}
		return fmt.Errorf("%w: %v", ErrRunFailed, failed)
	}
	a.logger.Info("All triggered pipelines succeeded.", "count", triggered)
	return nil
}

func (a *App) runPipeline(ctx context.Context, p *config.Pipeline, pr *run.PipelineRun) error {
	a.logger.Info("🚀 Starting pipeline run.", "pipeline", p.Name, "run_id", pr.ID)

	graph, err := scheduler.BuildGraph(ctx, p, pr)
	if err != nil {
		return fmt.Errorf("building job graph: %w", err)
	}

	sched := scheduler.New(graph, a.exec, a.publisher, scheduler.Options{
		Workers:     a.config.WorkerCount,
		MaxParallel: a.config.MaxParallel,
	})
	runErr := sched.Run(ctx, pr)

	conclusion := pr.Conclusion()
	a.logger.Info("🏁 Pipeline run finished.", "pipeline", p.Name, "run_id", pr.ID, "conclusion", conclusion)
	return runErr
}
