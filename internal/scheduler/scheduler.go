package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/vk/pipewright/internal/condition"
	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/executor"
	"github.com/vk/pipewright/internal/run"
)

// ReleasePublisher publishes the release block of a job template after its
// instance has succeeded. Implementations return nil both for a published
// release and for a release whose gating condition evaluated false.
type ReleasePublisher interface {
	PublishJob(ctx context.Context, tpl *config.JobTemplate, pr *run.PipelineRun) error
}

// Options tunes the scheduler's concurrency.
type Options struct {
	// Workers is the size of the dispatch worker pool.
	Workers int
	// MaxParallel is the pipeline-wide concurrency budget across all
	// templates; 0 means unbounded.
	MaxParallel int
}

// Scheduler drives one pipeline run to a terminal state.
type Scheduler struct {
	graph     *Graph
	exec      executor.Executor
	publisher ReleasePublisher
	workers   int
	globalSem chan struct{}

	wg sync.WaitGroup
}

// New creates a scheduler for the given instance graph. The publisher may
// be nil when no job in the graph carries a release block.
func New(g *Graph, exec executor.Executor, publisher ReleasePublisher, opts Options) *Scheduler {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	s := &Scheduler{
		graph:     g,
		exec:      exec,
		publisher: publisher,
		workers:   workers,
	}
	if opts.MaxParallel > 0 {
		s.globalSem = make(chan struct{}, opts.MaxParallel)
	}
	return s
}

// Run executes the graph until every instance is terminal. It returns nil
// only when every instance ended Succeeded or Skipped: a failure yields an
// error wrapping the first root cause, and a run whose instances were
// cancelled yields an error wrapping context.Canceled. Cancellation of ctx
// cancels every non-terminal instance and is safe at any point.
func (s *Scheduler) Run(ctx context.Context, pr *run.PipelineRun) error {
	logger := ctxlog.FromContext(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, name := range s.graph.order {
		grp := s.graph.groups[name]
		grp.ctx, grp.cancel = context.WithCancel(runCtx)
	}

	readyChan := make(chan *node, len(s.graph.nodes))
	rootCount := 0
	for _, n := range s.graph.nodes {
		if n.depCount.Load() == 0 {
			readyChan <- n
			rootCount++
		}
	}
	logger.Debug("Scheduler initialized.", "nodes", len(s.graph.nodes), "roots", rootCount, "workers", s.workers)

	s.wg.Add(len(s.graph.nodes))

	for i := 0; i < s.workers; i++ {
		go s.worker(runCtx, pr, readyChan, i)
	}

	s.wg.Wait()
	close(readyChan)

	var failed, cancelled []string
	var rootCause error
	for _, inst := range pr.Instances() {
		st := inst.Status()
		logger.Info("Job finished.", "job", inst.ID, "status", st, "cancel_requested", inst.CancelRequested())
		switch st {
		case run.StatusFailed:
			failed = append(failed, inst.ID)
			if rootCause == nil {
				rootCause = inst.Err()
			}
		case run.StatusCancelled:
			cancelled = append(cancelled, inst.ID)
		}
	}
	if rootCause != nil {
		return fmt.Errorf("run failed for %s: %w", strings.Join(failed, ", "), rootCause)
	}
	if len(cancelled) > 0 {
		return fmt.Errorf("run cancelled for %s: %w", strings.Join(cancelled, ", "), context.Canceled)
	}
	return nil
}

// worker is the processing loop for one concurrent worker.
func (s *Scheduler) worker(ctx context.Context, pr *run.PipelineRun, readyChan chan *node, workerID int) {
	logger := ctxlog.FromContext(ctx).With("worker", workerID)

	for n := range readyChan {
		if ctx.Err() != nil {
			s.cancelNode(ctx, n, ctx.Err())
			continue
		}
		if n.inst.Status().Terminal() {
			// Cancelled by fail-fast while queued; already finished.
			continue
		}
		s.dispatch(ctx, pr, n, readyChan, logger.With("job", n.inst.ID))
	}
}

func (s *Scheduler) dispatch(ctx context.Context, pr *run.PipelineRun, n *node, readyChan chan *node, logger *slog.Logger) {
	grp := s.graph.groups[n.tpl.Name]

	if !n.inst.TryTransition(run.StatusReady) {
		return
	}

	ok, err := condition.Eval(n.tpl.Condition, pr.Vars)
	if err != nil {
		logger.Error("Condition evaluation failed.", "error", err)
		s.failNode(ctx, n, grp, fmt.Errorf("condition for job %q: %w", n.tpl.Name, err))
		return
	}
	if !ok {
		logger.Info("Condition false, job skipped.")
		if n.inst.TryTransition(run.StatusSkipped) {
			s.finish(n)
			s.propagateSkip(ctx, n)
		}
		return
	}

	if !s.acquire(ctx, grp) {
		s.cancelNode(ctx, n, ctx.Err())
		return
	}
	defer s.release(grp)

	if !n.inst.TryTransition(run.StatusRunning) {
		// Fail-fast cancelled the instance while it waited for a slot.
		return
	}

	logger.Info("Job started.")
	result := s.exec.Execute(grp.ctx, n.inst, n.tpl, pr.Vars)

	switch result.Outcome {
	case executor.OutcomeSucceeded:
		n.inst.AddArtifacts(result.Artifacts...)
		if n.tpl.Release != nil && s.publisher != nil {
			if err := s.publisher.PublishJob(ctx, n.tpl, pr); err != nil {
				logger.Error("Release publish failed.", "error", err)
				s.failRunning(ctx, n, grp, err)
				return
			}
		}
		if !n.inst.TryTransition(run.StatusSucceeded) {
			s.finish(n)
			return
		}
		logger.Info("Job succeeded.", "artifacts", len(result.Artifacts))
		s.finish(n)
		for _, dep := range n.dependents {
			if dep.depCount.Add(-1) == 0 {
				readyChan <- dep
			}
		}
	case executor.OutcomeCancelled:
		logger.Warn("Job cancelled.")
		n.inst.SetErr(result.Err)
		n.inst.TryTransition(run.StatusCancelled)
		s.finish(n)
		s.propagateSkip(ctx, n)
	default:
		logger.Error("Job failed.", "error", result.Err)
		s.failRunning(ctx, n, grp, result.Err)
	}
}

// failNode marks a ready instance failed via a synthetic running transition
// (the failure happened while starting the attempt, before the executor).
func (s *Scheduler) failNode(ctx context.Context, n *node, grp *group, err error) {
	n.inst.TryTransition(run.StatusRunning)
	s.failRunning(ctx, n, grp, err)
}

// failRunning records a running instance's failure and fans out the
// consequences: fail-fast over matrix siblings and skip of dependents.
func (s *Scheduler) failRunning(ctx context.Context, n *node, grp *group, err error) {
	n.inst.SetErr(err)
	n.inst.TryTransition(run.StatusFailed)
	s.finish(n)
	s.failFast(ctx, grp, n)
	s.propagateSkip(ctx, n)
}

// cancelNode terminates an instance after run-level cancellation and
// cascades to its dependents.
func (s *Scheduler) cancelNode(ctx context.Context, n *node, cause error) {
	if n.inst.TryTransition(run.StatusCancelled) {
		n.inst.SetErr(cause)
		n.inst.RequestCancel()
		s.finish(n)
	}
	s.propagateCancel(ctx, n, cause)
}

// propagateSkip marks every dependent skipped, transitively. Skip encodes
// non-execution, not failure: a skipped instance never fails the run.
func (s *Scheduler) propagateSkip(ctx context.Context, n *node) {
	logger := ctxlog.FromContext(ctx)
	for _, dep := range n.dependents {
		dep.propagateOnce.Do(func() {
			if dep.inst.TryTransition(run.StatusSkipped) {
				logger.Warn("Skipping job, needed job did not succeed.", "job", dep.inst.ID, "needed", n.inst.ID)
				dep.inst.SetErr(fmt.Errorf("needed job %s did not succeed", n.inst.ID))
				s.finish(dep)
			}
			s.propagateSkip(ctx, dep)
		})
	}
}

// propagateCancel cascades run-level cancellation to dependents.
func (s *Scheduler) propagateCancel(ctx context.Context, n *node, cause error) {
	for _, dep := range n.dependents {
		dep.propagateOnce.Do(func() {
			if dep.inst.TryTransition(run.StatusCancelled) {
				dep.inst.SetErr(cause)
				s.finish(dep)
			}
			s.propagateCancel(ctx, dep, cause)
		})
	}
}

// failFast cancels the failed instance's matrix siblings: authoritatively
// for queued siblings, cooperatively (context cancel plus recorded intent)
// for running ones. A late succeeded or failed outcome from the executor is
// still honored; the intent stays recorded for reporting.
func (s *Scheduler) failFast(ctx context.Context, grp *group, failed *node) {
	if grp.tpl.Matrix == nil || !grp.tpl.Matrix.FailFast {
		return
	}
	logger := ctxlog.FromContext(ctx)
	grp.failFastOnce.Do(func() {
		logger.Warn("Fail-fast triggered, cancelling matrix siblings.", "job", grp.tpl.Name, "failed", failed.inst.ID)
		grp.cancel()
		for _, sibling := range grp.nodes {
			if sibling == failed {
				continue
			}
			sibling.inst.RequestCancel()
			if sibling.inst.TryTransition(run.StatusCancelled) {
				sibling.inst.SetErr(fmt.Errorf("cancelled by fail-fast after %s failed", failed.inst.ID))
				s.finish(sibling)
				s.propagateSkip(ctx, sibling)
			}
		}
	})
}

// acquire takes the global and per-template concurrency slots, in that
// order. It reports false if the run context is cancelled while waiting.
func (s *Scheduler) acquire(ctx context.Context, grp *group) bool {
	if s.globalSem != nil {
		select {
		case s.globalSem <- struct{}{}:
		case <-ctx.Done():
			return false
		}
	}
	if grp.sem != nil {
		select {
		case grp.sem <- struct{}{}:
		case <-ctx.Done():
			if s.globalSem != nil {
				<-s.globalSem
			}
			return false
		}
	}
	return true
}

// finish performs the single completion accounting for a node, whichever
// termination path got there first.
func (s *Scheduler) finish(n *node) {
	n.finishOnce.Do(s.wg.Done)
}

func (s *Scheduler) release(grp *group) {
	if grp.sem != nil {
		<-grp.sem
	}
	if s.globalSem != nil {
		<-s.globalSem
	}
}
