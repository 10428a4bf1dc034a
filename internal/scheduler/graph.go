package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/matrix"
	"github.com/vk/pipewright/internal/run"
)

// node is one job instance vertex plus its scheduling bookkeeping.
type node struct {
	inst *run.JobInstance
	tpl  *config.JobTemplate

	deps       map[string]*node
	dependents map[string]*node

	// depCount is the number of not-yet-succeeded dependencies. An
	// instance enters the ready channel when it reaches zero.
	depCount atomic.Int32

	// finishOnce guards the single WaitGroup decrement for this node,
	// whichever path (execution, skip, cancel) terminates it first.
	finishOnce sync.Once
	// propagateOnce guards skip propagation through this node.
	propagateOnce sync.Once
}

// group is the set of sibling instances expanded from one template,
// sharing fail-fast policy and the max_parallel cap.
type group struct {
	tpl   *config.JobTemplate
	nodes []*node

	// sem caps concurrent running instances of the template; nil when
	// max_parallel is unbounded.
	sem chan struct{}

	// cancel aborts the group's running instances on fail-fast. Derived
	// from the run context when execution starts.
	ctx    context.Context
	cancel context.CancelFunc

	failFastOnce sync.Once
}

// Graph is the instance-level DAG for one pipeline run.
type Graph struct {
	nodes  map[string]*node
	groups map[string]*group
	// order preserves deterministic template declaration order.
	order []string
}

// BuildGraph expands every job template of the pipeline into instances,
// registers them on the run, and links "needs" edges instance-to-instance:
// every instance of a needed template precedes every instance of the
// dependent template. A template whose matrix expands to zero instances is
// absent from the graph, and a "needs" edge onto it is vacuously satisfied.
func BuildGraph(ctx context.Context, p *config.Pipeline, pr *run.PipelineRun) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)

	if err := detectCycles(p); err != nil {
		return nil, err
	}

	g := &Graph{
		nodes:  make(map[string]*node),
		groups: make(map[string]*group),
	}

	for _, tpl := range p.Jobs {
		insts := matrix.Expand(tpl)
		if len(insts) == 0 {
			logger.Warn("Matrix expanded to zero instances, template skipped.", "job", tpl.Name)
		}
		pr.AddInstances(tpl.Name, insts...)

		grp := &group{tpl: tpl}
		if m := tpl.Matrix; m != nil && m.MaxParallel > 0 {
			grp.sem = make(chan struct{}, m.MaxParallel)
		}
		for _, inst := range insts {
			n := &node{
				inst:       inst,
				tpl:        tpl,
				deps:       make(map[string]*node),
				dependents: make(map[string]*node),
			}
			g.nodes[inst.ID] = n
			grp.nodes = append(grp.nodes, n)
		}
		g.groups[tpl.Name] = grp
		g.order = append(g.order, tpl.Name)
	}

	for _, tpl := range p.Jobs {
		for _, need := range tpl.Needs {
			for _, from := range g.groups[need].nodes {
				for _, to := range g.groups[tpl.Name].nodes {
					from.dependents[to.inst.ID] = to
					to.deps[from.inst.ID] = from
				}
			}
		}
	}

	for _, n := range g.nodes {
		n.depCount.Store(int32(len(n.deps)))
		if len(n.deps) > 0 {
			if err := n.inst.Transition(run.StatusBlocked); err != nil {
				return nil, err
			}
		}
	}

	logger.Debug("Instance graph built.", "nodes", len(g.nodes), "templates", len(g.groups))
	return g, nil
}

// detectCycles runs a depth-first search over template "needs" edges. A
// cycle at the template level implies one at the instance level, so the
// cheaper check suffices.
func detectCycles(p *config.Pipeline) error {
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(tpl *config.JobTemplate) error
	visit = func(tpl *config.JobTemplate) error {
		if permanent[tpl.Name] {
			return nil
		}
		if temporary[tpl.Name] {
			return fmt.Errorf("dependency cycle involving job %q", tpl.Name)
		}
		temporary[tpl.Name] = true
		for _, need := range tpl.Needs {
			if err := visit(p.Job(need)); err != nil {
				return err
			}
		}
		delete(temporary, tpl.Name)
		permanent[tpl.Name] = true
		return nil
	}

	for _, tpl := range p.Jobs {
		if !permanent[tpl.Name] {
			if err := visit(tpl); err != nil {
				return err
			}
		}
	}
	return nil
}
