// Package matrix expands a job template across the cartesian product of its
// matrix axes, producing the concrete job instances the scheduler runs.
package matrix

import (
	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/run"
)

// Expand returns one job instance per point of the template's matrix, in
// deterministic order: the first declared axis varies slowest. A template
// without a matrix yields exactly one instance with no bindings. A matrix
// with any empty axis yields zero instances; the template is effectively
// absent from the run, which is not an error.
func Expand(tpl *config.JobTemplate) []*run.JobInstance {
	if tpl.Matrix == nil || len(tpl.Matrix.Axes) == 0 {
		return []*run.JobInstance{run.NewInstance(tpl.Name, nil)}
	}

	axes := tpl.Matrix.Axes
	total := 1
	for _, ax := range axes {
		total *= len(ax.Values)
	}
	if total == 0 {
		return nil
	}

	instances := make([]*run.JobInstance, 0, total)
	for i := 0; i < total; i++ {
		bindings := make([]run.Binding, len(axes))
		// Decompose i into per-axis indices, most significant digit first.
		rem := i
		stride := total
		for a, ax := range axes {
			stride /= len(ax.Values)
			idx := rem / stride
			rem %= stride
			bindings[a] = run.Binding{Axis: ax.Name, Value: ax.Values[idx]}
		}
		instances = append(instances, run.NewInstance(tpl.Name, bindings))
	}
	return instances
}
