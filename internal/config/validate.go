package config

import (
	"fmt"
	"path"
)

// Validate checks structural integrity of the model: unique job names,
// resolvable "needs" references and sane release policies. Cycle detection
// over "needs" edges happens later, when the instance graph is built.
func (m *Model) Validate() error {
	for name, p := range m.Pipelines {
		if err := p.validate(); err != nil {
			return fmt.Errorf("pipeline %q: %w", name, err)
		}
	}
	return nil
}

func (p *Pipeline) validate() error {
	for i, rule := range p.Triggers {
		for _, pat := range append(append([]string{}, rule.Branches...), rule.Patterns...) {
			if _, err := path.Match(pat, ""); err != nil {
				return fmt.Errorf("trigger rule %d: bad glob %q: %w", i, pat, err)
			}
		}
	}
	seen := make(map[string]struct{}, len(p.Jobs))
	for _, j := range p.Jobs {
		if _, dup := seen[j.Name]; dup {
			return fmt.Errorf("duplicate job %q", j.Name)
		}
		seen[j.Name] = struct{}{}
	}
	for _, j := range p.Jobs {
		for _, need := range j.Needs {
			if need == j.Name {
				return fmt.Errorf("job %q needs itself", j.Name)
			}
			if _, ok := seen[need]; !ok {
				return fmt.Errorf("job %q needs unknown job %q", j.Name, need)
			}
		}
		if r := j.Release; r != nil {
			if len(r.Files) == 0 {
				return fmt.Errorf("job %q: release block declares no files", j.Name)
			}
			switch r.OnExisting {
			case ExistingFail, ExistingUpdate:
			default:
				return fmt.Errorf("job %q: unknown on_existing policy %q", j.Name, r.OnExisting)
			}
		}
	}
	return nil
}
