package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/fsutil"
)

// Loader implements config.Loader for HCL pipeline definitions.
type Loader struct{}

// NewLoader creates a new HCL pipeline loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every .hcl file under the given paths (files or directories),
// translates the definitions into the config model, and validates it.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	var files []string
	for _, p := range paths {
		found, err := fsutil.FindFilesByExtension(p, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("discovering pipeline files under %q: %w", p, err)
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl pipeline files found under %v", paths)
	}
	logger.Debug("Pipeline definition files discovered.", "count", len(files))

	parser := hclparse.NewParser()
	model := &config.Model{Pipelines: make(map[string]*config.Pipeline)}

	for _, path := range files {
		f, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parsing %s: %w", path, diags)
		}

		var fs fileSchema
		if diags := gohcl.DecodeBody(f.Body, nil, &fs); diags.HasErrors() {
			return nil, fmt.Errorf("decoding %s: %w", path, diags)
		}

		for _, ps := range fs.Pipelines {
			if _, dup := model.Pipelines[ps.Name]; dup {
				return nil, fmt.Errorf("%s: duplicate pipeline %q", path, ps.Name)
			}
			p, err := translatePipeline(ps)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			model.Pipelines[ps.Name] = p
			logger.Debug("Pipeline loaded.", "pipeline", ps.Name, "jobs", len(p.Jobs), "triggers", len(p.Triggers))
		}
	}

	if err := model.Validate(); err != nil {
		return nil, err
	}
	return model, nil
}

var _ config.Loader = (*Loader)(nil)
