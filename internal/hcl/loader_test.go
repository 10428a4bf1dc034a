package hcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pipewright/internal/condition"
	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/event"
)

func loadString(t *testing.T, src string) (*config.Model, error) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pipeline.hcl"), []byte(src), 0644))
	return NewLoader().Load(context.Background(), dir)
}

const fullPipeline = `
pipeline "ci" {
  on {
    push         { branches = ["main"] }
    pull_request {}
    tag          { patterns = ["v*.*.*"] }
    workflow_run {
      source   = "ci"
      branches = ["main"]
    }
  }

  job "test" {
    matrix {
      axis "os"     { values = ["ubuntu", "windows"] }
      axis "python" { values = ["3.11", "3.12"] }
      max_parallel = 2
    }
    steps     = ["pip install .", "pytest"]
    artifacts = ["dist/*.whl"]
  }

  job "release" {
    needs     = ["test"]
    condition = glob("v*.*.*", event.ref_name)
    steps     = ["python -m build"]
    artifacts = ["dist/*"]

    release {
      files          = ["dist/*"]
      name           = "${event.ref_name}"
      generate_notes = true
    }
  }
}
`

func TestLoad_FullPipeline(t *testing.T) {
	model, err := loadString(t, fullPipeline)
	require.NoError(t, err)
	require.Len(t, model.Pipelines, 1)

	p := model.Pipelines["ci"]
	require.NotNil(t, p)

	require.Len(t, p.Triggers, 4)
	assert.Equal(t, event.KindPush, p.Triggers[0].Kind)
	assert.Equal(t, []string{"main"}, p.Triggers[0].Branches)
	assert.Equal(t, event.KindPullRequest, p.Triggers[1].Kind)
	assert.Equal(t, event.KindTag, p.Triggers[2].Kind)
	assert.Equal(t, []string{"v*.*.*"}, p.Triggers[2].Patterns)
	assert.Equal(t, event.KindWorkflowRun, p.Triggers[3].Kind)
	assert.Equal(t, "ci", p.Triggers[3].Source)
	assert.Equal(t, event.ConclusionSuccess, p.Triggers[3].Conclusion, "workflow_run conclusion defaults to success")

	require.Len(t, p.Jobs, 2)

	test := p.Job("test")
	require.NotNil(t, test)
	require.NotNil(t, test.Matrix)
	assert.True(t, test.Matrix.FailFast, "fail_fast defaults to true")
	assert.Equal(t, 2, test.Matrix.MaxParallel)
	require.Len(t, test.Matrix.Axes, 2)
	assert.Equal(t, "os", test.Matrix.Axes[0].Name)
	assert.Equal(t, []string{"ubuntu", "windows"}, test.Matrix.Axes[0].Values)
	assert.Equal(t, []string{"pip install .", "pytest"}, test.Steps)

	rel := p.Job("release")
	require.NotNil(t, rel)
	assert.Equal(t, []string{"test"}, rel.Needs)
	require.NotNil(t, rel.Condition, "condition kept as unevaluated expression")
	require.NotNil(t, rel.Release)
	assert.Equal(t, config.ExistingFail, rel.Release.OnExisting, "on_existing defaults to fail")
	assert.True(t, rel.Release.GenerateNotes)
	assert.False(t, rel.Release.Draft)
}

func TestLoad_ConditionEvaluatesLater(t *testing.T) {
	model, err := loadString(t, fullPipeline)
	require.NoError(t, err)

	rel := model.Pipelines["ci"].Job("release")
	ok, err := condition.Eval(rel.Condition, map[string]string{"ref_name": "v1.2.3", "event_name": "tag"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = condition.Eval(rel.Condition, map[string]string{"ref_name": "main", "event_name": "push"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoad_ReleaseNameTemplate(t *testing.T) {
	model, err := loadString(t, fullPipeline)
	require.NoError(t, err)

	name := model.Pipelines["ci"].Job("release").Release.Name
	require.NotNil(t, name)
	got, err := condition.EvalString(name, map[string]string{"ref_name": "v9.9.9"})
	require.NoError(t, err)
	assert.Equal(t, "v9.9.9", got)
}

func TestLoad_AbsentOptionalExpressions(t *testing.T) {
	src := `
pipeline "ci" {
  job "build" {
    steps = ["make build"]

    release {
      files = ["dist/*"]
    }
  }
}
`
	model, err := loadString(t, src)
	require.NoError(t, err)

	build := model.Pipelines["ci"].Job("build")
	assert.Nil(t, build.Condition, "an omitted condition stays nil so the job always runs")
	assert.Nil(t, build.Release.Name, "an omitted release name stays nil so the tag is the default")

	ok, err := condition.Eval(build.Condition, map[string]string{"ref_name": "main"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoad_FailFastOptOut(t *testing.T) {
	src := `
pipeline "ci" {
  job "test" {
    matrix {
      axis "os" { values = ["ubuntu", "windows"] }
      fail_fast = false
    }
    steps = ["make test"]
  }
}
`
	model, err := loadString(t, src)
	require.NoError(t, err)
	assert.False(t, model.Pipelines["ci"].Job("test").Matrix.FailFast)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"invalid hcl", `pipeline "ci" {`},
		{"unknown needs", `
pipeline "ci" {
  job "release" {
    needs = ["test"]
    steps = ["make"]
  }
}`},
		{"duplicate pipeline", `
pipeline "ci" { }
pipeline "ci" { }`},
		{"negative max_parallel", `
pipeline "ci" {
  job "test" {
    matrix {
      axis "os" { values = ["ubuntu"] }
      max_parallel = -1
    }
    steps = ["make"]
  }
}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadString(t, tt.src)
			assert.Error(t, err)
		})
	}
}

func TestLoad_EmptyDirErrors(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), t.TempDir())
	assert.Error(t, err)
}

func TestLoad_SingleFilePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ci.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
pipeline "ci" {
  job "lint" {
    steps = ["make lint"]
  }
}
`), 0644))

	model, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, model.Pipelines["ci"].Job("lint"))
}
