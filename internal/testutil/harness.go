package testutil

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/event"
	"github.com/vk/pipewright/internal/executor"
	"github.com/vk/pipewright/internal/hcl"
	"github.com/vk/pipewright/internal/release"
	"github.com/vk/pipewright/internal/run"
	"github.com/vk/pipewright/internal/scheduler"
	"github.com/vk/pipewright/internal/trigger"
)

// HarnessResult holds the outcomes of one orchestrated pipeline run.
type HarnessResult struct {
	Run       *run.PipelineRun
	Err       error
	LogOutput string
	Endpoint  *release.Memory
}

// Harness configures one orchestration test.
type Harness struct {
	// PipelineHCL is the pipeline definition source.
	PipelineHCL string
	// Pipeline selects which loaded pipeline to evaluate; empty means the
	// only one.
	Pipeline string
	// Event is the triggering event.
	Event *event.Event
	// Executor defaults to a FakeExecutor where everything succeeds.
	Executor executor.Executor
	// Endpoint defaults to a fresh in-memory release endpoint.
	Endpoint *release.Memory
	// Options tunes the scheduler; zero values use scheduler defaults.
	Options scheduler.Options
	// Ctx overrides the run context, for cancellation tests.
	Ctx context.Context
}

// LoadModel parses pipeline HCL source through the real loader.
func LoadModel(t *testing.T, hclSrc string) *config.Model {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.hcl")
	require.NoError(t, os.WriteFile(path, []byte(hclSrc), 0644))

	model, err := hcl.NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)
	return model
}

// Orchestrate runs the harness: load, trigger, build, schedule. It fails
// the test on load errors; trigger mismatch yields a result with a nil Run.
func Orchestrate(t *testing.T, h Harness) *HarnessResult {
	t.Helper()

	logBuffer := &SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(logBuffer, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := h.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = ctxlog.WithLogger(ctx, logger)

	model := LoadModel(t, h.PipelineHCL)

	name := h.Pipeline
	if name == "" {
		require.Len(t, model.Pipelines, 1, "harness needs Pipeline set when multiple pipelines are defined")
		for n := range model.Pipelines {
			name = n
		}
	}
	p := model.Pipelines[name]
	require.NotNil(t, p, "pipeline %q not found", name)

	result := &HarnessResult{Endpoint: h.Endpoint}
	if result.Endpoint == nil {
		result.Endpoint = release.NewMemory()
	}

	pr := trigger.Evaluate(ctx, p, h.Event)
	if pr == nil {
		result.LogOutput = logBuffer.String()
		return result
	}
	result.Run = pr

	graph, err := scheduler.BuildGraph(ctx, p, pr)
	require.NoError(t, err)

	exec := h.Executor
	if exec == nil {
		exec = NewFakeExecutor()
	}

	sched := scheduler.New(graph, exec, release.NewPublisher(result.Endpoint), h.Options)
	result.Err = sched.Run(ctx, pr)
	result.LogOutput = logBuffer.String()

	if os.Getenv("PW_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), result.LogOutput)
	}
	return result
}

// StatusOf returns the status of the instance with the given ID.
func (r *HarnessResult) StatusOf(t *testing.T, id string) run.Status {
	t.Helper()
	for _, inst := range r.Run.Instances() {
		if inst.ID == id {
			return inst.Status()
		}
	}
	t.Fatalf("instance %q not found in run", id)
	return ""
}
