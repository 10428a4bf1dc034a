package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/run"
)

func TestExecute_StepsRunInOrder(t *testing.T) {
	dir := t.TempDir()
	tpl := &config.JobTemplate{
		Name: "build",
		Steps: []string{
			"echo one > order.txt",
			"echo two >> order.txt",
		},
	}
	job := run.NewInstance("build", nil)

	res := NewLocal(dir).Execute(context.Background(), job, tpl, nil)
	require.Equal(t, OutcomeSucceeded, res.Outcome)

	data, err := os.ReadFile(filepath.Join(dir, "order.txt"))
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}

func TestExecute_FailureStopsRemainingSteps(t *testing.T) {
	dir := t.TempDir()
	tpl := &config.JobTemplate{
		Name: "build",
		Steps: []string{
			"touch first",
			"exit 3",
			"touch never",
		},
	}
	job := run.NewInstance("build", nil)

	res := NewLocal(dir).Execute(context.Background(), job, tpl, nil)
	require.Equal(t, OutcomeFailed, res.Outcome)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "step 1")

	_, err := os.Stat(filepath.Join(dir, "first"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "never"))
	assert.True(t, os.IsNotExist(err), "steps after the failure must not run")
}

func TestExecute_EnvironmentInjection(t *testing.T) {
	dir := t.TempDir()
	tpl := &config.JobTemplate{
		Name:  "test",
		Steps: []string{`printf '%s %s' "$PW_REF_NAME" "$PW_MATRIX_OS" > env.txt`},
	}
	job := run.NewInstance("test", []run.Binding{{Axis: "os", Value: "ubuntu"}})
	vars := map[string]string{"ref_name": "v1.2.3"}

	res := NewLocal(dir).Execute(context.Background(), job, tpl, vars)
	require.Equal(t, OutcomeSucceeded, res.Outcome)

	data, err := os.ReadFile(filepath.Join(dir, "env.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3 ubuntu", string(data))
}

func TestExecute_CollectsArtifacts(t *testing.T) {
	dir := t.TempDir()
	tpl := &config.JobTemplate{
		Name:      "build",
		Steps:     []string{"mkdir -p dist && touch dist/app.tar.gz dist/app.sha256 coverage.out"},
		Artifacts: []string{"dist/*"},
	}
	job := run.NewInstance("build", nil)

	res := NewLocal(dir).Execute(context.Background(), job, tpl, nil)
	require.Equal(t, OutcomeSucceeded, res.Outcome)
	require.Len(t, res.Artifacts, 2)

	names := []string{res.Artifacts[0].Name, res.Artifacts[1].Name}
	assert.ElementsMatch(t, []string{"dist/app.tar.gz", "dist/app.sha256"}, names)
	for _, art := range res.Artifacts {
		assert.True(t, filepath.IsAbs(art.Path))
		_, err := os.Stat(art.Path)
		assert.NoError(t, err)
	}
}

func TestExecute_NoArtifactGlobsYieldsNone(t *testing.T) {
	dir := t.TempDir()
	tpl := &config.JobTemplate{Name: "lint", Steps: []string{"true"}}
	job := run.NewInstance("lint", nil)

	res := NewLocal(dir).Execute(context.Background(), job, tpl, nil)
	require.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Empty(t, res.Artifacts)
}

func TestExecute_CancellationMidStep(t *testing.T) {
	dir := t.TempDir()
	tpl := &config.JobTemplate{Name: "slow", Steps: []string{"sleep 30"}}
	job := run.NewInstance("slow", nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	defer cancel()

	start := time.Now()
	res := NewLocal(dir).Execute(ctx, job, tpl, nil)
	require.Equal(t, OutcomeCancelled, res.Outcome)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Less(t, time.Since(start), 10*time.Second, "cancellation must interrupt the step")
}
