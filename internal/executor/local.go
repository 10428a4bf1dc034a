package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/run"
)

// Local runs job steps as shell commands on the local host. Each step is a
// single `sh -c` invocation in the configured working directory, with run
// variables and matrix bindings injected into the environment.
type Local struct {
	// WorkDir is the directory steps run in and artifact globs resolve
	// against. Empty means the process working directory.
	WorkDir string
}

// NewLocal returns a local shell executor rooted at workDir.
func NewLocal(workDir string) *Local {
	return &Local{WorkDir: workDir}
}

// Execute runs the template's steps in order, stopping at the first failure.
// On success, the template's artifact globs are resolved against the working
// directory and reported back.
func (l *Local) Execute(ctx context.Context, job *run.JobInstance, tpl *config.JobTemplate, vars map[string]string) Result {
	logger := ctxlog.FromContext(ctx).With("job", job.ID)
	env := l.environment(job, vars)

	for i, step := range tpl.Steps {
		logger.Info("Running step.", "index", i, "command", step)

		cmd := exec.CommandContext(ctx, "sh", "-c", step)
		cmd.Dir = l.WorkDir
		cmd.Env = env
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			if ctx.Err() != nil {
				logger.Warn("Step cancelled.", "index", i)
				return Result{Outcome: OutcomeCancelled, Err: ctx.Err()}
			}
			logger.Error("Step failed.", "index", i, "error", err)
			return Result{
				Outcome: OutcomeFailed,
				Err:     fmt.Errorf("step %d (%q): %w", i, step, err),
			}
		}
	}

	arts, err := l.collectArtifacts(tpl)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}
	return Result{Outcome: OutcomeSucceeded, Artifacts: arts}
}

// environment builds the step environment: the parent environment plus
// PW_<VAR> for every run variable and PW_MATRIX_<AXIS> for every binding.
func (l *Local) environment(job *run.JobInstance, vars map[string]string) []string {
	env := os.Environ()
	for name, val := range vars {
		env = append(env, fmt.Sprintf("PW_%s=%s", envKey(name), val))
	}
	for _, b := range job.Bindings {
		env = append(env, fmt.Sprintf("PW_MATRIX_%s=%s", envKey(b.Axis), b.Value))
	}
	return env
}

func envKey(name string) string {
	upper := strings.ToUpper(name)
	return strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, upper)
}

func (l *Local) collectArtifacts(tpl *config.JobTemplate) ([]run.Artifact, error) {
	var arts []run.Artifact
	base := l.WorkDir
	if base == "" {
		base = "."
	}
	for _, pattern := range tpl.Artifacts {
		matches, err := filepath.Glob(filepath.Join(base, pattern))
		if err != nil {
			return nil, fmt.Errorf("bad artifact glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			rel, err := filepath.Rel(base, m)
			if err != nil {
				return nil, err
			}
			abs, err := filepath.Abs(m)
			if err != nil {
				return nil, err
			}
			arts = append(arts, run.Artifact{Name: filepath.ToSlash(rel), Path: abs})
		}
	}
	return arts, nil
}

var _ Executor = (*Local)(nil)
