package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{"-pipelines", "pipelines/", "-event", "event.json"}, &out)
	require.NoError(t, err)
	require.False(t, exit)
	require.NotNil(t, cfg)

	assert.Equal(t, "pipelines/", cfg.PipelinesPath)
	assert.Equal(t, "event.json", cfg.EventPath)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 0, cfg.WorkerCount, "unset workers stays zero so the daemon config can supply it")
	assert.Equal(t, 0, cfg.MaxParallel)
	assert.Equal(t, 0, cfg.HealthcheckPort)
}

func TestParse_PositionalPipelinesPath(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{"-event", "event.json", "pipelines/ci.hcl"}, &out)
	require.NoError(t, err)
	require.False(t, exit)
	assert.Equal(t, "pipelines/ci.hcl", cfg.PipelinesPath)
}

func TestParse_ShorthandFlag(t *testing.T) {
	var out bytes.Buffer
	cfg, _, err := Parse([]string{"-p", "ci.hcl", "-event", "event.json"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ci.hcl", cfg.PipelinesPath)
}

func TestParse_AllOptions(t *testing.T) {
	var out bytes.Buffer
	cfg, _, err := Parse([]string{
		"-pipelines", "ci.hcl",
		"-event", "event.json",
		"-config", "daemon.yaml",
		"-healthcheck-port", "8080",
		"-log-format", "text",
		"-log-level", "debug",
		"-workers", "3",
		"-max-parallel", "2",
		"-workdir", "/tmp/work",
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, "daemon.yaml", cfg.ConfigFile)
	assert.Equal(t, 8080, cfg.HealthcheckPort)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3, cfg.WorkerCount)
	assert.Equal(t, 2, cfg.MaxParallel)
	assert.Equal(t, "/tmp/work", cfg.WorkDir)
}

func TestParse_NoPathPrintsUsage(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{}, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing event", []string{"-pipelines", "ci.hcl"}, "EventPath"},
		{"bad log format", []string{"-pipelines", "ci.hcl", "-event", "e.json", "-log-format", "xml"}, "log-format"},
		{"bad log level", []string{"-pipelines", "ci.hcl", "-event", "e.json", "-log-level", "loud"}, "log-level"},
		{"unknown flag", []string{"-pipelines", "ci.hcl", "-event", "e.json", "-bogus"}, "bogus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			_, _, err := Parse(tt.args, &out)
			require.Error(t, err)

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.True(t, strings.Contains(err.Error(), tt.want), "error %q should mention %q", err, tt.want)
		})
	}
}
