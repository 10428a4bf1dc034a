package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/pipewright/internal/config"
	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/executor"
	"github.com/vk/pipewright/internal/release"
	"github.com/vk/pipewright/internal/scheduler"
)

// App encapsulates the orchestrator's dependencies, configuration and
// lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	config    *Config
	model     *config.Model
	exec      executor.Executor
	publisher scheduler.ReleasePublisher
}

// Option overrides a collaborator, primarily for tests.
type Option func(*App)

// WithExecutor replaces the default local shell executor.
func WithExecutor(e executor.Executor) Option {
	return func(a *App) { a.exec = e }
}

// WithReleaseEndpoint replaces the configured release endpoint.
func WithReleaseEndpoint(ep release.Endpoint) Option {
	return func(a *App) { a.publisher = release.NewPublisher(ep) }
}

// NewApp constructs the application: logger, pipeline definitions, executor
// and release publisher. A failure to load configuration is a fatal startup
// error and panics; the entrypoint recovers it into a clean exit.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader, opts ...Option) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	if appConfig.ConfigFile != "" {
		fc, err := LoadFileConfig(appConfig.ConfigFile)
		if err != nil {
			panic(fmt.Errorf("failed to load daemon config: %w", err))
		}
		appConfig.merge(fc)
		if fc.Release.ObjectStore != nil {
			// The endpoint client is created eagerly so credential and
			// bucket problems surface at startup, not mid-publish.
			ep, err := release.NewObjectStore(ctx, *fc.Release.ObjectStore)
			if err != nil {
				panic(fmt.Errorf("failed to set up release endpoint: %w", err))
			}
			defaultOpts := []Option{WithReleaseEndpoint(ep)}
			opts = append(defaultOpts, opts...)
		}
		logger.Debug("Daemon config loaded.", "path", appConfig.ConfigFile)
	}

	// The workers flag defaults to zero so the daemon config can supply a
	// value; only after merging does the builtin default apply.
	if appConfig.WorkerCount == 0 {
		appConfig.WorkerCount = defaultWorkerCount
	}

	model, err := loader.Load(ctx, appConfig.PipelinesPath)
	if err != nil {
		panic(fmt.Errorf("failed to load pipeline definitions: %w", err))
	}
	logger.Debug("Pipeline definitions loaded.", "pipelines", len(model.Pipelines))

	a := &App{
		outW:   outW,
		logger: logger,
		config: appConfig,
		model:  model,
		exec:   executor.NewLocal(appConfig.WorkDir),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.publisher == nil && model.HasRelease() {
		panic(fmt.Errorf("pipeline definitions contain release blocks but no release endpoint is configured"))
	}
	return a
}

// Model returns the loaded pipeline model. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}
