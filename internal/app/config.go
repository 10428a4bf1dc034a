package app

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vk/pipewright/internal/release"
)

// defaultWorkerCount applies when neither the CLI nor the daemon config
// sets a worker count.
const defaultWorkerCount = 10

// Config holds everything an App instance needs to run. CLI flags populate
// it directly; an optional YAML daemon config file fills in the release
// endpoint and concurrency defaults.
type Config struct {
	PipelinesPath string // .hcl pipeline definitions (file or directory)
	EventPath     string // JSON event payload that may start a run
	ConfigFile    string // optional YAML daemon config

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	WorkerCount     int
	MaxParallel     int // pipeline-wide concurrency budget, 0 = unbounded
	WorkDir         string
}

// NewConfig validates the required fields.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinesPath == "" {
		return nil, errors.New("PipelinesPath is a required configuration field and cannot be empty")
	}
	if cfg.EventPath == "" {
		return nil, errors.New("EventPath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}

// FileConfig is the YAML daemon configuration.
type FileConfig struct {
	Workers     int    `yaml:"workers"`
	MaxParallel int    `yaml:"max_parallel"`
	WorkDir     string `yaml:"work_dir"`

	Release struct {
		ObjectStore *release.ObjectStoreConfig `yaml:"object_store"`
	} `yaml:"release"`
}

// LoadFileConfig reads the YAML daemon config. Object store credentials can
// be left out of the file and supplied via PW_RELEASE_ACCESS_KEY and
// PW_RELEASE_SECRET_KEY instead.
func LoadFileConfig(path string) (*FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if store := fc.Release.ObjectStore; store != nil {
		if store.AccessKey == "" {
			store.AccessKey = envOr("PW_RELEASE_ACCESS_KEY", "")
		}
		if store.SecretKey == "" {
			store.SecretKey = envOr("PW_RELEASE_SECRET_KEY", "")
		}
	}
	return &fc, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// merge overlays file config defaults onto CLI-provided values. CLI flags
// win when explicitly set.
func (c *Config) merge(fc *FileConfig) {
	if c.WorkerCount == 0 {
		c.WorkerCount = fc.Workers
	}
	if c.MaxParallel == 0 {
		c.MaxParallel = fc.MaxParallel
	}
	if c.WorkDir == "" {
		c.WorkDir = fc.WorkDir
	}
}
