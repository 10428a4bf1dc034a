// Package config defines the unified, format-agnostic representation of
// pipeline definitions: triggers, job templates, matrices and release specs.
// Format-specific loaders (see internal/hcl) translate their own schema into
// this model, which is what the rest of the orchestrator consumes.
package config
