// Package app wires the orchestrator together: configuration, logging, the
// pipeline definition loader, the trigger evaluator, the scheduler, and the
// release publisher. It owns the application lifecycle from event intake to
// the aggregate run conclusion.
package app
