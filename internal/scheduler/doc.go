// Package scheduler is the dependency graph runner: it builds a DAG over
// expanded job instances, dispatches ready instances to the job executor
// through a bounded worker pool, and propagates fail-fast cancellation and
// skip-on-unmet-needs through the graph.
//
// The scheduling logic itself is single-threaded in spirit: all status
// mutation funnels through the worker loop and once-guarded propagation
// helpers, while actual job execution happens concurrently in the executor.
package scheduler
