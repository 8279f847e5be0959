// Package metrics exposes Prometheus collectors for the meal-plan pipeline:
// task lifecycle counters fed by status-change events, per-stage durations,
// completion token usage and the number of running pipelines.
package metrics
