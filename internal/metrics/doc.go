/*
Package metrics provides Prometheus-based metric collection for the
routing core, covering the HTTP surface, intent classification, routing
decisions, handoff execution, and session outcomes.

The Collector registers every metric family through promauto under one
namespace, so callers never manage a Registry by hand. All record
methods are safe on a nil Collector, which keeps instrumentation
optional for library embedders.

Metric families:

  - HTTP: request totals and latency, grouped by method/path/status.
  - Routing: classification totals by category, decision totals by
    strategy.
  - Orchestration: handoff totals by edge, handoff failures by reason,
    guard trips, session outcomes by status, and per-specialist turn
    latency histograms.
*/
package metrics
