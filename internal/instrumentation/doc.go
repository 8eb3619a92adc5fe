// Package instrumentation wires OpenTelemetry metrics and optional tracing
// for the bridge.
//
// Metrics are exported through the Prometheus exporter and served by the
// dedicated metrics server. The Metrics recorder is nil-safe end to end, so
// components can record unconditionally whether or not instrumentation is
// enabled.
package instrumentation
