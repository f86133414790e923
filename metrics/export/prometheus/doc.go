// Package prometheus renders spartanfiles counters in Prometheus text exposition format.
//
// [NewExporter] takes anything with a MetricsSnapshot method and exposes an [http.Handler].
// Counters are named spartanfiles_*_total; the single histogram is
// spartanfiles_resolve_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global registry; callers mount the Handler.
//   - Mutate repository state.
package prometheus
