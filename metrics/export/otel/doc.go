// Package otel binds spartanfiles counters to OpenTelemetry instruments.
//
// [NewExporter] registers an Int64ObservableCounter per counter and an Int64ObservableGauge
// per histogram bucket. One callback reads the repository snapshot on each collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate repository state.
package otel
