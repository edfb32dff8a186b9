// Package otel bridges issuer metrics to an OpenTelemetry Meter.
//
// [New] registers an Int64ObservableCounter per issuer counter and, per
// latency histogram, a bucket gauge keyed by an "le" attribute plus a count
// gauge. One callback reads MetricsSnapshot per collection cycle. Callers
// own the MeterProvider.
package otel
