// Package prometheus exposes issuer metrics through client_golang.
//
// [NewCollector] returns a prometheus.Collector that reads
// MetricsSnapshot on each scrape; callers register it with their own
// registry. [Handler] wraps it in a private registry for mounting at
// /metrics. Counter names are prefixed goissuer_ and end in _total; the
// latency histograms end in _seconds.
package prometheus
