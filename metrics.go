package goIssuer

import (
	"sync/atomic"
	"time"
)

// MetricID names one issuer counter or histogram.
type MetricID uint16

const (
	MetricAuthorizeSuccess MetricID = iota
	MetricAuthorizeFailure
	MetricCredentialVerified
	MetricCredentialFailure
	MetricCodeSent
	MetricCodeDeliveryFailure
	MetricCodeAttemptsExceeded
	MetricCodeIssued
	MetricExchangeSuccess
	MetricExchangeFailure
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricStateConflict
	MetricRateLimitHit
	MetricVerifyAccessSuccess
	MetricVerifyAccessFailure
	// Histograms.
	MetricSubmitLatency
	MetricExchangeLatency
	metricIDCount
)

// latencyBoundsMs are the inclusive upper bounds of the first seven latency
// buckets; the eighth bucket takes everything slower.
var latencyBoundsMs = [...]int64{5, 10, 25, 50, 100, 250, 500}

const (
	histBucketCount = len(latencyBoundsMs) + 1
	cacheLineSize   = 64
)

// histogramIDs lists the MetricIDs recorded as latency histograms, in slot
// order.
var histogramIDs = [...]MetricID{MetricSubmitLatency, MetricExchangeLatency}

type paddedCounter struct {
	value atomic.Uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters and latency histograms.
// A nil or disabled Metrics ignores writes.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [len(histogramIDs)][histBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all values. Histograms hold
// per-bucket (non-cumulative) counts.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount || isHistogram(id) {
		return
	}
	m.counters[id].value.Add(1)
}

// Observe records d into the histogram for id. Only histogram IDs accept
// observations.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency {
		return
	}
	slot, ok := histogramSlot(id)
	if !ok {
		return
	}
	m.histograms[slot][bucketIndex(d)].Add(1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].value.Load()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return s
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if !isHistogram(id) {
			s.Counters[id] = m.counters[id].value.Load()
		}
	}
	if m.enableLatency {
		for slot, id := range histogramIDs {
			buckets := make([]uint64, histBucketCount)
			for i := range buckets {
				buckets[i] = m.histograms[slot][i].Load()
			}
			s.Histograms[id] = buckets
		}
	}
	return s
}

func histogramSlot(id MetricID) (int, bool) {
	for slot, h := range histogramIDs {
		if h == id {
			return slot, true
		}
	}
	return 0, false
}

func isHistogram(id MetricID) bool {
	_, ok := histogramSlot(id)
	return ok
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()
	for i, bound := range latencyBoundsMs {
		if ms <= bound {
			return i
		}
	}
	return len(latencyBoundsMs)
}
