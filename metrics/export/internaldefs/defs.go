package internaldefs

import (
	goIssuer "github.com/MrEthical07/goIssuer"
)

// CounterDef binds a counter MetricID to its exported name.
type CounterDef struct {
	ID   goIssuer.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram MetricID to its exported name.
type HistogramDef struct {
	ID   goIssuer.MetricID
	Name string
	Help string
}

// AuditDropped names the counter of audit events lost to backpressure.
const (
	AuditDroppedName = "goissuer_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

var CounterDefs = []CounterDef{
	{ID: goIssuer.MetricAuthorizeSuccess, Name: "goissuer_authorize_success_total", Help: "Authorization requests accepted."},
	{ID: goIssuer.MetricAuthorizeFailure, Name: "goissuer_authorize_failure_total", Help: "Authorization requests rejected."},
	{ID: goIssuer.MetricCredentialVerified, Name: "goissuer_credential_verified_total", Help: "Credential submissions that verified an identity."},
	{ID: goIssuer.MetricCredentialFailure, Name: "goissuer_credential_failure_total", Help: "Credential submissions that failed."},
	{ID: goIssuer.MetricCodeSent, Name: "goissuer_code_sent_total", Help: "One-time codes handed to the sender."},
	{ID: goIssuer.MetricCodeDeliveryFailure, Name: "goissuer_code_delivery_failure_total", Help: "One-time code deliveries that failed."},
	{ID: goIssuer.MetricCodeAttemptsExceeded, Name: "goissuer_code_attempts_exceeded_total", Help: "Challenges locked by the attempt cap."},
	{ID: goIssuer.MetricCodeIssued, Name: "goissuer_code_issued_total", Help: "Authorization codes issued."},
	{ID: goIssuer.MetricExchangeSuccess, Name: "goissuer_exchange_success_total", Help: "Authorization codes exchanged for tokens."},
	{ID: goIssuer.MetricExchangeFailure, Name: "goissuer_exchange_failure_total", Help: "Rejected code exchanges."},
	{ID: goIssuer.MetricRefreshSuccess, Name: "goissuer_refresh_success_total", Help: "Refresh token rotations."},
	{ID: goIssuer.MetricRefreshFailure, Name: "goissuer_refresh_failure_total", Help: "Rejected refresh grants."},
	{ID: goIssuer.MetricStateConflict, Name: "goissuer_state_conflict_total", Help: "Lost compare-and-swap races on pending requests."},
	{ID: goIssuer.MetricRateLimitHit, Name: "goissuer_rate_limit_hit_total", Help: "Credential submissions denied by throttling."},
	{ID: goIssuer.MetricVerifyAccessSuccess, Name: "goissuer_verify_access_success_total", Help: "Access tokens accepted."},
	{ID: goIssuer.MetricVerifyAccessFailure, Name: "goissuer_verify_access_failure_total", Help: "Access tokens rejected."},
}

var HistogramDefs = []HistogramDef{
	{ID: goIssuer.MetricSubmitLatency, Name: "goissuer_submit_latency_seconds", Help: "Credential submission latency."},
	{ID: goIssuer.MetricExchangeLatency, Name: "goissuer_exchange_latency_seconds", Help: "Code exchange latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the fixed buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramUpperBounds are the finite bucket bounds in seconds; the last
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to exactly eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
