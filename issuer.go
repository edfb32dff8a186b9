package goIssuer

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/goIssuer/identity"
	"github.com/MrEthical07/goIssuer/internal/audit"
	"github.com/MrEthical07/goIssuer/internal/rate"
	"github.com/MrEthical07/goIssuer/jwt"
	"github.com/MrEthical07/goIssuer/store"
)

const (
	pendingKeyPrefix = "pending:"
	codeKeyPrefix    = "code:"
	refreshKeyPrefix = "refresh:"
)

// Issuer runs the authorization-code state machine: Authorize creates a
// pending request, SubmitCredential drives a provider until it verifies an
// identity and issues a single-use code, ExchangeCode redeems the code for
// tokens.
//
// An Issuer is safe for concurrent use. It holds no locks across store or
// collaborator calls; every transition is a compare-and-swap or
// compare-and-delete on the store.
type Issuer struct {
	config    Config
	store     store.Store
	providers map[string]Provider
	subjects  Subjects
	success   SuccessHandler
	resolver  identity.SubjectResolver
	clients   ClientPolicy
	tokens    *jwt.Manager
	limiter   *rate.Limiter
	audit     *audit.Dispatcher
	metrics   *Metrics
	log       *zap.Logger

	// now is replaced in tests.
	now func() time.Time
}

// Close flushes pending audit events. The store and collaborators belong
// to the caller.
func (i *Issuer) Close() {
	if i == nil {
		return
	}
	i.audit.Close()
}

func (i *Issuer) AuditDropped() uint64 {
	if i == nil {
		return 0
	}
	return i.audit.Dropped()
}

func (i *Issuer) MetricsSnapshot() MetricsSnapshot {
	if i == nil || i.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return i.metrics.Snapshot()
}

// Providers returns the registered provider ids in sorted order.
func (i *Issuer) Providers() []string {
	out := make([]string, 0, len(i.providers))
	for id := range i.providers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Provider returns the provider registered under id.
func (i *Issuer) Provider(id string) (Provider, bool) {
	p, ok := i.providers[id]
	return p, ok
}

// IssuerURL is the configured "iss" value.
func (i *Issuer) IssuerURL() string {
	return i.config.Issuer.URL
}

// RefreshEnabled reports whether ExchangeCode mints refresh tokens.
func (i *Issuer) RefreshEnabled() bool {
	return i.config.JWT.RefreshTTL > 0
}

func (i *Issuer) metricInc(id MetricID) {
	if i == nil || i.metrics == nil {
		return
	}
	i.metrics.Inc(id)
}

func (i *Issuer) observe(id MetricID, start time.Time) {
	if !i.metrics.LatencyEnabled() {
		return
	}
	i.metrics.Observe(id, time.Since(start))
}
