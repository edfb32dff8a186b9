package goIssuer

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/goIssuer/internal"
	"github.com/MrEthical07/goIssuer/internal/records"
	"github.com/MrEthical07/goIssuer/store"
)

// ExchangeCode redeems an authorization code for tokens.
//
// The code is consumed with compare-and-delete before it is validated, so
// of N concurrent exchanges at most one succeeds. Every rejection is
// ErrInvalidGrant and leaves the code spent; only a failure to store the
// token set puts it back.
func (i *Issuer) ExchangeCode(ctx context.Context, req ExchangeRequest) (*TokenSet, error) {
	if i == nil || i.store == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer i.observe(MetricExchangeLatency, start)

	fields := auditFields{clientID: req.ClientID}
	ts, err := i.exchange(ctx, req)
	if err != nil {
		i.metricInc(MetricExchangeFailure)
		i.emitAudit(ctx, auditEventExchange, false, fields, err, nil)
		return nil, err
	}

	fields.subject = subjectClaim(ts.Subject)
	i.metricInc(MetricExchangeSuccess)
	i.emitAudit(ctx, auditEventExchange, true, fields, nil, nil)
	return ts, nil
}

func (i *Issuer) exchange(ctx context.Context, req ExchangeRequest) (*TokenSet, error) {
	if !internal.ValidAuthorizationCode(req.Code) {
		return nil, ErrInvalidGrant
	}

	key := codeKeyPrefix + req.Code
	raw, err := i.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, storeErr(err)
	}

	deleted, err := i.store.CompareAndDelete(ctx, key, raw)
	if err != nil {
		return nil, storeErr(err)
	}
	if !deleted {
		return nil, ErrInvalidGrant
	}

	rec, err := records.DecodeCode(raw)
	if err != nil {
		return nil, ErrInvalidGrant
	}

	// All checks are evaluated before branching.
	ok := liveFlag(rec.ExpiresAt, i.now()) &
		subtle.ConstantTimeCompare([]byte(rec.ClientID), []byte(req.ClientID)) &
		subtle.ConstantTimeCompare([]byte(rec.RedirectURI), []byte(req.RedirectURI))
	if ok != 1 {
		return nil, ErrInvalidGrant
	}

	subject, err := decodeSubject(rec.Subject)
	if err != nil {
		return nil, ErrInvalidGrant
	}
	ts, err := i.issueTokens(ctx, subject, rec.ClientID, rec.Scope)
	if err != nil {
		i.restoreRecord(ctx, key, raw, rec.ExpiresAt)
		return nil, err
	}
	return ts, nil
}

// restoreRecord puts back a record consumed by a step that then failed, so
// the caller can retry with the same code or token. Records already past
// expiresAt stay gone.
func (i *Issuer) restoreRecord(ctx context.Context, key string, raw []byte, expiresAt int64) {
	ttl := time.Unix(expiresAt, 0).Sub(i.now())
	if ttl <= 0 {
		return
	}
	if err := i.store.Put(context.WithoutCancel(ctx), key, raw, ttl); err != nil {
		i.log.Error("restore consumed record failed", zap.Error(err))
	}
}

// liveFlag is 1 while expiresAt is in the future, 0 otherwise.
func liveFlag(expiresAt int64, now time.Time) int {
	if expired(expiresAt, now) {
		return 0
	}
	return 1
}

func decodeSubject(s records.Subject) (Subject, error) {
	props := map[string]any{}
	if len(s.Properties) > 0 {
		if err := json.Unmarshal(s.Properties, &props); err != nil {
			return Subject{}, fmt.Errorf("%w: %v", ErrInvalidSubject, err)
		}
	}
	return Subject{Type: s.Type, Properties: props}, nil
}
