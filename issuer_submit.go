package goIssuer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/goIssuer/identity"
	"github.com/MrEthical07/goIssuer/internal"
	"github.com/MrEthical07/goIssuer/internal/rate"
	"github.com/MrEthical07/goIssuer/internal/records"
)

// SubmitCredential runs one credential step for a pending request.
//
// Provider state changes are committed with compare-and-swap before any
// side effect runs; a lost race re-runs the step against the fresh state.
// Once the provider verifies an identity the pending request is consumed
// with compare-and-delete and a single-use code is issued, so concurrent
// correct submissions yield exactly one code.
func (i *Issuer) SubmitCredential(ctx context.Context, requestID string, input CredentialInput) (*SubmitResult, error) {
	if i == nil || i.store == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer i.observe(MetricSubmitLatency, start)

	res, err := i.submit(ctx, requestID, input)
	if err != nil {
		i.metricInc(MetricCredentialFailure)
		return nil, err
	}
	return res, nil
}

func (i *Issuer) submit(ctx context.Context, requestID string, input CredentialInput) (*SubmitResult, error) {
	pending, raw, err := i.loadPending(ctx, requestID)
	if err != nil {
		return nil, err
	}
	provider, ok := i.providers[pending.ProviderID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, pending.ProviderID)
	}

	fields := auditFields{requestID: requestID, clientID: pending.ClientID, provider: provider.ID()}
	email := throttleEmail(pending, input)
	ip := clientIPFromContext(ctx)

	if err := i.checkThrottle(ctx, fields, email, ip); err != nil {
		return nil, err
	}

	step, err := i.runStep(ctx, requestID, provider, pending, raw, input)
	if err != nil {
		return nil, err
	}
	result, pending, raw := step.result, step.pending, step.raw

	if step.err != nil {
		i.recordFailure(ctx, fields, email, ip, input.Action, step.err)
		return nil, step.err
	}

	if result.Persist != nil {
		if err := result.Persist(ctx); err != nil {
			i.log.Warn("credential persist failed", zap.String("provider", provider.ID()), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrTransientFailure, err)
		}
	}
	if result.Deliver != nil {
		if err := result.Deliver(ctx); err != nil {
			i.metricInc(MetricCodeDeliveryFailure)
			i.emitAudit(ctx, auditEventDeliveryFailure, false, fields, ErrTransientFailure, nil)
			i.log.Warn("code delivery failed", zap.String("provider", provider.ID()), zap.Error(err))
			return nil, fmt.Errorf("%w: code delivery: %v", ErrTransientFailure, err)
		}
		i.metricInc(MetricCodeSent)
	}

	if result.Verified == nil {
		i.emitAudit(ctx, auditEventCredentialPending, true, fields, nil, func() map[string]string {
			return map[string]string{"action": input.Action}
		})
		return &SubmitResult{Status: SubmitPending, Prompt: result.Prompt, State: pending.State}, nil
	}

	i.metricInc(MetricCredentialVerified)
	if err := i.limiter.Reset(ctx, result.Verified.Email); err != nil {
		i.log.Warn("credential throttle reset failed", zap.Error(err))
	}

	return i.issueCode(ctx, requestID, pending, raw, *result.Verified, fields)
}

// stepOutcome is a committed provider step. err is the provider's own
// error, surfaced after its state was committed.
type stepOutcome struct {
	result  ProviderResult
	err     error
	pending *records.Pending
	raw     []byte
}

// runStep calls Begin and commits the returned state, retrying against the
// fresh record when another submission won the compare-and-swap.
func (i *Issuer) runStep(
	ctx context.Context,
	requestID string,
	provider Provider,
	pending *records.Pending,
	raw []byte,
	input CredentialInput,
) (stepOutcome, error) {
	key := pendingKeyPrefix + requestID

	for attempt := 0; attempt < i.config.Authorization.StateRetries; attempt++ {
		now := i.now()
		result, stepErr := provider.Begin(ctx, ProviderRequest{
			RequestID: requestID,
			State:     pending.ProviderState,
			Now:       now,
		}, input)

		if result.State == nil || bytes.Equal(result.State, pending.ProviderState) {
			return stepOutcome{result: result, err: stepErr, pending: pending, raw: raw}, nil
		}

		ttl := time.Unix(pending.ExpiresAt, 0).Sub(now)
		if ttl <= 0 {
			return stepOutcome{}, ErrRequestNotFound
		}

		next := *pending
		next.ProviderState = result.State
		encoded, err := records.EncodePending(&next)
		if err != nil {
			return stepOutcome{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}

		swapped, err := i.store.CompareAndSwap(ctx, key, raw, encoded, ttl)
		if err != nil {
			return stepOutcome{}, storeErr(err)
		}
		if swapped {
			return stepOutcome{result: result, err: stepErr, pending: &next, raw: encoded}, nil
		}

		i.metricInc(MetricStateConflict)
		pending, raw, err = i.loadPending(ctx, requestID)
		if err != nil {
			return stepOutcome{}, err
		}
	}

	return stepOutcome{}, fmt.Errorf("%w: provider state contention", ErrStorageUnavailable)
}

// throttleEmail is the address a submission is charged to. Code checks and
// resends are charged to the email of the committed challenge, whatever
// the input claims.
func throttleEmail(pending *records.Pending, input CredentialInput) string {
	email := identity.NormalizeEmail(input.Email)
	if email != "" && input.Code == "" {
		return email
	}
	if len(pending.ProviderState) == 0 {
		return email
	}
	ch, err := records.DecodeChallenge(pending.ProviderState)
	if err != nil {
		return email
	}
	return ch.Email
}

func (i *Issuer) recordFailure(ctx context.Context, fields auditFields, email, ip, action string, stepErr error) {
	if errors.Is(stepErr, errChallengeClosed) {
		i.metricInc(MetricCodeAttemptsExceeded)
	}
	i.emitAudit(ctx, auditEventCredentialFailure, false, fields, stepErr, func() map[string]string {
		return map[string]string{"action": action}
	})

	if !errors.Is(stepErr, ErrInvalidCredential) &&
		!errors.Is(stepErr, ErrUnknownIdentity) &&
		!errors.Is(stepErr, ErrInvalidCode) {
		return
	}
	if err := i.limiter.Fail(ctx, email, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		i.log.Warn("credential throttle update failed", zap.Error(err))
	}
}

// checkThrottle fails with ErrRateLimited when the email or IP budget is
// spent. An unreachable counter store does not block sign-in.
func (i *Issuer) checkThrottle(ctx context.Context, fields auditFields, email, ip string) error {
	err := i.limiter.Check(ctx, email, ip)
	if err == nil {
		return nil
	}
	if !errors.Is(err, rate.ErrRateLimited) {
		i.log.Warn("credential throttle check failed", zap.Error(err))
		return nil
	}
	i.metricInc(MetricRateLimitHit)
	i.emitAudit(ctx, auditEventRateLimited, false, fields, ErrRateLimited, nil)
	return ErrRateLimited
}

// issueCode consumes the pending request and stores a fresh code.
func (i *Issuer) issueCode(
	ctx context.Context,
	requestID string,
	pending *records.Pending,
	raw []byte,
	cred VerifiedCredential,
	fields auditFields,
) (*SubmitResult, error) {
	subject, err := i.success(ctx, cred)
	if err != nil {
		if !errors.Is(err, ErrInvalidSubject) && !errors.Is(err, ErrTransientFailure) {
			err = fmt.Errorf("%w: %v", ErrTransientFailure, err)
		}
		return nil, err
	}
	subject, err = i.subjects.validate(subject)
	if err != nil {
		return nil, err
	}
	props, err := json.Marshal(subject.Properties)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSubject, err)
	}

	code, err := internal.NewAuthorizationCode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientFailure, err)
	}
	now := i.now()
	codeRec, err := records.EncodeCode(&records.Code{
		Subject:     records.Subject{Type: subject.Type, Properties: props},
		ClientID:    pending.ClientID,
		RedirectURI: pending.RedirectURI,
		Scope:       pending.Scope,
		ExpiresAt:   now.Add(i.config.Authorization.CodeTTL).Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSubject, err)
	}

	key := pendingKeyPrefix + requestID
	deleted, err := i.store.CompareAndDelete(ctx, key, raw)
	if err != nil {
		return nil, storeErr(err)
	}
	if !deleted {
		i.metricInc(MetricStateConflict)
		return nil, ErrRequestNotFound
	}

	if err := i.store.Put(ctx, codeKeyPrefix+code, codeRec, i.config.Authorization.CodeTTL); err != nil {
		i.restoreRecord(ctx, key, raw, pending.ExpiresAt)
		return nil, storeErr(err)
	}

	fields.subject = subjectClaim(subject)
	i.metricInc(MetricCodeIssued)
	i.emitAudit(ctx, auditEventCodeIssued, true, fields, nil, func() map[string]string {
		return map[string]string{"method": cred.Method}
	})

	redirect, err := redirectWithCode(pending.RedirectURI, code, pending.State)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{
		Status:      SubmitCodeIssued,
		Code:        code,
		RedirectURL: redirect,
		State:       pending.State,
	}, nil
}

func (i *Issuer) resolveUserSubject(ctx context.Context, cred VerifiedCredential) (Subject, error) {
	id, err := i.resolver.ResolveOrCreateSubject(ctx, cred.Email)
	if err != nil {
		return Subject{}, fmt.Errorf("%w: resolve subject: %v", ErrTransientFailure, err)
	}
	return Subject{Type: "user", Properties: map[string]any{"id": id}}, nil
}

func redirectWithCode(redirectURI, code, state string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("%w: redirect uri", ErrInvalidRequest)
	}
	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
