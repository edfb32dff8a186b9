package goIssuer

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goIssuer/internal"
	"github.com/MrEthical07/goIssuer/internal/records"
	"github.com/MrEthical07/goIssuer/store"
)

// Authorize validates an authorization request and stores it as pending.
// The returned request id is the only handle on it.
func (i *Issuer) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	if i == nil || i.store == nil {
		return nil, ErrEngineNotReady
	}

	res, err := i.authorize(ctx, req)
	if err != nil {
		i.metricInc(MetricAuthorizeFailure)
		i.emitAudit(ctx, auditEventAuthorize, false, auditFields{clientID: req.ClientID, provider: req.ProviderID}, err, nil)
		return nil, err
	}

	i.metricInc(MetricAuthorizeSuccess)
	i.emitAudit(ctx, auditEventAuthorize, true, auditFields{
		requestID: res.RequestID,
		clientID:  req.ClientID,
		provider:  res.ProviderID,
	}, nil, nil)
	return res, nil
}

func (i *Issuer) authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	if req.ResponseType != "code" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedResponseType, req.ResponseType)
	}
	if req.ClientID == "" {
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidRequest)
	}
	if req.RedirectURI == "" {
		return nil, fmt.Errorf("%w: redirect_uri is required", ErrInvalidRequest)
	}

	provider, err := i.selectProvider(req.ProviderID)
	if err != nil {
		return nil, err
	}

	if err := i.clients.Allow(ctx, req.ClientID, req.RedirectURI); err != nil {
		if errors.Is(err, ErrInvalidClient) || errors.Is(err, ErrInvalidRequest) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidClient, err)
	}

	id, err := internal.NewRequestID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientFailure, err)
	}
	requestID := id.String()

	now := i.now()
	expiresAt := now.Add(i.config.Authorization.RequestTTL)
	data, err := records.EncodePending(&records.Pending{
		ClientID:     req.ClientID,
		RedirectURI:  req.RedirectURI,
		ResponseType: req.ResponseType,
		State:        req.State,
		Scope:        req.Scope,
		ProviderID:   provider.ID(),
		CreatedAt:    now.Unix(),
		ExpiresAt:    expiresAt.Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if err := i.store.Put(ctx, pendingKeyPrefix+requestID, data, i.config.Authorization.RequestTTL); err != nil {
		return nil, storeErr(err)
	}

	return &AuthorizeResult{
		RequestID:  requestID,
		ProviderID: provider.ID(),
		Kind:       provider.Kind(),
		ExpiresAt:  expiresAt,
	}, nil
}

func (i *Issuer) selectProvider(id string) (Provider, error) {
	if id == "" {
		if len(i.providers) != 1 {
			return nil, fmt.Errorf("%w: provider is required", ErrUnknownProvider)
		}
		for _, p := range i.providers {
			return p, nil
		}
	}
	p, ok := i.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	return p, nil
}

// Inspect reports the state of a live pending request.
func (i *Issuer) Inspect(ctx context.Context, requestID string) (AuthorizationState, error) {
	if i == nil || i.store == nil {
		return 0, ErrEngineNotReady
	}
	p, _, err := i.loadPending(ctx, requestID)
	if err != nil {
		return 0, err
	}
	if len(p.ProviderState) == 0 {
		return StateInitiated, nil
	}
	return StateAwaitingCredential, nil
}

// loadPending returns the decoded record and its raw bytes for a later
// compare-and-swap. Absent, corrupt, and expired records are all
// ErrRequestNotFound.
func (i *Issuer) loadPending(ctx context.Context, requestID string) (*records.Pending, []byte, error) {
	if _, err := internal.ParseRequestID(requestID); err != nil {
		return nil, nil, ErrRequestNotFound
	}
	raw, err := i.store.Get(ctx, pendingKeyPrefix+requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrRequestNotFound
		}
		return nil, nil, storeErr(err)
	}
	p, err := records.DecodePending(raw)
	if err != nil {
		return nil, nil, ErrRequestNotFound
	}
	if expired(p.ExpiresAt, i.now()) {
		return nil, nil, ErrRequestNotFound
	}
	return p, raw, nil
}

// storeErr maps store failures onto the issuer's error set.
func storeErr(err error) error {
	if errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
