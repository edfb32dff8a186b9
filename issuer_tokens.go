package goIssuer

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrEthical07/goIssuer/internal"
	"github.com/MrEthical07/goIssuer/internal/records"
	"github.com/MrEthical07/goIssuer/jwt"
	"github.com/MrEthical07/goIssuer/store"
)

// issueTokens mints an access token for sub and, when refresh is enabled, a
// new refresh record.
func (i *Issuer) issueTokens(ctx context.Context, sub Subject, clientID, scope string) (*TokenSet, error) {
	access, err := i.tokens.CreateAccess(jwt.AccessInput{
		Type:       sub.Type,
		Properties: sub.Properties,
		Subject:    subjectClaim(sub),
		ClientID:   clientID,
		Scope:      scope,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningError, err)
	}

	ts := &TokenSet{
		AccessToken: access,
		TokenType:   "bearer",
		ExpiresIn:   int64(i.tokens.AccessTTL().Seconds()),
		Scope:       scope,
		Subject:     sub,
	}

	refreshTTL := i.config.JWT.RefreshTTL
	if refreshTTL <= 0 {
		return ts, nil
	}

	props, err := json.Marshal(sub.Properties)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSubject, err)
	}
	id, err := internal.NewRefreshID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientFailure, err)
	}
	secret, err := internal.NewRefreshSecret()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientFailure, err)
	}
	data, err := records.EncodeRefresh(&records.Refresh{
		SecretHash: internal.HashRefreshSecret(secret),
		Subject:    records.Subject{Type: sub.Type, Properties: props},
		ClientID:   clientID,
		Scope:      scope,
		ExpiresAt:  i.now().Add(refreshTTL).Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSubject, err)
	}
	if err := i.store.Put(ctx, refreshKeyPrefix+id, data, refreshTTL); err != nil {
		return nil, storeErr(err)
	}

	ts.RefreshToken, err = internal.EncodeRefreshToken(id, secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientFailure, err)
	}
	return ts, nil
}

// Refresh rotates a refresh token. The presented token is consumed with
// compare-and-delete, so it can be redeemed once; a wrong secret leaves
// the record untouched. When the successor cannot be stored the old token
// is put back.
func (i *Issuer) Refresh(ctx context.Context, refreshToken, clientID string) (*TokenSet, error) {
	if i == nil || i.store == nil {
		return nil, ErrEngineNotReady
	}

	fields := auditFields{clientID: clientID}
	ts, err := i.refresh(ctx, refreshToken, clientID)
	if err != nil {
		i.metricInc(MetricRefreshFailure)
		i.emitAudit(ctx, auditEventRefresh, false, fields, err, nil)
		return nil, err
	}

	fields.subject = subjectClaim(ts.Subject)
	i.metricInc(MetricRefreshSuccess)
	i.emitAudit(ctx, auditEventRefresh, true, fields, nil, nil)
	return ts, nil
}

func (i *Issuer) refresh(ctx context.Context, refreshToken, clientID string) (*TokenSet, error) {
	if i.config.JWT.RefreshTTL <= 0 {
		return nil, ErrInvalidGrant
	}
	id, secret, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidGrant
	}

	key := refreshKeyPrefix + id
	raw, err := i.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, storeErr(err)
	}
	rec, err := records.DecodeRefresh(raw)
	if err != nil {
		return nil, ErrInvalidGrant
	}

	sum := internal.HashRefreshSecret(secret)
	if subtle.ConstantTimeCompare(sum[:], rec.SecretHash[:]) != 1 {
		return nil, ErrInvalidGrant
	}

	deleted, err := i.store.CompareAndDelete(ctx, key, raw)
	if err != nil {
		return nil, storeErr(err)
	}
	if !deleted {
		return nil, ErrInvalidGrant
	}

	ok := liveFlag(rec.ExpiresAt, i.now()) &
		subtle.ConstantTimeCompare([]byte(rec.ClientID), []byte(clientID))
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

// VerifyAccess validates an access token minted by this issuer or signed
// with one of its verify keys.
func (i *Issuer) VerifyAccess(ctx context.Context, token string) (*AccessClaims, error) {
	if i == nil || i.tokens == nil {
		return nil, ErrEngineNotReady
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	claims, err := i.tokens.ParseAccess(token)
	if err != nil {
		i.metricInc(MetricVerifyAccessFailure)
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, ok := i.subjects[claims.Type]; !ok {
		i.metricInc(MetricVerifyAccessFailure)
		return nil, fmt.Errorf("%w: unknown subject type %q", ErrInvalidToken, claims.Type)
	}

	i.metricInc(MetricVerifyAccessSuccess)
	return claims, nil
}

// JWKS returns the public key set for /.well-known/jwks.json.
func (i *Issuer) JWKS() jwt.JWKSet {
	return i.tokens.JWKS()
}
