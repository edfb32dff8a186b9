package goIssuer

import "errors"

var (
	// ErrRequestNotFound covers absent, expired, consumed, and corrupt
	// pending authorizations. Callers cannot tell these apart.
	ErrRequestNotFound = errors.New("authorization request not found")
	// ErrInvalidCredential is returned for a wrong email/password pair and,
	// unless the issuer reveals unknown identities, for unknown emails.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrInvalidCode is returned for a wrong, expired, or exhausted one-time code.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrUnknownIdentity is only returned when Password.RevealUnknownIdentity is set.
	ErrUnknownIdentity = errors.New("unknown identity")
	// ErrIdentityExists is returned when registering an email that already has a password.
	ErrIdentityExists  = errors.New("identity already exists")
	ErrPasswordPolicy  = errors.New("password policy violation")
	ErrInvalidGrant    = errors.New("invalid grant")
	ErrInvalidToken    = errors.New("invalid access token")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInvalidClient   = errors.New("invalid client")
	ErrInvalidSubject  = errors.New("invalid subject")
	ErrRateLimited     = errors.New("credential attempts rate limited")
	ErrEngineNotReady  = errors.New("issuer not initialized")
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrUnsupportedResponseType is returned by Authorize for any response
	// type other than "code".
	ErrUnsupportedResponseType = errors.New("unsupported response type")
	// ErrStorageUnavailable wraps transient store failures and exhausted
	// compare-and-swap retries. The operation may be retried.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrTransientFailure wraps collaborator failures such as code delivery.
	// The pending authorization stays valid.
	ErrTransientFailure = errors.New("transient failure")
	// ErrSigningError means no usable key material; it is not retryable.
	ErrSigningError = errors.New("token signing failed")
)
