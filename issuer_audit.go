package goIssuer

import (
	"context"
	"errors"
)

const (
	auditEventAuthorize         = "authorize"
	auditEventCredentialFailure = "credential_failure"
	auditEventCredentialPending = "credential_pending"
	auditEventCodeIssued        = "code_issued"
	auditEventDeliveryFailure   = "code_delivery_failure"
	auditEventExchange          = "code_exchange"
	auditEventRefresh           = "refresh"
	auditEventRateLimited       = "rate_limit_triggered"
)

// AuditErrorCode is the stable error label carried by audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredential AuditErrorCode = "invalid_credential"
	auditErrInvalidCode       AuditErrorCode = "invalid_code"
	auditErrUnknownIdentity   AuditErrorCode = "unknown_identity"
	auditErrIdentityExists    AuditErrorCode = "identity_exists"
	auditErrPasswordPolicy    AuditErrorCode = "password_policy"
	auditErrInvalidGrant      AuditErrorCode = "invalid_grant"
	auditErrInvalidRequest    AuditErrorCode = "invalid_request"
	auditErrInvalidClient     AuditErrorCode = "invalid_client"
	auditErrInvalidSubject    AuditErrorCode = "invalid_subject"
	auditErrNotFound          AuditErrorCode = "request_not_found"
	auditErrRateLimited       AuditErrorCode = "rate_limited"
	auditErrUnavailable       AuditErrorCode = "backend_unavailable"
	auditErrTransient         AuditErrorCode = "transient_failure"
	auditErrSigning           AuditErrorCode = "signing_error"
	auditErrInternal          AuditErrorCode = "internal_error"
)

// auditFields are the per-event identifiers; zero values are omitted.
type auditFields struct {
	requestID string
	clientID  string
	subject   string
	provider  string
}

func (i *Issuer) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	f auditFields,
	err error,
	metadataBuilder func() map[string]string,
) {
	if i == nil || i.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: i.now().UTC(),
		EventType: eventType,
		RequestID: f.requestID,
		ClientID:  f.clientID,
		Subject:   f.subject,
		Provider:  f.provider,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	i.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredential):
		return auditErrInvalidCredential
	case errors.Is(err, ErrInvalidCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrUnknownIdentity):
		return auditErrUnknownIdentity
	case errors.Is(err, ErrIdentityExists):
		return auditErrIdentityExists
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrInvalidGrant), errors.Is(err, ErrInvalidToken):
		return auditErrInvalidGrant
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrUnsupportedResponseType),
		errors.Is(err, ErrUnknownProvider):
		return auditErrInvalidRequest
	case errors.Is(err, ErrInvalidClient):
		return auditErrInvalidClient
	case errors.Is(err, ErrInvalidSubject):
		return auditErrInvalidSubject
	case errors.Is(err, ErrRequestNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrStorageUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrTransientFailure):
		return auditErrTransient
	case errors.Is(err, ErrSigningError):
		return auditErrSigning
	default:
		return auditErrInternal
	}
}
