package goIssuer

import (
	"context"
	"time"

	"github.com/MrEthical07/goIssuer/jwt"
)

// AuthorizeRequest starts an authorization. ProviderID may be empty when
// exactly one provider is registered.
type AuthorizeRequest struct {
	ClientID     string
	RedirectURI  string
	ResponseType string
	State        string
	Scope        string
	ProviderID   string
}

type AuthorizeResult struct {
	RequestID  string
	ProviderID string
	Kind       ProviderKind
	ExpiresAt  time.Time
}

// SubmitStatus is the outcome class of SubmitCredential.
type SubmitStatus string

const (
	SubmitPending    SubmitStatus = "pending"
	SubmitCodeIssued SubmitStatus = "code_issued"
)

// SubmitResult carries either a prompt for the next step or the issued code.
type SubmitResult struct {
	Status SubmitStatus
	Prompt *Prompt
	Code   string
	// RedirectURL is the client redirect URI with code and state appended.
	RedirectURL string
	// State echoes the client's opaque state parameter.
	State string
}

// ExchangeRequest redeems an authorization code.
type ExchangeRequest struct {
	Code        string
	ClientID    string
	RedirectURI string
}

// TokenSet is the token response of ExchangeCode and Refresh.
type TokenSet struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token,omitempty"`
	TokenType    string  `json:"token_type"`
	ExpiresIn    int64   `json:"expires_in"`
	Scope        string  `json:"scope,omitempty"`
	Subject      Subject `json:"-"`
}

// AuthorizationState is the reporting view of a request's lifecycle. Only
// the live states are observable through Inspect; the rest describe
// transitions.
type AuthorizationState uint8

const (
	StateInitiated AuthorizationState = iota + 1
	StateAwaitingCredential
	StateCodeIssued
	StateExchanged
	StateExpired
	StateFailed
)

func (s AuthorizationState) String() string {
	switch s {
	case StateInitiated:
		return "INITIATED"
	case StateAwaitingCredential:
		return "AWAITING_CREDENTIAL"
	case StateCodeIssued:
		return "CODE_ISSUED"
	case StateExchanged:
		return "EXCHANGED"
	case StateExpired:
		return "EXPIRED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// AccessClaims is the verified payload of an access token.
type AccessClaims = jwt.AccessClaims

// SuccessHandler turns a verified credential into a subject. The default
// resolves the email to a "user" subject through the identity resolver.
type SuccessHandler func(ctx context.Context, cred VerifiedCredential) (Subject, error)
