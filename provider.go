package goIssuer

import (
	"context"
	"time"
)

// ProviderKind identifies the credential verification strategy of a Provider.
type ProviderKind string

const (
	KindPassword  ProviderKind = "password"
	KindEmailCode ProviderKind = "code"
)

// Actions understood by the built-in providers. An empty action selects the
// provider's default.
const (
	ActionLogin       = "login"
	ActionRegister    = "register"
	ActionReset       = "reset"
	ActionRequestCode = "request_code"
	ActionVerifyCode  = "verify_code"
)

// CredentialInput is what the end user submitted for one step.
type CredentialInput struct {
	Action   string `json:"action,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
	Code     string `json:"code,omitempty"`
}

// ProviderRequest is the issuer-owned context passed to Begin.
type ProviderRequest struct {
	RequestID string
	// State is the provider state last committed for this request, nil on
	// the first step.
	State []byte
	Now   time.Time
}

// PromptStep tells the client what to collect next.
type PromptStep string

const (
	PromptCodeSent PromptStep = "code_sent"
)

type Prompt struct {
	Step     PromptStep `json:"step"`
	Provider string     `json:"provider"`
	Email    string     `json:"email,omitempty"`
}

// VerifiedCredential is produced by a provider once the user has proven
// control of an identity. It is never persisted.
type VerifiedCredential struct {
	ProviderID string
	Kind       ProviderKind
	Email      string
	// Method is the provider action that completed verification.
	Method string
}

// ProviderResult is the outcome of one Begin call.
//
// A non-nil State replaces the committed provider state. Persist and
// Deliver run only after that commit succeeded, Persist first. Verified
// ends the credential phase.
type ProviderResult struct {
	State    []byte
	Verified *VerifiedCredential
	Prompt   *Prompt
	Persist  func(ctx context.Context) error
	Deliver  func(ctx context.Context) error
}

// Provider verifies one kind of credential.
//
// Begin must not write anywhere: every side effect goes through Persist or
// Deliver so the issuer can order it after the state commit. Returning an
// error together with a non-nil State asks the issuer to commit the state
// and then surface the error, which is how failed attempts are counted.
type Provider interface {
	ID() string
	Kind() ProviderKind
	Begin(ctx context.Context, req ProviderRequest, input CredentialInput) (ProviderResult, error)
}
