package goIssuer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goIssuer/identity"
	"github.com/MrEthical07/goIssuer/internal/records"
	"github.com/MrEthical07/goIssuer/sender"
)

// EmailCodeProvider verifies control of an email address with a one-time
// numeric code.
//
// Actions: request_code (email) sends a code and replaces any previous
// challenge; verify_code (code) checks it. With no action, a submission
// carrying a code is a verification and anything else a request.
type EmailCodeProvider struct {
	id    string
	codes *codeChallenger
}

// NewEmailCodeProvider returns a provider registered under id.
func NewEmailCodeProvider(id string, cfg EmailCodeConfig, s sender.CodeSender) (*EmailCodeProvider, error) {
	if id == "" {
		return nil, errors.New("email code provider id is required")
	}
	if s == nil {
		return nil, errors.New("email code provider requires a code sender")
	}
	if cfg.Digits < 4 || cfg.Digits > 10 || cfg.TTL <= 0 || cfg.MaxAttempts < 1 {
		return nil, errors.New("invalid email code configuration")
	}
	return &EmailCodeProvider{
		id:    id,
		codes: &codeChallenger{cfg: cfg, sender: s},
	}, nil
}

func (p *EmailCodeProvider) ID() string         { return p.id }
func (p *EmailCodeProvider) Kind() ProviderKind { return KindEmailCode }

func (p *EmailCodeProvider) Begin(ctx context.Context, req ProviderRequest, input CredentialInput) (ProviderResult, error) {
	action := input.Action
	if action == "" {
		action = ActionRequestCode
		if input.Code != "" {
			action = ActionVerifyCode
		}
	}

	switch action {
	case ActionRequestCode:
		email := identity.NormalizeEmail(input.Email)
		if !plausibleEmail(email) {
			return ProviderResult{}, fmt.Errorf("%w: a valid email is required", ErrInvalidRequest)
		}
		state, deliver, err := p.codes.issue(req, records.PurposeLogin, email, "")
		if err != nil {
			return ProviderResult{}, err
		}
		return ProviderResult{
			State:   state,
			Deliver: deliver,
			Prompt:  &Prompt{Step: PromptCodeSent, Provider: p.id, Email: email},
		}, nil

	case ActionVerifyCode:
		ch, next, err := p.codes.verify(req, strings.TrimSpace(input.Code))
		if err != nil {
			return ProviderResult{State: next}, err
		}
		return ProviderResult{Verified: &VerifiedCredential{
			ProviderID: p.id,
			Kind:       KindEmailCode,
			Email:      ch.Email,
			Method:     ActionVerifyCode,
		}}, nil

	default:
		return ProviderResult{}, fmt.Errorf("%w: unsupported action %q", ErrInvalidRequest, action)
	}
}

// plausibleEmail rejects obviously malformed addresses. Deliverability is
// the sender's concern.
func plausibleEmail(email string) bool {
	at := strings.LastIndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}
