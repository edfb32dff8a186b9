package goIssuer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goIssuer/identity"
	"github.com/MrEthical07/goIssuer/internal/records"
	"github.com/MrEthical07/goIssuer/password"
	"github.com/MrEthical07/goIssuer/sender"
)

const dummyPassword = "goissuer-timing-equalizer"

// PasswordProvider verifies email and password pairs and runs the
// code-confirmed register and reset flows.
//
// Actions:
//
//   - login (default): email + password, single step.
//   - register: email + password; sends a code. verify_code with the code
//     stores the password and completes.
//   - reset: email; sends a code when the email has a password. verify_code
//     with the code and the new password replaces it and completes.
//   - request_code: resends the code of a pending register or reset.
type PasswordProvider struct {
	id        string
	cfg       PasswordConfig
	passwords identity.PasswordStore
	hasher    password.Hasher
	codes     *codeChallenger
	dummyHash string
}

// NewPasswordProvider returns a provider registered under id.
func NewPasswordProvider(
	id string,
	cfg PasswordConfig,
	codeCfg EmailCodeConfig,
	passwords identity.PasswordStore,
	hasher password.Hasher,
	s sender.CodeSender,
) (*PasswordProvider, error) {
	if id == "" {
		return nil, errors.New("password provider id is required")
	}
	if passwords == nil || hasher == nil {
		return nil, errors.New("password provider requires a password store and hasher")
	}
	if s == nil {
		return nil, errors.New("password provider requires a code sender")
	}
	if cfg.MinLength <= 0 || cfg.MaxLength < cfg.MinLength {
		return nil, errors.New("invalid password length bounds")
	}

	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &PasswordProvider{
		id:        id,
		cfg:       cfg,
		passwords: passwords,
		hasher:    hasher,
		codes:     &codeChallenger{cfg: codeCfg, sender: s},
		dummyHash: dummy,
	}, nil
}

func (p *PasswordProvider) ID() string         { return p.id }
func (p *PasswordProvider) Kind() ProviderKind { return KindPassword }

func (p *PasswordProvider) Begin(ctx context.Context, req ProviderRequest, input CredentialInput) (ProviderResult, error) {
	action := input.Action
	if action == "" {
		action = ActionLogin
	}

	switch action {
	case ActionLogin:
		return p.login(ctx, input)
	case ActionRegister:
		return p.register(ctx, req, input)
	case ActionReset:
		return p.reset(ctx, req, input)
	case ActionVerifyCode:
		return p.verifyCode(ctx, req, input)
	case ActionRequestCode:
		state, deliver, ch, err := p.codes.reissue(req)
		if err != nil {
			return ProviderResult{}, err
		}
		if ch.Purpose == records.PurposeReset && ch.PasswordHash == "" && !p.hasPassword(ctx, ch.Email) {
			deliver = nil
		}
		return ProviderResult{
			State:   state,
			Deliver: deliver,
			Prompt:  &Prompt{Step: PromptCodeSent, Provider: p.id, Email: ch.Email},
		}, nil
	default:
		return ProviderResult{}, fmt.Errorf("%w: unsupported action %q", ErrInvalidRequest, action)
	}
}

func (p *PasswordProvider) login(ctx context.Context, input CredentialInput) (ProviderResult, error) {
	email := identity.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return ProviderResult{}, fmt.Errorf("%w: email and password are required", ErrInvalidRequest)
	}

	hash, err := p.passwords.PasswordHash(ctx, email)
	if errors.Is(err, identity.ErrNotFound) {
		// Same KDF cost as a real check so response time does not reveal
		// whether the email exists.
		_, _ = p.hasher.Verify(input.Password, p.dummyHash)
		if p.cfg.RevealUnknownIdentity {
			return ProviderResult{}, ErrUnknownIdentity
		}
		return ProviderResult{}, ErrInvalidCredential
	}
	if err != nil {
		return ProviderResult{}, fmt.Errorf("%w: %v", ErrTransientFailure, err)
	}

	ok, err := p.hasher.Verify(input.Password, hash)
	if err != nil || !ok {
		return ProviderResult{}, ErrInvalidCredential
	}

	return ProviderResult{Verified: &VerifiedCredential{
		ProviderID: p.id,
		Kind:       KindPassword,
		Email:      email,
		Method:     ActionLogin,
	}}, nil
}

func (p *PasswordProvider) register(ctx context.Context, req ProviderRequest, input CredentialInput) (ProviderResult, error) {
	email := identity.NormalizeEmail(input.Email)
	if !plausibleEmail(email) {
		return ProviderResult{}, fmt.Errorf("%w: a valid email is required", ErrInvalidRequest)
	}
	if err := p.checkPolicy(input.Password); err != nil {
		return ProviderResult{}, err
	}

	_, err := p.passwords.PasswordHash(ctx, email)
	switch {
	case err == nil:
		return ProviderResult{}, ErrIdentityExists
	case !errors.Is(err, identity.ErrNotFound):
		return ProviderResult{}, fmt.Errorf("%w: %v", ErrTransientFailure, err)
	}

	hash, err := p.hasher.Hash(input.Password)
	if err != nil {
		return ProviderResult{}, fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	state, deliver, err := p.codes.issue(req, records.PurposeRegister, email, hash)
	if err != nil {
		return ProviderResult{}, err
	}
	return ProviderResult{
		State:   state,
		Deliver: deliver,
		Prompt:  &Prompt{Step: PromptCodeSent, Provider: p.id, Email: email},
	}, nil
}

func (p *PasswordProvider) reset(ctx context.Context, req ProviderRequest, input CredentialInput) (ProviderResult, error) {
	email := identity.NormalizeEmail(input.Email)
	if !plausibleEmail(email) {
		return ProviderResult{}, fmt.Errorf("%w: a valid email is required", ErrInvalidRequest)
	}

	state, deliver, err := p.codes.issue(req, records.PurposeReset, email, "")
	if err != nil {
		return ProviderResult{}, err
	}
	// Unknown emails get the same prompt and a code nobody receives.
	if !p.hasPassword(ctx, email) {
		deliver = nil
	}
	return ProviderResult{
		State:   state,
		Deliver: deliver,
		Prompt:  &Prompt{Step: PromptCodeSent, Provider: p.id, Email: email},
	}, nil
}

func (p *PasswordProvider) verifyCode(ctx context.Context, req ProviderRequest, input CredentialInput) (ProviderResult, error) {
	ch, next, err := p.codes.verify(req, strings.TrimSpace(input.Code))
	if err != nil {
		return ProviderResult{State: next}, err
	}

	var hash string
	switch ch.Purpose {
	case records.PurposeRegister:
		hash = ch.PasswordHash
	case records.PurposeReset:
		if err := p.checkPolicy(input.Password); err != nil {
			return ProviderResult{}, err
		}
		hash, err = p.hasher.Hash(input.Password)
		if err != nil {
			return ProviderResult{}, fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
		}
	default:
		return ProviderResult{}, ErrInvalidCode
	}

	email := ch.Email
	passwords := p.passwords
	return ProviderResult{
		Verified: &VerifiedCredential{
			ProviderID: p.id,
			Kind:       KindPassword,
			Email:      email,
			Method:     purposeMethod(ch.Purpose),
		},
		Persist: func(ctx context.Context) error {
			return passwords.SetPasswordHash(ctx, email, hash)
		},
	}, nil
}

func (p *PasswordProvider) checkPolicy(pw string) error {
	if len(pw) < p.cfg.MinLength {
		return fmt.Errorf("%w: password must be at least %d bytes", ErrPasswordPolicy, p.cfg.MinLength)
	}
	if len(pw) > p.cfg.MaxLength {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrPasswordPolicy, p.cfg.MaxLength)
	}
	return nil
}

func (p *PasswordProvider) hasPassword(ctx context.Context, email string) bool {
	_, err := p.passwords.PasswordHash(ctx, email)
	return err == nil
}

func purposeMethod(p records.Purpose) string {
	switch p {
	case records.PurposeRegister:
		return ActionRegister
	case records.PurposeReset:
		return ActionReset
	default:
		return ActionLogin
	}
}
