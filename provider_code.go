package goIssuer

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIssuer/internal"
	"github.com/MrEthical07/goIssuer/internal/records"
	"github.com/MrEthical07/goIssuer/sender"
)

// errChallengeClosed marks a verification refused because the challenge is
// exhausted or expired, as opposed to a wrong code.
var errChallengeClosed = errors.New("challenge closed")

// codeChallenger issues and checks one-time email codes. The plaintext code
// only lives inside the Deliver closure; state keeps a hash bound to the
// request id.
type codeChallenger struct {
	cfg    EmailCodeConfig
	sender sender.CodeSender
}

func (c *codeChallenger) issue(req ProviderRequest, purpose records.Purpose, email, passwordHash string) ([]byte, func(ctx context.Context) error, error) {
	code, err := internal.NewOTP(c.cfg.Digits)
	if err != nil {
		return nil, nil, err
	}

	ch := &records.Challenge{
		Purpose:      purpose,
		ExpiresAt:    req.Now.Add(c.cfg.TTL).Unix(),
		CodeHash:     internal.HashChallengeCode(req.RequestID, code),
		Email:        email,
		PasswordHash: passwordHash,
	}
	state, err := records.EncodeChallenge(ch)
	if err != nil {
		return nil, nil, err
	}

	s := c.sender
	deliver := func(ctx context.Context) error {
		return s.SendCode(ctx, sender.Delivery{To: email, Code: code, Purpose: deliveryPurpose(purpose)})
	}
	return state, deliver, nil
}

// verify checks code against the committed challenge. On a mismatch it
// returns the state with the attempt counter advanced. Exhausted and
// expired challenges fail without touching state.
func (c *codeChallenger) verify(req ProviderRequest, code string) (*records.Challenge, []byte, error) {
	if len(req.State) == 0 {
		return nil, nil, ErrInvalidCode
	}
	ch, err := records.DecodeChallenge(req.State)
	if err != nil {
		return nil, nil, ErrInvalidCode
	}
	if int(ch.Attempts) >= c.cfg.MaxAttempts || expired(ch.ExpiresAt, req.Now) {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidCode, errChallengeClosed)
	}

	sum := internal.HashChallengeCode(req.RequestID, code)
	if code == "" || subtle.ConstantTimeCompare(sum[:], ch.CodeHash[:]) != 1 {
		ch.Attempts++
		next, err := records.EncodeChallenge(ch)
		if err != nil {
			return nil, nil, err
		}
		return nil, next, ErrInvalidCode
	}
	return ch, nil, nil
}

// reissue sends a fresh code for the challenge in state, keeping its
// purpose, email, and password hash. Attempts start over.
func (c *codeChallenger) reissue(req ProviderRequest) ([]byte, func(ctx context.Context) error, *records.Challenge, error) {
	if len(req.State) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: no code was requested", ErrInvalidRequest)
	}
	ch, err := records.DecodeChallenge(req.State)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: no code was requested", ErrInvalidRequest)
	}
	state, deliver, err := c.issue(req, ch.Purpose, ch.Email, ch.PasswordHash)
	return state, deliver, ch, err
}

func deliveryPurpose(p records.Purpose) sender.Purpose {
	switch p {
	case records.PurposeRegister:
		return sender.PurposeRegister
	case records.PurposeReset:
		return sender.PurposeReset
	default:
		return sender.PurposeLogin
	}
}

// expired reports whether a unix-seconds deadline has passed.
func expired(expiresAt int64, now time.Time) bool {
	return now.Unix() >= expiresAt
}
