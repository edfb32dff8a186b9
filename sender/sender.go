// Package sender delivers one-time codes to end users.
//
// The issuer treats every delivery failure as transient: the pending
// authorization stays valid and the user may ask for another code.
package sender

import (
	"context"
	"errors"
)

// Purpose tells the recipient why a code was sent.
type Purpose string

const (
	PurposeLogin    Purpose = "login"
	PurposeRegister Purpose = "register"
	PurposeReset    Purpose = "reset"
)

// Delivery is one code addressed to one recipient.
type Delivery struct {
	To      string
	Code    string
	Purpose Purpose
}

// CodeSender delivers a code. Implementations must be safe for concurrent
// use.
type CodeSender interface {
	SendCode(ctx context.Context, d Delivery) error
}

// Func adapts a function to CodeSender.
type Func func(ctx context.Context, d Delivery) error

func (f Func) SendCode(ctx context.Context, d Delivery) error {
	if f == nil {
		return errors.New("sender: nil func")
	}
	return f(ctx, d)
}

func subjectFor(p Purpose) string {
	switch p {
	case PurposeRegister:
		return "Confirm your email"
	case PurposeReset:
		return "Reset your password"
	default:
		return "Your sign-in code"
	}
}
