package sender

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFuncAdapter(t *testing.T) {
	var got Delivery
	f := Func(func(ctx context.Context, d Delivery) error {
		got = d
		return nil
	})

	require.NoError(t, f.SendCode(context.Background(), Delivery{To: "a@x.com", Code: "123456", Purpose: PurposeLogin}))
	require.Equal(t, "123456", got.Code)

	var nilFunc Func
	require.Error(t, nilFunc.SendCode(context.Background(), Delivery{}))

	boom := errors.New("boom")
	f = func(context.Context, Delivery) error { return boom }
	require.ErrorIs(t, f.SendCode(context.Background(), Delivery{}), boom)
}

func TestLogSenderWritesCode(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLog(zap.New(core))

	require.NoError(t, s.SendCode(context.Background(), Delivery{To: "a@x.com", Code: "654321", Purpose: PurposeRegister}))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "a@x.com", fields["to"])
	require.Equal(t, "654321", fields["code"])
	require.Equal(t, "register", fields["purpose"])
}

func TestLogSenderHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, NewLog(nil).SendCode(ctx, Delivery{}), context.Canceled)
}

func TestSMTPConfigValidation(t *testing.T) {
	_, err := NewSMTP(SMTPConfig{Port: 25, From: "a@x.com"}, nil)
	require.Error(t, err)

	_, err = NewSMTP(SMTPConfig{Host: "smtp.x.com", Port: 25}, nil)
	require.Error(t, err)

	_, err = NewSMTP(SMTPConfig{Host: "smtp.x.com", Port: 25, From: "a@x.com", TLSMode: "bogus"}, nil)
	require.Error(t, err)

	s, err := NewSMTP(SMTPConfig{Host: "smtp.x.com", Port: 465, From: "a@x.com", TLSMode: TLSModeSSL}, nil)
	require.NoError(t, err)
	require.True(t, s.dialer().SSL)
}

func TestSMTPMessageContainsCode(t *testing.T) {
	s, err := NewSMTP(SMTPConfig{Host: "smtp.x.com", Port: 587, From: "issuer@x.com"}, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = s.message(Delivery{To: "user@x.com", Code: "246810", Purpose: PurposeReset}).WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	require.True(t, strings.Contains(raw, "To: user@x.com"), raw)
	require.True(t, strings.Contains(raw, "Subject: Reset your password"), raw)
	require.True(t, strings.Contains(raw, "246810"), raw)
}
