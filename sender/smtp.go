package sender

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	mail "github.com/go-mail/mail"
	"go.uber.org/zap"
)

// TLS modes accepted by SMTPConfig.TLSMode.
const (
	TLSModeAuto     = "auto"
	TLSModeStartTLS = "starttls"
	TLSModeSSL      = "ssl"
	TLSModeNone     = "none"
)

type SMTPConfig struct {
	Host               string
	Port               int
	From               string
	User               string
	Pass               string
	TLSMode            string
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// SMTP sends codes as plain-text email.
type SMTP struct {
	cfg    SMTPConfig
	logger *zap.Logger
}

func NewSMTP(cfg SMTPConfig, logger *zap.Logger) (*SMTP, error) {
	if cfg.Host == "" || cfg.Port <= 0 {
		return nil, fmt.Errorf("smtp: host and port are required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp: from address is required")
	}
	switch cfg.TLSMode {
	case "":
		cfg.TLSMode = TLSModeAuto
	case TLSModeAuto, TLSModeStartTLS, TLSModeSSL, TLSModeNone:
	default:
		return nil, fmt.Errorf("smtp: unknown tls mode %q", cfg.TLSMode)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTP{cfg: cfg, logger: logger.Named("smtp")}, nil
}

func (s *SMTP) SendCode(ctx context.Context, d Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := s.message(d)
	if err := s.dialer().DialAndSend(m); err != nil {
		s.logger.Warn("smtp send failed", zap.String("purpose", string(d.Purpose)), zap.Error(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	s.logger.Debug("smtp send ok", zap.String("purpose", string(d.Purpose)))
	return nil
}

func (s *SMTP) message(d Delivery) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", d.To)
	m.SetHeader("Subject", subjectFor(d.Purpose))
	m.SetBody("text/plain", fmt.Sprintf(
		"Your verification code is %s\n\nIf you did not request this code you can ignore this email.\n",
		d.Code,
	))
	return m
}

func (s *SMTP) dialer() *mail.Dialer {
	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.User, s.cfg.Pass)
	d.Timeout = s.cfg.Timeout
	d.TLSConfig = &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify,
	}

	switch s.cfg.TLSMode {
	case TLSModeSSL:
		d.SSL = true
	case TLSModeStartTLS:
		d.StartTLSPolicy = mail.MandatoryStartTLS
	case TLSModeNone:
		d.StartTLSPolicy = mail.NoStartTLS
	default:
		d.StartTLSPolicy = mail.OpportunisticStartTLS
	}
	return d
}
