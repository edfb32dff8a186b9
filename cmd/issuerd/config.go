package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	goIssuer "github.com/MrEthical07/goIssuer"
	"github.com/MrEthical07/goIssuer/sender"
)

type smtpConfig struct {
	Host     string        `env:"HOST"`
	Port     int           `env:"PORT" envDefault:"587"`
	From     string        `env:"FROM"`
	User     string        `env:"USER"`
	Pass     string        `env:"PASS"`
	TLSMode  string        `env:"TLS_MODE" envDefault:"auto"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"10s"`
	Insecure bool          `env:"INSECURE_SKIP_VERIFY"`
}

// daemonConfig is everything issuerd reads from the environment.
type daemonConfig struct {
	Addr            string        `env:"ISSUER_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"ISSUER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	TrustProxy      bool          `env:"ISSUER_TRUST_PROXY"`

	IssuerURL  string   `env:"ISSUER_URL"`
	Production bool     `env:"ISSUER_PRODUCTION"`
	Providers  []string `env:"ISSUER_PROVIDERS" envDefault:"password,code"`

	SigningKey     string        `env:"ISSUER_SIGNING_KEY"`
	SigningKeyFile string        `env:"ISSUER_SIGNING_KEY_FILE"`
	KeyID          string        `env:"ISSUER_KEY_ID"`
	AccessTTL      time.Duration `env:"ISSUER_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL     time.Duration `env:"ISSUER_REFRESH_TTL" envDefault:"720h"`

	CodeDigits      int           `env:"ISSUER_CODE_DIGITS" envDefault:"6"`
	CodeTTL         time.Duration `env:"ISSUER_CODE_TTL" envDefault:"10m"`
	CodeMaxAttempts int           `env:"ISSUER_CODE_MAX_ATTEMPTS" envDefault:"5"`

	PasswordAlgorithm string `env:"ISSUER_PASSWORD_ALGORITHM" envDefault:"argon2id"`
	RevealIdentities  bool   `env:"ISSUER_REVEAL_UNKNOWN_IDENTITY"`

	MaxCredentialAttempts int           `env:"ISSUER_MAX_CREDENTIAL_ATTEMPTS" envDefault:"10"`
	CredentialCooldown    time.Duration `env:"ISSUER_CREDENTIAL_COOLDOWN" envDefault:"15m"`

	ClientsFile string `env:"ISSUER_CLIENTS_FILE"`
	RedisURL    string `env:"ISSUER_REDIS_URL"`
	DatabaseURL string `env:"ISSUER_DATABASE_URL"`
	SQLitePath  string `env:"ISSUER_SQLITE_PATH"`

	SMTP smtpConfig `envPrefix:"ISSUER_SMTP_"`

	LogFormat string `env:"ISSUER_LOG_FORMAT" envDefault:"console"`
	LogLevel  string `env:"ISSUER_LOG_LEVEL" envDefault:"info"`
	AuditLog  bool   `env:"ISSUER_AUDIT_LOG"`
	Metrics   bool   `env:"ISSUER_METRICS" envDefault:"true"`
}

// loadConfig applies envFile, when it exists, then parses the environment.
// Variables already set win over the file.
func loadConfig(envFile string, environ map[string]string) (daemonConfig, error) {
	var cfg daemonConfig
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c daemonConfig) signingKey() (ed25519.PrivateKey, error) {
	raw := strings.TrimSpace(c.SigningKey)
	if raw == "" && c.SigningKeyFile != "" {
		data, err := os.ReadFile(c.SigningKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read signing key: %w", err)
		}
		raw = strings.TrimSpace(string(data))
	}
	if raw == "" {
		return nil, errors.New("ISSUER_SIGNING_KEY or ISSUER_SIGNING_KEY_FILE is required; run issuerd keygen")
	}

	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode signing key: %w", err)
	}
	switch len(key) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(key), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(key), nil
	default:
		return nil, fmt.Errorf("signing key must be a %d-byte seed or %d-byte private key", ed25519.SeedSize, ed25519.PrivateKeySize)
	}
}

// issuerConfig maps the daemon settings onto goIssuer.Config.
func (c daemonConfig) issuerConfig() (goIssuer.Config, error) {
	key, err := c.signingKey()
	if err != nil {
		return goIssuer.Config{}, err
	}

	cfg := goIssuer.DefaultConfig()
	cfg.Issuer.URL = c.IssuerURL
	cfg.Security.ProductionMode = c.Production
	cfg.Security.MaxCredentialAttempts = c.MaxCredentialAttempts
	cfg.Security.CredentialCooldown = c.CredentialCooldown
	cfg.JWT.PrivateKey = key
	cfg.JWT.KeyID = c.KeyID
	cfg.JWT.AccessTTL = c.AccessTTL
	cfg.JWT.RefreshTTL = c.RefreshTTL
	cfg.EmailCode.Digits = c.CodeDigits
	cfg.EmailCode.TTL = c.CodeTTL
	cfg.EmailCode.MaxAttempts = c.CodeMaxAttempts
	cfg.Password.Algorithm = c.PasswordAlgorithm
	cfg.Password.RevealUnknownIdentity = c.RevealIdentities
	cfg.Audit.Enabled = c.AuditLog
	cfg.Metrics.Enabled = c.Metrics
	cfg.Metrics.EnableLatencyHistograms = c.Metrics

	if err := cfg.Validate(); err != nil {
		return goIssuer.Config{}, err
	}
	return cfg, nil
}

func (c daemonConfig) smtpSender() sender.SMTPConfig {
	return sender.SMTPConfig{
		Host:               c.SMTP.Host,
		Port:               c.SMTP.Port,
		From:               c.SMTP.From,
		User:               c.SMTP.User,
		Pass:               c.SMTP.Pass,
		TLSMode:            c.SMTP.TLSMode,
		InsecureSkipVerify: c.SMTP.Insecure,
		Timeout:            c.SMTP.Timeout,
	}
}
