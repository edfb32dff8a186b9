package goIssuer

import (
	"errors"
	"fmt"
	"time"
)

// Config holds every tunable of an Issuer. Start from DefaultConfig and
// override fields; Builder.Build calls Validate.
type Config struct {
	Issuer        IssuerConfig
	Authorization AuthorizationConfig
	EmailCode     EmailCodeConfig
	Password      PasswordConfig
	JWT           JWTConfig
	Store         StoreConfig
	Security      SecurityConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
ISSUER CONFIG
====================================
*/

type IssuerConfig struct {
	// URL is the public base URL of the issuer. It becomes the "iss" claim
	// and the issuer field of the server metadata document.
	URL string
}

/*
====================================
AUTHORIZATION CONFIG
====================================
*/

// AuthorizationConfig bounds the lifetime of pending requests and codes.
type AuthorizationConfig struct {
	RequestTTL time.Duration
	CodeTTL    time.Duration
	// StateRetries is the number of compare-and-swap attempts made when
	// committing provider state before giving up with ErrStorageUnavailable.
	StateRetries int
}

/*
====================================
EMAIL CODE CONFIG
====================================
*/

// EmailCodeConfig applies to every one-time code the issuer sends, whether
// by the email code provider or the password provider's register and reset
// flows.
type EmailCodeConfig struct {
	Digits      int
	TTL         time.Duration
	MaxAttempts int
}

/*
====================================
PASSWORD CONFIG
====================================
*/

type PasswordConfig struct {
	// Algorithm selects the hasher for new passwords: "argon2id" or "scrypt".
	// Hashes of the other algorithm are still verified.
	Algorithm   string
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	ScryptLogN  uint8

	MinLength int
	MaxLength int
	// RevealUnknownIdentity makes login fail with ErrUnknownIdentity instead
	// of ErrInvalidCredential for emails without a password. Register
	// reports ErrIdentityExists either way.
	RevealUnknownIdentity bool
}

/*
====================================
JWT CONFIG
====================================
*/

type JWTConfig struct {
	AccessTTL time.Duration
	// RefreshTTL of zero disables refresh tokens.
	RefreshTTL    time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	KeyID         string
	Leeway        time.Duration
	// VerifyKeys are extra Ed25519 public keys accepted by VerifyAccess and
	// published in the JWK set, keyed by kid.
	VerifyKeys map[string][]byte
}

/*
====================================
STORE CONFIG
====================================
*/

type StoreConfig struct {
	RedisPrefix string
	// SweepInterval is how often the in-memory store evicts expired entries.
	SweepInterval time.Duration
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls production hardening and credential throttling.
// Throttling needs a Redis client.
type SecurityConfig struct {
	ProductionMode        bool
	EnableIPThrottle      bool
	MaxCredentialAttempts int
	CredentialCooldown    time.Duration
}

/*
====================================
AUDIT AND METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration used by New.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Authorization: AuthorizationConfig{
			RequestTTL:   10 * time.Minute,
			CodeTTL:      60 * time.Second,
			StateRetries: 3,
		},
		EmailCode: EmailCodeConfig{
			Digits:      6,
			TTL:         10 * time.Minute,
			MaxAttempts: 5,
		},
		Password: PasswordConfig{
			Algorithm:   "argon2id",
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			ScryptLogN:  15,
			MinLength:   8,
			MaxLength:   1024,
		},
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    30 * 24 * time.Hour,
			SigningMethod: "ed25519",
		},
		Store: StoreConfig{
			RedisPrefix:   "gi:",
			SweepInterval: time.Minute,
		},
		Security: SecurityConfig{
			EnableIPThrottle:      true,
			MaxCredentialAttempts: 10,
			CredentialCooldown:    15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks internal consistency and the hard caps below which the
// issuer refuses to run.
func (c *Config) Validate() error {
	a := c.Authorization
	if a.RequestTTL <= 0 || a.RequestTTL > time.Hour {
		return errors.New("Authorization.RequestTTL must be in (0, 1h]")
	}
	if a.CodeTTL <= 0 || a.CodeTTL > 10*time.Minute {
		return errors.New("Authorization.CodeTTL must be in (0, 10m]")
	}
	if a.StateRetries < 1 || a.StateRetries > 10 {
		return errors.New("Authorization.StateRetries must be between 1 and 10")
	}

	e := c.EmailCode
	if e.Digits < 6 || e.Digits > 10 {
		return errors.New("EmailCode.Digits must be between 6 and 10")
	}
	if e.TTL <= 0 || e.TTL > a.RequestTTL {
		return errors.New("EmailCode.TTL must be positive and not exceed Authorization.RequestTTL")
	}
	if e.MaxAttempts < 1 || e.MaxAttempts > 20 {
		return errors.New("EmailCode.MaxAttempts must be between 1 and 20")
	}

	p := c.Password
	switch p.Algorithm {
	case "argon2id", "scrypt":
	default:
		return fmt.Errorf("Password.Algorithm %q is not supported", p.Algorithm)
	}
	if p.MinLength < 8 {
		return errors.New("Password.MinLength must be >= 8")
	}
	if p.MaxLength < p.MinLength || p.MaxLength > 4096 {
		return errors.New("Password.MaxLength must be between MinLength and 4096")
	}

	j := c.JWT
	if j.AccessTTL <= 0 || j.AccessTTL > 24*time.Hour {
		return errors.New("JWT.AccessTTL must be in (0, 24h]")
	}
	if j.RefreshTTL < 0 {
		return errors.New("JWT.RefreshTTL must be >= 0")
	}
	if j.RefreshTTL > 0 && j.RefreshTTL < j.AccessTTL {
		return errors.New("JWT.RefreshTTL must be >= JWT.AccessTTL")
	}
	switch j.SigningMethod {
	case "ed25519", "hs256":
	default:
		return fmt.Errorf("JWT.SigningMethod %q is not supported", j.SigningMethod)
	}
	if len(j.PrivateKey) == 0 {
		return errors.New("JWT.PrivateKey is required")
	}

	if c.Store.SweepInterval < 0 {
		return errors.New("Store.SweepInterval must be >= 0")
	}

	s := c.Security
	if s.MaxCredentialAttempts < 0 {
		return errors.New("Security.MaxCredentialAttempts must be >= 0")
	}
	if s.MaxCredentialAttempts > 0 && s.CredentialCooldown <= 0 {
		return errors.New("Security.CredentialCooldown must be > 0 when throttling is enabled")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit.BufferSize must be > 0 when audit is enabled")
	}

	if s.ProductionMode {
		if c.Issuer.URL == "" {
			return errors.New("ProductionMode requires Issuer.URL")
		}
		if j.SigningMethod != "ed25519" {
			return errors.New("ProductionMode requires ed25519 signing")
		}
		if p.Algorithm == "argon2id" && p.Memory < 19*1024 {
			return errors.New("ProductionMode requires Password.Memory >= 19456 KB")
		}
		if s.MaxCredentialAttempts == 0 {
			return errors.New("ProductionMode requires credential throttling")
		}
	}

	return nil
}
