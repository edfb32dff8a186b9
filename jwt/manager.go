package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

// ModeAccess is the value of the "mode" claim on every access token.
const ModeAccess = "access"

// ErrNoSigningKey is returned by CreateAccess when the manager only holds
// verification keys.
var ErrNoSigningKey = errors.New("jwt: no signing key configured")

// Config controls token signing and verification.
//
// Audience, when set, is required on parsed tokens; issued tokens carry the
// client id as their audience.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	RequireIAT    bool
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

// Manager signs and verifies access tokens. Key material is decoded once in
// NewManager; the per-token path only looks keys up.
type Manager struct {
	config  Config
	method  gjwt.SigningMethod
	signKey any
	// primary verifies tokens when no VerifyKeys are configured.
	primary any
	// verify holds decoded VerifyKeys by kid.
	verify map[string]any
}

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	Mode       string         `json:"mode"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	ClientID   string         `json:"client_id,omitempty"`
	Scope      string         `json:"scope,omitempty"`
	gjwt.RegisteredClaims
}

// AccessInput describes the subject an access token is minted for.
type AccessInput struct {
	Type       string
	Properties map[string]any
	// Subject becomes the "sub" claim; empty omits it.
	Subject  string
	ClientID string
	Scope    string
}

// NewManager validates cfg and decodes its keys. A manager without a
// private key can only verify.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("jwt: AccessTTL must be positive")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt: Leeway must be in [0, 2m]")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("jwt: MaxFutureIAT must be in (0, 24h]")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	m := &Manager{config: cfg, verify: make(map[string]any, len(cfg.VerifyKeys))}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return nil, errors.New("jwt: hs256 secret must be at least 32 bytes")
		}
		m.method = gjwt.SigningMethodHS256
		m.signKey = cfg.PrivateKey
		m.primary = cfg.PrivateKey
		for kid, secret := range cfg.VerifyKeys {
			m.verify[kid] = secret
		}
	case MethodEd25519:
		m.method = gjwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			m.signKey = priv
			m.primary = priv.Public().(ed25519.PublicKey)
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			m.primary = pub
		}
		for kid, key := range cfg.VerifyKeys {
			pub, err := parseEdPublicKey(key)
			if err != nil {
				return nil, fmt.Errorf("jwt: verify key %q: %w", kid, err)
			}
			m.verify[kid] = pub
		}
		if m.primary == nil && len(m.verify) == 0 {
			return nil, errors.New("jwt: ed25519 requires a public key or verify keys")
		}
	default:
		return nil, fmt.Errorf("jwt: unsupported signing method %q", cfg.SigningMethod)
	}

	for kid := range m.verify {
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("jwt: verify key with empty kid")
		}
	}
	if cfg.KeyID != "" && len(m.verify) > 0 {
		if _, ok := m.verify[cfg.KeyID]; !ok {
			return nil, errors.New("jwt: KeyID is not present in VerifyKeys")
		}
	}

	return m, nil
}

// AccessTTL returns the lifetime of tokens minted by CreateAccess.
func (j *Manager) AccessTTL() time.Duration {
	return j.config.AccessTTL
}

// CanSign reports whether the manager holds a private key.
func (j *Manager) CanSign() bool {
	return j.signKey != nil
}

// CreateAccess signs an access token for in. The token's audience is the
// client id.
func (j *Manager) CreateAccess(in AccessInput) (string, error) {
	if !j.CanSign() {
		return "", ErrNoSigningKey
	}

	now := time.Now()
	props := in.Properties
	if props == nil {
		props = map[string]any{}
	}

	claims := AccessClaims{
		Mode:       ModeAccess,
		Type:       in.Type,
		Properties: props,
		ClientID:   in.ClientID,
		Scope:      in.Scope,
		RegisteredClaims: gjwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   in.Subject,
			Issuer:    j.config.Issuer,
			IssuedAt:  gjwt.NewNumericDate(now),
			ExpiresAt: gjwt.NewNumericDate(now.Add(j.config.AccessTTL)),
		},
	}
	if in.ClientID != "" {
		claims.Audience = gjwt.ClaimStrings{in.ClientID}
	}

	token := gjwt.NewWithClaims(j.method, claims)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}
	return token.SignedString(j.signKey)
}

// ParseAccess verifies tokenStr and returns its claims. Tokens whose mode
// claim is not "access" are rejected.
func (j *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := j.parser().ParseWithClaims(tokenStr, claims, j.keyFor)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, gjwt.ErrTokenInvalidClaims
	}
	if claims.Mode != ModeAccess {
		return nil, fmt.Errorf("%w: unexpected token mode %q", gjwt.ErrTokenInvalidClaims, claims.Mode)
	}
	if claims.IssuedAt != nil && claims.IssuedAt.After(time.Now().Add(j.config.MaxFutureIAT)) {
		return nil, fmt.Errorf("%w: iat too far in the future", gjwt.ErrTokenInvalidClaims)
	}
	return claims, nil
}

func (j *Manager) parser() *gjwt.Parser {
	options := []gjwt.ParserOption{
		gjwt.WithValidMethods([]string{j.method.Alg()}),
		gjwt.WithExpirationRequired(),
	}
	if j.config.Leeway > 0 {
		options = append(options, gjwt.WithLeeway(j.config.Leeway))
	}
	if j.config.RequireIAT {
		options = append(options, gjwt.WithIssuedAt())
	}
	if j.config.Issuer != "" {
		options = append(options, gjwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		options = append(options, gjwt.WithAudience(j.config.Audience))
	}
	return gjwt.NewParser(options...)
}

// keyFor resolves the verification key of t. With VerifyKeys configured the
// kid header is mandatory and must name one of them; otherwise a configured
// KeyID must match and the primary key verifies.
func (j *Manager) keyFor(t *gjwt.Token) (any, error) {
	if t.Method.Alg() != j.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm %s", t.Method.Alg())
	}
	kid, _ := t.Header["kid"].(string)

	if len(j.verify) > 0 {
		key, ok := j.verify[kid]
		if !ok {
			return nil, fmt.Errorf("unknown kid %q", kid)
		}
		return key, nil
	}
	if j.config.KeyID != "" && kid != j.config.KeyID {
		return nil, fmt.Errorf("unknown kid %q", kid)
	}
	if j.primary == nil {
		return nil, errors.New("no verification key")
	}
	return j.primary, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := gjwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("jwt: invalid ed25519 private key")
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwt: PEM does not hold an ed25519 private key")
	}
	return priv, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := gjwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("jwt: invalid ed25519 public key")
	}
	pub, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("jwt: PEM does not hold an ed25519 public key")
	}
	return pub, nil
}
