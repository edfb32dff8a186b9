package goIssuer

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// LintSeverity ranks a LintWarning. Higher values are more serious.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "info"
	case LintWarn:
		return "warn"
	case LintHigh:
		return "high"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// LintWarning is a setting that passes Validate but weakens the deployment.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of warnings produced by Config.Lint.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, len(r))
	for i, w := range r {
		out[i] = w.Code
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins the warnings at or above min into one error, or returns nil.
func (r LintResult) AsError(min LintSeverity) error {
	hits := r.BySeverity(min)
	if len(hits) == 0 {
		return nil
	}
	msgs := make([]string, len(hits))
	for i, w := range hits {
		msgs[i] = w.Code + ": " + w.Message
	}
	return errors.New("config lint: " + strings.Join(msgs, "; "))
}

const (
	lintMaxLeeway      = time.Minute
	lintMaxAccessTTL   = 15 * time.Minute
	lintMaxRefreshTTL  = 30 * 24 * time.Hour
	lintMaxCodeTTL     = 2 * time.Minute
	lintMaxCodeTries   = 10
	lintArgon2MemoryKB = 64 * 1024
	lintScryptLogN     = 15
)

// Lint reports settings that are allowed but risky. It never fails; use
// AsError to turn selected severities into a startup error.
func (c *Config) Lint() LintResult {
	var out LintResult
	add := func(code string, sev LintSeverity, format string, args ...any) {
		out = append(out, LintWarning{Code: code, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	j := c.JWT
	if j.Leeway > lintMaxLeeway {
		add("leeway_large", LintWarn, "JWT.Leeway %v exceeds %v", j.Leeway, lintMaxLeeway)
	}
	if j.Leeway > 0 && j.Leeway >= j.AccessTTL {
		add("leeway_exceeds_access_ttl", LintHigh, "JWT.Leeway %v keeps expired access tokens valid for a full lifetime", j.Leeway)
	}
	if j.AccessTTL > lintMaxAccessTTL {
		add("access_ttl_long", LintWarn, "JWT.AccessTTL %v exceeds %v", j.AccessTTL, lintMaxAccessTTL)
	}
	if j.RefreshTTL > lintMaxRefreshTTL {
		add("refresh_ttl_long", LintWarn, "JWT.RefreshTTL %v exceeds %v", j.RefreshTTL, lintMaxRefreshTTL)
	}
	if j.SigningMethod == "hs256" {
		add("signing_hs256", LintWarn, "hs256 tokens cannot be verified by third parties and publish no JWK set")
	}

	if c.Authorization.CodeTTL > lintMaxCodeTTL {
		add("code_ttl_long", LintWarn, "Authorization.CodeTTL %v exceeds %v", c.Authorization.CodeTTL, lintMaxCodeTTL)
	}
	if c.EmailCode.MaxAttempts > lintMaxCodeTries {
		add("code_attempts_high", LintWarn, "EmailCode.MaxAttempts %d allows more than %d guesses per code", c.EmailCode.MaxAttempts, lintMaxCodeTries)
	}

	p := c.Password
	switch {
	case p.Algorithm == "argon2id" && p.Memory < lintArgon2MemoryKB:
		add("argon2_memory_low", LintWarn, "Password.Memory %d KB is below %d KB", p.Memory, lintArgon2MemoryKB)
	case p.Algorithm == "scrypt" && p.ScryptLogN < lintScryptLogN:
		add("scrypt_cost_low", LintWarn, "Password.ScryptLogN %d is below %d", p.ScryptLogN, lintScryptLogN)
	}
	if p.RevealUnknownIdentity {
		sev := LintWarn
		if c.Security.ProductionMode {
			sev = LintHigh
		}
		add("identity_reveal", sev, "login distinguishes unknown emails from wrong passwords")
	}

	s := c.Security
	if s.MaxCredentialAttempts == 0 {
		add("rate_limits_disabled", LintWarn, "failed credential submissions are not throttled")
	} else if !s.EnableIPThrottle {
		add("ip_throttle_disabled", LintInfo, "only the per-email budget applies")
	}

	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "authorization events are not audited")
	}

	return out
}
