package goIssuer

import "time"

// SecurityReport summarizes the effective security posture of an Issuer.
// The daemon logs it at startup.
type SecurityReport struct {
	ProductionMode     bool
	SigningAlgorithm   string
	PasswordAlgorithm  string
	Password           PasswordConfigReport
	RequestTTL         time.Duration
	CodeTTL            time.Duration
	AccessTTL          time.Duration
	RefreshTTL         time.Duration
	RefreshEnabled     bool
	CodeDigits         int
	CodeMaxAttempts    int
	RateLimitingActive bool
	IPThrottleActive   bool
	RevealsIdentities  bool
	AuditEnabled       bool
	Providers          []string
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	ScryptLogN  uint8
	MinLength   int
}

func (i *Issuer) SecurityReport() SecurityReport {
	if i == nil {
		return SecurityReport{}
	}
	c := i.config
	limiting := i.limiter.Enabled()

	return SecurityReport{
		ProductionMode:    c.Security.ProductionMode,
		SigningAlgorithm:  c.JWT.SigningMethod,
		PasswordAlgorithm: c.Password.Algorithm,
		Password: PasswordConfigReport{
			Memory:      c.Password.Memory,
			Time:        c.Password.Time,
			Parallelism: c.Password.Parallelism,
			SaltLength:  c.Password.SaltLength,
			KeyLength:   c.Password.KeyLength,
			ScryptLogN:  c.Password.ScryptLogN,
			MinLength:   c.Password.MinLength,
		},
		RequestTTL:         c.Authorization.RequestTTL,
		CodeTTL:            c.Authorization.CodeTTL,
		AccessTTL:          c.JWT.AccessTTL,
		RefreshTTL:         c.JWT.RefreshTTL,
		RefreshEnabled:     c.JWT.RefreshTTL > 0,
		CodeDigits:         c.EmailCode.Digits,
		CodeMaxAttempts:    c.EmailCode.MaxAttempts,
		RateLimitingActive: limiting,
		IPThrottleActive:   limiting && c.Security.EnableIPThrottle,
		RevealsIdentities:  c.Password.RevealUnknownIdentity,
		AuditEnabled:       c.Audit.Enabled,
		Providers:          i.Providers(),
	}
}
