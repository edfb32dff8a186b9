package goIssuer

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/goIssuer/identity"
	"github.com/MrEthical07/goIssuer/internal/audit"
	"github.com/MrEthical07/goIssuer/internal/rate"
	"github.com/MrEthical07/goIssuer/jwt"
	"github.com/MrEthical07/goIssuer/password"
	"github.com/MrEthical07/goIssuer/sender"
	"github.com/MrEthical07/goIssuer/store"
)

// Builder assembles an Issuer. A Builder is single-use.
//
// Unset collaborators fall back to development defaults: an in-memory store
// and identity directory, AllowAll clients, and a sender that logs codes.
// Production mode rejects each of these fallbacks.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  store.Store

	resolver  identity.SubjectResolver
	passwords identity.PasswordStore
	sender    sender.CodeSender
	clients   ClientPolicy
	subjects  Subjects
	success   SuccessHandler
	auditSink AuditSink
	logger    *zap.Logger

	providers []providerFactory

	built bool
}

type providerDeps struct {
	config    Config
	passwords identity.PasswordStore
	hasher    password.Hasher
	sender    sender.CodeSender
}

type providerFactory func(providerDeps) (Provider, error)

func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs the issuer with Redis: records go to a store.Redis under
// Store.RedisPrefix and credential throttling is enabled. An explicit
// WithStore takes precedence for records.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithIdentity sets both the subject resolver and the password store.
func (b *Builder) WithIdentity(dir identity.Directory) *Builder {
	b.resolver = dir
	b.passwords = dir
	return b
}

func (b *Builder) WithSubjectResolver(r identity.SubjectResolver) *Builder {
	b.resolver = r
	return b
}

func (b *Builder) WithPasswordStore(ps identity.PasswordStore) *Builder {
	b.passwords = ps
	return b
}

func (b *Builder) WithSender(s sender.CodeSender) *Builder {
	b.sender = s
	return b
}

func (b *Builder) WithClientPolicy(p ClientPolicy) *Builder {
	b.clients = p
	return b
}

func (b *Builder) WithSubjects(s Subjects) *Builder {
	b.subjects = s
	return b
}

// WithSuccess replaces the default success handler, which resolves the
// verified email to a "user" subject.
func (b *Builder) WithSuccess(h SuccessHandler) *Builder {
	b.success = h
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithProvider registers a custom provider.
func (b *Builder) WithProvider(p Provider) *Builder {
	b.providers = append(b.providers, func(providerDeps) (Provider, error) {
		if p == nil {
			return nil, errors.New("nil provider")
		}
		return p, nil
	})
	return b
}

// WithPasswordProvider registers the built-in password provider under id.
func (b *Builder) WithPasswordProvider(id string) *Builder {
	b.providers = append(b.providers, func(d providerDeps) (Provider, error) {
		return NewPasswordProvider(id, d.config.Password, d.config.EmailCode, d.passwords, d.hasher, d.sender)
	})
	return b
}

// WithEmailCodeProvider registers the built-in email code provider under id.
func (b *Builder) WithEmailCodeProvider(id string) *Builder {
	b.providers = append(b.providers, func(d providerDeps) (Provider, error) {
		return NewEmailCodeProvider(id, d.config.EmailCode, d.sender)
	})
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

func (b *Builder) Build() (*Issuer, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(b.providers) == 0 {
		return nil, errors.New("at least one provider must be registered")
	}

	log := b.logger
	if log == nil {
		log = zap.NewNop()
	}

	prod := cfg.Security.ProductionMode
	if prod {
		switch {
		case b.store == nil && b.redis == nil:
			return nil, errors.New("ProductionMode requires a shared store or redis client")
		case b.redis == nil:
			return nil, errors.New("ProductionMode requires a redis client for credential throttling")
		case b.resolver == nil || b.passwords == nil:
			return nil, errors.New("ProductionMode requires an identity directory")
		case b.sender == nil:
			return nil, errors.New("ProductionMode requires a code sender")
		case b.clients == nil:
			return nil, errors.New("ProductionMode requires a client policy")
		}
		if _, ok := b.clients.(AllowAll); ok {
			return nil, errors.New("ProductionMode does not accept AllowAll clients")
		}
	}

	// -------- STORE --------
	st := b.store
	if st == nil && b.redis != nil {
		st = store.NewRedis(b.redis, cfg.Store.RedisPrefix)
	}
	if st == nil {
		st = store.NewMemory(cfg.Store.SweepInterval)
		log.Warn("using in-memory store; state is lost on restart and not shared between instances")
	}

	// -------- IDENTITY --------
	resolver, passwords := b.resolver, b.passwords
	if resolver == nil || passwords == nil {
		mem := identity.NewMemory()
		if resolver == nil {
			resolver = mem
		}
		if passwords == nil {
			passwords = mem
		}
	}

	codeSender := b.sender
	if codeSender == nil {
		codeSender = sender.NewLog(log)
	}

	hasher, err := newHasher(cfg.Password)
	if err != nil {
		return nil, err
	}

	// -------- PROVIDERS --------
	deps := providerDeps{config: cfg, passwords: passwords, hasher: hasher, sender: codeSender}
	providers := make(map[string]Provider, len(b.providers))
	for _, factory := range b.providers {
		p, err := factory(deps)
		if err != nil {
			return nil, err
		}
		if _, dup := providers[p.ID()]; dup {
			return nil, fmt.Errorf("duplicate provider id %q", p.ID())
		}
		providers[p.ID()] = p
	}

	subjects := b.subjects
	if subjects == nil {
		subjects = DefaultSubjects()
	}
	if len(subjects) == 0 {
		return nil, errors.New("at least one subject type must be declared")
	}

	clients := b.clients
	if clients == nil {
		clients = AllowAll{}
	}

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.Issuer.URL,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
		RequireIAT:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningError, err)
	}
	if !jm.CanSign() {
		return nil, fmt.Errorf("%w: no signing key", ErrSigningError)
	}

	iss := &Issuer{
		config:    cfg,
		store:     st,
		providers: providers,
		subjects:  subjects,
		resolver:  resolver,
		clients:   clients,
		tokens:    jm,
		metrics:   NewMetrics(cfg.Metrics),
		log:       log.Named("issuer"),
		now:       time.Now,
	}

	iss.success = b.success
	if iss.success == nil {
		iss.success = iss.resolveUserSubject
	}

	if b.redis != nil {
		iss.limiter = rate.New(b.redis, rate.Config{
			Prefix:           cfg.Store.RedisPrefix,
			EnableIPThrottle: cfg.Security.EnableIPThrottle,
			MaxAttempts:      cfg.Security.MaxCredentialAttempts,
			Cooldown:         cfg.Security.CredentialCooldown,
		})
	}

	iss.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Logger:     iss.log,
	}, b.auditSink)

	b.built = true

	return iss, nil
}

// newHasher returns the configured primary hasher with the other algorithm
// kept for verifying existing hashes.
// NewPasswordHasher returns the hasher Build uses for cfg. Tools that seed
// a PasswordStore out of band should hash with it.
func NewPasswordHasher(cfg PasswordConfig) (password.Hasher, error) {
	return newHasher(cfg)
}

func newHasher(cfg PasswordConfig) (password.Hasher, error) {
	a2, err := password.NewArgon2(password.Argon2Config{
		Memory:           cfg.Memory,
		Time:             cfg.Time,
		Parallelism:      cfg.Parallelism,
		SaltLength:       cfg.SaltLength,
		KeyLength:        cfg.KeyLength,
		MaxPasswordBytes: cfg.MaxLength,
	})
	if err != nil {
		return nil, err
	}

	sc := password.DefaultScryptConfig()
	sc.LogN = cfg.ScryptLogN
	sc.MaxPasswordBytes = cfg.MaxLength
	scr, err := password.NewScrypt(sc)
	if err != nil {
		return nil, err
	}

	if cfg.Algorithm == "scrypt" {
		return password.NewMulti(scr, a2), nil
	}
	return password.NewMulti(a2, scr), nil
}
