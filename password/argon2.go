package password

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	argon2ID              = "argon2id"
)

// Argon2Config holds argon2id cost parameters.
type Argon2Config struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}

// DefaultArgon2Config returns the parameters used when none are configured.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2 is the default Hasher.
type Argon2 struct {
	config Argon2Config
}

type argonHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

// NewArgon2 validates cfg against the minimum cost parameters.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	if err := validateArgon2Config(cfg); err != nil {
		return nil, err
	}

	return &Argon2{config: cfg}, nil
}

func (a *Argon2) Algorithm() string { return argon2ID }

// Hash derives a fresh salted argon2id key. Password bytes are used as
// given, without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if err := checkLength(password, a.config.MaxPasswordBytes); err != nil {
		return "", err
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2ID, argon2.Version,
		a.config.Memory, a.config.Time, a.config.Parallelism,
		encodeB64(salt), encodeB64(key),
	), nil
}

// Verify reports whether password matches encodedHash, using the cost
// parameters recorded in the hash. Oversized input is rejected before the
// KDF runs.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	if err := checkLength(password, a.config.MaxPasswordBytes); err != nil {
		return false, err
	}

	h, err := parseArgon2(encodedHash)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.parallelism, uint32(len(h.hash)))

	return subtle.ConstantTimeCompare(key, h.hash) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was made with weaker parameters
// or a different key length than a's configuration.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	h, err := parseArgon2(encodedHash)
	if err != nil {
		return false, err
	}
	return a.config.Memory > h.memory ||
		a.config.Time > h.time ||
		a.config.Parallelism > h.parallelism ||
		int(a.config.KeyLength) != len(h.hash), nil
}

func parseArgon2(encodedHash string) (*argonHash, error) {
	p, err := parsePHC(encodedHash, argon2ID, true, "m", "t", "p")
	if err != nil {
		return nil, err
	}
	if p.version != argon2.Version {
		return nil, fmt.Errorf("%w: argon2 version %d", ErrInvalidHash, p.version)
	}
	if len(p.salt) < int(minSaltLength) {
		return nil, fmt.Errorf("%w: salt shorter than %d bytes", ErrInvalidHash, minSaltLength)
	}

	m, err := p.bounded("m", uint64(minMemoryKB), 1<<32-1)
	if err != nil {
		return nil, err
	}
	t, err := p.bounded("t", uint64(minTimeCost), 1<<32-1)
	if err != nil {
		return nil, err
	}
	par, err := p.bounded("p", uint64(minParallelism), 255)
	if err != nil {
		return nil, err
	}

	return &argonHash{
		memory:      uint32(m),
		time:        uint32(t),
		parallelism: uint8(par),
		salt:        p.salt,
		hash:        p.hash,
	}, nil
}

func validateArgon2Config(cfg Argon2Config) error {
	switch {
	case cfg.Memory < minMemoryKB:
		return fmt.Errorf("argon2: memory must be >= %d KiB", minMemoryKB)
	case cfg.Time < minTimeCost:
		return fmt.Errorf("argon2: time must be >= %d", minTimeCost)
	case cfg.Parallelism < minParallelism:
		return fmt.Errorf("argon2: parallelism must be >= %d", minParallelism)
	case cfg.SaltLength < minSaltLength:
		return fmt.Errorf("argon2: salt length must be >= %d", minSaltLength)
	case cfg.KeyLength < minKeyLength:
		return fmt.Errorf("argon2: key length must be >= %d", minKeyLength)
	}
	return nil
}
