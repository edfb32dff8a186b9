package password

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

const scryptID = "scrypt"

// ScryptConfig holds scrypt cost parameters. LogN is log2 of the CPU/memory
// cost N.
type ScryptConfig struct {
	LogN             uint8
	R                int
	P                int
	SaltLength       int
	KeyLength        int
	MaxPasswordBytes int
}

func DefaultScryptConfig() ScryptConfig {
	return ScryptConfig{
		LogN:       15,
		R:          8,
		P:          1,
		SaltLength: 16,
		KeyLength:  32,
	}
}

// Scrypt hashes passwords with scrypt.
type Scrypt struct {
	config ScryptConfig
}

func NewScrypt(cfg ScryptConfig) (*Scrypt, error) {
	if cfg.LogN < 10 || cfg.LogN > 30 {
		return nil, errors.New("scrypt ln must be between 10 and 30")
	}
	if cfg.R < 1 || cfg.R > 64 || cfg.P < 1 || cfg.P > 16 {
		return nil, errors.New("scrypt r must be in [1, 64] and p in [1, 16]")
	}
	if cfg.SaltLength < int(minSaltLength) {
		return nil, errors.New("scrypt salt length must be >= 16")
	}
	if cfg.KeyLength < int(minKeyLength) {
		return nil, errors.New("scrypt key length must be >= 16")
	}
	return &Scrypt{config: cfg}, nil
}

func (s *Scrypt) Algorithm() string { return scryptID }

func (s *Scrypt) Hash(password string) (string, error) {
	if err := checkLength(password, s.config.MaxPasswordBytes); err != nil {
		return "", err
	}

	salt := make([]byte, s.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key, err := scrypt.Key([]byte(password), salt, 1<<s.config.LogN, s.config.R, s.config.P, s.config.KeyLength)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"$%s$ln=%d,r=%d,p=%d$%s$%s",
		scryptID,
		s.config.LogN,
		s.config.R,
		s.config.P,
		encodeB64(salt),
		encodeB64(key),
	), nil
}

func (s *Scrypt) Verify(password, encodedHash string) (bool, error) {
	if err := checkLength(password, s.config.MaxPasswordBytes); err != nil {
		return false, err
	}

	parsed, err := parseScrypt(encodedHash)
	if err != nil {
		return false, err
	}

	computed, err := scrypt.Key([]byte(password), parsed.salt, 1<<parsed.logN, parsed.r, parsed.p, len(parsed.hash))
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}

func (s *Scrypt) NeedsUpgrade(encodedHash string) (bool, error) {
	parsed, err := parseScrypt(encodedHash)
	if err != nil {
		return false, err
	}
	return s.config.LogN > parsed.logN || s.config.R > parsed.r || s.config.P > parsed.p ||
		s.config.KeyLength != len(parsed.hash), nil
}

type scryptHash struct {
	logN uint8
	r    int
	p    int
	salt []byte
	hash []byte
}

func parseScrypt(encodedHash string) (*scryptHash, error) {
	p, err := parsePHC(encodedHash, scryptID, false, "ln", "r", "p")
	if err != nil {
		return nil, err
	}
	ln, err := p.bounded("ln", 1, 30)
	if err != nil {
		return nil, err
	}
	r, err := p.bounded("r", 1, 64)
	if err != nil {
		return nil, err
	}
	par, err := p.bounded("p", 1, 16)
	if err != nil {
		return nil, err
	}
	return &scryptHash{logN: uint8(ln), r: int(r), p: int(par), salt: p.salt, hash: p.hash}, nil
}
