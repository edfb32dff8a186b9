package password

import (
	"errors"
	"strings"
)

// DefaultMaxPasswordBytes bounds the input fed to the KDF when a config
// leaves MaxPasswordBytes at zero.
const DefaultMaxPasswordBytes = 1024

var (
	ErrEmptyPassword        = errors.New("password: empty password")
	ErrPasswordTooLong      = errors.New("password: password exceeds maximum length")
	ErrInvalidHash          = errors.New("password: invalid PHC format")
	ErrUnsupportedAlgorithm = errors.New("password: unsupported algorithm")
)

// Hasher hashes and verifies passwords as PHC strings.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Multi hashes with Primary and verifies any hash whose algorithm is known
// to Primary or one of Legacy.
type Multi struct {
	Primary Hasher
	Legacy  []Hasher
}

// NewMulti returns a Multi; primary must not be nil.
func NewMulti(primary Hasher, legacy ...Hasher) *Multi {
	return &Multi{Primary: primary, Legacy: legacy}
}

func (m *Multi) Hash(password string) (string, error) {
	return m.Primary.Hash(password)
}

func (m *Multi) Verify(password, encodedHash string) (bool, error) {
	h, err := m.pick(encodedHash)
	if err != nil {
		return false, err
	}
	return h.Verify(password, encodedHash)
}

// NeedsUpgrade is true for every hash not produced by Primary.
func (m *Multi) NeedsUpgrade(encodedHash string) (bool, error) {
	h, err := m.pick(encodedHash)
	if err != nil {
		return false, err
	}
	if h != m.Primary {
		return true, nil
	}
	return m.Primary.NeedsUpgrade(encodedHash)
}

func (m *Multi) pick(encodedHash string) (Hasher, error) {
	alg := Algorithm(encodedHash)
	if alg == "" {
		return nil, ErrInvalidHash
	}
	for _, h := range append([]Hasher{m.Primary}, m.Legacy...) {
		if a, ok := h.(interface{ Algorithm() string }); ok && a.Algorithm() == alg {
			return h, nil
		}
	}
	return nil, ErrUnsupportedAlgorithm
}

// Algorithm returns the PHC algorithm identifier of encodedHash, or "" when
// the string is not PHC shaped.
func Algorithm(encodedHash string) string {
	if !strings.HasPrefix(encodedHash, "$") {
		return ""
	}
	rest := encodedHash[1:]
	i := strings.IndexByte(rest, '$')
	if i <= 0 {
		return ""
	}
	return rest[:i]
}

func checkLength(password string, max int) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if max <= 0 {
		max = DefaultMaxPasswordBytes
	}
	if len(password) > max {
		return ErrPasswordTooLong
	}
	return nil
}
