package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// RequestID identifies one pending authorization.
type RequestID [16]byte

const (
	codeSize            = 32
	refreshIDSize       = 16
	refreshSecretSize   = 32
	refreshTokenRawSize = refreshIDSize + refreshSecretSize
)

func NewRequestID() (RequestID, error) {
	var id RequestID
	_, err := rand.Read(id[:])
	return id, err
}

func (r RequestID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(r[:])
}

func ParseRequestID(requestID string) (RequestID, error) {
	var id RequestID

	raw, err := decodeCanonical(requestID)
	if err != nil {
		return id, err
	}
	if len(raw) != len(id) {
		return id, errors.New("invalid request id size")
	}

	copy(id[:], raw)
	return id, nil
}

// NewAuthorizationCode returns a fresh opaque authorization code.
func NewAuthorizationCode() (string, error) {
	var raw [codeSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// ValidAuthorizationCode reports whether s has the shape of a code minted by
// NewAuthorizationCode.
func ValidAuthorizationCode(s string) bool {
	raw, err := decodeCanonical(s)
	return err == nil && len(raw) == codeSize
}

func NewRefreshID() (string, error) {
	var id [refreshIDSize]byte
	if _, err := rand.Read(id[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(id[:]), nil
}

func NewRefreshSecret() ([refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

func HashRefreshSecret(secret [refreshSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

func EncodeRefreshToken(refreshID string, secret [refreshSecretSize]byte) (string, error) {
	id, err := decodeCanonical(refreshID)
	if err != nil {
		return "", err
	}
	if len(id) != refreshIDSize {
		return "", errors.New("invalid refresh id size")
	}

	var raw [refreshTokenRawSize]byte
	copy(raw[:refreshIDSize], id)
	copy(raw[refreshIDSize:], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

func DecodeRefreshToken(token string) (string, [refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte

	raw, err := decodeCanonical(token)
	if err != nil {
		return "", secret, err
	}
	if len(raw) != refreshTokenRawSize {
		return "", secret, errors.New("invalid refresh token size")
	}

	copy(secret[:], raw[refreshIDSize:])
	return base64.RawURLEncoding.EncodeToString(raw[:refreshIDSize]), secret, nil
}

// decodeCanonical decodes unpadded base64url and rejects every spelling
// other than the one EncodeToString produces. The stdlib decoder skips
// newlines and ignores trailing bits, so one value would otherwise have
// several accepted spellings.
func decodeCanonical(s string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if base64.RawURLEncoding.EncodeToString(raw) != s {
		return nil, errors.New("non-canonical encoding")
	}
	return raw, nil
}

// HashChallengeCode binds a one-time code to the request it was issued for.
func HashChallengeCode(requestID, code string) [32]byte {
	h := sha256.New()
	h.Write([]byte(requestID))
	h.Write([]byte{0})
	h.Write([]byte(code))

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func NewOTP(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	otp := b.String()
	if len(otp) != digits {
		return "", fmt.Errorf("invalid otp generation length")
	}
	return otp, nil
}
