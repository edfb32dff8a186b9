package password

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// phc is a decoded PHC string:
//
//	$<id>[$v=<version>]$<k>=<v>,...$<salt>$<hash>
//
// Only the integer parameter form used by argon2id and scrypt is accepted.
type phc struct {
	id      string
	version int
	params  map[string]uint64
	salt    []byte
	hash    []byte
}

// parsePHC decodes encodedHash for algorithm id. keys lists the parameters
// that must all be present; any other key is rejected.
func parsePHC(encodedHash, id string, versioned bool, keys ...string) (*phc, error) {
	parts := strings.Split(encodedHash, "$")
	want := 5
	if versioned {
		want = 6
	}
	if len(parts) < 2 || parts[0] != "" {
		return nil, ErrInvalidHash
	}
	if parts[1] != id {
		return nil, ErrUnsupportedAlgorithm
	}
	if len(parts) != want {
		return nil, ErrInvalidHash
	}

	out := &phc{id: id, version: -1}
	rest := parts[2:]
	if versioned {
		v, ok := strings.CutPrefix(rest[0], "v=")
		if !ok {
			return nil, fmt.Errorf("%w: missing %s version", ErrInvalidHash, id)
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: bad %s version", ErrInvalidHash, id)
		}
		out.version = n
		rest = rest[1:]
	}

	params, err := parseParamList(rest[0], keys)
	if err != nil {
		return nil, err
	}
	out.params = params

	if out.salt, err = decodeB64(rest[1]); err != nil || len(out.salt) == 0 {
		return nil, fmt.Errorf("%w: bad salt", ErrInvalidHash)
	}
	if out.hash, err = decodeB64(rest[2]); err != nil || len(out.hash) == 0 {
		return nil, fmt.Errorf("%w: bad hash", ErrInvalidHash)
	}
	return out, nil
}

func parseParamList(list string, keys []string) (map[string]uint64, error) {
	allowed := make(map[string]bool, len(keys))
	for _, k := range keys {
		allowed[k] = true
	}

	params := make(map[string]uint64, len(keys))
	for _, pair := range strings.Split(list, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || !allowed[k] {
			return nil, fmt.Errorf("%w: unexpected parameter %q", ErrInvalidHash, pair)
		}
		if _, dup := params[k]; dup {
			return nil, fmt.Errorf("%w: repeated parameter %q", ErrInvalidHash, k)
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %q is not a number", ErrInvalidHash, k)
		}
		params[k] = n
	}
	if len(params) != len(keys) {
		return nil, fmt.Errorf("%w: missing parameters", ErrInvalidHash)
	}
	return params, nil
}

// bounded returns parameter k when it lies in [min, max].
func (p *phc) bounded(k string, min, max uint64) (uint64, error) {
	v := p.params[k]
	if v < min || v > max {
		return 0, fmt.Errorf("%w: %s parameter %s=%d out of range", ErrInvalidHash, p.id, k, v)
	}
	return v, nil
}

// decodeB64 accepts both padded and unpadded standard base64, since PHC
// strings in the wild use either.
func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func encodeB64(b []byte) string {
	return base64.RawStdEncoding.EncodeToString(b)
}
