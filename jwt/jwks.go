package jwt

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"sort"
)

// JWK is a single public key in RFC 7517 form. Only OKP/Ed25519 keys are
// produced.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
}

type JWKSet struct {
	Keys []JWK `json:"keys"`
}

// JWKS returns the public verification keys. The primary key comes first,
// followed by VerifyKeys in kid order. HS256 managers return an empty set.
func (j *Manager) JWKS() JWKSet {
	set := JWKSet{Keys: []JWK{}}
	if j.config.SigningMethod != MethodEd25519 {
		return set
	}

	primaryKid := ""
	if pub, ok := j.primary.(ed25519.PublicKey); ok {
		primaryKid = j.config.KeyID
		if primaryKid == "" {
			primaryKid = Thumbprint(pub)
		}
		set.Keys = append(set.Keys, edJWK(primaryKid, pub))
	}

	kids := make([]string, 0, len(j.verify))
	for kid := range j.verify {
		if kid != primaryKid {
			kids = append(kids, kid)
		}
	}
	sort.Strings(kids)
	for _, kid := range kids {
		if pub, ok := j.verify[kid].(ed25519.PublicKey); ok {
			set.Keys = append(set.Keys, edJWK(kid, pub))
		}
	}
	return set
}

// Thumbprint derives a stable key id from an Ed25519 public key.
func Thumbprint(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return base64.RawURLEncoding.EncodeToString(sum[:12])
}

func edJWK(kid string, pub ed25519.PublicKey) JWK {
	return JWK{
		Kty: "OKP",
		Crv: "Ed25519",
		X:   base64.RawURLEncoding.EncodeToString(pub),
		Kid: kid,
		Use: "sig",
		Alg: "EdDSA",
	}
}
