// Package jwt signs and verifies the access tokens minted after a code
// exchange, and publishes the verification keys as a JWK set.
//
// Ed25519 is the default signing method; tokens can be verified by any
// resource server holding the public key from [Manager.JWKS]. HS256 is
// supported for single-party deployments and publishes no keys.
//
// A manager built without a private key verifies but cannot sign; signing
// then fails with [ErrNoSigningKey].
package jwt
