// Package goIssuer issues OAuth-style authorization codes after a pluggable
// credential provider has verified an identity, and exchanges them for
// signed subject claims.
//
// An [Issuer] is assembled with [New] and [Builder.Build] and is safe for
// concurrent use. A request moves through three calls:
//
//	res, _ := iss.Authorize(ctx, goIssuer.AuthorizeRequest{...})
//	sub, _ := iss.SubmitCredential(ctx, res.RequestID, goIssuer.CredentialInput{...})
//	tokens, _ := iss.ExchangeCode(ctx, goIssuer.ExchangeRequest{Code: sub.Code, ...})
//
// # Architecture boundaries
//
// The root package owns the state machine, the built-in providers and the
// public types. Records live in a store.Store under the pending:, code:
// and refresh: prefixes, encoded by internal/records. Token signing is
// jwt.Manager, password hashing is the password package, identity lookups
// go through the identity package.
//
// # Guarantees
//
//   - An authorization code is redeemed at most once. Consumption is a
//     compare-and-delete, so concurrent exchanges have one winner.
//   - A pending request yields at most one code.
//   - Expiry is checked on every read; eviction is never relied on.
//   - Plaintext codes, passwords and tokens are never stored or logged
//     (the development log sender aside).
package goIssuer
