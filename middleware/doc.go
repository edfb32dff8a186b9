// Package middleware protects HTTP handlers with access tokens minted by a
// goIssuer.Issuer.
//
// [Guard] reads the Authorization bearer token, verifies it through
// Issuer.VerifyAccess and stores the claims in the request context, where
// [ClaimsFromContext] finds them. [RequireSubjectType] narrows a route to
// particular subject types.
//
// Verification is stateless: no store is consulted, so a token stays
// valid until it expires.
package middleware
