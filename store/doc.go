// Package store provides the short-lived key-value storage used by the issuer
// for pending authorizations, authorization codes, and refresh records.
//
// # Design
//
// Every operation is atomic per key. CompareAndSwap and CompareAndDelete are
// the only primitives the issuer relies on for exactly-once semantics: code
// issuance and code redemption both go through CompareAndDelete, so under any
// interleaving of concurrent callers at most one of them observes true.
//
// Records written through this package carry their own expiry; callers must
// check it on read. TTLs passed to Put and CompareAndSwap only drive eventual
// physical eviction.
//
// # Implementations
//
//   - [Memory]: in-process map backed by go-cache with a periodic janitor.
//   - [Redis]: go-redis UniversalClient; CAS/CAD run as Lua scripts.
//
// # What this package must NOT do
//
//   - Import goIssuer or any sibling package.
//   - Interpret stored values.
package store
