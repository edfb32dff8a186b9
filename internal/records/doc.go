// Package records defines the binary layout of every value the issuer keeps
// in a store.Store.
//
// Each record starts with a version byte followed by big-endian fixed-width
// fields and length-prefixed strings. Decoders reject unknown versions and
// truncated input with ErrCorrupt; callers treat a corrupt record exactly
// like an absent one.
//
// Encodings are deterministic: encoding the same record twice yields the
// same bytes, which is what compare-and-swap and compare-and-delete
// compare against.
package records
