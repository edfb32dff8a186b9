// Package internal contains helper utilities that are private to goIssuer:
// request id, authorization code, refresh token, and one-time code
// generation.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - logger: zap logger construction for the daemon
//   - rate: Redis-backed fixed-window throttling of credential attempts
//   - records: versioned binary encoding of stored records
//
// # What this package must NOT do
//
//   - Export types that appear in the public goIssuer API.
//   - Be imported by any package outside the goIssuer module.
package internal
