// Package audit implements async event dispatching for security-relevant
// issuer operations.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, zap, no-op).
//   - [Dispatcher]: buffered async relay that either drops or blocks when full.
//   - [Event]: structured record with request, client, subject, provider and IP.
//
// This package owns buffering and delivery. It does not decide which events
// to emit; the issuer does.
package audit
