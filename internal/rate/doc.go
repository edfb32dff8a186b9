// Package rate provides Redis-backed fixed-window counters used to
// throttle credential attempts.
//
// # Window semantics
//
// INCR + EXPIRE on the first hit of a window. Keys live under the
// configured prefix:
//   - rc:e: per normalized email
//   - rc:i: per client IP
//
// Policy (which failures count, when counters reset) belongs to the caller.
package rate
