// Package rate implements the Redis-backed login attempt limiter.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Once a counter reaches
// MaxLoginAttempts, CheckLogin refuses further attempts until the window expires. Key prefixes:
//   - sl:  failed logins per username
//   - sli: failed logins per client IP
//
// # What this package must NOT do
//
//   - Verify credentials or create sessions.
//   - Be imported outside the spartanfiles module.
package rate
