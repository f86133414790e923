// Package session provides Redis-backed session persistence and a compact binary session
// encoding.
//
// # Binary encoding
//
// Sessions are stored as a versioned binary record: username, user-agent hash and the
// created/expires unix timestamps. Unknown versions are rejected on read.
//
// # Expiration
//
// Every record carries an absolute expiry. With sliding expiration enabled a record is saved
// with the idle timeout as its TTL and each successful [Store.Get] resets it to the idle
// timeout (optionally with jitter), never past the absolute cap. An idle session therefore
// disappears long before its absolute expiry while an active one lasts until it.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model. It does NOT parse
// cookie tokens or decide whether a caller may touch storage; the Repository does.
//
// # What this package must NOT do
//
//   - Import spartanfiles or jwt (no upward imports).
//   - Store plaintext secrets in [Session] fields.
package session
