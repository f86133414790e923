// Package internal contains helpers private to spartanfiles: session identifiers and the
// client binding hash.
//
// # Sub-packages
//
//   - config: YAML configuration file loading with environment overrides
//   - logging: slog logger construction
//   - rate: Redis-backed login attempt limiter
//
// # What this package must NOT do
//
//   - Export types that appear in the public spartanfiles API.
package internal
