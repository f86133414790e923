// Package spartanfiles is a session-gated file repository organised as a fixed set of
// departments, each holding categories, each holding files.
//
// A [Repository] is assembled with [New] and [Builder.Build]. Callers authenticate with
// [Repository.Authenticate], keep the returned token, turn it back into a [Principal] with
// [Repository.Resolve] on every request, and attach the principal to the context with
// [WithPrincipal] before calling any storage operation. Storage operations called without a
// principal return [ErrUnauthorized] and never touch the filesystem.
//
// # Architecture boundaries
//
// spartanfiles is the public surface. Path validation lives in pathsafe, file CRUD in storage,
// directory listings in hierarchy, session records in session and the signed session cookie in
// jwt. HTTP routing, cookies and rendering belong to the server and middleware packages.
//
// # What this package must NOT do
//
//   - Build filesystem paths from caller input without going through pathsafe.
//   - Expose Redis clients or session encoding in its public API.
//   - Close the Redis client it was given; the caller owns it.
//   - Import server or middleware (no import cycles).
package spartanfiles
