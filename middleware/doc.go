// Package middleware gates HTTP handlers behind a spartanfiles session.
//
// # Guards
//
//   - [RequireSession] resolves the session cookie (or a Bearer header) through the
//     Repository and injects the principal into the request context.
//   - [ClientContext] copies the caller's User-Agent and IP into the context, which login and
//     session resolution need for throttling and user-agent binding.
//
// Browsers without a session are redirected to the login page with 303 See Other. Clients that
// ask for JSON get 401 instead.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Repository calls. It does NOT decide whether a
// token is valid; Repository.Resolve does.
//
// # What this package must NOT do
//
//   - Parse or create session tokens directly.
//   - Access Redis or the storage root.
//   - Call a wrapped handler when resolution failed.
package middleware
