// Package jwt signs and verifies the session cookie token. A token names a server-side
// session id and the username it belongs to; it is never trusted without the matching
// Redis session record.
package jwt
