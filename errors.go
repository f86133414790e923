package spartanfiles

import (
	"errors"

	"github.com/brianalban07/spartanfiles.github.io/pathsafe"
	"github.com/brianalban07/spartanfiles.github.io/storage"
)

var (
	// ErrInvalidPath is returned for traversal attempts, malformed segments and unknown departments.
	ErrInvalidPath = pathsafe.ErrInvalidPath
	// ErrDisallowedFileType is returned when an upload name lacks an allowed extension.
	ErrDisallowedFileType = storage.ErrDisallowedFileType
	// ErrNotFound is returned when a category or file does not exist.
	ErrNotFound = storage.ErrNotFound
	// ErrTooLarge is returned when an upload exceeds the configured size limit.
	ErrTooLarge = storage.ErrTooLarge
	// ErrStorage wraps underlying filesystem failures.
	ErrStorage = storage.ErrStorage

	// ErrInvalidCredentials is returned for any failed login. It never says which field was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is returned when no valid session backs the call.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrLoginRateLimited is returned once the failed-login budget is exhausted.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrSessionCreationFailed is returned when a verified login could not be persisted.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrSessionInvalidationFailed is returned when logout could not reach the session store.
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	// ErrEngineNotReady is returned by methods called on a Repository that was not built.
	ErrEngineNotReady = errors.New("repository not initialized")
)
