package spartanfiles

import (
	"time"

	"github.com/brianalban07/spartanfiles.github.io/hierarchy"
	"github.com/brianalban07/spartanfiles.github.io/storage"
)

// Session is returned by [Repository.Authenticate]. Token is the value to hand back to the
// client (the session cookie); the server side state lives in Redis under ID.
type Session struct {
	ID        string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Token     string
}

// Principal identifies the authenticated caller of a storage operation. Only
// [Repository.Resolve] produces principals the storage gate accepts; a Principal built by
// hand, or resolved by a different Repository, is treated as anonymous.
type Principal struct {
	Username  string
	SessionID string
	ExpiresAt time.Time

	issuer *Repository
}

// FileInfo describes one stored file.
type FileInfo = storage.Entry

// Download is an open file ready for transfer. Callers must close Content.
type Download = storage.Object

// Listing is a department together with its categories.
type Listing = hierarchy.Listing
