package session

// Session is one authenticated login as persisted in Redis.
type Session struct {
	SessionID     string
	Username      string
	UserAgentHash [32]byte

	CreatedAt int64
	ExpiresAt int64
}
