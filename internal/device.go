package internal

import "crypto/sha256"

// HashBindingValue hashes a client attribute (the User-Agent) for storage in a session record.
func HashBindingValue(v string) [32]byte {
	return sha256.Sum256([]byte(v))
}
