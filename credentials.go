package spartanfiles

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/brianalban07/spartanfiles.github.io/password"
)

// CredentialVerifier checks a username/password pair. A mismatch is (false, nil); an error
// means the check itself could not be performed.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (bool, error)
}

// StaticCredentials compares against a plaintext pair held in memory.
type StaticCredentials struct {
	Username string
	Password string
}

// Verify implements CredentialVerifier. Both fields are always compared.
func (s StaticCredentials) Verify(_ context.Context, username, password string) (bool, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.Username))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.Password))
	return userOK&passOK == 1, nil
}

// HashedCredentials compares against an Argon2id PHC hash.
type HashedCredentials struct {
	Username string
	Hash     string
	Hasher   *password.Argon2
}

// Verify implements CredentialVerifier. The hash is evaluated even when the username does not
// match so both failure modes cost the same.
func (h HashedCredentials) Verify(_ context.Context, username, pass string) (bool, error) {
	if h.Hasher == nil {
		return false, errors.New("hashed credentials require a hasher")
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(h.Username)) == 1

	passOK, err := h.Hasher.Verify(pass, h.Hash)
	if err != nil {
		return false, err
	}
	return userOK && passOK, nil
}

// NewCredentialVerifier builds the verifier described by cfg. PasswordHash wins over Password.
func NewCredentialVerifier(cfg AuthConfig, hasher *password.Argon2) (CredentialVerifier, error) {
	switch {
	case cfg.Username == "":
		return nil, errors.New("credential verifier requires a username")
	case cfg.PasswordHash != "":
		if hasher == nil {
			return nil, errors.New("hashed credentials require a hasher")
		}
		return HashedCredentials{Username: cfg.Username, Hash: cfg.PasswordHash, Hasher: hasher}, nil
	case cfg.Password != "":
		return StaticCredentials{Username: cfg.Username, Password: cfg.Password}, nil
	default:
		return nil, errors.New("credential verifier requires a password or password hash")
	}
}
