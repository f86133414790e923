package spartanfiles

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"strings"
	"time"

	"github.com/brianalban07/spartanfiles.github.io/password"
	"github.com/brianalban07/spartanfiles.github.io/pathsafe"
)

// Config is the full startup configuration of a Repository. It is copied at Build time and
// never mutated afterwards.
type Config struct {
	Storage  StorageConfig
	Auth     AuthConfig
	Session  SessionConfig
	Security SecurityConfig
	Password PasswordConfig
	Metrics  MetricsConfig
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig locates the repository on disk and constrains uploads.
type StorageConfig struct {
	Root              string
	Departments       []string
	AllowedExtensions []string
	// MaxUploadBytes limits a single upload; zero disables the limit.
	MaxUploadBytes int64
	DirPerm        fs.FileMode
	FilePerm       fs.FileMode
	// WatchCategories caches category listings and keeps them fresh with filesystem
	// notifications instead of reading the disk on every call.
	WatchCategories bool
}

/*
====================================
AUTH CONFIG
====================================
*/

// AuthConfig holds the single configured account. PasswordHash (Argon2id PHC) takes
// precedence over the plaintext Password when both are set.
type AuthConfig struct {
	Username     string
	Password     string
	PasswordHash string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the Redis session records and the signed session token.
type SessionConfig struct {
	RedisPrefix       string
	SlidingExpiration bool
	// IdleTimeout ends a session that goes unused this long. Only applies with
	// SlidingExpiration; zero leaves sessions alive until AbsoluteSessionLifetime.
	IdleTimeout             time.Duration
	AbsoluteSessionLifetime time.Duration
	JitterEnabled           bool
	JitterRange             time.Duration

	SigningMethod string // "hs256" (default) or "ed25519"
	// SigningKey is the HS256 secret or the Ed25519 private key.
	SigningKey []byte
	PublicKey  []byte
	Issuer     string
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig tunes login throttling and session binding.
type SecurityConfig struct {
	EnableUserAgentBinding bool
	EnableIPThrottle       bool
	MaxLoginAttempts       int
	LoginCooldownDuration  time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the Argon2id parameters expected of the configured hash.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// MaxPasswordBytes rejects longer login passwords before hashing. Zero uses the
	// password package default.
	MaxPasswordBytes int
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultDepartments is the department set used when none is configured.
var DefaultDepartments = []string{"TE", "PE", "FAE", "ATE", "AFTE"}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a configuration with every tunable set. Credentials and the signing
// key are left empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			Root:            "uploads",
			Departments:     append([]string(nil), DefaultDepartments...),
			MaxUploadBytes:  0,
			DirPerm:         0o755,
			FilePerm:        0o644,
			WatchCategories: false,
		},
		Session: SessionConfig{
			RedisPrefix:             "sfs",
			SlidingExpiration:       true,
			IdleTimeout:             30 * time.Minute,
			AbsoluteSessionLifetime: 12 * time.Hour,
			JitterEnabled:           true,
			JitterRange:             30 * time.Second,
			SigningMethod:           "hs256",
			Issuer:                  "spartanfiles",
		},
		Security: SecurityConfig{
			EnableUserAgentBinding: true,
			EnableIPThrottle:       false,
			MaxLoginAttempts:       5,
			LoginCooldownDuration:  15 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:           65536,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MaxPasswordBytes: password.DefaultMaxPasswordBytes,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Storage.Departments = append([]string(nil), cfg.Storage.Departments...)
	out.Storage.AllowedExtensions = append([]string(nil), cfg.Storage.AllowedExtensions...)
	out.Session.SigningKey = cloneBytes(cfg.Session.SigningKey)
	out.Session.PublicKey = cloneBytes(cfg.Session.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	return c.validate(true)
}

// validate skips the Auth section when the caller supplies its own CredentialVerifier.
func (c *Config) validate(requireCredentials bool) error {
	// Storage
	if strings.TrimSpace(c.Storage.Root) == "" {
		return errors.New("Storage Root must not be empty")
	}
	if len(c.Storage.Departments) == 0 {
		return errors.New("Storage Departments must not be empty")
	}
	seen := make(map[string]struct{}, len(c.Storage.Departments))
	for _, d := range c.Storage.Departments {
		if err := pathsafe.ValidateSegment(d); err != nil {
			return fmt.Errorf("Storage department %q: %w", d, err)
		}
		if _, dup := seen[d]; dup {
			return fmt.Errorf("Storage department %q is listed twice", d)
		}
		seen[d] = struct{}{}
	}
	if c.Storage.MaxUploadBytes < 0 {
		return errors.New("Storage MaxUploadBytes must be >= 0")
	}

	// Auth
	if requireCredentials {
		if strings.TrimSpace(c.Auth.Username) == "" {
			return errors.New("Auth Username must not be empty")
		}
		if c.Auth.Password == "" && c.Auth.PasswordHash == "" {
			return errors.New("Auth requires Password or PasswordHash")
		}
	}

	// Session
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.AbsoluteSessionLifetime <= 0 {
		return errors.New("Session AbsoluteSessionLifetime must be > 0")
	}
	if c.Session.IdleTimeout < 0 {
		return errors.New("Session IdleTimeout must be >= 0")
	}
	if c.Session.SlidingExpiration && c.Session.JitterEnabled &&
		c.Session.IdleTimeout > 0 && c.Session.JitterRange >= c.Session.IdleTimeout {
		return errors.New("Session JitterRange must be shorter than IdleTimeout")
	}
	if c.Session.JitterRange < 0 {
		return errors.New("Session JitterRange must be >= 0")
	}
	if c.Session.JitterRange > time.Duration((math.MaxInt64-1)/2) {
		return errors.New("Session JitterRange is too large")
	}
	if c.Session.JitterEnabled && c.Session.JitterRange <= 0 {
		return errors.New("Session JitterRange must be > 0 when JitterEnabled is true")
	}
	switch c.Session.SigningMethod {
	case "hs256":
		if len(c.Session.SigningKey) < 32 {
			return errors.New("hs256 requires a SigningKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.Session.SigningKey) == 0 || len(c.Session.PublicKey) == 0 {
			return errors.New("ed25519 requires SigningKey and PublicKey")
		}
	default:
		return errors.New("unsupported Session SigningMethod")
	}

	// Security
	if c.Security.MaxLoginAttempts <= 0 {
		return errors.New("Security MaxLoginAttempts must be > 0")
	}
	if c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security LoginCooldownDuration must be > 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password MaxPasswordBytes must be >= 0")
	}

	return nil
}
