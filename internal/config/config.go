// Package config loads the spartanfiles YAML configuration file and applies environment
// overrides. The result is converted into the typed configs of the repository, the HTTP
// server and the logger.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	spartanfiles "github.com/brianalban07/spartanfiles.github.io"
	"github.com/brianalban07/spartanfiles.github.io/internal/logging"
	"github.com/brianalban07/spartanfiles.github.io/server"
)

// Environment variables that override the file.
const (
	EnvUsername     = "SPARTANFILES_USERNAME"
	EnvPassword     = "SPARTANFILES_PASSWORD"
	EnvPasswordHash = "SPARTANFILES_PASSWORD_HASH"
	EnvSigningKey   = "SPARTANFILES_SIGNING_KEY"
	EnvRedisAddr    = "SPARTANFILES_REDIS_ADDR"
	EnvStorageRoot  = "SPARTANFILES_STORAGE_ROOT"
	EnvListenAddr   = "SPARTANFILES_ADDR"
	EnvLogLevel     = "SPARTANFILES_LOG_LEVEL"
)

// File mirrors the YAML document.
type File struct {
	Server   ServerSection   `yaml:"server"`
	Redis    RedisSection    `yaml:"redis"`
	Storage  StorageSection  `yaml:"storage"`
	Auth     AuthSection     `yaml:"auth"`
	Session  SessionSection  `yaml:"session"`
	Security SecuritySection `yaml:"security"`
	Metrics  MetricsSection  `yaml:"metrics"`
	Logging  LoggingSection  `yaml:"logging"`
}

// ServerSection configures the HTTP listener and session cookie.
type ServerSection struct {
	Addr            string        `yaml:"addr"`
	Prefix          string        `yaml:"prefix"`
	CookieName      string        `yaml:"cookieName"`
	CookieSecure    bool          `yaml:"cookieSecure"`
	TrustProxy      bool          `yaml:"trustProxy"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// RedisSection points at the session Redis.
type RedisSection struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Embedded runs an in-process Redis; sessions do not survive a restart.
	Embedded bool `yaml:"embedded"`
}

// StorageSection configures the upload tree.
type StorageSection struct {
	Root              string   `yaml:"root"`
	Departments       []string `yaml:"departments"`
	AllowedExtensions []string `yaml:"allowedExtensions"`
	MaxUploadMB       int64    `yaml:"maxUploadMB"`
	WatchCategories   bool     `yaml:"watchCategories"`
}

// AuthSection holds the single account.
type AuthSection struct {
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"passwordHash"`
}

// SessionSection controls session lifetime and token signing.
type SessionSection struct {
	Lifetime          time.Duration `yaml:"lifetime"`
	IdleTimeout       time.Duration `yaml:"idleTimeout"`
	SlidingExpiration *bool         `yaml:"slidingExpiration"`
	SigningMethod     string        `yaml:"signingMethod"`
	SigningKey        string        `yaml:"signingKey"`
	SigningKeyFile    string        `yaml:"signingKeyFile"`
	PublicKeyFile     string        `yaml:"publicKeyFile"`
	Issuer            string        `yaml:"issuer"`
}

// SecuritySection tunes login throttling and user-agent binding.
type SecuritySection struct {
	UserAgentBinding *bool         `yaml:"userAgentBinding"`
	IPThrottle       bool          `yaml:"ipThrottle"`
	MaxLoginAttempts int           `yaml:"maxLoginAttempts"`
	LoginCooldown    time.Duration `yaml:"loginCooldown"`
}

// MetricsSection toggles the counters and their HTTP endpoint.
type MetricsSection struct {
	Enabled bool `yaml:"enabled"`
	// Expose serves the Prometheus endpoint under the prefix.
	Expose bool `yaml:"expose"`
}

// LoggingSection selects the log level and format.
type LoggingSection struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the settings used for keys the file leaves out.
func Default() *File {
	repo := spartanfiles.DefaultConfig()
	srv := server.DefaultConfig()
	return &File{
		Server: ServerSection{
			Addr:            srv.Addr,
			Prefix:          srv.Prefix,
			CookieName:      srv.CookieName,
			ReadTimeout:     srv.ReadTimeout,
			WriteTimeout:    srv.WriteTimeout,
			IdleTimeout:     srv.IdleTimeout,
			ShutdownTimeout: srv.ShutdownTimeout,
		},
		Redis: RedisSection{Addr: "localhost:6379"},
		Storage: StorageSection{
			Root:        repo.Storage.Root,
			Departments: repo.Storage.Departments,
		},
		Session: SessionSection{
			Lifetime:      repo.Session.AbsoluteSessionLifetime,
			IdleTimeout:   repo.Session.IdleTimeout,
			SigningMethod: repo.Session.SigningMethod,
			Issuer:        repo.Session.Issuer,
		},
		Security: SecuritySection{
			MaxLoginAttempts: repo.Security.MaxLoginAttempts,
			LoginCooldown:    repo.Security.LoginCooldownDuration,
		},
		Metrics: MetricsSection{Enabled: true},
		Logging: LoggingSection{Level: "info", Format: "text"},
	}
}

// Load reads path over Default. Unknown keys are an error. An empty path yields the
// defaults.
func Load(path string) (*File, error) {
	f := Default()
	if path == "" {
		return f, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := f.decode(data); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return f, nil
}

func (f *File) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from the environment through lookup (os.LookupEnv in
// production).
func (f *File) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(EnvUsername, &f.Auth.Username)
	set(EnvPassword, &f.Auth.Password)
	set(EnvPasswordHash, &f.Auth.PasswordHash)
	set(EnvSigningKey, &f.Session.SigningKey)
	set(EnvRedisAddr, &f.Redis.Addr)
	set(EnvStorageRoot, &f.Storage.Root)
	set(EnvListenAddr, &f.Server.Addr)
	set(EnvLogLevel, &f.Logging.Level)
}

// RepositoryConfig converts the file into a spartanfiles.Config. Key files are read here.
func (f *File) RepositoryConfig() (spartanfiles.Config, error) {
	cfg := spartanfiles.DefaultConfig()

	cfg.Storage.Root = f.Storage.Root
	if len(f.Storage.Departments) > 0 {
		cfg.Storage.Departments = append([]string(nil), f.Storage.Departments...)
	}
	cfg.Storage.AllowedExtensions = append([]string(nil), f.Storage.AllowedExtensions...)
	maxUpload, err := f.Storage.maxUploadBytes()
	if err != nil {
		return cfg, err
	}
	cfg.Storage.MaxUploadBytes = maxUpload
	cfg.Storage.WatchCategories = f.Storage.WatchCategories

	cfg.Auth = spartanfiles.AuthConfig{
		Username:     f.Auth.Username,
		Password:     f.Auth.Password,
		PasswordHash: f.Auth.PasswordHash,
	}

	if f.Session.Lifetime > 0 {
		cfg.Session.AbsoluteSessionLifetime = f.Session.Lifetime
	}
	if f.Session.IdleTimeout > 0 {
		cfg.Session.IdleTimeout = f.Session.IdleTimeout
	}
	if f.Session.SlidingExpiration != nil {
		cfg.Session.SlidingExpiration = *f.Session.SlidingExpiration
	}
	if f.Session.SigningMethod != "" {
		cfg.Session.SigningMethod = strings.ToLower(f.Session.SigningMethod)
	}
	if f.Session.Issuer != "" {
		cfg.Session.Issuer = f.Session.Issuer
	}
	key, err := secretOrFile(f.Session.SigningKey, f.Session.SigningKeyFile)
	if err != nil {
		return cfg, fmt.Errorf("session signing key: %w", err)
	}
	cfg.Session.SigningKey = key
	if f.Session.PublicKeyFile != "" {
		pub, err := os.ReadFile(f.Session.PublicKeyFile)
		if err != nil {
			return cfg, fmt.Errorf("session public key: %w", err)
		}
		cfg.Session.PublicKey = pub
	}

	if f.Security.UserAgentBinding != nil {
		cfg.Security.EnableUserAgentBinding = *f.Security.UserAgentBinding
	}
	cfg.Security.EnableIPThrottle = f.Security.IPThrottle
	if f.Security.MaxLoginAttempts > 0 {
		cfg.Security.MaxLoginAttempts = f.Security.MaxLoginAttempts
	}
	if f.Security.LoginCooldown > 0 {
		cfg.Security.LoginCooldownDuration = f.Security.LoginCooldown
	}

	cfg.Metrics.Enabled = f.Metrics.Enabled

	return cfg, cfg.Validate()
}

// ServerConfig converts the server section.
func (f *File) ServerConfig() (server.Config, error) {
	cfg := server.DefaultConfig()
	maxUpload, err := f.Storage.maxUploadBytes()
	if err != nil {
		return cfg, err
	}
	if f.Server.Addr != "" {
		cfg.Addr = f.Server.Addr
	}
	cfg.Prefix = f.Server.Prefix
	if f.Server.CookieName != "" {
		cfg.CookieName = f.Server.CookieName
	}
	cfg.CookieSecure = f.Server.CookieSecure
	cfg.TrustProxy = f.Server.TrustProxy
	cfg.ExposeMetrics = f.Metrics.Enabled && f.Metrics.Expose
	cfg.MaxUploadBytes = maxUpload
	if f.Server.ReadTimeout > 0 {
		cfg.ReadTimeout = f.Server.ReadTimeout
	}
	if f.Server.WriteTimeout > 0 {
		cfg.WriteTimeout = f.Server.WriteTimeout
	}
	if f.Server.IdleTimeout > 0 {
		cfg.IdleTimeout = f.Server.IdleTimeout
	}
	if f.Server.ShutdownTimeout > 0 {
		cfg.ShutdownTimeout = f.Server.ShutdownTimeout
	}
	return cfg, nil
}

// maxUploadMBLimit is the largest maxUploadMB whose byte count fits in an int64.
const maxUploadMBLimit = math.MaxInt64 >> 20

func (s StorageSection) maxUploadBytes() (int64, error) {
	switch {
	case s.MaxUploadMB < 0:
		return 0, errors.New("storage.maxUploadMB must be >= 0")
	case s.MaxUploadMB > maxUploadMBLimit:
		return 0, fmt.Errorf("storage.maxUploadMB must be <= %d", int64(maxUploadMBLimit))
	}
	return s.MaxUploadMB << 20, nil
}

// LoggingConfig converts the logging section. Output stays the logging default.
func (f *File) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(f.Logging.Level)
	cfg.Format = logging.ParseFormat(f.Logging.Format)
	return cfg
}

func secretOrFile(inline, path string) ([]byte, error) {
	if inline != "" && path != "" {
		return nil, errors.New("set either the inline key or the key file, not both")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return bytes.TrimRight(data, "\r\n"), nil
	}
	if inline == "" {
		return nil, nil
	}
	return []byte(inline), nil
}
