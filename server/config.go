package server

import (
	"strings"
	"time"

	"github.com/brianalban07/spartanfiles.github.io/middleware"
)

// Config holds the HTTP settings. Zero durations fall back to the DefaultConfig values.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// Prefix is the sub-path every route lives under. Empty serves from the site root.
	Prefix string

	CookieName   string
	CookieSecure bool
	// TrustProxy takes client IPs from X-Forwarded-For. Enable it only behind a reverse proxy.
	TrustProxy bool

	// ExposeMetrics mounts the Prometheus text exporter at {Prefix}/metrics.
	ExposeMetrics bool
	// MaxUploadBytes caps request bodies on the upload route. Zero means unlimited.
	MaxUploadBytes int64

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	// ShutdownTimeout bounds how long in-flight requests may drain on shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig serves under /spartanfiles on :8080.
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		Prefix:            "/spartanfiles",
		CookieName:        middleware.DefaultCookieName,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.CookieName == "" {
		c.CookieName = def.CookieName
	}
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = def.ReadHeaderTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = def.IdleTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	c.Prefix = normalizePrefix(c.Prefix)
	return c
}

// normalizePrefix yields "" or a path with a leading slash and no trailing slash.
func normalizePrefix(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}
