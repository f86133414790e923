package spartanfiles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/brianalban07/spartanfiles.github.io/hierarchy"
	"github.com/brianalban07/spartanfiles.github.io/internal/rate"
	"github.com/brianalban07/spartanfiles.github.io/jwt"
	"github.com/brianalban07/spartanfiles.github.io/password"
	"github.com/brianalban07/spartanfiles.github.io/pathsafe"
	"github.com/brianalban07/spartanfiles.github.io/session"
	"github.com/brianalban07/spartanfiles.github.io/storage"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a Repository. A Builder is single use.
type Builder struct {
	config   Config
	redis    redis.UniversalClient
	verifier CredentialVerifier
	logger   *slog.Logger

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used for sessions and login throttling. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithVerifier overrides the verifier derived from Config.Auth. When set, Auth credentials
// are not required.
func (b *Builder) WithVerifier(v CredentialVerifier) *Builder {
	b.verifier = v
	return b
}

// WithLogger sets the logger. Without one, nothing is logged.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the resolve latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, creates the storage root when it is missing and wires
// every component.
//
// When Storage.WatchCategories is set, a filesystem watcher goroutine runs until
// Repository.Close.
func (b *Builder) Build() (*Repository, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.validate(b.verifier == nil); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// -------- PASSWORD HASHER --------
	ph, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}

	verifier := b.verifier
	if verifier == nil {
		verifier, err = NewCredentialVerifier(cfg.Auth, ph)
		if err != nil {
			return nil, err
		}
		if cfg.Auth.PasswordHash != "" {
			upgrade, err := ph.NeedsUpgrade(cfg.Auth.PasswordHash)
			if err != nil {
				return nil, fmt.Errorf("Auth PasswordHash: %w", err)
			}
			if upgrade {
				logger.Warn("configured password hash uses weaker parameters than the current hasher; regenerate it with hash-password")
			}
		}
	}

	// -------- STORAGE --------
	if err := os.MkdirAll(cfg.Storage.Root, cfg.Storage.DirPerm); err != nil {
		return nil, fmt.Errorf("%w: create storage root: %v", ErrStorage, err)
	}
	resolver, err := pathsafe.NewResolver(cfg.Storage.Root, cfg.Storage.Departments)
	if err != nil {
		return nil, err
	}
	files, err := storage.New(storage.Config{
		AllowedExtensions: cfg.Storage.AllowedExtensions,
		DirPerm:           cfg.Storage.DirPerm,
		FilePerm:          cfg.Storage.FilePerm,
		MaxFileBytes:      cfg.Storage.MaxUploadBytes,
	})
	if err != nil {
		return nil, err
	}
	browser := hierarchy.NewBrowser(resolver, logger)

	// -------- SESSIONS --------
	jm, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.Session.AbsoluteSessionLifetime,
		SigningMethod: jwt.SigningMethod(cfg.Session.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Session.SigningKey),
		PublicKey:     cloneBytes(cfg.Session.PublicKey),
		Issuer:        cfg.Session.Issuer,
		RequireIAT:    true,
	})
	if err != nil {
		return nil, err
	}

	store := session.NewStore(
		b.redis,
		cfg.Session.RedisPrefix,
		cfg.Session.SlidingExpiration,
		cfg.Session.IdleTimeout,
		cfg.Session.JitterEnabled,
		cfg.Session.JitterRange,
	)

	repo := &Repository{
		config:       cloneConfig(cfg),
		logger:       logger,
		resolver:     resolver,
		files:        files,
		browser:      browser,
		sessionStore: store,
		rateLimiter: rate.New(b.redis, rate.Config{
			EnableIPThrottle:      cfg.Security.EnableIPThrottle,
			MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
		}),
		jwtManager: jm,
		verifier:   verifier,
		metrics:    NewMetrics(cfg.Metrics),
	}

	// -------- CATEGORY WATCHER --------
	if cfg.Storage.WatchCategories {
		w, err := hierarchy.NewWatcher(browser, logger)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithCancel(context.Background())
		repo.watcher = w
		repo.stopWatch = cancel
		repo.watchDone = make(chan struct{})
		go func() {
			defer close(repo.watchDone)
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("storage watcher stopped", "error", err)
			}
		}()
	}

	b.built = true

	return repo, nil
}
