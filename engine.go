package spartanfiles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/brianalban07/spartanfiles.github.io/hierarchy"
	"github.com/brianalban07/spartanfiles.github.io/internal"
	"github.com/brianalban07/spartanfiles.github.io/internal/rate"
	"github.com/brianalban07/spartanfiles.github.io/jwt"
	"github.com/brianalban07/spartanfiles.github.io/pathsafe"
	"github.com/brianalban07/spartanfiles.github.io/session"
	"github.com/brianalban07/spartanfiles.github.io/storage"
	"github.com/redis/go-redis/v9"
)

// Repository is the session-gated department/category file repository. Build one with
// [New]. A Repository is safe for concurrent use.
type Repository struct {
	config Config
	logger *slog.Logger

	resolver *pathsafe.Resolver
	files    *storage.Store
	browser  *hierarchy.Browser

	sessionStore *session.Store
	rateLimiter  *rate.Limiter
	jwtManager   *jwt.Manager
	verifier     CredentialVerifier
	metrics      *Metrics

	watcher   *hierarchy.Watcher
	stopWatch context.CancelFunc
	watchDone chan struct{}
	closeOnce sync.Once
}

// Close stops the category watcher, if any. It does not close the Redis client, which the
// caller owns. Close is idempotent.
func (r *Repository) Close() {
	if r == nil {
		return
	}
	r.closeOnce.Do(func() {
		if r.watcher == nil {
			return
		}
		r.stopWatch()
		<-r.watchDone
		if err := r.watcher.Close(); err != nil {
			r.logger.Warn("close storage watcher", "error", err)
		}
	})
}

// MetricsSnapshot returns a copy of the in-process counters.
func (r *Repository) MetricsSnapshot() MetricsSnapshot {
	if r == nil || r.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return r.metrics.Snapshot()
}

// Ping checks that the session store is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	if r == nil || r.sessionStore == nil {
		return ErrEngineNotReady
	}
	_, err := r.sessionStore.Ping(ctx)
	return err
}

func (r *Repository) metricInc(id MetricID) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.Inc(id)
}

/*
====================================
AUTHENTICATION
====================================
*/

// Authenticate verifies the credential pair and opens a session.
//
// Failed attempts count against a fixed-window budget per username (and per client IP when
// configured, see [WithClientIP]); once it is spent every attempt returns ErrLoginRateLimited
// until the window ends. A wrong username or password yields ErrInvalidCredentials without
// saying which. On success the session is stored in Redis and Session.Token carries a signed
// reference to it.
func (r *Repository) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	if r == nil || r.sessionStore == nil {
		return nil, ErrEngineNotReady
	}
	ip := clientIPFromContext(ctx)

	if err := r.rateLimiter.CheckLogin(ctx, username, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			r.metricInc(MetricLoginRateLimited)
			r.logger.Warn("login rate limited", "username", username, "ip", ip)
			return nil, ErrLoginRateLimited
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	ok, err := r.verifier.Verify(ctx, username, password)
	if err != nil {
		r.logger.Warn("credential check failed", "username", username, "error", err)
		ok = false
	}
	if !ok {
		r.metricInc(MetricLoginFailure)
		if err := r.rateLimiter.IncrementLogin(ctx, username, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
			r.logger.Warn("record failed login", "username", username, "error", err)
		}
		r.logger.Info("login rejected", "username", username, "ip", ip)
		return nil, ErrInvalidCredentials
	}

	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}
	now := time.Now()
	lifetime := r.config.Session.AbsoluteSessionLifetime

	rec := &session.Session{
		SessionID: sid.String(),
		Username:  username,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(lifetime).Unix(),
	}
	if r.config.Security.EnableUserAgentBinding {
		rec.UserAgentHash = internal.HashBindingValue(userAgentFromContext(ctx))
	}

	if err := r.sessionStore.Save(ctx, rec, r.sessionStore.InitialTTL(lifetime)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}
	r.metricInc(MetricSessionCreated)

	token, err := r.jwtManager.Issue(rec.SessionID, username, now)
	if err != nil {
		if delErr := r.sessionStore.Delete(ctx, rec.SessionID); delErr != nil {
			r.logger.Warn("discard unissued session", "error", delErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	if err := r.rateLimiter.ResetLogin(ctx, username, ip); err != nil {
		r.logger.Warn("reset login counter", "username", username, "error", err)
	}

	r.metricInc(MetricLoginSuccess)
	r.logger.Info("login succeeded", "username", username, "ip", ip)

	return &Session{
		ID:        rec.SessionID,
		Username:  username,
		IssuedAt:  time.Unix(rec.CreatedAt, 0),
		ExpiresAt: time.Unix(rec.ExpiresAt, 0),
		Token:     token,
	}, nil
}

// Resolve turns a session token into the principal it stands for. Every way a token can be
// unusable (malformed, forged, expired, logged out, bound to another user agent) yields
// ErrUnauthorized. A Redis outage is ErrUnauthorized joined with the transport error.
func (r *Repository) Resolve(ctx context.Context, token string) (*Principal, error) {
	if r == nil || r.sessionStore == nil {
		return nil, ErrEngineNotReady
	}
	if token == "" {
		return nil, ErrUnauthorized
	}

	if r.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { r.metrics.Observe(MetricResolveLatency, time.Since(start)) }()
	}

	claims, err := r.jwtManager.Parse(token)
	if err != nil {
		r.metricInc(MetricSessionRejected)
		return nil, ErrUnauthorized
	}
	if _, err := internal.ParseSessionID(claims.SID); err != nil {
		r.metricInc(MetricSessionRejected)
		return nil, ErrUnauthorized
	}

	sess, err := r.sessionStore.Get(ctx, claims.SID, r.config.Session.AbsoluteSessionLifetime)
	if err != nil {
		if errors.Is(err, session.ErrRedisUnavailable) {
			r.logger.Error("session lookup failed", "error", err)
			return nil, errors.Join(ErrUnauthorized, err)
		}
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("unreadable session record", "error", err)
		}
		r.metricInc(MetricSessionRejected)
		return nil, ErrUnauthorized
	}

	if sess.Username != claims.Subject {
		r.metricInc(MetricSessionRejected)
		return nil, ErrUnauthorized
	}
	if r.config.Security.EnableUserAgentBinding &&
		sess.UserAgentHash != internal.HashBindingValue(userAgentFromContext(ctx)) {
		r.metricInc(MetricSessionRejected)
		r.logger.Warn("session user agent mismatch", "username", sess.Username)
		return nil, ErrUnauthorized
	}

	return &Principal{
		Username:  sess.Username,
		SessionID: sess.SessionID,
		ExpiresAt: time.Unix(sess.ExpiresAt, 0),
		issuer:    r,
	}, nil
}

// Logout ends the session named by token. It is idempotent: an empty, invalid, expired or
// already revoked token is not an error. Only a failure to reach Redis is reported, as
// ErrSessionInvalidationFailed.
func (r *Repository) Logout(ctx context.Context, token string) error {
	if r == nil || r.sessionStore == nil {
		return ErrEngineNotReady
	}
	if token == "" {
		return nil
	}

	claims, err := r.jwtManager.Parse(token)
	if err != nil {
		return nil
	}
	if err := r.sessionStore.Delete(ctx, claims.SID); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionInvalidationFailed, err)
	}

	r.metricInc(MetricLogout)
	r.logger.Info("logout", "username", claims.Subject)
	return nil
}

// LogoutAll revokes every session of username and returns how many were still live.
func (r *Repository) LogoutAll(ctx context.Context, username string) (int, error) {
	if r == nil || r.sessionStore == nil {
		return 0, ErrEngineNotReady
	}

	n, err := r.sessionStore.DeleteAllForUser(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSessionInvalidationFailed, err)
	}

	r.metricInc(MetricLogoutAll)
	r.logger.Info("revoked all sessions", "username", username, "count", n)
	return n, nil
}
