package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	spartanfiles "github.com/brianalban07/spartanfiles.github.io"
)

// DefaultCookieName names the session cookie when SessionOptions.CookieName is empty.
const DefaultCookieName = "spartanfiles_session"

// SessionResolver turns a session token into a principal. *spartanfiles.Repository
// implements it.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*spartanfiles.Principal, error)
}

// SessionOptions configures RequireSession.
type SessionOptions struct {
	CookieName string
	// LoginURL is where anonymous browsers are sent.
	LoginURL string
	// TrustProxy takes the client IP from the last X-Forwarded-For hop.
	TrustProxy bool
}

// RequireSession only calls next for requests carrying a resolvable session.
func RequireSession(resolver SessionResolver, opts SessionOptions) func(http.Handler) http.Handler {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if resolver == nil {
				deny(w, r, opts.LoginURL)
				return
			}

			token, ok := SessionToken(r, opts.CookieName)
			if !ok {
				deny(w, r, opts.LoginURL)
				return
			}

			ctx := ClientContext(r, opts.TrustProxy)
			p, err := resolver.Resolve(ctx, token)
			if err != nil {
				deny(w, r, opts.LoginURL)
				return
			}

			next.ServeHTTP(w, r.WithContext(spartanfiles.WithPrincipal(ctx, p)))
		})
	}
}

// ClientContext returns the request context carrying the caller's User-Agent and IP.
func ClientContext(r *http.Request, trustProxy bool) context.Context {
	ctx := spartanfiles.WithUserAgent(r.Context(), r.UserAgent())
	return spartanfiles.WithClientIP(ctx, clientIP(r, trustProxy))
}

// SessionToken returns the session cookie value, falling back to a Bearer header.
func SessionToken(r *http.Request, cookieName string) (string, bool) {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

// WantsJSON reports whether the client prefers a JSON response over a redirect.
func WantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func deny(w http.ResponseWriter, r *http.Request, loginURL string) {
	if loginURL == "" || WantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Please log in to access this page."}` + "\n"))
		return
	}
	http.Redirect(w, r, loginURL, http.StatusSeeOther)
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			hops := strings.Split(xff, ",")
			if ip := strings.TrimSpace(hops[len(hops)-1]); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
