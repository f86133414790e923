package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	spartanfiles "github.com/brianalban07/spartanfiles.github.io"
)

type fakeResolver struct {
	valid     string
	gotCalled bool
}

func (f *fakeResolver) Resolve(ctx context.Context, token string) (*spartanfiles.Principal, error) {
	f.gotCalled = true
	if token != f.valid {
		return nil, spartanfiles.ErrUnauthorized
	}
	return &spartanfiles.Principal{Username: "spartan", SessionID: "sid"}, nil
}

func protected(t *testing.T, called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		p := spartanfiles.PrincipalFromContext(r.Context())
		require.NotNil(t, p)
		assert.Equal(t, "spartan", p.Username)
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireSessionRedirectsAnonymousBrowser(t *testing.T) {
	called := false
	res := &fakeResolver{valid: "good"}
	h := RequireSession(res, SessionOptions{LoginURL: "/spartanfiles/login"})(protected(t, &called))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/spartanfiles/TE", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/spartanfiles/login", rec.Header().Get("Location"))
	assert.False(t, called)
	assert.False(t, res.gotCalled, "no token means no resolution attempt")
}

func TestRequireSessionJSONClientGets401(t *testing.T) {
	called := false
	h := RequireSession(&fakeResolver{valid: "good"}, SessionOptions{LoginURL: "/login"})(protected(t, &called))

	req := httptest.NewRequest(http.MethodGet, "/spartanfiles/TE", nil)
	req.Header.Set("Accept", "application/json")
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "forged"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Please log in to access this page."}`, rec.Body.String())
	assert.False(t, called)
}

func TestRequireSessionAcceptsCookieAndBearer(t *testing.T) {
	for name, mutate := range map[string]func(*http.Request){
		"cookie": func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "sf", Value: "good"}) },
		"bearer": func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") },
	} {
		t.Run(name, func(t *testing.T) {
			called := false
			h := RequireSession(&fakeResolver{valid: "good"}, SessionOptions{CookieName: "sf", LoginURL: "/login"})(protected(t, &called))

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			mutate(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.True(t, called)
		})
	}
}

func TestRequireSessionNilResolver(t *testing.T) {
	called := false
	h := RequireSession(nil, SessionOptions{})(protected(t, &called))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 198.51.100.7")

	assert.Equal(t, "10.1.2.3", clientIP(req, false))
	assert.Equal(t, "198.51.100.7", clientIP(req, true))

	req.RemoteAddr = "not-an-addr"
	assert.Equal(t, "not-an-addr", clientIP(req, false))
}

func TestBearerToken(t *testing.T) {
	tok, ok := bearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	for _, v := range []string{"", "Bearer ", "bearer abc", "Basic abc"} {
		_, ok := bearerToken(v)
		assert.False(t, ok, v)
	}
}
