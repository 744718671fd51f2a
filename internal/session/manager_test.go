package session_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/app-gateway/internal/config"
	"github.com/openkcm/app-gateway/internal/session"
	sessionmock "github.com/openkcm/app-gateway/internal/session/mock"
	"github.com/openkcm/app-gateway/internal/token"
	"github.com/openkcm/app-gateway/pkg/cookiesig"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newManager(t *testing.T, repo session.Repository, opts ...session.ManagerOption) *session.Manager {
	t.Helper()

	m, err := session.NewManager(t.Context(), &config.Session{
		Duration:     time.Hour,
		SecretParsed: testSecret,
		Cookie:       config.CookieTemplate{HTTPOnly: true},
	}, "myapp", repo, opts...)
	require.NoError(t, err)

	return m
}

// serve runs fn behind the session middleware and returns the response.
func serve(t *testing.T, m *session.Manager, cookie *http.Cookie, fn func(w http.ResponseWriter, r *http.Request, h *session.Handle)) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/myapp/", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()

	m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, err := session.FromContext(r.Context())
		require.NoError(t, err)
		fn(w, r, h)
	})).ServeHTTP(rec, req)

	return rec.Result()
}

func sessionCookie(id string) *http.Cookie {
	return &http.Cookie{Name: "myapp.sid", Value: cookiesig.Sign(id, testSecret)}
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestNewManager(t *testing.T) {
	t.Run("Generates a secret when none is configured", func(t *testing.T) {
		m, err := session.NewManager(t.Context(), &config.Session{}, "myapp", sessionmock.NewInMemRepository())
		require.NoError(t, err)
		assert.Equal(t, "myapp.sid", m.CookieName())
	})

	t.Run("Rejects a short secret", func(t *testing.T) {
		_, err := session.NewManager(t.Context(), &config.Session{
			Secret: commoncfg.SourceRef{Source: "embedded", Value: "short"},
		}, "myapp", sessionmock.NewInMemRepository())
		require.Error(t, err)
	})

	t.Run("Custom cookie name", func(t *testing.T) {
		m, err := session.NewManager(t.Context(), &config.Session{
			SecretParsed: testSecret,
			Cookie:       config.CookieTemplate{Name: "{app}-session"},
		}, "myapp", sessionmock.NewInMemRepository())
		require.NoError(t, err)
		assert.Equal(t, "myapp-session", m.CookieName())
	})
}

func TestFromContext_WithoutMiddleware(t *testing.T) {
	_, err := session.FromContext(t.Context())
	require.ErrorIs(t, err, session.ErrNoSession)
}

func TestMiddleware_Anonymous(t *testing.T) {
	repo := sessionmock.NewInMemRepository()
	m := newManager(t, repo)

	resp := serve(t, m, nil, func(w http.ResponseWriter, _ *http.Request, h *session.Handle) {
		_, ok := h.Token()
		assert.False(t, ok)
		assert.Empty(t, h.ID())
		w.WriteHeader(http.StatusOK)
	})

	assert.Empty(t, resp.Cookies(), "anonymous sessions must not issue a cookie")
	assert.Empty(t, repo.Sessions())
}

func TestMiddleware_LoadsSession(t *testing.T) {
	rec := token.Record{AccessToken: "AT1", RefreshToken: "RT1", ExpiresAt: time.Now().Add(time.Minute)}
	repo := sessionmock.NewInMemRepository(sessionmock.WithSession(session.Session{
		ID:     "sid-1",
		Token:  &rec,
		Expiry: time.Now().Add(time.Hour),
	}))
	m := newManager(t, repo)

	tests := []struct {
		name   string
		cookie *http.Cookie
		want   bool
	}{
		{name: "Valid cookie", cookie: sessionCookie("sid-1"), want: true},
		{name: "Forged signature", cookie: &http.Cookie{Name: "myapp.sid", Value: "sid-1.forged"}, want: false},
		{name: "Unsigned cookie", cookie: &http.Cookie{Name: "myapp.sid", Value: "sid-1"}, want: false},
		{name: "Unknown session", cookie: sessionCookie("sid-unknown"), want: false},
		{name: "Other cookie name", cookie: &http.Cookie{Name: "other.sid", Value: cookiesig.Sign("sid-1", testSecret)}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serve(t, m, tt.cookie, func(_ http.ResponseWriter, _ *http.Request, h *session.Handle) {
				got, ok := h.Token()
				assert.Equal(t, tt.want, ok)
				if tt.want {
					assert.Equal(t, rec.AccessToken, got.AccessToken)
					assert.Equal(t, "sid-1", h.ID())
				}
			})
		})
	}
}

func TestMiddleware_ExpiredSession(t *testing.T) {
	repo := sessionmock.NewInMemRepository(sessionmock.WithSession(session.Session{
		ID:     "sid-1",
		Token:  &token.Record{AccessToken: "AT1"},
		Expiry: time.Now().Add(-time.Minute),
	}))
	m := newManager(t, repo)

	serve(t, m, sessionCookie("sid-1"), func(_ http.ResponseWriter, _ *http.Request, h *session.Handle) {
		_, ok := h.Token()
		assert.False(t, ok)
	})
}

func TestMiddleware_LoadErrorIsAnonymous(t *testing.T) {
	repo := sessionmock.NewInMemRepository(sessionmock.WithLoadSessionError(errors.New("connection refused")))
	m := newManager(t, repo)

	serve(t, m, sessionCookie("sid-1"), func(_ http.ResponseWriter, _ *http.Request, h *session.Handle) {
		_, ok := h.Token()
		assert.False(t, ok)
	})
}

func TestHandle_SetToken(t *testing.T) {
	repo := sessionmock.NewInMemRepository()
	m := newManager(t, repo)
	rec := token.Record{AccessToken: "AT1", RefreshToken: "RT1", ExpiresAt: time.Now().Add(time.Minute)}

	resp := serve(t, m, nil, func(w http.ResponseWriter, r *http.Request, h *session.Handle) {
		require.NoError(t, h.SetToken(r.Context(), rec))
		got, ok := h.Token()
		assert.True(t, ok)
		assert.Equal(t, rec, got)
		w.WriteHeader(http.StatusOK)
	})

	c := findCookie(resp, "myapp.sid")
	require.NotNil(t, c)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, "/", c.Path)

	id, ok := cookiesig.Verify(c.Value, testSecret)
	require.True(t, ok)
	require.Contains(t, repo.Sessions(), id)
	assert.Equal(t, rec, *repo.Sessions()[id].Token)

	t.Run("Keeps the session id on update", func(t *testing.T) {
		refreshed := token.Record{AccessToken: "AT2", RefreshToken: "RT1"}
		serve(t, m, c, func(_ http.ResponseWriter, r *http.Request, h *session.Handle) {
			require.NoError(t, h.SetToken(r.Context(), refreshed))
			assert.Equal(t, id, h.ID())
		})

		assert.Len(t, repo.Sessions(), 1)
		assert.Equal(t, "AT2", repo.Sessions()[id].Token.AccessToken)
	})
}

func TestHandle_SetTokenStoreError(t *testing.T) {
	repo := sessionmock.NewInMemRepository(sessionmock.WithStoreSessionError(errors.New("store down")))
	m := newManager(t, repo)

	resp := serve(t, m, nil, func(w http.ResponseWriter, r *http.Request, h *session.Handle) {
		require.Error(t, h.SetToken(r.Context(), token.Record{AccessToken: "AT1"}))
		_, ok := h.Token()
		assert.False(t, ok)
		w.WriteHeader(http.StatusOK)
	})

	assert.Nil(t, findCookie(resp, "myapp.sid"))
}

func TestHandle_EstablishRotatesID(t *testing.T) {
	repo := sessionmock.NewInMemRepository(sessionmock.WithSession(session.Session{
		ID:     "sid-old",
		Token:  &token.Record{AccessToken: "AT0"},
		Expiry: time.Now().Add(time.Hour),
	}))
	m := newManager(t, repo)

	resp := serve(t, m, sessionCookie("sid-old"), func(w http.ResponseWriter, r *http.Request, h *session.Handle) {
		require.NoError(t, h.Establish(r.Context(), token.Record{AccessToken: "AT1"}))
		assert.NotEqual(t, "sid-old", h.ID())
		w.WriteHeader(http.StatusFound)
	})

	c := findCookie(resp, "myapp.sid")
	require.NotNil(t, c)
	id, ok := cookiesig.Verify(c.Value, testSecret)
	require.True(t, ok)

	assert.NotContains(t, repo.Sessions(), "sid-old")
	assert.Contains(t, repo.Deleted(), "sid-old")
	assert.Equal(t, "AT1", repo.Sessions()[id].Token.AccessToken)
}

func TestHandle_ClearToken(t *testing.T) {
	repo := sessionmock.NewInMemRepository(sessionmock.WithSession(session.Session{
		ID:     "sid-1",
		Token:  &token.Record{AccessToken: "AT1"},
		Expiry: time.Now().Add(time.Hour),
	}))
	m := newManager(t, repo)

	resp := serve(t, m, sessionCookie("sid-1"), func(w http.ResponseWriter, r *http.Request, h *session.Handle) {
		require.NoError(t, h.ClearToken(r.Context()))
		_, ok := h.Token()
		assert.False(t, ok)
		w.WriteHeader(http.StatusFound)
	})

	assert.Empty(t, repo.Sessions())
	c := findCookie(resp, "myapp.sid")
	require.NotNil(t, c)
	assert.Empty(t, c.Value)
	assert.Equal(t, -1, c.MaxAge)

	t.Run("Idempotent", func(t *testing.T) {
		serve(t, m, nil, func(_ http.ResponseWriter, r *http.Request, h *session.Handle) {
			require.NoError(t, h.ClearToken(r.Context()))
		})
	})
}

func TestHandle_SessionExpirySlides(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := sessionmock.NewInMemRepository()
	m := newManager(t, repo, session.WithManagerClock(func() time.Time { return now }))

	serve(t, m, nil, func(_ http.ResponseWriter, r *http.Request, h *session.Handle) {
		require.NoError(t, h.SetToken(r.Context(), token.Record{AccessToken: "AT1"}))
		assert.Equal(t, now.Add(time.Hour), repo.Sessions()[h.ID()].Expiry)
	})
}
