package gateway_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openkcm/app-gateway/internal/config"
	"github.com/openkcm/app-gateway/internal/gateway"
	"github.com/openkcm/app-gateway/internal/session"
	sessionmock "github.com/openkcm/app-gateway/internal/session/mock"
	"github.com/openkcm/app-gateway/internal/token"
	"github.com/openkcm/app-gateway/pkg/cookiesig"
)

const (
	testAppName      = "myapp"
	testRealm        = "test"
	testClientID     = "my-client-id"
	testClientSecret = "my-client-secret" // NOSONAR
	testSessionID    = "session-one"
	realmPath        = "/auth/realms/" + testRealm + "/protocol/openid-connect"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// authServer stubs the token and userinfo endpoints of the realm.
type authServer struct {
	*httptest.Server

	tokenStatus int
	tokenBody   map[string]any
	tokenCalls  atomic.Int32

	mu       sync.Mutex
	lastForm url.Values
}

func startAuthServer(t *testing.T) *authServer {
	t.Helper()

	s := &authServer{
		tokenStatus: http.StatusOK,
		tokenBody: map[string]any{
			"access_token":  "AT1",
			"refresh_token": "RT1",
			"expires_in":    3600,
			"token_type":    "Bearer",
		},
	}

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case realmPath + "/token":
			s.tokenCalls.Add(1)
			_ = r.ParseForm()
			s.mu.Lock()
			s.lastForm = r.PostForm
			status, body := s.tokenStatus, s.tokenBody
			s.mu.Unlock()

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(body)
		case realmPath + "/userinfo":
			switch r.Header.Get("Authorization") {
			case "Bearer expired-silently":
				w.Header().Set("WWW-Authenticate", `Bearer realm="test", error="invalid_token", error_description="Token verification failed"`)
				w.WriteHeader(http.StatusUnauthorized)
				return
			case "Bearer forbidden":
				w.WriteHeader(http.StatusForbidden)
				return
			case "Bearer html":
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write([]byte("<html>login</html>"))
				return
			}
			if r.Header.Get("Authorization") != "Bearer AT1" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid_token"}`))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"sub":"123","email":"jane@example.com","name":"Jane Doe"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(s.Close)

	return s
}

func (s *authServer) respondWith(status int, body map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenStatus = status
	s.tokenBody = body
}

func (s *authServer) form() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastForm
}

// backend records the requests forwarded by the proxy.
type backend struct {
	*httptest.Server

	mu       sync.Mutex
	requests []*http.Request
	delay    time.Duration
}

func startBackend(t *testing.T) *backend {
	t.Helper()

	b := &backend{}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, r.Clone(r.Context()))
		delay := b.delay
		b.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		w.Header().Set("X-Backend", "yes")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"path":"` + r.URL.Path + `"}`))
	}))
	t.Cleanup(b.Close)

	return b
}

func (b *backend) last(t *testing.T) *http.Request {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.requests, "backend received no request")
	return b.requests[len(b.requests)-1]
}

func (b *backend) setDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = d
}

func (b *backend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func staticDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>index</h1>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page"), []byte("page content"), 0o600))

	return dir
}

type fixture struct {
	handler http.Handler
	auth    *authServer
	backend *backend
	repo    *sessionmock.Repository
}

type fixtureOption func(*gateway.Options, *gateway.Authenticated)

func withStaticProfile(p gateway.Profile) fixtureOption {
	return func(_ *gateway.Options, a *gateway.Authenticated) { a.StaticProfile = &p }
}

func withProxyTimeout(d time.Duration) fixtureOption {
	return func(_ *gateway.Options, a *gateway.Authenticated) { a.ProxyTimeout = d }
}

func withTrustForwardedHeaders() fixtureOption {
	return func(o *gateway.Options, _ *gateway.Authenticated) { o.TrustForwardedHeaders = true }
}

func withApps(apps ...gateway.App) fixtureOption {
	return func(_ *gateway.Options, a *gateway.Authenticated) { a.Apps = apps }
}

func newFixture(t *testing.T, repoOpts []sessionmock.RepositoryOption, opts ...fixtureOption) *fixture {
	t.Helper()

	f := &fixture{
		auth:    startAuthServer(t),
		backend: startBackend(t),
		repo:    sessionmock.NewInMemRepository(repoOpts...),
	}

	endpoints, err := token.RealmEndpoints(f.auth.URL, testRealm)
	require.NoError(t, err)

	lifecycle := token.NewLifecycle(testClientID, testClientSecret, endpoints, []string{"openid"},
		token.WithHTTPClient(&http.Client{Timeout: 5 * time.Second}))

	sessions, err := session.NewManager(t.Context(), &config.Session{
		Duration:     time.Hour,
		SecretParsed: testSecret,
		Cookie:       config.CookieTemplate{HTTPOnly: true},
	}, testAppName, f.repo)
	require.NoError(t, err)

	apiBase, err := url.Parse(f.backend.URL + "/v1/")
	require.NoError(t, err)

	auth := gateway.Authenticated{
		Lifecycle: lifecycle,
		Sessions:  sessions,
		APIBase:   apiBase,
	}
	options := gateway.Options{
		AppName:   testAppName,
		StaticDir: staticDir(t),
		Port:      8080,
	}
	for _, opt := range opts {
		opt(&options, &auth)
	}
	options.Auth = auth

	f.handler, err = gateway.NewRouter(options)
	require.NoError(t, err)

	return f
}

func (f *fixture) do(req *http.Request) *http.Response {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec.Result()
}

func sessionWith(rec token.Record) sessionmock.RepositoryOption {
	return sessionmock.WithSession(session.Session{
		ID:     testSessionID,
		Token:  &rec,
		Expiry: time.Now().Add(time.Hour),
	})
}

func validToken() token.Record {
	return token.Record{AccessToken: "AT1", RefreshToken: "RT1", ExpiresAt: time.Now().Add(time.Hour)}
}

func expiredToken() token.Record {
	return token.Record{AccessToken: "AT0", RefreshToken: "RT0", ExpiresAt: time.Now().Add(-time.Minute)}
}

func withSessionCookie(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: testAppName + ".sid", Value: cookiesig.Sign(testSessionID, testSecret)})
	return req
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}
