package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/app-gateway/internal/config"
	"github.com/openkcm/app-gateway/internal/serviceerr"
	"github.com/openkcm/app-gateway/internal/sessionid"
	"github.com/openkcm/app-gateway/internal/token"
	"github.com/openkcm/app-gateway/pkg/cookiesig"
)

const minSecretLength = 32

// Manager binds sessions to requests through a signed cookie.
type Manager struct {
	sessions Repository
	ids      sessionid.Source
	cookie   config.CookieTemplate
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

type ManagerOption func(*Manager)

// WithManagerClock replaces the time source used for session expiry.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a session manager for the app. If no secret is
// configured a random one is generated, so sessions do not survive a restart.
func NewManager(ctx context.Context, cfg *config.Session, appName string, sessions Repository, opts ...ManagerOption) (*Manager, error) {
	secret, err := sessionSecret(ctx, cfg)
	if err != nil {
		return nil, err
	}

	duration := cfg.Duration
	if duration <= 0 {
		duration = 12 * time.Hour
	}

	m := &Manager{
		sessions: sessions,
		cookie:   cfg.Cookie.ForApp(appName),
		secret:   secret,
		duration: duration,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

func sessionSecret(ctx context.Context, cfg *config.Session) ([]byte, error) {
	if len(cfg.SecretParsed) == 0 && !config.IsSet(cfg.Secret) {
		slogctx.Warn(ctx, "No session secret configured, generating a random one")

		secret := make([]byte, minSecretLength)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generating session secret: %w", err)
		}

		return secret, nil
	}

	secret, err := config.LoadSessionSecret(*cfg)
	if err != nil {
		return nil, err
	}
	if len(secret) < minSecretLength {
		return nil, errors.New("session secret must be at least 32 bytes")
	}

	return secret, nil
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string {
	return m.cookie.Name
}

// Middleware loads the session of the request, if any, and makes it
// available to the handlers through FromContext.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		h := &Handle{manager: m, w: w}

		if id, ok := m.sessionID(r); ok {
			s, err := m.sessions.LoadSession(ctx, id)
			switch {
			case err == nil && m.now().Before(s.Expiry):
				h.id = s.ID
				h.token = s.Token
			case err == nil, errors.Is(err, serviceerr.ErrNotFound):
				slogctx.Debug(ctx, "Session not found or expired")
			default:
				slogctx.Warn(ctx, "Could not load session", "error", err)
			}
		}

		next.ServeHTTP(w, r.WithContext(NewContext(ctx, h)))
	})
}

func (m *Manager) sessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(m.cookie.Name)
	if err != nil {
		return "", false
	}

	return cookiesig.Verify(c.Value, m.secret)
}

func (m *Manager) store(ctx context.Context, w http.ResponseWriter, id string, rec token.Record) error {
	s := Session{
		ID:     id,
		Token:  &rec,
		Expiry: m.now().Add(m.duration),
	}
	if err := m.sessions.StoreSession(ctx, s); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}

	http.SetCookie(w, m.cookie.ToCookie(cookiesig.Sign(id, m.secret)))

	return nil
}

// Handle is the session of a single request. It is not safe for
// concurrent use.
type Handle struct {
	manager *Manager
	w       http.ResponseWriter
	id      string
	token   *token.Record
}

// ID returns the session identifier, empty for anonymous sessions.
func (h *Handle) ID() string {
	return h.id
}

// Token returns the token record of the session.
func (h *Handle) Token() (token.Record, bool) {
	if h.token == nil {
		return token.Record{}, false
	}

	return *h.token, true
}

// SetToken stores rec in the session, creating the session if needed.
func (h *Handle) SetToken(ctx context.Context, rec token.Record) error {
	id := h.id
	if id == "" {
		id = h.manager.ids.SessionID()
	}

	if err := h.manager.store(ctx, h.w, id, rec); err != nil {
		return err
	}

	h.id = id
	h.token = &rec

	return nil
}

// Establish stores rec under a fresh session identifier and drops the
// previous session. It is used at login.
func (h *Handle) Establish(ctx context.Context, rec token.Record) error {
	old := h.id
	id := h.manager.ids.SessionID()

	if err := h.manager.store(ctx, h.w, id, rec); err != nil {
		return err
	}

	h.id = id
	h.token = &rec

	if old != "" {
		if err := h.manager.sessions.DeleteSession(ctx, old); err != nil {
			slogctx.Warn(ctx, "Could not delete the previous session", "error", err)
		}
	}

	return nil
}

// ClearToken removes the session and expires the cookie. Clearing an
// anonymous session only expires the cookie.
func (h *Handle) ClearToken(ctx context.Context) error {
	if h.id != "" {
		if err := h.manager.sessions.DeleteSession(ctx, h.id); err != nil {
			return fmt.Errorf("deleting session: %w", err)
		}
	}

	h.id = ""
	h.token = nil
	http.SetCookie(h.w, h.manager.cookie.Expired())

	return nil
}
