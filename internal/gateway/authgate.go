package gateway

import (
	"context"
	"net/http"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/app-gateway/internal/serviceerr"
	"github.com/openkcm/app-gateway/internal/session"
	"github.com/openkcm/app-gateway/internal/token"
)

// authGate lets a request through only with a valid token in its session.
// Anonymous requests are sent to the authorization endpoint, expired tokens
// are refreshed once.
func (g *gateway) authGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		h, err := session.FromContext(ctx)
		if err != nil {
			slogctx.Error(ctx, "Auth gate installed without a session", "error", err)
			writeText(w, serviceerr.Wrap(serviceerr.ErrConfiguration, err))
			return
		}

		rec, ok := h.Token()
		if !ok {
			authURL := g.lifecycle.AuthCodeURL(encodeState(r.URL.RequestURI()), g.callbackURI(r))
			slogctx.Debug(ctx, "Redirecting to the authorization server", "next", r.URL.RequestURI())
			http.Redirect(w, r, authURL, http.StatusFound)
			return
		}

		if !g.lifecycle.Expired(rec) {
			next.ServeHTTP(w, r)
			return
		}

		if _, err := g.refresh(ctx, h, rec); err != nil {
			slogctx.Warn(ctx, "Could not refresh the access token", "error", err)
			writeText(w, err)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// refresh obtains a new token for rec and stores it in the session.
func (g *gateway) refresh(ctx context.Context, h *session.Handle, rec token.Record) (token.Record, error) {
	refreshed, err := g.lifecycle.Refresh(ctx, rec)
	if err != nil {
		return token.Record{}, err
	}

	if err := h.SetToken(ctx, refreshed); err != nil {
		return refreshed, serviceerr.Wrap(serviceerr.ErrSessionStore, err)
	}

	return refreshed, nil
}
