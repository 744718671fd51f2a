package gateway

import (
	"net/http"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/app-gateway/internal/session"
)

// logout drops the token of the session and sends the user agent to the
// logout endpoint of the realm. The outcome there is not checked.
func (g *gateway) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h, err := session.FromContext(ctx); err == nil {
		if err := h.ClearToken(ctx); err != nil {
			slogctx.Warn(ctx, "Could not clear the session", "error", err)
		}
	}

	target := r.Referer()
	if target == "" {
		target = g.externalBase(r) + g.appRoot()
	}

	u := *g.logoutURL
	q := u.Query()
	q.Set("redirect_uri", target)
	u.RawQuery = q.Encode()

	http.Redirect(w, r, u.String(), http.StatusFound)
}
