package gateway

import (
	"errors"
	"net/http"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/app-gateway/internal/serviceerr"
	"github.com/openkcm/app-gateway/internal/session"
)

var errMissingCode = errors.New("missing authorization code")

// callback completes the authorization code flow and sends the user agent
// to the path recorded in the state parameter.
func (g *gateway) callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	h, err := session.FromContext(ctx)
	if err != nil {
		slogctx.Error(ctx, "Callback reached without a session", "error", err)
		writeText(w, serviceerr.ErrConfiguration)
		return
	}

	q := r.URL.Query()
	if idpErr := q.Get("error"); idpErr != "" {
		msg := idpErr
		if desc := q.Get("error_description"); desc != "" {
			msg += ": " + desc
		}
		slogctx.Info(ctx, "Authorization server returned an error", "error", msg)
		writeText(w, serviceerr.Wrap(serviceerr.ErrUnauthorized, errors.New(msg)))
		return
	}

	code := q.Get("code")
	if code == "" {
		writeText(w, serviceerr.Wrap(serviceerr.ErrInvalidRequest, errMissingCode))
		return
	}

	rec, err := g.lifecycle.Exchange(ctx, code, g.callbackURI(r))
	if err != nil {
		slogctx.Warn(ctx, "Access token error", "error", err)
		writeText(w, err)
		return
	}

	if err := h.Establish(ctx, rec); err != nil {
		slogctx.Error(ctx, "Could not store the access token", "error", err)
		writeText(w, serviceerr.Wrap(serviceerr.ErrSessionStore, err))
		return
	}

	next, err := decodeState(q.Get("state"))
	if err != nil {
		slogctx.Debug(ctx, "Ignoring the state parameter", "error", err)
	}
	if next == "" {
		next = g.appRoot()
	}

	http.Redirect(w, r, next, http.StatusFound)
}
