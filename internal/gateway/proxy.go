package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/app-gateway/internal/serviceerr"
	"github.com/openkcm/app-gateway/internal/session"
	"github.com/openkcm/app-gateway/internal/token"
)

// Using an unexported type prevents key collisions from other packages.
type bearerKey struct{}

func withBearer(ctx context.Context, rec token.Record) context.Context {
	return context.WithValue(ctx, bearerKey{}, rec)
}

// bearerFrom returns the token the API guard selected for the request.
func bearerFrom(ctx context.Context) (token.Record, bool) {
	rec, ok := ctx.Value(bearerKey{}).(token.Record)
	return rec, ok
}

// apiGuard refreshes an expired token before the request is answered. A
// failed refresh is only logged, the backend rejects the stale token itself.
func (g *gateway) apiGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		h, err := session.FromContext(ctx)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		rec, ok := h.Token()
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		if g.lifecycle.Expired(rec) {
			refreshed, err := g.refresh(ctx, h, rec)
			switch {
			case err == nil:
				rec = refreshed
			case refreshed.AccessToken != "":
				slogctx.Warn(ctx, "Error storing the refreshed token", "error", err)
				rec = refreshed
			default:
				slogctx.Warn(ctx, "Error refreshing token", "error", err)
			}
		}

		next.ServeHTTP(w, r.WithContext(withBearer(ctx, rec)))
	})
}

type proxy struct {
	reverse *httputil.ReverseProxy
	timeout time.Duration
}

// newProxy forwards requests to apiBase. The request path must already be
// relative to the API root.
func newProxy(apiBase *url.URL, timeout time.Duration) *proxy {
	if timeout <= 0 {
		timeout = defaultProxyTimeout
	}

	return &proxy{
		reverse: &httputil.ReverseProxy{
			Rewrite: func(pr *httputil.ProxyRequest) {
				pr.SetURL(apiBase)
				pr.SetXForwarded()

				if rec, ok := bearerFrom(pr.In.Context()); ok {
					pr.Out.Header.Set("Authorization", "Bearer "+rec.AccessToken)
				} else {
					pr.Out.Header.Del("Authorization")
				}
			},
			ErrorHandler: proxyError,
			ErrorLog:     slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
		},
		timeout: timeout,
	}
}

func (p *proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), p.timeout)
	defer cancel()

	p.reverse.ServeHTTP(w, r.WithContext(ctx))
}

func proxyError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		slogctx.Error(ctx, "Backend request timed out", "path", r.URL.Path, "error", err)
		writeText(w, serviceerr.ErrUpstreamTimeout)
		return
	}

	slogctx.Error(ctx, "Backend request failed", "path", r.URL.Path, "error", err)
	writeText(w, serviceerr.ErrUpstream)
}

// getOr answers GET requests with get and everything else with other.
func getOr(get http.HandlerFunc, other http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			get(w, r)
			return
		}

		other.ServeHTTP(w, r)
	})
}
