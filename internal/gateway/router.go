// Package gateway composes the HTTP surface of the app gateway: static files
// of the app behind an OAuth2 login, the proxied backend API and the auth
// endpoints.
package gateway

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/openkcm/app-gateway/internal/token"
)

type gateway struct {
	appName               string
	port                  int
	trustForwardedHeaders bool

	lifecycle     *token.Lifecycle
	client        *http.Client
	logoutURL     *url.URL
	staticProfile *Profile
	appList       []App
}

// NewRouter builds the handler for opts. Without Authenticated options only
// the static files and the root redirect are served.
func NewRouter(opts Options) (http.Handler, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid gateway options: %w", err)
	}

	g := &gateway{
		appName:               opts.AppName,
		port:                  opts.Port,
		trustForwardedHeaders: opts.TrustForwardedHeaders,
	}

	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, g.appRoot(), http.StatusFound)
	})
	r.Get("/"+g.appName, func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, g.appRoot(), http.StatusMovedPermanently)
	})

	static := http.StripPrefix("/"+g.appName, http.FileServer(http.Dir(opts.StaticDir)))
	staticPattern := g.appRoot() + "*"

	auth, ok := authenticated(opts.Auth)
	if !ok {
		r.Handle(staticPattern, static)
		return r, nil
	}

	logoutURL, err := url.Parse(auth.Lifecycle.Endpoints().Logout)
	if err != nil {
		return nil, fmt.Errorf("parsing logout endpoint: %w", err)
	}

	title := opts.AppTitle
	if title == "" {
		title = opts.AppName
	}

	g.lifecycle = auth.Lifecycle
	g.client = auth.Lifecycle.HTTPClient()
	g.logoutURL = logoutURL
	g.staticProfile = auth.StaticProfile
	g.appList = appList(App{ID: opts.AppName, Name: title, Href: g.appRoot()}, auth.Apps)

	api := newProxy(auth.APIBase, auth.ProxyTimeout)
	forward := http.StripPrefix("/api", api)

	r.Group(func(r chi.Router) {
		r.Use(auth.Sessions.Middleware)

		r.With(g.authGate).Handle(staticPattern, static)

		r.Route("/api", func(r chi.Router) {
			r.Use(g.apiGuard)
			r.Handle("/user", getOr(g.user, forward))
			r.Handle("/apps", getOr(g.apps, forward))
			r.Handle("/*", forward)
		})

		r.Get(callbackPath, g.callback)
		r.Get(logoutPath, g.logout)
	})

	return r, nil
}

func authenticated(a Auth) (Authenticated, bool) {
	switch auth := a.(type) {
	case Authenticated:
		return auth, true
	case *Authenticated:
		if auth == nil {
			return Authenticated{}, false
		}
		return *auth, true
	default:
		return Authenticated{}, false
	}
}
