package gateway

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/openkcm/app-gateway/internal/session"
	"github.com/openkcm/app-gateway/internal/token"
)

const defaultProxyTimeout = 30 * time.Second

// Options configure the router. They are read once by NewRouter.
type Options struct {
	AppName   string
	AppTitle  string
	StaticDir string

	// Port is the externally visible port used in redirect URIs.
	Port                  int
	TrustForwardedHeaders bool

	Auth Auth
}

// Auth selects whether the OAuth2 subsystem is installed.
type Auth interface {
	isAuth()
}

// Unauthenticated serves the static files only.
type Unauthenticated struct{}

func (Unauthenticated) isAuth() {}

// Authenticated guards the app and installs the API and auth routes.
type Authenticated struct {
	Lifecycle *token.Lifecycle
	Sessions  *session.Manager

	APIBase      *url.URL
	ProxyTimeout time.Duration

	// StaticProfile answers /api/user without calling the userinfo
	// endpoint when set.
	StaticProfile *Profile
	Apps          []App
}

func (Authenticated) isAuth() {}

func (o Options) validate() error {
	if o.AppName == "" || strings.Contains(o.AppName, "/") {
		return fmt.Errorf("invalid app name %q", o.AppName)
	}

	switch auth := o.Auth.(type) {
	case nil, Unauthenticated, *Unauthenticated:
		return nil
	case Authenticated:
		return auth.validate()
	case *Authenticated:
		if auth == nil {
			return errors.New("authenticated mode must not be nil")
		}
		return auth.validate()
	default:
		return fmt.Errorf("unsupported auth mode %T", o.Auth)
	}
}

func (a Authenticated) validate() error {
	var errs []error
	if a.Lifecycle == nil {
		errs = append(errs, errors.New("token lifecycle is required"))
	}
	if a.Sessions == nil {
		errs = append(errs, errors.New("session manager is required"))
	}
	if a.APIBase == nil || !a.APIBase.IsAbs() {
		errs = append(errs, errors.New("absolute api base url is required"))
	}

	return errors.Join(errs...)
}
