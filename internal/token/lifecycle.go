package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/app-gateway/internal/serviceerr"
)

var errNoRefreshToken = errors.New("token expired and no refresh token is available")

// Endpoints of the OpenID Connect protocol of a single realm.
type Endpoints struct {
	Authorize string
	Token     string
	UserInfo  string
	Logout    string
}

// RealmEndpoints templates the endpoints of a Keycloak style realm:
// {authBase}/auth/realms/{realm}/protocol/openid-connect/{endpoint}.
func RealmEndpoints(authBase, realm string) (Endpoints, error) {
	if realm == "" {
		return Endpoints{}, errors.New("realm must not be empty")
	}

	base, err := url.Parse(authBase)
	if err != nil {
		return Endpoints{}, fmt.Errorf("parsing authorization server url: %w", err)
	}
	if !base.IsAbs() {
		return Endpoints{}, fmt.Errorf("authorization server url %q is not absolute", authBase)
	}

	realmBase := base.JoinPath("auth", "realms", realm, "protocol", "openid-connect")

	return Endpoints{
		Authorize: realmBase.JoinPath("auth").String(),
		Token:     realmBase.JoinPath("token").String(),
		UserInfo:  realmBase.JoinPath("userinfo").String(),
		Logout:    realmBase.JoinPath("logout").String(),
	}, nil
}

// Lifecycle obtains, checks and refreshes token records. It never touches
// the session; callers persist what it returns.
type Lifecycle struct {
	config    *oauth2.Config
	endpoints Endpoints
	client    *http.Client
	now       func() time.Time
}

type Option func(*Lifecycle)

// WithHTTPClient sets the client used for calls to the token endpoint.
func WithHTTPClient(client *http.Client) Option {
	return func(l *Lifecycle) {
		l.client = client
	}
}

// WithClock replaces the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) {
		l.now = now
	}
}

func NewLifecycle(clientID, clientSecret string, endpoints Endpoints, scopes []string, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   endpoints.Authorize,
				TokenURL:  endpoints.Token,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		endpoints: endpoints,
		client:    http.DefaultClient,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

func (l *Lifecycle) Endpoints() Endpoints {
	return l.endpoints
}

func (l *Lifecycle) ClientID() string {
	return l.config.ClientID
}

func (l *Lifecycle) HTTPClient() *http.Client {
	return l.client
}

// AuthCodeURL returns the URL of the authorization endpoint the user agent
// is sent to in order to log in.
func (l *Lifecycle) AuthCodeURL(state, redirectURI string) string {
	return l.config.AuthCodeURL(state, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
}

// Exchange trades an authorization code for a token record. The redirect
// URI must be the one used to start the flow.
func (l *Lifecycle) Exchange(ctx context.Context, code, redirectURI string) (Record, error) {
	tok, err := l.config.Exchange(l.clientContext(ctx), code, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	if err != nil {
		return Record{}, classify(err)
	}

	rec := FromOAuth2(tok)
	slogctx.Debug(ctx, "Exchanged the authorization code", "token", rec)

	return rec, nil
}

// Refresh obtains a new record using the refresh token of rec. If the
// authorization server does not rotate the refresh token the old one is kept.
func (l *Lifecycle) Refresh(ctx context.Context, rec Record) (Record, error) {
	if rec.RefreshToken == "" {
		return Record{}, serviceerr.Wrap(serviceerr.ErrTokenExchange, errNoRefreshToken)
	}

	// The access token is left out so the source always asks the server.
	src := l.config.TokenSource(l.clientContext(ctx), &oauth2.Token{RefreshToken: rec.RefreshToken})

	tok, err := src.Token()
	if err != nil {
		return Record{}, classify(err)
	}

	refreshed := FromOAuth2(tok)
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = rec.RefreshToken
	}

	slogctx.Debug(ctx, "Refreshed the access token", "token", refreshed)

	return refreshed, nil
}

// Expired reports whether rec is expired according to the lifecycle clock.
func (l *Lifecycle) Expired(rec Record) bool {
	return rec.ExpiredAt(l.now())
}

func (l *Lifecycle) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, l.client)
}

// classify turns a failure of the oauth2 package into a service error:
// answers of the authorization server become token exchange failures,
// everything else means the server could not be reached.
func classify(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode != "" {
			msg := retrieveErr.ErrorCode
			if retrieveErr.ErrorDescription != "" {
				msg += ": " + retrieveErr.ErrorDescription
			}

			return serviceerr.Wrap(serviceerr.ErrTokenExchange, errors.New(msg))
		}

		return serviceerr.Wrap(serviceerr.ErrTokenExchange, err)
	}

	return serviceerr.Wrap(serviceerr.ErrTemporarilyUnavailable, err)
}
