package business

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/valkey-io/valkey-go"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/app-gateway/internal/business/server"
	"github.com/openkcm/app-gateway/internal/config"
	"github.com/openkcm/app-gateway/internal/gateway"
	"github.com/openkcm/app-gateway/internal/session"
	sessionmemory "github.com/openkcm/app-gateway/internal/session/memory"
	sessionvalkey "github.com/openkcm/app-gateway/internal/session/valkey"
	"github.com/openkcm/app-gateway/internal/token"
)

var defaultScopes = []string{"openid"}

// Main serves the gateway until ctx is cancelled.
func Main(ctx context.Context, cfg *config.Config) error {
	cfg.ApplyDev()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating the configuration: %w", err)
	}

	handler, closeFn, err := initRouter(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialising the router: %w", err)
	}

	defer closeFn()

	return server.StartHTTPServer(ctx, cfg, handler)
}

func initRouter(ctx context.Context, cfg *config.Config) (_ http.Handler, closeFn func(), _ error) {
	opts := gateway.Options{
		AppName:               cfg.Gateway.AppName,
		AppTitle:              cfg.Gateway.AppTitle,
		StaticDir:             cfg.Gateway.StaticDir,
		Port:                  cfg.Gateway.Port,
		TrustForwardedHeaders: cfg.Gateway.TrustForwardedHeaders,
		Auth:                  gateway.Unauthenticated{},
	}

	closeFn = func() {}

	if cfg.AuthEnabled() {
		auth, authClose, err := initAuth(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}

		opts.Auth = auth
		closeFn = authClose
	} else {
		slogctx.Warn(ctx, "Serving the app WITHOUT authentication", "reason", cfg.UnauthenticatedReason())
	}

	handler, err := gateway.NewRouter(opts)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("creating the router: %w", err)
	}

	slogctx.Info(ctx, "Gateway configured",
		"app", cfg.Gateway.AppName,
		"staticDir", cfg.Gateway.StaticDir,
		"authenticated", cfg.AuthEnabled(),
	)

	return handler, closeFn, nil
}

func initAuth(ctx context.Context, cfg *config.Config) (_ gateway.Authenticated, closeFn func(), _ error) {
	creds, err := config.LoadClientCredentials(cfg.OAuth2)
	if err != nil {
		return gateway.Authenticated{}, nil, err
	}

	endpoints, err := token.RealmEndpoints(cfg.OAuth2.AuthBaseURL, cfg.OAuth2.Realm)
	if err != nil {
		return gateway.Authenticated{}, nil, fmt.Errorf("building the realm endpoints: %w", err)
	}

	scopes := cfg.OAuth2.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}

	lifecycle := token.NewLifecycle(creds.ID, creds.Secret, endpoints, scopes,
		token.WithHTTPClient(&http.Client{Timeout: cfg.OAuth2.Timeout}),
	)

	apiBase, err := url.Parse(cfg.Gateway.APIBase)
	if err != nil {
		return gateway.Authenticated{}, nil, fmt.Errorf("parsing the api base url: %w", err)
	}

	repo, closeFn, err := initSessionRepository(ctx, cfg)
	if err != nil {
		return gateway.Authenticated{}, nil, err
	}

	sessions, err := session.NewManager(ctx, &cfg.Session, cfg.Gateway.AppName, repo)
	if err != nil {
		closeFn()
		return gateway.Authenticated{}, nil, fmt.Errorf("creating the session manager: %w", err)
	}

	auth := gateway.Authenticated{
		Lifecycle:    lifecycle,
		Sessions:     sessions,
		APIBase:      apiBase,
		ProxyTimeout: cfg.Gateway.ProxyTimeout,
		Apps:         make([]gateway.App, 0, len(cfg.Gateway.Apps)),
	}

	if cfg.Gateway.UserInfo == config.UserInfoStatic {
		auth.StaticProfile = &gateway.Profile{
			Email: cfg.Gateway.StaticProfile.Email,
			Name:  cfg.Gateway.StaticProfile.Name,
		}
	}

	for _, app := range cfg.Gateway.Apps {
		auth.Apps = append(auth.Apps, gateway.App{
			ID:       app.ID,
			Name:     app.Name,
			Href:     app.Href,
			Features: app.Features,
		})
	}

	slogctx.Info(ctx, "OAuth2 configured",
		"clientID", creds.ID,
		"realm", cfg.OAuth2.Realm,
		"apiBase", apiBase.String(),
		"sessionStore", cfg.Session.Store,
	)

	return auth, closeFn, nil
}

func initSessionRepository(ctx context.Context, cfg *config.Config) (_ session.Repository, closeFn func(), _ error) {
	switch cfg.Session.Store {
	case config.SessionStoreValKey:
		valkeyClient, err := NewValKeyClient(cfg.ValKey)
		if err != nil {
			return nil, nil, err
		}

		return sessionvalkey.NewRepository(valkeyClient, cfg.ValKey.Prefix), valkeyClient.Close, nil
	case config.SessionStoreMemory, "":
		slogctx.Info(ctx, "Keeping sessions in memory")
		return sessionmemory.NewRepository(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}
}

// NewValKeyClient connects to the configured Valkey instance.
func NewValKeyClient(conf config.ValKey) (valkey.Client, error) {
	creds, err := config.LoadValKeyCredentials(conf)
	if err != nil {
		return nil, err
	}

	if creds.Host == "" {
		return nil, errors.New("valkey host is not configured")
	}

	valkeyOpts := valkey.ClientOption{
		InitAddress: []string{creds.Host},
		Username:    creds.User,
		Password:    creds.Password,
	}

	if conf.SecretRef.Type == commoncfg.MTLSSecretType {
		tlsConfig, err := commoncfg.LoadMTLSConfig(&conf.SecretRef.MTLS)
		if err != nil {
			return nil, fmt.Errorf("loading valkey mTLS config from secret ref: %w", err)
		}

		valkeyOpts.TLSConfig = tlsConfig
	}

	valkeyClient, err := valkey.NewClient(valkeyOpts)
	if err != nil {
		return nil, fmt.Errorf("creating a new valkey client: %w", err)
	}

	return valkeyClient, nil
}
