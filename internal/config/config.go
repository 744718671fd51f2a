// Package config defines the necessary types to configure the application.
// An example config file config.yaml is provided in the repository.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash" yaml:",inline"`

	HTTP HTTPServer `yaml:"http"`

	Gateway Gateway `yaml:"gateway"`
	OAuth2  OAuth2  `yaml:"oauth2"`
	Session Session `yaml:"session"`
	ValKey  ValKey  `yaml:"valkey"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"5s"`
}

type UserInfoMode string

const (
	// UserInfoEndpoint relays the userinfo endpoint of the realm.
	UserInfoEndpoint UserInfoMode = "userinfo"
	// UserInfoStatic answers with the configured placeholder profile.
	UserInfoStatic UserInfoMode = "static"
)

type Gateway struct {
	AppName   string `yaml:"appName" default:"simple-platform-server"`
	AppTitle  string `yaml:"appTitle"`
	StaticDir string `yaml:"staticDir" default:"./www"`
	// Port is the externally visible port used to build redirect URIs.
	Port                  int           `yaml:"port" default:"8080"`
	APIBase               string        `yaml:"apiBase" default:"https://platform-api.cfl.io/"`
	ProxyTimeout          time.Duration `yaml:"proxyTimeout" default:"30s"`
	TrustForwardedHeaders bool          `yaml:"trustForwardedHeaders"`
	UserInfo              UserInfoMode  `yaml:"userInfo" default:"userinfo"`
	StaticProfile         Profile       `yaml:"staticProfile"`
	Apps                  []App         `yaml:"apps"`
	Dev                   Dev           `yaml:"dev"`
}

type Profile struct {
	Email string `yaml:"email"`
	Name  string `yaml:"name"`
}

// App is an entry of the application list served on /api/apps.
type App struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Href     string   `yaml:"href"`
	Features []string `yaml:"features"`
}

// Dev switches to an internal development realm and backend.
type Dev struct {
	Enabled bool   `yaml:"enabled"`
	Realm   string `yaml:"realm" default:"dev"`
	APIBase string `yaml:"apiBase"`
}

type OAuth2 struct {
	// Disabled forces the unauthenticated mode even if credentials are set.
	Disabled     bool                `yaml:"disabled"`
	ClientID     commoncfg.SourceRef `yaml:"clientID"`
	ClientSecret commoncfg.SourceRef `yaml:"clientSecret"`
	AuthBaseURL  string              `yaml:"authBaseURL"`
	Realm        string              `yaml:"realm"`
	Scopes       []string            `yaml:"scopes"`
	Timeout      time.Duration       `yaml:"timeout" default:"10s"`
}

type SessionStore string

const (
	SessionStoreMemory SessionStore = "memory"
	SessionStoreValKey SessionStore = "valkey"
)

type Session struct {
	Store    SessionStore        `yaml:"store" default:"memory"`
	Duration time.Duration       `yaml:"duration" default:"12h"`
	Secret   commoncfg.SourceRef `yaml:"secret"`
	Cookie   CookieTemplate      `yaml:"cookie"`

	SecretParsed []byte `yaml:"-"`
}

type ValKey struct {
	Host      commoncfg.SourceRef `yaml:"host"`
	User      commoncfg.SourceRef `yaml:"user"`
	Password  commoncfg.SourceRef `yaml:"password"`
	SecretRef commoncfg.SecretRef `yaml:"secretRef"`
	Prefix    string              `yaml:"prefix" default:"app-gateway"`
}

// ApplyDev replaces the realm and the API base with the development ones
// when the dev override is enabled.
func (c *Config) ApplyDev() {
	if !c.Gateway.Dev.Enabled {
		return
	}

	if c.Gateway.Dev.Realm != "" {
		c.OAuth2.Realm = c.Gateway.Dev.Realm
	}
	if c.Gateway.Dev.APIBase != "" {
		c.Gateway.APIBase = c.Gateway.Dev.APIBase
	}
}

// AuthEnabled reports whether the OAuth2 subsystem is to be installed.
func (c *Config) AuthEnabled() bool {
	return !c.OAuth2.Disabled && IsSet(c.OAuth2.ClientID)
}

// UnauthenticatedReason explains why the app is served without login. It is
// empty when authentication is enabled.
func (c *Config) UnauthenticatedReason() string {
	switch {
	case c.OAuth2.Disabled:
		return "authentication disabled explicitly"
	case !IsSet(c.OAuth2.ClientID):
		return "no OAuth2 client configured, set CLIENT_ID and CLIENT_SECRET to enable login"
	default:
		return ""
	}
}

// Validate checks the settings the gateway cannot start without.
func (c *Config) Validate() error {
	var errs []error

	if c.Gateway.AppName == "" || strings.Contains(c.Gateway.AppName, "/") {
		errs = append(errs, fmt.Errorf("invalid app name %q", c.Gateway.AppName))
	}

	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Gateway.Port))
	}

	if !c.AuthEnabled() {
		return errors.Join(errs...)
	}

	if err := validateAbsURL(c.Gateway.APIBase); err != nil {
		errs = append(errs, fmt.Errorf("api base: %w", err))
	}
	if err := validateAbsURL(c.OAuth2.AuthBaseURL); err != nil {
		errs = append(errs, fmt.Errorf("authorization server: %w", err))
	}
	if c.OAuth2.Realm == "" {
		errs = append(errs, errors.New("realm must be set when authentication is enabled"))
	}

	switch c.Gateway.UserInfo {
	case UserInfoEndpoint, UserInfoStatic:
	default:
		errs = append(errs, fmt.Errorf("unknown user info mode %q", c.Gateway.UserInfo))
	}

	switch c.Session.Store {
	case SessionStoreMemory, SessionStoreValKey:
	default:
		errs = append(errs, fmt.Errorf("unknown session store %q", c.Session.Store))
	}

	return errors.Join(errs...)
}

func validateAbsURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%q is not an absolute url", raw)
	}

	return nil
}
