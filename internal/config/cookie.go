package config

import (
	"net/http"
	"strings"
)

type CookieSameSite string

const (
	CookieSameSiteNone   CookieSameSite = "None"
	CookieSameSiteLax    CookieSameSite = "Lax"
	CookieSameSiteStrict CookieSameSite = "Strict"
)

// CookieTemplate describes the attributes of the session cookie. The name
// may contain the placeholder {app} which is replaced by the app name.
type CookieTemplate struct {
	Name     string         `yaml:"name" default:"{app}.sid"`
	MaxAge   int            `yaml:"maxAge"`
	Path     string         `yaml:"path" default:"/"`
	Domain   string         `yaml:"domain"`
	Secure   bool           `yaml:"secure"`
	HTTPOnly bool           `yaml:"httpOnly" default:"true"`
	SameSite CookieSameSite `yaml:"sameSite" default:"Lax"`
}

// ForApp resolves the name placeholder and fills in missing attributes.
func (ct CookieTemplate) ForApp(appName string) CookieTemplate {
	if ct.Name == "" {
		ct.Name = "{app}.sid"
	}
	ct.Name = strings.ReplaceAll(ct.Name, "{app}", appName)

	if ct.Path == "" {
		ct.Path = "/"
	}
	if ct.SameSite == "" {
		ct.SameSite = CookieSameSiteLax
	}

	return ct
}

func (ct *CookieTemplate) ToCookie(value string) *http.Cookie {
	var sameSite http.SameSite
	switch ct.SameSite {
	case CookieSameSiteNone:
		sameSite = http.SameSiteNoneMode
	case CookieSameSiteLax:
		sameSite = http.SameSiteLaxMode
	case CookieSameSiteStrict:
		sameSite = http.SameSiteStrictMode
	}

	return &http.Cookie{
		Name:     ct.Name,
		Value:    value,
		MaxAge:   ct.MaxAge,
		Path:     ct.Path,
		Domain:   ct.Domain,
		Secure:   ct.Secure,
		HttpOnly: ct.HTTPOnly,
		SameSite: sameSite,
	}
}

// Expired returns a cookie that makes the user agent drop the session cookie.
func (ct *CookieTemplate) Expired() *http.Cookie {
	c := ct.ToCookie("")
	c.MaxAge = -1

	return c
}
