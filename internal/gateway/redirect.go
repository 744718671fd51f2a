package gateway

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

const (
	callbackPath = "/auth/callback"
	logoutPath   = "/auth/logout"
)

// externalBase returns {scheme}://{host}:{port} as seen by the user agent.
// The port is always the configured one.
func (g *gateway) externalBase(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host

	if g.trustForwardedHeaders {
		if proto := firstValue(r.Header.Get("X-Forwarded-Proto")); proto != "" {
			scheme = strings.ToLower(proto)
		}
		if fwdHost := firstValue(r.Header.Get("X-Forwarded-Host")); fwdHost != "" {
			host = fwdHost
		}
	}

	return scheme + "://" + net.JoinHostPort(hostname(host), strconv.Itoa(g.port))
}

func (g *gateway) callbackURI(r *http.Request) string {
	return g.externalBase(r) + callbackPath
}

func (g *gateway) appRoot() string {
	return "/" + g.appName + "/"
}

func hostname(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}

	return strings.Trim(hostport, "[]")
}

func firstValue(header string) string {
	v, _, _ := strings.Cut(header, ",")
	return strings.TrimSpace(v)
}
