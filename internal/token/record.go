// Package token holds the OAuth2 token pair kept in a user session and the
// operations that obtain and renew it against the authorization server.
package token

import (
	"log/slog"
	"time"

	"golang.org/x/oauth2"
)

// printablePrefix is how many characters of a token survive in log output.
const printablePrefix = 7

// Record is the token pair stored in the session. It is replaced as a whole
// on refresh and never mutated in place.
type Record struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// FromOAuth2 converts a token returned by the authorization server.
func FromOAuth2(t *oauth2.Token) Record {
	return Record{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.Expiry,
	}
}

// ExpiredAt reports whether the access token is expired at the given time.
// A record without an expiry never expires.
func (r Record) ExpiredAt(now time.Time) bool {
	if r.ExpiresAt.IsZero() {
		return false
	}

	return !now.Before(r.ExpiresAt)
}

// Expired reports whether the access token is expired now.
func (r Record) Expired() bool {
	return r.ExpiredAt(time.Now())
}

// LogValue implements slog.LogValuer so tokens never reach the logs in full.
func (r Record) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("access_token", truncate(r.AccessToken)),
		slog.String("refresh_token", truncate(r.RefreshToken)),
		slog.Time("expires_at", r.ExpiresAt),
	)
}

func truncate(s string) string {
	if len(s) <= printablePrefix {
		return s
	}

	return s[:printablePrefix] + "…"
}
