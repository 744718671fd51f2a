package session

import (
	"time"

	"github.com/openkcm/app-gateway/internal/token"
)

// Session is the server side state bound to a session cookie. A session
// without a token is anonymous and is never persisted.
type Session struct {
	ID     string        `json:"id"`
	Token  *token.Record `json:"token,omitempty"`
	Expiry time.Time     `json:"expiry"`
}
