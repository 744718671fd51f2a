package session

import (
	"context"
	"errors"
)

// Using an unexported type prevents key collisions from other packages.
type handleKey string

const sessionHandleKey handleKey = "session-handle"

var ErrNoSession = errors.New("session not found in context")

// NewContext returns a copy of ctx carrying the session handle.
func NewContext(ctx context.Context, h *Handle) context.Context {
	return context.WithValue(ctx, sessionHandleKey, h)
}

// FromContext retrieves the session handle installed by Manager.Middleware.
func FromContext(ctx context.Context) (*Handle, error) {
	h, ok := ctx.Value(sessionHandleKey).(*Handle)
	if !ok || h == nil {
		return nil, ErrNoSession
	}

	return h, nil
}
