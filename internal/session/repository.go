package session

import "context"

// Repository persists sessions. LoadSession returns serviceerr.ErrNotFound
// for unknown or expired sessions. Deleting an unknown session is no error.
type Repository interface {
	LoadSession(ctx context.Context, sessionID string) (Session, error)
	StoreSession(ctx context.Context, session Session) error
	DeleteSession(ctx context.Context, sessionID string) error
}
