// Package sessionvalkey keeps sessions in Valkey so that several gateway
// instances can share them.
package sessionvalkey

import (
	"context"
	"errors"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/openkcm/app-gateway/internal/session"
)

type ObjectType string

const objectTypeSession ObjectType = "session"

var (
	ErrGetSession    = errors.New("getting session from store")
	ErrStoreSession  = errors.New("setting session into storage")
	ErrDeleteSession = errors.New("deleting session from store")
)

type Repository struct {
	store *store
	now   func() time.Time
}

var _ = session.Repository(&Repository{})

func NewRepository(valkeyClient valkey.Client, prefix string) *Repository {
	return &Repository{
		store: newStore(valkeyClient, prefix),
		now:   time.Now,
	}
}

func (r *Repository) LoadSession(ctx context.Context, sessionID string) (session.Session, error) {
	var s session.Session
	if err := r.store.Get(ctx, objectTypeSession, sessionID, &s); err != nil {
		return session.Session{}, errors.Join(ErrGetSession, err)
	}

	return s, nil
}

// StoreSession writes s with a time to live matching its expiry. An already
// expired session is removed instead.
func (r *Repository) StoreSession(ctx context.Context, s session.Session) error {
	duration := s.Expiry.Sub(r.now())
	if duration <= 0 {
		return r.DeleteSession(ctx, s.ID)
	}

	if err := r.store.Set(ctx, objectTypeSession, s.ID, s, duration); err != nil {
		return errors.Join(ErrStoreSession, err)
	}

	return nil
}

func (r *Repository) DeleteSession(ctx context.Context, sessionID string) error {
	if err := r.store.Destroy(ctx, objectTypeSession, sessionID); err != nil {
		return errors.Join(ErrDeleteSession, err)
	}

	return nil
}
