// Package sessionmemory keeps sessions in the memory of the process. It is
// suited for a single gateway instance.
package sessionmemory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/openkcm/app-gateway/internal/serviceerr"
	"github.com/openkcm/app-gateway/internal/session"
)

const cleanupInterval = 10 * time.Minute

type Repository struct {
	cache *cache.Cache
	now   func() time.Time
}

var _ = session.Repository(&Repository{})

func NewRepository() *Repository {
	return &Repository{
		cache: cache.New(cache.NoExpiration, cleanupInterval),
		now:   time.Now,
	}
}

func (r *Repository) LoadSession(_ context.Context, sessionID string) (session.Session, error) {
	v, ok := r.cache.Get(sessionID)
	if !ok {
		return session.Session{}, serviceerr.ErrNotFound
	}

	b, ok := v.([]byte)
	if !ok {
		return session.Session{}, fmt.Errorf("unexpected cache entry of type %T", v)
	}

	var s session.Session
	if err := json.Unmarshal(b, &s); err != nil {
		return session.Session{}, fmt.Errorf("unmarshaling session: %w", err)
	}

	return s, nil
}

// StoreSession keeps an encoded copy of s until its expiry.
func (r *Repository) StoreSession(_ context.Context, s session.Session) error {
	ttl := s.Expiry.Sub(r.now())
	if ttl <= 0 {
		r.cache.Delete(s.ID)
		return nil
	}

	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	r.cache.Set(s.ID, b, ttl)

	return nil
}

func (r *Repository) DeleteSession(_ context.Context, sessionID string) error {
	r.cache.Delete(sessionID)
	return nil
}

// Len returns the number of stored sessions, expired ones included until
// the next cleanup.
func (r *Repository) Len() int {
	return r.cache.ItemCount()
}
