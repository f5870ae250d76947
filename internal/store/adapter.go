package store

import (
	"context"
	"log/slog"

	"github.com/inkdesk/inkdesk/internal/provider"
)

// SessionAdapter exposes the store through the provider layer's
// synchronous SessionStore interface. Empty session ids are treated as
// absent so rows created by SaveModel alone do not fake a resumable
// session.
type SessionAdapter struct {
	store *Store
	log   *slog.Logger
}

func NewSessionAdapter(s *Store, log *slog.Logger) *SessionAdapter {
	return &SessionAdapter{store: s, log: log}
}

func (a *SessionAdapter) LoadSession(root string, kind provider.Kind) (string, bool) {
	id, err := a.store.GetSession(context.Background(), root, string(kind))
	if err != nil || id == "" {
		return "", false
	}
	return id, true
}

func (a *SessionAdapter) SaveSession(root string, kind provider.Kind, id string) error {
	return a.store.SaveSession(context.Background(), root, string(kind), id)
}

var _ provider.SessionStore = (*SessionAdapter)(nil)
