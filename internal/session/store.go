package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/comigor/duckling-go/internal/kv"
	"github.com/comigor/duckling-go/internal/logger"
)

// Store persists one Session per user under "session:<userID>".
type Store struct {
	kv kv.Store
}

func NewStore(store kv.Store) *Store {
	return &Store{kv: store}
}

func key(userID string) string { return "session:" + userID }

// Load returns the user's session; missing or corrupt records are idle.
func (s *Store) Load(ctx context.Context, userID string) (*Session, error) {
	b, ok, err := s.kv.Get(ctx, key(userID))
	if err != nil {
		return nil, fmt.Errorf("load session for %s: %w", userID, err)
	}
	if !ok {
		return Idle(), nil
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		logger.L.Warn("discarding corrupt session", "user", userID, "error", err)
		return Idle(), nil
	}
	if sess.State != StateDrafting {
		return Idle(), nil
	}
	return &sess, nil
}

func (s *Store) Save(ctx context.Context, userID string, sess *Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.kv.Put(ctx, key(userID), b); err != nil {
		return fmt.Errorf("save session for %s: %w", userID, err)
	}
	return nil
}
