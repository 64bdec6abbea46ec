// Package history keeps the most recent turns of each user's conversation.
// Each user's history is one JSON array stored under "chat:<userID>".
package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/comigor/duckling-go/internal/kv"
	"github.com/comigor/duckling-go/internal/logger"
)

// DefaultLimit is the number of messages kept per user when no limit is given.
const DefaultLimit = 10

// Store appends to and loads capped per-user histories. It does not lock across
// calls; concurrent appends for one user are last-writer-wins.
type Store struct {
	kv    kv.Store
	limit int
}

func NewStore(store kv.Store, limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{kv: store, limit: limit}
}

func key(userID string) string { return "chat:" + userID }

// Append adds msg to the tail of userID's history, keeps the most recent
// messages up to the limit and persists before returning.
func (s *Store) Append(ctx context.Context, userID string, msg Message) error {
	msgs, err := s.Load(ctx, userID)
	if err != nil {
		return err
	}
	msgs = append(msgs, msg)
	if len(msgs) > s.limit {
		msgs = msgs[len(msgs)-s.limit:]
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := s.kv.Put(ctx, key(userID), b); err != nil {
		return fmt.Errorf("save history for %s: %w", userID, err)
	}
	return nil
}

// Load returns userID's messages in chronological order. A missing or
// undecodable record is an empty history.
func (s *Store) Load(ctx context.Context, userID string) ([]Message, error) {
	b, ok, err := s.kv.Get(ctx, key(userID))
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", userID, err)
	}
	if !ok {
		return []Message{}, nil
	}
	var msgs []Message
	if err := json.Unmarshal(b, &msgs); err != nil {
		logger.L.Warn("discarding corrupt history", "user", userID, "error", err)
		return []Message{}, nil
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}
