// Package storage provides conversation store implementations. The
// in-memory store here is the default; the sqlite and redis subpackages
// satisfy the same core.ConversationStore contract against durable
// backends.
package storage

import (
	"context"
	"sync"

	"github.com/hupe1980/agentroute/core"
)

// InMemoryStore is a volatile ConversationStore keeping histories in a
// process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo services. Returned histories are copies so
// callers can extend them without mutating internal state.
type InMemoryStore struct {
	mu    sync.RWMutex
	chats map[core.ConversationKey][]core.Message
}

var _ core.ConversationStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory conversation store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{chats: make(map[core.ConversationKey][]core.Message)}
}

// Get returns a copy of the history for key, empty for unknown keys.
func (s *InMemoryStore) Get(_ context.Context, key core.ConversationKey) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.chats[key]
	out := make([]core.Message, len(history))
	copy(out, history)
	return out, nil
}

// Append adds messages to the history for key in order.
func (s *InMemoryStore) Append(_ context.Context, key core.ConversationKey, msgs ...core.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats[key] = append(s.chats[key], msgs...)
	return nil
}

// Trim drops the oldest messages so at most max remain. A max of zero or
// less is a no-op. Using an even max preserves (user, assistant) pairing.
func (s *InMemoryStore) Trim(_ context.Context, key core.ConversationKey, max int) error {
	if max <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.chats[key]
	if len(history) <= max {
		return nil
	}
	trimmed := make([]core.Message, max)
	copy(trimmed, history[len(history)-max:])
	s.chats[key] = trimmed
	return nil
}
