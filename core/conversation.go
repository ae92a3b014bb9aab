package core

import "context"

// ConversationKey identifies one agent's history within a user session.
// Switching agents mid-session addresses a different key, so each agent
// accumulates its own turns; this isolation is deliberate.
type ConversationKey struct {
	UserID    string
	SessionID string
	AgentID   string
}

// ConversationStore persists ordered per-key message histories.
//
// Contract:
//   - Append order is preserved; the store never reorders or deduplicates
//   - The orchestrator is the single writer per key; reads may be concurrent
//   - Get returns a copy safe for the caller to extend
//   - Trim drops the oldest messages so at most max remain (max <= 0 is a no-op)
//
// Implementations backed by external systems (see storage/sqlite,
// storage/redis) must satisfy the same semantics; their on-disk layout is
// their own concern.
type ConversationStore interface {
	Get(ctx context.Context, key ConversationKey) ([]Message, error)
	Append(ctx context.Context, key ConversationKey, msgs ...Message) error
	Trim(ctx context.Context, key ConversationKey, max int) error
}
