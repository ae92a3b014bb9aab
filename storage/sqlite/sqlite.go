// Package sqlite provides a durable ConversationStore backed by SQLite
// through the cgo-free modernc.org driver. Each message is stored as one
// row keyed by (user, session, agent, seq); append order is the seq
// order.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/agentroute/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	user_id    TEXT    NOT NULL,
	session_id TEXT    NOT NULL,
	agent_id   TEXT    NOT NULL,
	seq        INTEGER NOT NULL,
	message    TEXT    NOT NULL,
	PRIMARY KEY (user_id, session_id, agent_id, seq)
);`

// Store is a SQLite-backed ConversationStore.
type Store struct {
	db *sql.DB
}

var _ core.ConversationStore = (*Store)(nil)

// Open opens (creating if needed) a store at the given DSN, e.g. a file
// path or "file::memory:?cache=shared" for tests.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return NewStore(db)
}

// NewStore wraps an existing database handle, creating the schema if it
// does not exist yet.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create conversations table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the history for key ordered by append sequence.
func (s *Store) Get(ctx context.Context, key core.ConversationKey) ([]core.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message FROM conversations
		 WHERE user_id = ? AND session_id = ? AND agent_id = ?
		 ORDER BY seq`,
		key.UserID, key.SessionID, key.AgentID)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	var history []core.Message
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		var msg core.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("decode stored message: %w", err)
		}
		history = append(history, msg)
	}
	return history, rows.Err()
}

// Append adds messages in order, continuing the key's sequence inside a
// single transaction.
func (s *Store) Append(ctx context.Context, key core.ConversationKey, msgs ...core.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM conversations
		 WHERE user_id = ? AND session_id = ? AND agent_id = ?`,
		key.UserID, key.SessionID, key.AgentID).Scan(&seq); err != nil {
		return fmt.Errorf("read sequence: %w", err)
	}

	for _, msg := range msgs {
		raw, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		seq++
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversations (user_id, session_id, agent_id, seq, message)
			 VALUES (?, ?, ?, ?, ?)`,
			key.UserID, key.SessionID, key.AgentID, seq, string(raw)); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return tx.Commit()
}

// Trim deletes the oldest messages so at most max remain for key.
func (s *Store) Trim(ctx context.Context, key core.ConversationKey, max int) error {
	if max <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations
		 WHERE user_id = ? AND session_id = ? AND agent_id = ?
		 AND seq NOT IN (
			SELECT seq FROM conversations
			WHERE user_id = ? AND session_id = ? AND agent_id = ?
			ORDER BY seq DESC LIMIT ?
		 )`,
		key.UserID, key.SessionID, key.AgentID,
		key.UserID, key.SessionID, key.AgentID, max)
	if err != nil {
		return fmt.Errorf("trim conversation: %w", err)
	}
	return nil
}
