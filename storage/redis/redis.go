// Package redis provides a ConversationStore backed by a Redis list per
// conversation key, suitable for sharing session state across processes.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hupe1980/agentroute/core"
)

// Options configures the Redis store.
type Options struct {
	// KeyPrefix namespaces conversation keys (default "agentroute:chat").
	KeyPrefix string
	// TTL expires idle conversations; 0 keeps them forever.
	TTL time.Duration
}

// Store is a Redis-backed ConversationStore. Each conversation key maps
// to a list of JSON encoded messages in append order.
type Store struct {
	client goredis.UniversalClient
	opts   Options
}

var _ core.ConversationStore = (*Store)(nil)

// NewStore wraps an existing Redis client.
func NewStore(client goredis.UniversalClient, optFns ...func(o *Options)) *Store {
	opts := Options{KeyPrefix: "agentroute:chat"}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{client: client, opts: opts}
}

func (s *Store) redisKey(key core.ConversationKey) string {
	return strings.Join([]string{s.opts.KeyPrefix, key.UserID, key.SessionID, key.AgentID}, ":")
}

// Get returns the history for key in append order.
func (s *Store) Get(ctx context.Context, key core.ConversationKey) ([]core.Message, error) {
	raw, err := s.client.LRange(ctx, s.redisKey(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read conversation: %w", err)
	}
	history := make([]core.Message, 0, len(raw))
	for _, item := range raw {
		var msg core.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode stored message: %w", err)
		}
		history = append(history, msg)
	}
	return history, nil
}

// Append pushes messages onto the key's list in order.
func (s *Store) Append(ctx context.Context, key core.ConversationKey, msgs ...core.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		raw, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		values = append(values, string(raw))
	}

	rk := s.redisKey(key)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, rk, values...)
	if s.opts.TTL > 0 {
		pipe.Expire(ctx, rk, s.opts.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append conversation: %w", err)
	}
	return nil
}

// Trim keeps only the newest max messages for key.
func (s *Store) Trim(ctx context.Context, key core.ConversationKey, max int) error {
	if max <= 0 {
		return nil
	}
	if err := s.client.LTrim(ctx, s.redisKey(key), int64(-max), -1).Err(); err != nil {
		return fmt.Errorf("trim conversation: %w", err)
	}
	return nil
}
