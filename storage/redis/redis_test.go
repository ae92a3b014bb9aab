package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/agentroute/core"
)

func TestStoreImplementsConversationStore(t *testing.T) {
	assert.Implements(t, (*core.ConversationStore)(nil), NewStore(nil))
}

func TestNewStoreDefaults(t *testing.T) {
	store := NewStore(nil)
	assert.Equal(t, "agentroute:chat", store.opts.KeyPrefix)
	assert.Equal(t, time.Duration(0), store.opts.TTL)
}

func TestNewStoreOptions(t *testing.T) {
	store := NewStore(nil, func(o *Options) {
		o.KeyPrefix = "custom"
		o.TTL = time.Hour
	})
	assert.Equal(t, "custom", store.opts.KeyPrefix)
	assert.Equal(t, time.Hour, store.opts.TTL)
}

func TestRedisKeyLayout(t *testing.T) {
	store := NewStore(nil)
	key := core.ConversationKey{UserID: "u1", SessionID: "s1", AgentID: "a1"}
	assert.Equal(t, "agentroute:chat:u1:s1:a1", store.redisKey(key))
}
