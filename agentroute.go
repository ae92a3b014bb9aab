// Package agentroute routes natural-language requests to specialized
// agents. An Orchestrator owns the conversation store, asks a Classifier
// to select an agent from the input text plus prior turns, dispatches to
// the selected agent (resolving tool use in a bounded loop) and commits
// the finished turn back to the per (user, session, agent) history.
// Most applications interact with this package by:
//  1. Creating an Orchestrator via New() (optionally overriding the
//     classifier, store and logger)
//  2. Registering one or more agents (Anthropic, OpenAI or custom
//     implementations of core.Agent)
//  3. Routing requests with Route (streaming aware) or RouteSync
//
// All defaults are safe for local development and testing; production
// deployments typically supply a durable conversation store and a
// structured logger.
package agentroute

import (
	"sync"

	"github.com/hupe1980/agentroute/classifier"
	"github.com/hupe1980/agentroute/core"
	"github.com/hupe1980/agentroute/internal/util"
	"github.com/hupe1980/agentroute/logging"
	"github.com/hupe1980/agentroute/storage"
)

// Defaults applied by New. The threshold and cycle cap are deliberately
// explicit configuration with documented defaults rather than inferred
// values.
const (
	// DefaultConfidenceThreshold is the minimum classifier confidence
	// below which the default-agent policy applies.
	DefaultConfidenceThreshold = 0.5
	// DefaultMaxToolCycles caps tool-resolution cycles per turn.
	DefaultMaxToolCycles = 5
	// DefaultChunkBufferSize is the channel buffer for streamed chunks.
	DefaultChunkBufferSize = 64
)

// Options configures an Orchestrator.
type Options struct {
	// Classifier selects the agent per request. Defaults to a keyword
	// classifier with no keywords, which always falls back to the default
	// agent.
	Classifier core.Classifier
	// Store holds per-key conversation histories (default in-memory).
	Store core.ConversationStore
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
	// ConfidenceThreshold below which the default-agent policy applies.
	ConfidenceThreshold float64
	// FallbackToDefault dispatches to the default agent when confidence
	// is below the threshold. When false, such requests fail with
	// LowConfidenceError carrying the advisory result.
	FallbackToDefault bool
	// MaxToolCycles caps tool-resolution cycles per turn; agents may
	// override it per tool.Config.
	MaxToolCycles int
	// MaxHistoryMessages bounds each key's committed history; 0 keeps it
	// unbounded. An even value preserves (user, assistant) pairing.
	MaxHistoryMessages int
	// ChunkBufferSize buffers streamed chunks between agent and caller.
	ChunkBufferSize int
}

// Orchestrator is the top-level coordinator. Public methods are safe for
// concurrent use; requests against the same (user, session, agent) key
// serialize, requests against different keys never contend.
type Orchestrator struct {
	classifierStrategy core.Classifier
	store              core.ConversationStore
	logger             logging.Logger
	threshold          float64
	fallbackToDefault  bool
	maxToolCycles      int
	maxHistory         int
	chunkBuffer        int

	mu        sync.RWMutex
	agents    map[string]core.Agent
	order     []string          // registration order, first entry is the conventional default
	defaultID string            // explicit default override, empty selects order[0]
	lastAgent map[string]string // (user, session) -> most recently used agent id

	keys *util.KeyedMutex
}

// New creates an Orchestrator with optional overrides. Any unset service
// is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Classifier:          classifier.NewKeywordClassifier(nil),
		Store:               storage.NewInMemoryStore(),
		Logger:              logging.NoOpLogger{},
		ConfidenceThreshold: DefaultConfidenceThreshold,
		FallbackToDefault:   true,
		MaxToolCycles:       DefaultMaxToolCycles,
		ChunkBufferSize:     DefaultChunkBufferSize,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxToolCycles <= 0 {
		opts.MaxToolCycles = DefaultMaxToolCycles
	}
	if opts.ChunkBufferSize <= 0 {
		opts.ChunkBufferSize = DefaultChunkBufferSize
	}

	return &Orchestrator{
		classifierStrategy: opts.Classifier,
		store:              opts.Store,
		logger:             opts.Logger,
		threshold:          opts.ConfidenceThreshold,
		fallbackToDefault:  opts.FallbackToDefault,
		maxToolCycles:      opts.MaxToolCycles,
		maxHistory:         opts.MaxHistoryMessages,
		chunkBuffer:        opts.ChunkBufferSize,
		agents:             make(map[string]core.Agent),
		lastAgent:          make(map[string]string),
		keys:               util.NewKeyedMutex(),
	}
}

// AddAgent registers an agent. Registration is an administrative
// operation, not part of the hot path; the first agent added becomes the
// default unless SetDefaultAgent overrides it.
func (o *Orchestrator) AddAgent(a core.Agent) error {
	if a == nil || a.ID() == "" {
		return core.ErrInvalidInput
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.agents[a.ID()]; exists {
		return &core.DuplicateAgentError{ID: a.ID()}
	}
	o.agents[a.ID()] = a
	o.order = append(o.order, a.ID())
	return nil
}

// SetDefaultAgent overrides which agent receives below-threshold
// requests. The id must already be registered.
func (o *Orchestrator) SetDefaultAgent(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.agents[id]; !exists {
		return core.ErrInvalidInput
	}
	o.defaultID = id
	return nil
}

// SetSystemPrompt replaces an agent's prompt template and variables
// atomically. The change takes effect on the agent's next invocation, not
// retroactively on in-flight calls.
func (o *Orchestrator) SetSystemPrompt(agentID, template string, variables map[string]string) error {
	o.mu.RLock()
	a, exists := o.agents[agentID]
	o.mu.RUnlock()
	if !exists {
		return core.ErrInvalidInput
	}
	pc, ok := a.(core.PromptConfigurable)
	if !ok {
		return core.ErrInvalidInput
	}
	pc.SetSystemPrompt(template, variables)
	return nil
}

// Agents returns the registered agents in registration order.
func (o *Orchestrator) Agents() []core.Agent {
	o.mu.RLock()
	defer o.mu.RUnlock()
	agents := make([]core.Agent, len(o.order))
	for i, id := range o.order {
		agents[i] = o.agents[id]
	}
	return agents
}

// DefaultAgent returns the effective default agent, nil when the registry
// is empty.
func (o *Orchestrator) DefaultAgent() core.Agent {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.defaultAgentLocked()
}

// defaultAgentLocked resolves the default agent; caller holds o.mu.
func (o *Orchestrator) defaultAgentLocked() core.Agent {
	if o.defaultID != "" {
		return o.agents[o.defaultID]
	}
	if len(o.order) > 0 {
		return o.agents[o.order[0]]
	}
	return nil
}
