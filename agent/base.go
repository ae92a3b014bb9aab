package agent

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/hupe1980/agentroute/core"
	"github.com/hupe1980/agentroute/internal/util"
	"github.com/hupe1980/agentroute/logging"
	"github.com/hupe1980/agentroute/tool"
)

// promptState is the immutable snapshot swapped atomically by
// SetSystemPrompt. Invocations capture one snapshot at call start so a
// concurrent update never tears a rendered prompt.
type promptState struct {
	template  string
	variables map[string]string
	rendered  string
}

// Options configures fields shared by the built-in agents.
type Options struct {
	// ID overrides the registry identifier derived from the name.
	ID string
	// Streaming enables partial chunk emission.
	Streaming bool
	// SystemPrompt is the prompt template ({{VAR}} placeholders allowed).
	SystemPrompt string
	// PromptVariables maps placeholder names to values.
	PromptVariables map[string]string
	// Retriever supplies context text prepended to the system prompt.
	Retriever core.Retriever
	// ToolConfig declares the agent's tool surface.
	ToolConfig *tool.Config
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// BaseAgent carries identity, capability flags and the versioned system
// prompt shared by the built-in agent implementations. It implements
// everything of core.Agent except Process.
type BaseAgent struct {
	id          string
	name        string
	description string
	streaming   bool
	retriever   core.Retriever
	toolConfig  *tool.Config
	logger      logging.Logger
	prompt      atomic.Pointer[promptState]
}

// NewBaseAgent constructs the shared agent state. The registry id
// defaults to the lowercased name with spaces replaced by hyphens.
func NewBaseAgent(name, description string, opts Options) *BaseAgent {
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	b := &BaseAgent{
		id:          opts.ID,
		name:        name,
		description: description,
		streaming:   opts.Streaming,
		retriever:   opts.Retriever,
		toolConfig:  opts.ToolConfig,
		logger:      opts.Logger,
	}
	if b.id == "" {
		b.id = strings.ReplaceAll(strings.ToLower(name), " ", "-")
	}

	template := opts.SystemPrompt
	if template == "" {
		template = fmt.Sprintf("You are %s. %s Provide helpful and accurate responses based on your expertise.", name, description)
	}
	b.storePrompt(template, opts.PromptVariables)

	return b
}

// ID returns the unique registry identifier.
func (b *BaseAgent) ID() string { return b.id }

// Name returns the human-readable agent name.
func (b *BaseAgent) Name() string { return b.name }

// Description explains which requests the agent is suited for.
func (b *BaseAgent) Description() string { return b.description }

// StreamingEnabled reports whether the agent emits partial chunks.
func (b *BaseAgent) StreamingEnabled() bool { return b.streaming }

// ToolConfig returns the agent's tool configuration, nil when the agent
// has no tool surface.
func (b *BaseAgent) ToolConfig() *tool.Config { return b.toolConfig }

// Retriever returns the optional retrieval collaborator.
func (b *BaseAgent) Retriever() core.Retriever { return b.retriever }

// Logger returns the agent's logger (never nil).
func (b *BaseAgent) Logger() logging.Logger { return b.logger }

// SetSystemPrompt replaces the prompt template and variables atomically.
// The new prompt takes effect on the next invocation; in-flight calls
// keep the snapshot captured at their start.
func (b *BaseAgent) SetSystemPrompt(template string, variables map[string]string) {
	b.storePrompt(template, variables)
}

// SystemPrompt returns the currently rendered system prompt.
func (b *BaseAgent) SystemPrompt() string {
	return b.prompt.Load().rendered
}

// PromptTemplate returns the raw template of the current prompt state.
func (b *BaseAgent) PromptTemplate() string {
	return b.prompt.Load().template
}

func (b *BaseAgent) storePrompt(template string, variables map[string]string) {
	vars := make(map[string]string, len(variables))
	for k, v := range variables {
		vars[k] = v
	}
	b.prompt.Store(&promptState{
		template:  template,
		variables: vars,
		rendered:  util.RenderPrompt(template, vars),
	})
}

// resolveSystemPrompt snapshots the rendered prompt and, when a retriever
// is configured, appends retrieved context for the query. Retrieval
// failure degrades to no context.
func (b *BaseAgent) resolveSystemPrompt(ctx context.Context, query string) string {
	rendered := b.SystemPrompt()
	if b.retriever == nil || query == "" {
		return rendered
	}
	snippets, err := b.retriever.Retrieve(ctx, query)
	if err != nil {
		b.logger.Warn("retrieval failed, continuing without context", "agent", b.id, "error", err)
		return rendered
	}
	if snippets == "" {
		return rendered
	}
	return rendered + "\n\nHere is the context to use to answer the user's question:\n" + snippets
}
