// Package tool implements the declarations and handler contract the
// orchestrator uses to resolve agent tool-use requests into the next
// conversational turn. Agents expose their tool surface through a Config;
// the orchestrator drives the bounded resolution loop.
package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/agentroute/core"
)

// Tool declares one callable capability exposed to the model.
type Tool struct {
	// Name is the unique tool identifier (snake_case recommended).
	Name string
	// Description tells the model when and how to use the tool.
	Description string
	// InputSchema is a JSON Schema object describing the arguments.
	InputSchema map[string]any
}

// Handler maps an assistant tool-use message plus the current
// conversation into the next user-role message carrying tool results.
// Handlers must be pure with respect to the core's state: they may call
// out to external systems but must not mutate histories themselves.
type Handler func(ctx context.Context, toolUse core.Message, history []core.Message) (core.Message, error)

// Config couples an agent's declared tools with the handler driving the
// resolution loop. Config is stateless and invoked once per tool-use
// cycle.
type Config struct {
	Tools   []Tool
	Handler Handler
	// MaxCycles caps resolution cycles for this agent; 0 selects the
	// orchestrator default. Exceeding the cap is fatal since it indicates
	// a looping handler.
	MaxCycles int
}

// CapableAgent is implemented by agents that can request tool use. The
// orchestrator discovers the capability by type assertion; agents without
// it never enter the resolution loop.
type CapableAgent interface {
	core.Agent
	ToolConfig() *Config
}

// ConfigFor returns the tool configuration of a, or nil when the agent
// has none.
func ConfigFor(a core.Agent) *Config {
	if ca, ok := a.(CapableAgent); ok {
		return ca.ToolConfig()
	}
	return nil
}

// Result builds the user-role message carrying a single tool result.
func Result(toolUseID, content string, isError bool) core.Message {
	return core.Message{
		Role:  core.RoleUser,
		Parts: []core.Part{core.ToolResultPart{ToolUseID: toolUseID, Content: content, IsError: isError}},
	}
}

// Results builds a user-role message from multiple tool-result parts,
// preserving order. Useful when a single assistant turn requested several
// tools.
func Results(parts ...core.ToolResultPart) core.Message {
	msg := core.Message{Role: core.RoleUser, Parts: make([]core.Part, 0, len(parts))}
	for _, p := range parts {
		msg.Parts = append(msg.Parts, p)
	}
	return msg
}

// SimpleHandler adapts a per-tool function table into a Handler. Each
// tool-use part in the assistant message is dispatched to its function;
// unknown tools produce error results instead of failing the turn.
func SimpleHandler(fns map[string]func(ctx context.Context, input map[string]any) (string, error)) Handler {
	return func(ctx context.Context, toolUse core.Message, _ []core.Message) (core.Message, error) {
		var parts []core.ToolResultPart
		for _, tu := range toolUse.ToolUses() {
			fn, ok := fns[tu.Name]
			if !ok {
				parts = append(parts, core.ToolResultPart{ToolUseID: tu.ID, Content: fmt.Sprintf("unknown tool %q", tu.Name), IsError: true})
				continue
			}
			out, err := fn(ctx, tu.Input)
			if err != nil {
				parts = append(parts, core.ToolResultPart{ToolUseID: tu.ID, Content: err.Error(), IsError: true})
				continue
			}
			parts = append(parts, core.ToolResultPart{ToolUseID: tu.ID, Content: out, IsError: false})
		}
		return Results(parts...), nil
	}
}

// MarshalInput serializes tool arguments for providers that exchange
// arguments as JSON strings.
func MarshalInput(input map[string]any) string {
	if len(input) == 0 {
		return "{}"
	}
	b, err := json.Marshal(input)
	if err != nil {
		return "{}"
	}
	return string(b)
}
