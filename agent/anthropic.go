package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/agentroute/core"
	"github.com/hupe1980/agentroute/tool"
)

// AnthropicOptions configures an AnthropicAgent (model id, sampling,
// API key) on top of the shared agent Options.
type AnthropicOptions struct {
	Options
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// AnthropicAgent answers requests through the Anthropic Messages API,
// supporting streaming and tool use.
type AnthropicAgent struct {
	*BaseAgent
	client *anthropic.Client
	opts   AnthropicOptions
}

// compile-time capability checks
var (
	_ core.Agent              = (*AnthropicAgent)(nil)
	_ core.PromptConfigurable = (*AnthropicAgent)(nil)
)

// NewAnthropicAgent creates an agent backed by a fresh Anthropic client.
func NewAnthropicAgent(name, description string, optFns ...func(o *AnthropicOptions)) *AnthropicAgent {
	opts := defaultAnthropicOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return newAnthropicAgent(name, description, &client, opts)
}

// NewAnthropicAgentFromClient creates an agent from an existing client.
func NewAnthropicAgentFromClient(name, description string, client *anthropic.Client, optFns ...func(o *AnthropicOptions)) *AnthropicAgent {
	opts := defaultAnthropicOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return newAnthropicAgent(name, description, client, opts)
}

func defaultAnthropicOptions() AnthropicOptions {
	return AnthropicOptions{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

func newAnthropicAgent(name, description string, client *anthropic.Client, opts AnthropicOptions) *AnthropicAgent {
	return &AnthropicAgent{
		BaseAgent: NewBaseAgent(name, description, opts.Options),
		client:    client,
		opts:      opts,
	}
}

// Process implements core.Agent.
func (a *AnthropicAgent) Process(ctx context.Context, req core.Request) (<-chan core.Chunk, <-chan error) {
	out := make(chan core.Chunk, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := anthropic.MessageNewParams{
			Model:       a.opts.Model,
			Messages:    a.buildMessages(req.History),
			MaxTokens:   a.opts.MaxTokens,
			Temperature: anthropic.Float(a.opts.Temperature),
		}

		if system := a.resolveSystemPrompt(ctx, req.InputText); system != "" {
			params.System = []anthropic.TextBlockParam{{Text: system}}
		}

		if tc := a.ToolConfig(); tc != nil && len(tc.Tools) > 0 {
			params.Tools = buildAnthropicTools(tc)
		}

		if req.Stream && a.StreamingEnabled() {
			a.handleStreaming(ctx, params, out, errCh)
			return
		}
		a.handleNonStreaming(ctx, params, out, errCh)
	}()

	return out, errCh
}

func (a *AnthropicAgent) handleNonStreaming(ctx context.Context, params anthropic.MessageNewParams, out chan<- core.Chunk, errCh chan<- error) {
	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("anthropic api error: %w", err)
		return
	}

	msg := messageFromAnthropicBlocks(resp.Content)
	select {
	case <-ctx.Done():
		errCh <- ctx.Err()
	case out <- core.Chunk{Message: &msg}:
	}
}

func (a *AnthropicAgent) handleStreaming(ctx context.Context, params anthropic.MessageNewParams, out chan<- core.Chunk, errCh chan<- error) {
	stream := a.client.Messages.NewStreaming(ctx, params)
	acc := anthropic.Message{}

	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			errCh <- fmt.Errorf("anthropic stream accumulate: %w", err)
			return
		}
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case out <- core.Chunk{Partial: true, Delta: delta.Text}:
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("anthropic streaming error: %w", err)
		return
	}

	msg := messageFromAnthropicBlocks(acc.Content)
	select {
	case <-ctx.Done():
		errCh <- ctx.Err()
	case out <- core.Chunk{Message: &msg}:
	}
}

// buildMessages converts history to the Anthropic message format. Tool
// results travel in user messages, tool uses in assistant messages, which
// maps directly onto the wire shapes.
func (a *AnthropicAgent) buildMessages(history []core.Message) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(history))
	for _, m := range history {
		var blocks []anthropic.ContentBlockParamUnion
		for _, p := range m.Parts {
			switch part := p.(type) {
			case core.TextPart:
				if part.Text != "" {
					blocks = append(blocks, anthropic.NewTextBlock(part.Text))
				}
			case core.ToolUsePart:
				blocks = append(blocks, anthropic.NewToolUseBlock(part.ID, part.Input, part.Name))
			case core.ToolResultPart:
				blocks = append(blocks, anthropic.NewToolResultBlock(part.ToolUseID, part.Content, part.IsError))
			}
		}
		if len(blocks) == 0 {
			continue
		}
		if m.Role == core.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		} else {
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		}
	}
	return messages
}

// messageFromAnthropicBlocks converts response content blocks into the
// core message shape shared by both the streaming and non-streaming path.
func messageFromAnthropicBlocks(blocks []anthropic.ContentBlockUnion) core.Message {
	var parts []core.Part
	for _, block := range blocks {
		switch block.Type {
		case "text":
			textBlock := block.AsText()
			if textBlock.Text != "" {
				parts = append(parts, core.TextPart{Text: textBlock.Text})
			}
		case "tool_use":
			toolBlock := block.AsToolUse()
			var input map[string]any
			if raw, err := json.Marshal(toolBlock.Input); err == nil {
				_ = json.Unmarshal(raw, &input)
			}
			parts = append(parts, core.ToolUsePart{ID: toolBlock.ID, Name: toolBlock.Name, Input: input})
		}
	}
	return core.Message{Role: core.RoleAssistant, Parts: parts}
}

// buildAnthropicTools converts tool declarations to the Anthropic tool
// format, lifting properties and required out of the JSON schema.
func buildAnthropicTools(tc *tool.Config) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tc.Tools))
	for i, t := range tc.Tools {
		inputSchema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
		if t.InputSchema != nil {
			if properties, exists := t.InputSchema["properties"]; exists {
				inputSchema.Properties = properties
			}
			inputSchema.Required = requiredFields(t.InputSchema)
		}
		anthropicTools[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: inputSchema,
			},
		}
	}
	return anthropicTools
}

// requiredFields extracts the required field list from a JSON schema,
// accepting both []string and the []any shape json.Unmarshal produces.
func requiredFields(schema map[string]any) []string {
	required, exists := schema["required"]
	if !exists {
		return nil
	}
	if reqSlice, ok := required.([]string); ok {
		return reqSlice
	}
	if reqInterface, ok := required.([]any); ok {
		var reqStrings []string
		for _, r := range reqInterface {
			if s, ok := r.(string); ok {
				reqStrings = append(reqStrings, s)
			}
		}
		return reqStrings
	}
	return nil
}
