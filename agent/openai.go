package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/hupe1980/agentroute/core"
	"github.com/hupe1980/agentroute/internal/util"
	"github.com/hupe1980/agentroute/tool"
)

// aggCall aggregates partial tool call streaming deltas (id, name,
// arguments) allowing reconstruction of complete tool-use parts when the
// finish reason is emitted.
type aggCall struct{ id, name, args string }

// OpenAIOptions configures an OpenAIAgent on top of the shared Options.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type OpenAIOptions struct {
	Options
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// OpenAIAgent answers requests through the OpenAI Chat Completions API,
// supporting streaming and tool use.
type OpenAIAgent struct {
	*BaseAgent
	client *openai.Client
	opts   OpenAIOptions
}

var (
	_ core.Agent              = (*OpenAIAgent)(nil)
	_ core.PromptConfigurable = (*OpenAIAgent)(nil)
)

// NewOpenAIAgent creates an agent backed by a fresh OpenAI client
// (credentials from the environment).
func NewOpenAIAgent(name, description string, optFns ...func(o *OpenAIOptions)) *OpenAIAgent {
	client := openai.NewClient()
	return NewOpenAIAgentFromClient(name, description, &client, optFns...)
}

// NewOpenAIAgentFromClient creates an agent from an existing client.
func NewOpenAIAgentFromClient(name, description string, client *openai.Client, optFns ...func(o *OpenAIOptions)) *OpenAIAgent {
	opts := OpenAIOptions{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &OpenAIAgent{
		BaseAgent: NewBaseAgent(name, description, opts.Options),
		client:    client,
		opts:      opts,
	}
}

// Process implements core.Agent.
func (a *OpenAIAgent) Process(ctx context.Context, req core.Request) (<-chan core.Chunk, <-chan error) {
	out := make(chan core.Chunk, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		system := a.resolveSystemPrompt(ctx, req.InputText)
		params := a.buildParams(buildOpenAIMessages(system, req.History))

		if req.Stream && a.StreamingEnabled() {
			a.handleStreaming(ctx, params, out, errCh)
			return
		}
		a.handleNonStreaming(ctx, params, out, errCh)
	}()

	return out, errCh
}

// buildParams assembles the request parameters including tool definitions.
func (a *OpenAIAgent) buildParams(messages []openai.ChatCompletionMessageParamUnion) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               a.opts.Model,
		Temperature:         openai.Float(a.opts.Temperature),
		MaxCompletionTokens: openai.Int(a.opts.MaxCompletionTokens),
	}
	tc := a.ToolConfig()
	if tc == nil || len(tc.Tools) == 0 {
		return params
	}
	tools := make([]openai.ChatCompletionToolParam, len(tc.Tools))
	for i, t := range tc.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  t.InputSchema,
			},
		}
	}
	params.Tools = tools
	return params
}

// buildOpenAIMessages converts history into chat messages. Tool results
// become role "tool" messages referencing their tool_call_id; assistant
// tool uses become tool call entries.
func buildOpenAIMessages(system string, history []core.Message) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	for _, m := range history {
		if m.Role == core.RoleAssistant {
			messages = append(messages, assistantMessage(m))
			continue
		}
		// User turn: tool results map to tool messages, text to a user message.
		text := m.Text()
		for _, p := range m.Parts {
			if tr, ok := p.(core.ToolResultPart); ok {
				messages = append(messages, openai.ToolMessage(tr.Content, tr.ToolUseID))
			}
		}
		if text != "" {
			messages = append(messages, openai.UserMessage(text))
		}
	}
	return messages
}

func assistantMessage(m core.Message) openai.ChatCompletionMessageParamUnion {
	uses := m.ToolUses()
	if len(uses) == 0 {
		return openai.AssistantMessage(m.Text())
	}
	toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(uses))
	for i, tu := range uses {
		toolCalls[i] = openai.ChatCompletionMessageToolCallParam{
			ID:   tu.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tu.Name,
				Arguments: tool.MarshalInput(tu.Input),
			},
		}
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &openai.ChatCompletionAssistantMessageParam{
		Role:      "assistant",
		ToolCalls: toolCalls,
	}}
}

func (a *OpenAIAgent) handleNonStreaming(ctx context.Context, params openai.ChatCompletionNewParams, out chan<- core.Chunk, errCh chan<- error) {
	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("openai api error: %w", err)
		return
	}
	if len(resp.Choices) == 0 {
		errCh <- fmt.Errorf("openai api returned no choices")
		return
	}

	choice := resp.Choices[0]
	var parts []core.Part
	if choice.Message.Content != "" {
		parts = append(parts, core.TextPart{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		parts = append(parts, toolUseFromCall(tc.ID, tc.Function.Name, tc.Function.Arguments))
	}

	msg := core.Message{Role: core.RoleAssistant, Parts: parts}
	select {
	case <-ctx.Done():
		errCh <- ctx.Err()
	case out <- core.Chunk{Message: &msg}:
	}
}

func (a *OpenAIAgent) handleStreaming(ctx context.Context, params openai.ChatCompletionNewParams, out chan<- core.Chunk, errCh chan<- error) {
	stream := a.client.Chat.Completions.NewStreaming(ctx, params)

	var text string
	toolAgg := map[int64]*aggCall{}
	var done bool

	for stream.Next() {
		ck := stream.Current()
		for _, ch := range ck.Choices {
			if ch.Delta.Content != "" {
				text += ch.Delta.Content
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case out <- core.Chunk{Partial: true, Delta: ch.Delta.Content}:
				}
			}
			for _, tc := range ch.Delta.ToolCalls {
				ac, ok := toolAgg[tc.Index]
				if !ok {
					ac = &aggCall{}
					toolAgg[tc.Index] = ac
				}
				if tc.ID != "" {
					ac.id = tc.ID
				}
				if tc.Function.Name != "" {
					ac.name = tc.Function.Name
				}
				ac.args += tc.Function.Arguments
			}
			if ch.FinishReason != "" {
				done = true
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("openai streaming error: %w", err)
		return
	}
	if !done && text == "" && len(toolAgg) == 0 {
		errCh <- fmt.Errorf("openai stream ended without content")
		return
	}

	var parts []core.Part
	if text != "" {
		parts = append(parts, core.TextPart{Text: text})
	}
	for _, ac := range toolAgg {
		parts = append(parts, toolUseFromCall(ac.id, ac.name, ac.args))
	}

	msg := core.Message{Role: core.RoleAssistant, Parts: parts}
	select {
	case <-ctx.Done():
		errCh <- ctx.Err()
	case out <- core.Chunk{Message: &msg}:
	}
}

// toolUseFromCall parses a JSON arguments string into a tool-use part,
// generating an id when the provider omitted one.
func toolUseFromCall(id, name, args string) core.ToolUsePart {
	if id == "" {
		id = util.NewID()
	}
	var input map[string]any
	if args != "" {
		_ = json.Unmarshal([]byte(args), &input)
	}
	return core.ToolUsePart{ID: id, Name: name, Input: input}
}
