// Package anthropic provides an LLM-backed intent classifier using the
// Anthropic Messages API. The model is forced to answer through the
// analyze_prompt tool so the selection arrives as structured output.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/agentroute/classifier"
	"github.com/hupe1980/agentroute/core"
	"github.com/hupe1980/agentroute/logging"
)

// Options configures the Anthropic classifier.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	Logger      logging.Logger
}

// Classifier selects an agent by asking a Claude model to match the input
// against the registered agent descriptions. Backend errors never
// propagate: they degrade to the first-registered agent with confidence 0.
type Classifier struct {
	client *anthropic.Client
	opts   Options
}

var _ core.Classifier = (*Classifier)(nil)

// New creates a classifier backed by a fresh Anthropic client.
func New(optFns ...func(o *Options)) *Classifier {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Classifier{client: &client, opts: opts}
}

// NewFromClient creates a classifier from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Classifier {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Classifier{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0,
		MaxTokens:   1024,
		Logger:      logging.NoOpLogger{},
	}
}

// Classify implements core.Classifier.
func (c *Classifier) Classify(ctx context.Context, input string, history []core.Message, agents []core.Agent) (core.ClassifierResult, error) {
	if len(agents) == 0 {
		return core.ClassifierResult{}, core.ErrNoAgents
	}

	userText := input
	if formatted := classifier.FormatHistory(history); formatted != "" {
		userText = fmt.Sprintf("Conversation so far:\n%s\nNew user input: %s", formatted, input)
	}

	params := anthropic.MessageNewParams{
		Model:       c.opts.Model,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: anthropic.Float(c.opts.Temperature),
		System:      []anthropic.TextBlockParam{{Text: classifier.BuildSystemPrompt(agents)}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(userText))},
		Tools: []anthropic.ToolUnionParam{{
			OfTool: &anthropic.ToolParam{
				Name:        classifier.AnalyzeToolName,
				Description: anthropic.String("Report the selected agent and confidence for the user input"),
				InputSchema: analyzeSchema(),
			},
		}},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: classifier.AnalyzeToolName},
		},
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		c.opts.Logger.Warn("anthropic classification failed, using fallback", "error", err)
		return classifier.Fallback(agents), nil
	}

	sel, ok := extractSelection(resp)
	if !ok {
		c.opts.Logger.Warn("anthropic classification returned no tool use, using fallback")
		return classifier.Fallback(agents), nil
	}

	agent, found := classifier.Resolve(agents, sel.SelectedAgent)
	if !found {
		c.opts.Logger.Warn("anthropic classification selected unknown agent, using fallback", "selected", sel.SelectedAgent)
		return classifier.Fallback(agents), nil
	}

	return core.ClassifierResult{Agent: agent, Confidence: clamp(sel.Confidence)}, nil
}

func analyzeSchema() anthropic.ToolInputSchemaParam {
	schema := classifier.AnalyzeToolSchema()
	return anthropic.ToolInputSchemaParam{
		Type:       constant.Object("object"),
		Properties: schema["properties"],
		Required:   schema["required"].([]string),
	}
}

func extractSelection(resp *anthropic.Message) (classifier.Selection, bool) {
	for _, block := range resp.Content {
		if block.Type != "tool_use" {
			continue
		}
		toolBlock := block.AsToolUse()
		raw, err := json.Marshal(toolBlock.Input)
		if err != nil {
			continue
		}
		var sel classifier.Selection
		if err := json.Unmarshal(raw, &sel); err != nil {
			continue
		}
		return sel, true
	}
	return classifier.Selection{}, false
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
