// Package openai provides an LLM-backed intent classifier using the
// OpenAI Chat Completions API. The model is required to answer through
// the analyze_prompt tool so the selection arrives as structured output.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/hupe1980/agentroute/classifier"
	"github.com/hupe1980/agentroute/core"
	"github.com/hupe1980/agentroute/logging"
)

// Options configures the OpenAI classifier.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int64
	Logger      logging.Logger
}

// Classifier selects an agent by asking an OpenAI model to match the
// input against the registered agent descriptions. Backend errors never
// propagate: they degrade to the first-registered agent with confidence 0.
type Classifier struct {
	client *openai.Client
	opts   Options
}

var _ core.Classifier = (*Classifier)(nil)

// New creates a classifier backed by a fresh OpenAI client (credentials
// from the environment).
func New(optFns ...func(o *Options)) *Classifier {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a classifier from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Classifier {
	opts := Options{
		Model:       openai.ChatModelGPT4oMini,
		Temperature: 0,
		MaxTokens:   1024,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Classifier{client: client, opts: opts}
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

	params := openai.ChatCompletionNewParams{
		Model:               c.opts.Model,
		Temperature:         openai.Float(c.opts.Temperature),
		MaxCompletionTokens: openai.Int(c.opts.MaxTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(classifier.BuildSystemPrompt(agents)),
			openai.UserMessage(userText),
		},
		Tools: []openai.ChatCompletionToolParam{{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        classifier.AnalyzeToolName,
				Description: openai.String("Report the selected agent and confidence for the user input"),
				Parameters:  classifier.AnalyzeToolSchema(),
			},
		}},
		ToolChoice: openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String("required"),
		},
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		c.opts.Logger.Warn("openai classification failed, using fallback", "error", err)
		return classifier.Fallback(agents), nil
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		c.opts.Logger.Warn("openai classification returned no tool call, using fallback")
		return classifier.Fallback(agents), nil
	}

	var sel classifier.Selection
	args := resp.Choices[0].Message.ToolCalls[0].Function.Arguments
	if err := json.Unmarshal([]byte(args), &sel); err != nil {
		c.opts.Logger.Warn("openai classification returned malformed arguments, using fallback", "error", err)
		return classifier.Fallback(agents), nil
	}

	agent, found := classifier.Resolve(agents, sel.SelectedAgent)
	if !found {
		c.opts.Logger.Warn("openai classification selected unknown agent, using fallback", "selected", sel.SelectedAgent)
		return classifier.Fallback(agents), nil
	}

	confidence := sel.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return core.ClassifierResult{Agent: agent, Confidence: confidence}, nil
}
