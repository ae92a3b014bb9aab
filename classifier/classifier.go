// Package classifier provides classification strategies for agent
// selection: a deterministic keyword matcher plus shared prompt and
// fallback helpers used by the LLM-backed strategies in the anthropic and
// openai subpackages. All strategies implement core.Classifier and follow
// the same degradation rule: when a strategy cannot decide, it falls back
// to the first registered agent with a low confidence rather than
// failing.
package classifier

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentroute/core"
)

// AnalyzeToolName is the tool the LLM strategies force the model to call
// so the selection arrives as structured output.
const AnalyzeToolName = "analyze_prompt"

// AnalyzeToolSchema is the input schema of the selection tool.
func AnalyzeToolSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"userinput": map[string]any{
				"type":        "string",
				"description": "The original user input",
			},
			"selected_agent": map[string]any{
				"type":        "string",
				"description": "The id of the selected agent",
			},
			"confidence": map[string]any{
				"type":        "number",
				"description": "Confidence level between 0 and 1",
			},
		},
		"required": []string{"userinput", "selected_agent", "confidence"},
	}
}

// Selection is the structured output of the selection tool.
type Selection struct {
	UserInput     string  `json:"userinput"`
	SelectedAgent string  `json:"selected_agent"`
	Confidence    float64 `json:"confidence"`
}

// BuildSystemPrompt renders the agent roster into the instruction the LLM
// strategies classify against.
func BuildSystemPrompt(agents []core.Agent) string {
	var sb strings.Builder
	sb.WriteString("You are AgentMatcher, an intelligent assistant that routes user requests to the most suitable specialized agent.\n")
	sb.WriteString("Analyze the user's input, taking the conversation history into account, and select exactly one agent from the list below.\n")
	sb.WriteString("Report your selection through the analyze_prompt tool. Use a low confidence when none of the agents clearly fits.\n\n")
	sb.WriteString("<agents>\n")
	for _, a := range agents {
		fmt.Fprintf(&sb, "%s: %s\n", a.ID(), a.Description())
	}
	sb.WriteString("</agents>")
	return sb.String()
}

// FormatHistory flattens prior turns into the text block the LLM
// strategies attach to the classification input.
func FormatHistory(history []core.Message) string {
	if len(history) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, m := range history {
		text := m.Text()
		if text == "" {
			continue
		}
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, text)
	}
	return sb.String()
}

// Resolve finds an agent by id; the boolean reports whether it exists.
func Resolve(agents []core.Agent, id string) (core.Agent, bool) {
	for _, a := range agents {
		if a.ID() == id {
			return a, true
		}
	}
	return nil, false
}

// Fallback returns the deterministic default selection: the first
// registered agent with confidence 0.
func Fallback(agents []core.Agent) core.ClassifierResult {
	if len(agents) == 0 {
		return core.ClassifierResult{}
	}
	return core.ClassifierResult{Agent: agents[0], Confidence: 0}
}
