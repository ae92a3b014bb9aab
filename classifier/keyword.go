package classifier

import (
	"context"
	"strings"

	"github.com/hupe1980/agentroute/core"
)

// KeywordClassifier is a deterministic strategy matching configured
// keywords against the lowercased input text. It needs no backend, which
// makes it useful for tests and for deployments where intent categories
// are known up front.
type KeywordClassifier struct {
	keywords map[string][]string // agent id -> keywords
}

var _ core.Classifier = (*KeywordClassifier)(nil)

// NewKeywordClassifier builds a classifier from an agent-id to keyword
// list mapping. An empty mapping always falls back to the first
// registered agent with confidence 0.
func NewKeywordClassifier(keywords map[string][]string) *KeywordClassifier {
	kw := make(map[string][]string, len(keywords))
	for id, words := range keywords {
		lowered := make([]string, len(words))
		for i, w := range words {
			lowered[i] = strings.ToLower(w)
		}
		kw[id] = lowered
	}
	return &KeywordClassifier{keywords: kw}
}

// Classify implements core.Classifier. The selected agent is the one with
// the highest share of matched keywords; ties break by registration
// order. History is ignored, keyword intent is per-turn.
func (c *KeywordClassifier) Classify(_ context.Context, input string, _ []core.Message, agents []core.Agent) (core.ClassifierResult, error) {
	if len(agents) == 0 {
		return core.ClassifierResult{}, core.ErrNoAgents
	}

	lowered := strings.ToLower(input)
	best := core.ClassifierResult{}
	for _, a := range agents {
		words := c.keywords[a.ID()]
		if len(words) == 0 {
			continue
		}
		matched := 0
		for _, w := range words {
			if strings.Contains(lowered, w) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		confidence := float64(matched) / float64(len(words))
		if best.Agent == nil || confidence > best.Confidence {
			best = core.ClassifierResult{Agent: a, Confidence: confidence}
		}
	}

	if best.Agent == nil {
		return Fallback(agents), nil
	}
	return best, nil
}
