// Package agent provides the built-in agent implementations: BaseAgent
// carrying identity, capability flags and the versioned system prompt,
// plus model-backed agents for the Anthropic Messages API and the OpenAI
// Chat Completions API. Custom agents only need to satisfy core.Agent;
// embedding BaseAgent gives them prompt handling and capability wiring
// for free.
package agent
