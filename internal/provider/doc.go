// Package provider implements the LLM adapter boundary (§4.17): chat,
// chat_with_tools, and test_connection against an OpenAI-compatible chat
// completions endpoint.
//
// Per spec.md's redesign notes, the source's per-vendor inheritance
// hierarchy (abstract AIProvider + OpenAIProvider/DeepSeekProvider/
// MoonshotProvider/GLMProvider/GLMCodingProvider/OpenRouterProvider, each
// nearly identical) collapses here into one implementation — all of those
// vendors speak the same OpenAI chat-completions wire format and differ
// only in base URL and default model. A Registry maps provider ids to that
// default base URL so callers can omit it.
package provider
