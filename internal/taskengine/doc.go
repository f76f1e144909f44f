// Package taskengine implements the recursive LLM↔tool loop (§4.10): the
// core of the agentic task-execution system. One Engine.Execute call drives
// a single task from a user request through bounded LLM/tool iterations to
// a terminal event, persisting conversation history and the task index as
// it goes and streaming typed events over a channel for an HTTP/SSE layer
// to relay.
//
// Grounded on original_source/.../task/engine.py's TaskEngine: the same
// setup → bounded loop → per-iteration (build messages, call the model with
// tools, execute any tool calls, feed results back) → finalize shape, ported
// from an async generator to a goroutine writing to a channel. The XML-tag
// tool-*call* format that engine.py's prompt builder taught the model is
// dead per spec.md's design notes; the XML *tool-result* framing
// (<response><tool>...) that engine.py feeds back as the next turn's user
// content is kept, since spec.md's event table and message-building rule
// retain it deliberately.
package taskengine
