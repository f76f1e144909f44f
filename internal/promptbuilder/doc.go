// Package promptbuilder assembles the task engine's system prompt (§4.11):
// role statement and hard rules, file-path conventions, the standard
// workflow description, a tool catalog rendered from the coordinator
// (excluding the mcp meta-tool category, which gets its own section), an
// MCP server section, and the repository's absolute path.
//
// Tool invocation itself is native function-calling (chat_with_tools), not
// the XML-tag format the source's prompt_builder.py renders — that format
// is explicitly dead per spec.md's design notes, which standardize on the
// function-calling path. The catalog here only has to describe tools, not
// teach a call syntax.
package promptbuilder
