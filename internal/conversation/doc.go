// Package conversation persists a single task's message log to
// <repo>/.ai/tasks/<task_id>/api_conversation_history.json and reloads it
// when a task is resumed (§4.12).
//
// A Manager is task-scoped: one per running task, holding the in-memory
// message list that save/load round-trip to disk. Persisted content is
// always secret-scrubbed before it is written; compression (internal/
// contextcompress) never touches it — compression produces a transient
// message list for one LLM call and leaves the saved history untouched.
package conversation
