// Package taskhistory persists the cross-task index at
// <repo>/.ai/history/task_history.json: one HistoryItem per task directory
// under <repo>/.ai/tasks/, tracking usage/cost metadata and favorite status
// independently of the conversation content itself (§4.12).
package taskhistory
