// Package secrets provides secret detection and redaction. Detection runs
// the Gitleaks SDK's built-in ruleset against content, supplemented by a
// small set of project-configurable custom regex rules for patterns
// Gitleaks doesn't carry by default; a TOML allowlist (project- and
// user-level, ".gitleaks.toml" convention) can suppress known false
// positives in either path.
//
// Conversation history, tool results, and AI config fields all pass through
// scrubbing before being persisted or logged, to prevent API keys and other
// credentials from leaking into task history files. Preserves metrics (rule
// IDs, counts) while redacting sensitive content.
package secrets
