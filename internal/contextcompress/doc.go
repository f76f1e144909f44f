// Package contextcompress implements the two-stage context compression
// pipeline the task engine runs before each LLM call (§4.9): duplicate
// file-read elimination, then sandwich truncation when that alone isn't
// enough. Compression never touches persisted conversation history; it only
// produces a transient message list for the outgoing request.
//
// The source this was distilled from carries two divergent threshold pairs
// for should_compress/must_compress: 0.5/0.7 (plus a >40,000-total-character
// fallback for must_compress) in one copy, 0.8/0.95 in another
// (compression_strategy.py's SHOULD_COMPRESS_THRESHOLD/
// MUST_COMPRESS_THRESHOLD). This package follows internal/tokencount, which
// implements the former — the more conservative, more complete pair.
package contextcompress
