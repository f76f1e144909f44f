// Package tokencount estimates token usage for conversation messages and
// tool results, and decides when a context window is close enough to full
// that compression should kick in (§4.9).
package tokencount

import (
	"encoding/json"
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

const (
	charsPerTokenZH    = 2
	charsPerTokenEN    = 4
	charsPerTokenMixed = 3

	imageTokenEstimate = 500
	toolResultBaseTokens = 50

	defaultContextWindow = 128_000
)

// contextWindows mirrors known model context sizes. Matching is exact first,
// then substring (a model string containing a known key), then default.
var contextWindows = map[string]int{
	"gpt-4o":                 128_000,
	"gpt-4o-mini":            128_000,
	"gpt-4-turbo":            128_000,
	"gpt-3.5-turbo":          16_000,
	"o1-preview":             128_000,
	"o1-mini":                128_000,
	"o3":                     200_000,
	"o3-mini":                200_000,
	"o4-mini":                200_000,
	"claude-sonnet-4-5":      200_000,
	"claude-haiku-4-5":       200_000,
	"claude-sonnet-4":        200_000,
	"claude-opus-4":          200_000,
	"claude-3-7-sonnet":      200_000,
	"claude-3-5-sonnet":      200_000,
	"claude-3-5-haiku":       200_000,
	"claude-3-opus":          200_000,
	"claude-3-haiku":         200_000,
	"claude-sonnet":          200_000,
	"claude-haiku":           200_000,
	"claude-opus":            200_000,
	"gemini-2.0-flash":       1_000_000,
	"gemini-2.5-pro":         1_000_000,
	"gemini-2.5-flash":       1_000_000,
	"gemini-1.5-pro":         1_000_000,
	"gemini-1.5-flash":       1_000_000,
	"gemini-pro":             1_000_000,
	"gemini-flash":           1_000_000,
	"deepseek-chat":          64_000,
	"deepseek-reasoner":      64_000,
	"deepseek-r1":            64_000,
	"moonshot-v1-8k":         8_000,
	"moonshot-v1-32k":        32_000,
	"moonshot-v1-128k":       128_000,
	"glm-4":                  200_000,
	"meta-llama/llama-3.1-70b-instruct":  128_000,
	"meta-llama/llama-3.1-405b-instruct": 128_000,
	"microsoft/wizardlm-2-8x22b":         256_000,
	"amazon.nova-pro-v1:0":               300_000,
	"amazon.nova-lite-v1:0":              300_000,
	"amazon.nova-micro-v1:0":             128_000,
}

// bufferSizes maps a context window size to the buffer Cline's
// getContextWindowInfo reserves for the response, before the catch-all
// max(window-40000, window*0.8) formula applies.
var bufferSizes = map[int]int{
	64_000:     27_000,
	128_000:    30_000,
	200_000:    40_000,
	256_000:    50_000,
	300_000:    60_000,
	1_000_000:  100_000,
}

// ContentPart is one item of a multimodal message content list.
type ContentPart struct {
	Type string
	Text string
}

// Message is the minimal shape tokencount needs from a conversation message;
// deliberately decoupled from internal/conversation's richer type to avoid
// an import cycle (conversation will depend on compression/token-aware
// trimming, not the reverse).
type Message struct {
	Role    string
	Content string
	Parts   []ContentPart
}

// Usage is the token usage actually reported by a provider response.
type Usage struct {
	TokensIn         int
	TokensOut        int
	Total            int
	CacheReadTokens  int
	CacheWriteTokens int
}

// Counter tracks cumulative usage across a task and estimates token counts
// for messages and tool results that have not yet been billed.
type Counter struct {
	totalTokensUsed  int
	cachedReadTokens int
	cachedWriteTokens int
}

func New() *Counter {
	return &Counter{}
}

// ContextWindow returns the context window size for model: exact match,
// else substring match against a known key, else the 128k default.
func ContextWindow(model string) int {
	key := strings.ToLower(strings.TrimSpace(model))
	if size, ok := contextWindows[key]; ok {
		return size
	}
	for k, size := range contextWindows {
		if strings.Contains(key, k) {
			return size
		}
	}
	return defaultContextWindow
}

// MaxAllowedSize returns the usable token budget for model: the context
// window minus a reserved response buffer.
func MaxAllowedSize(model string) int {
	window := ContextWindow(model)
	if buffer, ok := bufferSizes[window]; ok {
		return window - buffer
	}
	byFraction := int(float64(window) * 0.8)
	byFixed := window - 40_000
	if byFixed > byFraction {
		return byFixed
	}
	return byFraction
}

// tiktoken encodings are expensive to build (BPE rank tables), so the cl100k
// encoding used for every GPT-style model in contextWindows is cached once.
var (
	tiktokenOnce sync.Once
	tiktokenEnc  *tiktoken.Tiktoken
)

func tiktokenEncoding() *tiktoken.Tiktoken {
	tiktokenOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			tiktokenEnc = enc
		}
	})
	return tiktokenEnc
}

// EstimateTextTokens counts tokens in text with tiktoken's cl100k_base BPE
// encoding when available, falling back to the Chinese/English
// character-ratio heuristic (mostly-Chinese text compresses at 2 chars/token,
// mostly-English at 4, mixed at 3) for models tiktoken has no table for, or
// if the encoder failed to load.
func EstimateTextTokens(text string) int {
	if text == "" {
		return 0
	}

	if enc := tiktokenEncoding(); enc != nil {
		if n := len(enc.Encode(text, nil, nil)); n > 0 {
			return n
		}
	}

	runes := []rune(text)
	total := len(runes)
	chinese := 0
	for _, r := range runes {
		if r >= 0x4e00 && r <= 0x9fff {
			chinese++
		}
	}
	ratio := float64(chinese) / float64(total)

	chars := charsPerTokenMixed
	switch {
	case ratio > 0.7:
		chars = charsPerTokenZH
	case ratio < 0.3:
		chars = charsPerTokenEN
	}

	estimated := total / chars
	if estimated < 1 {
		estimated = 1
	}
	return estimated
}

// CountMessageTokens estimates the token cost of one message, including the
// image-content-part surcharge for multimodal messages.
func CountMessageTokens(msg Message) int {
	if msg.Parts == nil {
		return EstimateTextTokens(msg.Content)
	}
	total := 0
	for _, part := range msg.Parts {
		switch part.Type {
		case "text":
			total += EstimateTextTokens(part.Text)
		case "image_url":
			total += imageTokenEstimate
		}
	}
	return total
}

// CountMessagesTokens sums CountMessageTokens over a message list.
func CountMessagesTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += CountMessageTokens(m)
	}
	return total
}

// CountToolResultTokens estimates the token cost of a tool result, by
// JSON-encoding the success payload (or the error string) and adding a
// fixed overhead for the tool name/status framing.
func CountToolResultTokens(success bool, data any, errText string) int {
	if !success {
		return toolResultBaseTokens + EstimateTextTokens(errText)
	}
	if data == nil {
		return toolResultBaseTokens
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return toolResultBaseTokens
	}
	return toolResultBaseTokens + EstimateTextTokens(string(raw))
}

// ParseUsage extracts actual usage from an OpenAI-compatible response's
// "usage" object (as decoded into a generic map), returning nil if absent.
func ParseUsage(response map[string]any) *Usage {
	raw, ok := response["usage"].(map[string]any)
	if !ok {
		return nil
	}
	return &Usage{
		TokensIn:         intField(raw, "prompt_tokens"),
		TokensOut:        intField(raw, "completion_tokens"),
		Total:            intField(raw, "total_tokens"),
		CacheReadTokens:  intField(raw, "prompt_cache_hit_tokens"),
		CacheWriteTokens: intField(raw, "prompt_cache_miss_tokens"),
	}
}

func intField(m map[string]any, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

// UpdateUsage records the latest reported usage as the counter's running total.
func (c *Counter) UpdateUsage(u *Usage) {
	if u == nil {
		return
	}
	c.totalTokensUsed = u.Total
	c.cachedReadTokens = u.CacheReadTokens
	c.cachedWriteTokens = u.CacheWriteTokens
}

func (c *Counter) TotalTokensUsed() int   { return c.totalTokensUsed }
func (c *Counter) CachedReadTokens() int  { return c.cachedReadTokens }
func (c *Counter) CachedWriteTokens() int { return c.cachedWriteTokens }

// should_compress/must_compress thresholds (fraction of max allowed size).
// The source corpus carries divergent copies of these constants (0.5/0.7 vs
// 0.8/0.95); this follows spec.md's adopted, more conservative pair.
const (
	shouldCompressThreshold = 0.5
	mustCompressThreshold   = 0.7
	mustCompressCharLimit   = 40_000
)

// ShouldCompress reports whether currentTokens has reached threshold (default
// 0.5, i.e. should_compress) of the model's max allowed size.
func ShouldCompress(currentTokens int, model string, threshold float64) bool {
	if threshold <= 0 {
		threshold = shouldCompressThreshold
	}
	return float64(currentTokens) >= float64(MaxAllowedSize(model))*threshold
}

// CompressionInfo summarizes the compression decision for a message list.
type CompressionInfo struct {
	EstimatedTokens int
	TotalChars      int
	ContextWindow   int
	MaxAllowed      int
	UsagePercentage float64
	ShouldCompress  bool
	MustCompress    bool
}

// GetCompressionInfo computes CompressionInfo for messages against model.
// should_compress fires at 50% of max allowed; must_compress fires at 70% of
// max allowed OR total characters across messages exceeding 40,000 (§4.9).
func GetCompressionInfo(messages []Message, model string) CompressionInfo {
	estimated := CountMessagesTokens(messages)
	totalChars := 0
	for _, m := range messages {
		totalChars += len(m.Content)
		for _, p := range m.Parts {
			totalChars += len(p.Text)
		}
	}

	window := ContextWindow(model)
	maxAllowed := MaxAllowedSize(model)

	var usagePct float64
	if window > 0 {
		usagePct = float64(estimated) / float64(window)
	}

	return CompressionInfo{
		EstimatedTokens: estimated,
		TotalChars:      totalChars,
		ContextWindow:   window,
		MaxAllowed:      maxAllowed,
		UsagePercentage: usagePct,
		ShouldCompress:  float64(estimated) >= float64(maxAllowed)*shouldCompressThreshold,
		MustCompress:    float64(estimated) >= float64(maxAllowed)*mustCompressThreshold || totalChars > mustCompressCharLimit,
	}
}
