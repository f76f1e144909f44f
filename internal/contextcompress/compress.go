package contextcompress

import (
	"fmt"
	"regexp"

	"github.com/taskd/taskd/internal/tokencount"
)

// DuplicateFileReadNotice replaces every superseded occurrence of a
// repeated file read (§4.9 stage 1).
const DuplicateFileReadNotice = "[NOTE] 此文件读取已被移除以节省上下文窗口空间。请参考最新的文件读取以获取此文件的最新版本。"

var (
	fileReadPattern1 = regexp.MustCompile(`^\[read_file\s+for\s+'([^']+)'\]\s+Result:`)
	fileReadPattern2 = regexp.MustCompile(`<file_content\s+path="([^"]+)">`)
)

// extractFileRead returns the file path a user message's content reads, via
// either known tool-result framing, or "" if it matches neither.
func extractFileRead(content string) string {
	if m := fileReadPattern1.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	if m := fileReadPattern2.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return ""
}

// OptimizeDuplicateFileReads implements stage 1: for every file path read by
// two or more user messages, every occurrence except the most recent is
// replaced with DuplicateFileReadNotice. Message count is preserved exactly;
// messages is not mutated in place.
func OptimizeDuplicateFileReads(messages []tokencount.Message) []tokencount.Message {
	lastIndexByPath := map[string]int{}
	pathByIndex := map[int]string{}
	for i, m := range messages {
		if m.Role != "user" {
			continue
		}
		path := extractFileRead(m.Content)
		if path == "" {
			continue
		}
		pathByIndex[i] = path
		lastIndexByPath[path] = i
	}

	out := make([]tokencount.Message, len(messages))
	copy(out, messages)

	for i, path := range pathByIndex {
		if i == lastIndexByPath[path] {
			continue
		}
		out[i].Content = replaceFileReadContent(out[i].Content, path)
	}
	return out
}

func replaceFileReadContent(content, path string) string {
	if fileReadPattern1.MatchString(content) {
		return fmt.Sprintf("[read_file for '%s'] Result:\n%s", path, DuplicateFileReadNotice)
	}
	re := regexp.MustCompile(`(?s)<file_content\s+path="` + regexp.QuoteMeta(path) + `">.*?</file_content>`)
	replacement := fmt.Sprintf(`<file_content path="%s">%s</file_content>`, path, DuplicateFileReadNotice)
	return re.ReplaceAllString(content, replacement)
}

// Level is stage 2's compression level, derived from token usage.
type Level string

const (
	LevelNone       Level = "none"
	LevelLight      Level = "light"
	LevelMedium     Level = "medium"
	LevelAggressive Level = "aggressive"
)

// tailSize maps a compression level to N, the number of most-recent
// non-system messages stage 2 keeps (§4.9).
var tailSize = map[Level]int{
	LevelAggressive: 2,
	LevelMedium:     4,
	LevelLight:      8,
}

// DetermineLevel derives stage 2's level from a compression-info snapshot:
// must_compress -> aggressive, should_compress -> medium, else light.
func DetermineLevel(info tokencount.CompressionInfo) Level {
	switch {
	case info.MustCompress:
		return LevelAggressive
	case info.ShouldCompress:
		return LevelMedium
	default:
		return LevelLight
	}
}

// SandwichTruncate implements stage 2: keep every system message, the first
// user/assistant pair (the task anchor), and the last n non-system messages;
// everything in between is discarded.
func SandwichTruncate(messages []tokencount.Message, n int) []tokencount.Message {
	var system, nonSystem []tokencount.Message
	for _, m := range messages {
		if m.Role == "system" {
			system = append(system, m)
		} else {
			nonSystem = append(nonSystem, m)
		}
	}

	out := append([]tokencount.Message{}, system...)
	if len(nonSystem) <= 2 {
		return append(out, nonSystem...)
	}

	out = append(out, nonSystem[:2]...)

	tailStart := len(nonSystem) - n
	if tailStart < 2 {
		tailStart = 2
	}
	if tailStart < len(nonSystem) {
		out = append(out, nonSystem[tailStart:]...)
	}
	return out
}

// Stats reports the effect of a compression pass, for observability only;
// the engine never branches on it.
type Stats struct {
	OriginalMessages   int
	CompressedMessages int
	OriginalTokens     int
	CompressedTokens   int
	TokensSaved        int
	CompressionRatio   float64
	ContextWindow      int
	MaxAllowed         int
	Level              Level
}

// Compress runs the full §4.9 pipeline against messages for model and
// returns a transient, LLM-call-ready message list plus Stats. messages is
// never mutated; callers MUST persist the original history unchanged and
// use the returned slice only for the outgoing request.
func Compress(messages []tokencount.Message, model string) ([]tokencount.Message, Stats) {
	info := tokencount.GetCompressionInfo(messages, model)
	if !info.ShouldCompress && !info.MustCompress {
		return messages, Stats{
			OriginalMessages:   len(messages),
			CompressedMessages: len(messages),
			OriginalTokens:     info.EstimatedTokens,
			CompressedTokens:   info.EstimatedTokens,
			ContextWindow:      info.ContextWindow,
			MaxAllowed:         info.MaxAllowed,
			Level:              LevelNone,
		}
	}

	stage1 := OptimizeDuplicateFileReads(messages)
	stage1Info := tokencount.GetCompressionInfo(stage1, model)

	out := stage1
	level := LevelNone
	if stage1Info.ShouldCompress || stage1Info.MustCompress {
		level = DetermineLevel(stage1Info)
		out = SandwichTruncate(stage1, tailSize[level])
	}

	originalTokens := info.EstimatedTokens
	compressedTokens := tokencount.CountMessagesTokens(out)

	var ratio float64
	if originalTokens > 0 {
		ratio = 1 - float64(compressedTokens)/float64(originalTokens)
	}

	return out, Stats{
		OriginalMessages:   len(messages),
		CompressedMessages: len(out),
		OriginalTokens:     originalTokens,
		CompressedTokens:   compressedTokens,
		TokensSaved:        originalTokens - compressedTokens,
		CompressionRatio:   ratio,
		ContextWindow:      info.ContextWindow,
		MaxAllowed:         info.MaxAllowed,
		Level:              level,
	}
}
