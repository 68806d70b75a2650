package llm

import "strings"

// CleanJSONBlock strips a markdown code fence from a model response. Models
// often wrap JSON in ```json fences even when told not to, so every caller
// that expects JSON runs its response through here first.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")

	// Drop a language tag ("json", "JSON") on the opening fence line. A first
	// line with spaces or braces is content, not a tag, and is kept.
	if idx := strings.Index(text, "\n"); idx >= 0 {
		tag := text[:idx]
		if len(tag) < 20 && !strings.ContainsAny(tag, " {") {
			text = text[idx+1:]
		}
	}

	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
