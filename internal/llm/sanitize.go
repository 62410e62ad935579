package llm

import "strings"

// StripThinkingTags removes <think>...</think> blocks from LLM output.
// Local reasoning models (e.g. qwen3, deepseek-r1) wrap chain-of-thought in
// these tags; the verdict vocabulary must only ever match the final answer.
func StripThinkingTags(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start == -1 {
			break
		}
		end := strings.Index(s, "</think>")
		if end == -1 {
			s = strings.TrimSpace(s[:start])
			break
		}
		s = s[:start] + s[end+len("</think>"):]
	}
	return strings.TrimSpace(s)
}
