package chat

import (
	"regexp"
	"strings"
)

var thinkRegex = regexp.MustCompile(`(?is)<think(?:ing)?>(.*?)</think(?:ing)?>`)

// ParsedMessage represents a message content that has been parsed for thinking blocks
type ParsedMessage struct {
	ThinkingContent string
	ResponseContent string
	HasThinking     bool
}

// ParseMessageThinking separates <think> blocks from the answer of a stored message
func ParseMessageThinking(content string) ParsedMessage {
	matches := thinkRegex.FindAllStringSubmatch(content, -1)

	if len(matches) == 0 {
		return ParsedMessage{
			ResponseContent: strings.TrimSpace(content),
		}
	}

	var thinkingParts []string
	for _, m := range matches {
		if len(m) > 1 && strings.TrimSpace(m[1]) != "" {
			thinkingParts = append(thinkingParts, strings.TrimSpace(m[1]))
		}
	}

	response := strings.TrimSpace(thinkRegex.ReplaceAllString(content, ""))

	return ParsedMessage{
		ThinkingContent: strings.Join(thinkingParts, "\n\n"),
		ResponseContent: response,
		HasThinking:     len(thinkingParts) > 0,
	}
}

// ExtractResponseContent extracts only the response content from a message, removing thinking blocks
func ExtractResponseContent(content string) string {
	return ParseMessageThinking(content).ResponseContent
}

// FormatWithThinking is the inverse of ParseMessageThinking for storage.
// Empty reasoning leaves the answer as is.
func FormatWithThinking(thinking, content string) string {
	if strings.TrimSpace(thinking) == "" {
		return content
	}
	return "<think>" + thinking + "</think>" + content
}
