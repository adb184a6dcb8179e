package models

import (
	"fmt"
	"strings"
)

// InferModelFamily attempts to infer the model family from the name
func InferModelFamily(modelName string) string {
	lowerName := strings.ToLower(modelName)

	// Check more specific patterns first
	switch {
	case strings.Contains(lowerName, "codellama"):
		return "codellama"
	case strings.Contains(lowerName, "mixtral"):
		return "mixtral"
	case strings.Contains(lowerName, "qwq"):
		return "qwq"
	case strings.Contains(lowerName, "llama"):
		return "llama"
	case strings.Contains(lowerName, "qwen"):
		return "qwen"
	case strings.Contains(lowerName, "mistral"), strings.Contains(lowerName, "magistral"):
		return "mistral"
	case strings.Contains(lowerName, "deepseek"):
		return "deepseek"
	case strings.Contains(lowerName, "gemma"):
		return "gemma"
	case strings.Contains(lowerName, "phi"):
		return "phi"
	default:
		return "unknown"
	}
}

// InferReasoning guesses whether a model emits a reasoning block before its
// answer. Only the name is available, so this is a hint for display.
func InferReasoning(modelName string) bool {
	lowerName := strings.ToLower(modelName)
	base := DisplayName(lowerName)

	switch {
	case strings.Contains(base, "-r1"), strings.HasSuffix(base, "r1"):
		return true
	case strings.Contains(base, "qwen3"), strings.Contains(base, "qwq"):
		return true
	case strings.Contains(base, "magistral"), strings.Contains(base, "think"), strings.Contains(base, "reason"):
		return true
	case strings.Contains(lowerName, "phi4-reasoning"):
		return true
	}
	return false
}

// FormatModelSize formats size in bytes to human-readable format
func FormatModelSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
