package reducer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ehr/careassess/internal/platform/keywords"
)

const (
	DefaultLogLength      = 8000
	DefaultCarePlanLength = 5000

	// recentLines is how many log lines survive when filtering is not enough.
	recentLines = 50
)

// OptimizeLog shortens a free-text log to roughly maxLen characters by
// keeping lines that mention a care topic or carry a number, then only the
// most recent of those if still too long. Short logs are returned unchanged.
func (r *Reducer) OptimizeLog(text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultLogLength
	}
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if keywords.AnyMatch(r.care, keywords.Normalize(line)) || strings.IndexFunc(line, unicode.IsDigit) >= 0 {
			kept = append(kept, line)
		}
	}
	if utf8.RuneCountInString(strings.Join(kept, "\n")) > maxLen && len(kept) > recentLines {
		kept = kept[len(kept)-recentLines:]
	}
	return strings.Join(kept, "\n")
}

// SummarizeCarePlan shortens a care plan by keeping headings, "key: value"
// lines and lines mentioning a care topic. Short plans are returned
// unchanged.
func (r *Reducer) SummarizeCarePlan(text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultCarePlanLength
	}
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") || strings.Contains(trimmed, ":") ||
			keywords.AnyMatch(r.care, keywords.Normalize(trimmed)) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
