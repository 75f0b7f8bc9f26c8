package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var whitespaceRuns = regexp.MustCompile(`\s+`)

// CleanText makes extracted text stable under markup and encoding variation:
// NFKC-normalized, whitespace runs collapsed to single spaces, trimmed.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = norm.NFKC.String(text)
	text = whitespaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// SplitContent splits body text at the last occurrence of the
// trailing-boilerplate marker. Without a marker the related part is empty and
// the proper part is the full content.
func SplitContent(content, marker string) (proper, related string) {
	if marker == "" {
		return content, ""
	}
	idx := strings.LastIndex(content, marker)
	if idx < 0 {
		return content, ""
	}
	proper = strings.TrimSpace(content[:idx])
	related = strings.TrimSpace(content[idx+len(marker):])
	return proper, related
}
