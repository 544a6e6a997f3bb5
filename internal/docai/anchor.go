package docai

import (
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// ResolveAnchor reads the text referenced by anchor out of fullText.
// Segments whose offsets fall outside fullText are skipped, a nil anchor
// or an anchor without segments yields "", and the concatenated result is
// whitespace-normalized: runs of whitespace collapse to a single space
// and the ends are trimmed. Malformed input never produces an error,
// only partial or empty text.
func ResolveAnchor(anchor *TextAnchor, fullText string) string {
	if anchor == nil || len(anchor.TextSegments) == 0 {
		return ""
	}

	var b strings.Builder
	n := int64(len(fullText))
	for _, seg := range anchor.TextSegments {
		start, end := seg.StartIndex, seg.EndIndex
		if start < 0 || end < start || end > n {
			continue
		}
		b.WriteString(fullText[start:end])
	}

	return NormalizeSpace(b.String())
}

// NormalizeSpace collapses internal whitespace runs to single spaces and
// trims leading and trailing whitespace.
func NormalizeSpace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// resolveLayoutText resolves the anchor inside a Layout, tolerating a
// nil layout.
func resolveLayoutText(l *Layout, fullText string) string {
	if l == nil {
		return ""
	}
	return ResolveAnchor(l.TextAnchor, fullText)
}
