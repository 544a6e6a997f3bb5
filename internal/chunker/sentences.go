package chunker

import (
	"regexp"
	"strings"
)

// sentenceEnd matches a run of text ending in sentence-terminal
// punctuation. Text after the last terminal mark is handled separately.
var sentenceEnd = regexp.MustCompile(`[^.!?]*[.!?]+['")\]]*\s*`)

// SplitSentences splits text into sentence-like units. After the
// punctuation-based split, each sentence is re-split on embedded
// newlines: PDF layout reconstruction frequently produces hard line
// breaks mid-sentence, and without the second pass a single "sentence"
// silently absorbs unrelated lines that lack terminal punctuation.
// Empty fragments are dropped; order is preserved.
func SplitSentences(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	raw := sentenceEnd.FindAllString(text, -1)
	if consumed := len(strings.Join(raw, "")); consumed < len(text) {
		raw = append(raw, text[consumed:])
	}

	var out []string
	for _, sentence := range raw {
		for _, line := range strings.Split(sentence, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				out = append(out, line)
			}
		}
	}
	return out
}
