package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"whitespace only", "  \n\t ", nil},
		{"single sentence", "The patient is stable.", []string{"The patient is stable."}},
		{
			"multiple terminals",
			"BP was 120/80. Pulse 72! Any concerns? None noted.",
			[]string{"BP was 120/80.", "Pulse 72!", "Any concerns?", "None noted."},
		},
		{
			"trailing text without terminal",
			"First sentence. trailing fragment",
			[]string{"First sentence.", "trailing fragment"},
		},
		{
			"closing quote stays attached",
			`He said "rest." Then left.`,
			[]string{`He said "rest."`, "Then left."},
		},
		{
			"embedded newlines split",
			"Line one\nLine two. Next sentence.",
			[]string{"Line one", "Line two.", "Next sentence."},
		},
		{
			"no terminal at all",
			"just a header line",
			[]string{"just a header line"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.in))
		})
	}
}

func TestSplitSentencesPreservesOrder(t *testing.T) {
	text := ""
	for i := 0; i < 50; i++ {
		text += sentenceN(i) + " "
	}

	got := SplitSentences(text)
	assert.Len(t, got, 50)
	for i, s := range got {
		assert.Equal(t, sentenceN(i), s)
	}
}

func sentenceN(i int) string {
	return "Sentence number " + string(rune('A'+i%26)) + " follows the previous one."
}
