package docai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seg(start, end int64) TextSegment {
	return TextSegment{StartIndex: start, EndIndex: end}
}

func TestResolveAnchor(t *testing.T) {
	fullText := "Patient Name: Jane Doe\nDOB: 1990-01-01\n"

	tests := []struct {
		name   string
		anchor *TextAnchor
		want   string
	}{
		{"nil anchor", nil, ""},
		{"no segments", &TextAnchor{}, ""},
		{"single segment", &TextAnchor{TextSegments: []TextSegment{seg(0, 12)}}, "Patient Name"},
		{"multiple segments concatenated", &TextAnchor{TextSegments: []TextSegment{seg(0, 12), seg(13, 22)}}, "Patient Name Jane Doe"},
		{"out of range segment skipped", &TextAnchor{TextSegments: []TextSegment{seg(0, 12), seg(500, 600)}}, "Patient Name"},
		{"negative start skipped", &TextAnchor{TextSegments: []TextSegment{seg(-1, 5)}}, ""},
		{"zero-width segments yield empty", &TextAnchor{TextSegments: []TextSegment{seg(0, 0), seg(5, 5)}}, ""},
		{"end before start skipped", &TextAnchor{TextSegments: []TextSegment{seg(10, 5)}}, ""},
		{"whitespace normalized", &TextAnchor{TextSegments: []TextSegment{seg(0, 39)}}, "Patient Name: Jane Doe DOB: 1990-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveAnchor(tt.anchor, fullText))
		})
	}
}

func TestNormalizeSpace(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeSpace("  a\t b \n\n c  "))
	assert.Equal(t, "", NormalizeSpace(" \t\n "))
	assert.Equal(t, "unchanged", NormalizeSpace("unchanged"))
}

// The service encodes segment offsets as JSON strings.
func TestTextSegmentDecodesStringOffsets(t *testing.T) {
	var anchor TextAnchor
	raw := `{"textSegments":[{"startIndex":"14","endIndex":"22"}]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &anchor))

	require.Len(t, anchor.TextSegments, 1)
	assert.Equal(t, int64(14), anchor.TextSegments[0].StartIndex)
	assert.Equal(t, int64(22), anchor.TextSegments[0].EndIndex)

	got := ResolveAnchor(&anchor, "Patient Name: Jane Doe")
	assert.Equal(t, "Jane Doe", got)
}
