package docai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func anchored(start, end int64) *Layout {
	return &Layout{TextAnchor: &TextAnchor{TextSegments: []TextSegment{seg(start, end)}}}
}

func TestExtractFormKV(t *testing.T) {
	fullText := "Patient Name Jane Doe Allergies "

	doc := &FormDocument{
		Text: fullText,
		Pages: []FormPage{{
			PageNumber: 1,
			FormFields: []FormField{
				{FieldName: anchored(0, 12), FieldValue: anchored(13, 21)},
				// value resolves empty: dropped
				{FieldName: anchored(22, 31), FieldValue: anchored(31, 32)},
				// key missing entirely: dropped
				{FieldValue: anchored(13, 21)},
			},
		}},
	}

	items := ExtractFormKV(doc)
	require.Len(t, items, 1)
	assert.Equal(t, "Patient Name: Jane Doe", items[0].Text)
	assert.Equal(t, 1, items[0].Page)
}

func TestExtractFormKVMultiplePages(t *testing.T) {
	fullText := "DOB 1990-01-01 Sex F"
	doc := &FormDocument{
		Text: fullText,
		Pages: []FormPage{
			{PageNumber: 1, FormFields: []FormField{{FieldName: anchored(0, 3), FieldValue: anchored(4, 14)}}},
			{PageNumber: 2, FormFields: []FormField{{FieldName: anchored(15, 18), FieldValue: anchored(19, 20)}}},
		},
	}

	items := ExtractFormKV(doc)
	require.Len(t, items, 2)
	assert.Equal(t, "DOB: 1990-01-01", items[0].Text)
	assert.Equal(t, 1, items[0].Page)
	assert.Equal(t, "Sex: F", items[1].Text)
	assert.Equal(t, 2, items[1].Page)
}

func TestExtractFormKVEmptyInputs(t *testing.T) {
	assert.Nil(t, ExtractFormKV(nil))
	assert.Empty(t, ExtractFormKV(&FormDocument{}))
	assert.Empty(t, ExtractFormKV(&FormDocument{Pages: []FormPage{{PageNumber: 1}}}))
}
