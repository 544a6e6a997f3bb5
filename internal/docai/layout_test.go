package docai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearchart/medrag/internal/models"
)

func textBlock(text, typ string, children ...Block) Block {
	return Block{TextBlock: &TextBlock{Text: text, Type: typ, Blocks: children}}
}

func anchoredCell(start, end int64) TableCell {
	return TableCell{Layout: &Layout{TextAnchor: &TextAnchor{TextSegments: []TextSegment{seg(start, end)}}}}
}

func TestExtractLayoutTextPrefersFlatText(t *testing.T) {
	doc := &LayoutDocument{
		Text: "flat text wins",
		DocumentLayout: &DocumentLayout{Blocks: []Block{
			textBlock("tree text ignored", "paragraph"),
		}},
	}
	assert.Equal(t, "flat text wins", ExtractLayoutText(doc))
}

func TestExtractLayoutTextWalksBlockTree(t *testing.T) {
	doc := &LayoutDocument{
		DocumentLayout: &DocumentLayout{Blocks: []Block{
			textBlock("Discharge Summary", "heading-1",
				textBlock("Admitted for chest pain.", "paragraph"),
				textBlock("Discharged stable.", "paragraph"),
			),
			textBlock("Follow up in two weeks.", "paragraph"),
		}},
	}

	got := ExtractLayoutText(doc)
	want := strings.Join([]string{
		"Discharge Summary",
		"Admitted for chest pain.",
		"Discharged stable.",
		"Follow up in two weeks.",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestExtractLayoutTextRendersTableBlocks(t *testing.T) {
	doc := &LayoutDocument{
		DocumentLayout: &DocumentLayout{Blocks: []Block{
			{TableBlock: &TableBlock{
				HeaderRows: []TableRow{{Cells: []TableCell{
					{Blocks: []Block{textBlock("Test", "paragraph")}},
					{Blocks: []Block{textBlock("Result", "paragraph")}},
				}}},
				BodyRows: []TableRow{{Cells: []TableCell{
					{Blocks: []Block{textBlock("Hemoglobin", "paragraph")}},
					{Blocks: []Block{textBlock("13.5 g/dL", "paragraph")}},
				}}},
			}},
		}},
	}

	got := ExtractLayoutText(doc)
	assert.Equal(t, "Header: Test | Result\nHemoglobin | 13.5 g/dL", got)
}

func TestExtractLayoutTextEmptyInputs(t *testing.T) {
	assert.Equal(t, "", ExtractLayoutText(nil))
	assert.Equal(t, "", ExtractLayoutText(&LayoutDocument{}))
	assert.Equal(t, "", ExtractLayoutText(&LayoutDocument{DocumentLayout: &DocumentLayout{}}))
}

func TestExtractSegmentsOrderAndTypes(t *testing.T) {
	fullText := "First paragraph on page one."
	doc := &LayoutDocument{
		Text: fullText,
		DocumentLayout: &DocumentLayout{Blocks: []Block{
			textBlock("Lab Report", "heading-1"),
		}},
		Pages: []LayoutPage{{
			PageNumber: 1,
			Paragraphs: []Paragraph{{Layout: &Layout{
				TextAnchor: &TextAnchor{TextSegments: []TextSegment{seg(0, int64(len(fullText)))}},
				Confidence: 0.97,
			}}},
			Tables: []Table{{
				HeaderRows: []TableRow{{Cells: []TableCell{anchoredCell(0, 5), anchoredCell(6, 15)}}},
				BodyRows:   []TableRow{{Cells: []TableCell{anchoredCell(16, 18), anchoredCell(19, 22)}}},
			}},
		}},
	}

	segments := ExtractSegments(doc)
	require.Len(t, segments, 3)

	// Block segments come first, then paragraphs, then tables.
	assert.Equal(t, models.ChunkTypeTextBlock, segments[0].Type)
	assert.Equal(t, "heading-1", segments[0].SemanticLabel)
	assert.Equal(t, "Lab Report", segments[0].Text)

	assert.Equal(t, models.ChunkTypeParagraph, segments[1].Type)
	assert.Equal(t, fullText, segments[1].Text)
	assert.Equal(t, 1, segments[1].Page)
	assert.InDelta(t, 0.97, segments[1].Confidence, 1e-9)

	assert.Equal(t, models.ChunkTypeTable, segments[2].Type)
	assert.Contains(t, segments[2].Text, "| --- | --- |")
	assert.Equal(t, 1, segments[2].Page)
}

func TestExtractSegmentsPageNumberFallback(t *testing.T) {
	fullText := "some paragraph text here"
	doc := &LayoutDocument{
		Text: fullText,
		Pages: []LayoutPage{
			{Paragraphs: []Paragraph{{Layout: &Layout{TextAnchor: &TextAnchor{TextSegments: []TextSegment{seg(0, 24)}}}}}},
			{Paragraphs: []Paragraph{{Layout: &Layout{TextAnchor: &TextAnchor{TextSegments: []TextSegment{seg(0, 24)}}}}}},
		},
	}

	segments := ExtractSegments(doc)
	require.Len(t, segments, 2)
	assert.Equal(t, 1, segments[0].Page)
	assert.Equal(t, 2, segments[1].Page)
}

func TestRenderTableMarkdownEmptyCellsKeepColumns(t *testing.T) {
	fullText := "Name Dose"
	table := Table{
		HeaderRows: []TableRow{{Cells: []TableCell{anchoredCell(0, 4), anchoredCell(5, 9)}}},
		BodyRows:   []TableRow{{Cells: []TableCell{anchoredCell(0, 4), {}}}},
	}

	got := renderTableMarkdown(table, fullText)
	lines := strings.Split(got, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "| Name | Dose |", lines[0])
	assert.Equal(t, "| --- | --- |", lines[1])
	assert.Equal(t, "| Name |   |", lines[2])
}

func TestBlockSegmentsDepthGuard(t *testing.T) {
	// Build nesting deeper than the recursion bound; the walk must stop
	// quietly instead of overflowing.
	inner := textBlock("deepest", "paragraph")
	for i := 0; i < maxBlockDepth+10; i++ {
		inner = textBlock("", "container", inner)
	}
	doc := &LayoutDocument{DocumentLayout: &DocumentLayout{Blocks: []Block{inner}}}

	segments := ExtractSegments(doc)
	for _, s := range segments {
		assert.NotEqual(t, "deepest", s.Text)
	}
}
