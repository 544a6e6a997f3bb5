package docai

import (
	"strings"

	"github.com/clearchart/medrag/internal/models"
)

// maxBlockDepth bounds recursion over the block tree. The service
// promises a tree, but the output is semi-trusted external JSON, so a
// runaway nesting level is cut off rather than crashing the process.
const maxBlockDepth = 64

// ExtractLayoutText produces the linear text of a layout document.
// A non-empty top-level text field is authoritative when present (the
// service sometimes returns both it and the block tree); otherwise the
// block tree is walked depth-first in document order.
func ExtractLayoutText(doc *LayoutDocument) string {
	if doc == nil {
		return ""
	}
	if doc.Text != "" {
		return doc.Text
	}
	if doc.DocumentLayout == nil {
		return ""
	}

	var collected []string
	collectBlockText(doc.DocumentLayout.Blocks, doc.Text, &collected, 0)
	return strings.Join(collected, "\n")
}

// collectBlockText appends the text of every block, recursing into
// children before moving to the next sibling so document order is kept.
func collectBlockText(blocks []Block, fullText string, out *[]string, depth int) {
	if depth >= maxBlockDepth {
		return
	}
	for _, block := range blocks {
		switch {
		case block.TextBlock != nil:
			tb := block.TextBlock
			if tb.Text != "" {
				*out = append(*out, tb.Text)
			}
			collectBlockText(tb.Blocks, fullText, out, depth+1)
		case block.TableBlock != nil:
			if t := renderTableBlock(block.TableBlock, fullText, depth+1); t != "" {
				*out = append(*out, t)
			}
		}
	}
}

// renderTableBlock renders a block-tree table linearly: cells joined by
// " | " per row, header rows prefixed with "Header: ".
func renderTableBlock(table *TableBlock, fullText string, depth int) string {
	var lines []string
	for _, row := range table.HeaderRows {
		if t := tableRowText(row, fullText, depth); t != "" {
			lines = append(lines, "Header: "+t)
		}
	}
	for _, row := range table.BodyRows {
		if t := tableRowText(row, fullText, depth); t != "" {
			lines = append(lines, t)
		}
	}
	return strings.Join(lines, "\n")
}

// tableRowText joins the non-empty cell texts of a row with " | ".
// Cells either carry nested blocks or an anchored layout.
func tableRowText(row TableRow, fullText string, depth int) string {
	var cells []string
	for _, cell := range row.Cells {
		var text string
		if len(cell.Blocks) > 0 {
			var parts []string
			collectBlockText(cell.Blocks, fullText, &parts, depth)
			text = strings.Join(parts, " ")
		} else {
			text = resolveLayoutText(cell.Layout, fullText)
		}
		if text = strings.TrimSpace(text); text != "" {
			cells = append(cells, text)
		}
	}
	return strings.Join(cells, " | ")
}

// ExtractSegments produces the structure-aware decomposition of a layout
// document, in fixed order: recursively-extracted layout-block segments,
// then per-page paragraphs, then per-page tables rendered as markdown.
func ExtractSegments(doc *LayoutDocument) []Segment {
	if doc == nil {
		return nil
	}

	var segments []Segment
	if doc.DocumentLayout != nil {
		segments = append(segments, blockSegments(doc.DocumentLayout.Blocks, doc.Text, 0)...)
	}

	for idx, page := range doc.Pages {
		pageNumber := page.PageNumber
		if pageNumber == 0 {
			pageNumber = idx + 1
		}
		segments = append(segments, paragraphSegments(page, doc.Text, pageNumber)...)
		segments = append(segments, tableSegments(page, doc.Text, pageNumber)...)
	}

	return segments
}

func blockSegments(blocks []Block, fullText string, depth int) []Segment {
	if depth >= maxBlockDepth {
		return nil
	}

	var segments []Segment
	for _, block := range blocks {
		switch {
		case block.TextBlock != nil:
			tb := block.TextBlock
			if text := strings.TrimSpace(tb.Text); text != "" {
				label := tb.Type
				if label == "" {
					label = models.ChunkTypeParagraph
				}
				segments = append(segments, Segment{
					Text:          text,
					Type:          models.ChunkTypeTextBlock,
					SemanticLabel: label,
					Confidence:    block.Confidence,
				})
			}
			segments = append(segments, blockSegments(tb.Blocks, fullText, depth+1)...)
		case block.TableBlock != nil:
			if text := renderTableBlock(block.TableBlock, fullText, depth+1); strings.TrimSpace(text) != "" {
				segments = append(segments, Segment{
					Text:          strings.TrimSpace(text),
					Type:          models.ChunkTypeTable,
					SemanticLabel: models.ChunkTypeTable,
					Confidence:    block.Confidence,
				})
			}
		}
	}
	return segments
}

func paragraphSegments(page LayoutPage, fullText string, pageNumber int) []Segment {
	var segments []Segment
	for _, para := range page.Paragraphs {
		text := resolveLayoutText(para.Layout, fullText)
		if text == "" {
			continue
		}
		confidence := 1.0
		if para.Layout != nil && para.Layout.Confidence > 0 {
			confidence = para.Layout.Confidence
		}
		segments = append(segments, Segment{
			Text:          text,
			Type:          models.ChunkTypeParagraph,
			SemanticLabel: models.ChunkTypeParagraph,
			Page:          pageNumber,
			Confidence:    confidence,
		})
	}
	return segments
}

func tableSegments(page LayoutPage, fullText string, pageNumber int) []Segment {
	var segments []Segment
	for _, table := range page.Tables {
		text := renderTableMarkdown(table, fullText)
		if strings.TrimSpace(text) == "" {
			continue
		}
		segments = append(segments, Segment{
			Text:          strings.TrimSpace(text),
			Type:          models.ChunkTypeTable,
			SemanticLabel: models.ChunkTypeTable,
			Page:          pageNumber,
		})
	}
	return segments
}

// renderTableMarkdown renders a page-level table as a markdown pipe
// table: header row, a dashed separator row, then body rows. Empty cells
// become a single space so column counts stay aligned.
func renderTableMarkdown(table Table, fullText string) string {
	var lines []string

	for _, row := range table.HeaderRows {
		cells := markdownCells(row, fullText)
		if len(cells) == 0 {
			continue
		}
		lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
		dashes := make([]string, len(cells))
		for i := range dashes {
			dashes[i] = "---"
		}
		lines = append(lines, "| "+strings.Join(dashes, " | ")+" |")
	}

	for _, row := range table.BodyRows {
		cells := markdownCells(row, fullText)
		if len(cells) == 0 {
			continue
		}
		lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
	}

	return strings.Join(lines, "\n")
}

func markdownCells(row TableRow, fullText string) []string {
	cells := make([]string, 0, len(row.Cells))
	for _, cell := range row.Cells {
		text := strings.TrimSpace(resolveLayoutText(cell.Layout, fullText))
		if text == "" {
			text = " "
		}
		cells = append(cells, text)
	}
	return cells
}
