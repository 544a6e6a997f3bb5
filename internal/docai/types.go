// Package docai models the JSON shapes returned by the external
// document-understanding service (layout parser and form parser) and
// extracts linear text, structural segments, and key-value pairs from
// them. The shapes are schema-loose: every accessor degrades to empty
// output on missing or malformed fields instead of failing.
package docai

// TextSegment is a half-open offset range into a document's full text.
type TextSegment struct {
	StartIndex int64 `json:"startIndex,string"`
	EndIndex   int64 `json:"endIndex,string"`
}

// TextAnchor references one or more segments of the full-text string.
type TextAnchor struct {
	TextSegments []TextSegment `json:"textSegments"`
}

// Layout carries the anchor and recognition confidence of an element.
type Layout struct {
	TextAnchor *TextAnchor `json:"textAnchor"`
	Confidence float64     `json:"confidence"`
}

// Block is a node of the layout tree. Exactly one of TextBlock or
// TableBlock is expected to be set; both absent is tolerated.
type Block struct {
	TextBlock  *TextBlock  `json:"textBlock,omitempty"`
	TableBlock *TableBlock `json:"tableBlock,omitempty"`
	Confidence float64     `json:"confidence,omitempty"`
}

// TextBlock holds text with a declared type (paragraph, heading, ...)
// and arbitrarily nested child blocks.
type TextBlock struct {
	Text   string  `json:"text"`
	Type   string  `json:"type"`
	Blocks []Block `json:"blocks,omitempty"`
}

// TableBlock holds header and body rows.
type TableBlock struct {
	HeaderRows []TableRow `json:"headerRows,omitempty"`
	BodyRows   []TableRow `json:"bodyRows,omitempty"`
}

// TableRow is a list of cells.
type TableRow struct {
	Cells []TableCell `json:"cells"`
}

// TableCell contains either nested blocks or an anchored layout.
type TableCell struct {
	Blocks []Block `json:"blocks,omitempty"`
	Layout *Layout `json:"layout,omitempty"`
}

// DocumentLayout is the root of the block tree.
type DocumentLayout struct {
	Blocks []Block `json:"blocks"`
}

// Paragraph is a page-level paragraph element.
type Paragraph struct {
	Layout *Layout `json:"layout"`
}

// Table is a page-level table element whose cells are anchor-addressed.
type Table struct {
	HeaderRows []TableRow `json:"headerRows,omitempty"`
	BodyRows   []TableRow `json:"bodyRows,omitempty"`
}

// LayoutPage is one page of the layout parser output.
type LayoutPage struct {
	PageNumber int         `json:"pageNumber"`
	Paragraphs []Paragraph `json:"paragraphs,omitempty"`
	Tables     []Table     `json:"tables,omitempty"`
}

// LayoutDocument is the layout parser output.
type LayoutDocument struct {
	Text           string          `json:"text,omitempty"`
	DocumentLayout *DocumentLayout `json:"documentLayout,omitempty"`
	Pages          []LayoutPage    `json:"pages,omitempty"`
}

// FormField is one detected key/value pair.
type FormField struct {
	FieldName  *Layout `json:"fieldName,omitempty"`
	FieldValue *Layout `json:"fieldValue,omitempty"`
}

// FormPage is one page of the form parser output.
type FormPage struct {
	PageNumber int         `json:"pageNumber"`
	FormFields []FormField `json:"formFields,omitempty"`
}

// FormDocument is the form parser output. All field anchors resolve
// against the single top-level Text string.
type FormDocument struct {
	Text  string     `json:"text"`
	Pages []FormPage `json:"pages,omitempty"`
}

// Segment is a typed unit of extracted text produced by the
// structure-aware extraction path.
type Segment struct {
	Text          string
	Type          string
	SemanticLabel string
	Page          int
	Confidence    float64
}

// KVItem is a resolved form field rendered as "key: value".
type KVItem struct {
	Text string
	Page int
}
