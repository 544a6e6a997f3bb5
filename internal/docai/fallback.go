package docai

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"code.sajari.com/docconv"
)

// FallbackProcessor extracts plain text locally with docconv when no
// layout/form service is configured. It yields a LayoutDocument whose
// flat text field carries the whole extraction, so downstream chunking
// takes the rule-based path; form output is always empty.
type FallbackProcessor struct {
	useReadability bool
}

func NewFallbackProcessor(useReadability bool) *FallbackProcessor {
	return &FallbackProcessor{useReadability: useReadability}
}

func (p *FallbackProcessor) Process(ctx context.Context, raw []byte, contentType string) (*LayoutDocument, *FormDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	res, err := docconv.Convert(bytes.NewReader(raw), contentType, p.useReadability)
	if err != nil {
		return nil, nil, fmt.Errorf("docconv extract (%s): %w", contentType, err)
	}
	if res.Body == "" {
		log.Printf("docai: fallback extractor produced empty text for %s", contentType)
	}

	return &LayoutDocument{Text: res.Body}, &FormDocument{}, nil
}
