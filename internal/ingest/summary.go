package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/clearchart/medrag/internal/models"
)

// summaryInputCap bounds the text handed to the model for summarization.
const summaryInputCap = 15000

const summarySystemPrompt = "You are a medical document summarizer. " +
	"Explain every medical term you use in plain English and keep the summary simple and clear."

// generateSummary produces a patient-readable summary of the ingested
// document from its chunk corpus.
func (i *DocumentIngestor) generateSummary(ctx context.Context, records []models.ChunkRecord) (string, error) {
	if i.llm == nil || len(records) == 0 {
		return "", nil
	}

	texts := make([]string, len(records))
	for k := range records {
		texts[k] = records[k].Text
	}
	combined := strings.Join(texts, "\n\n")
	if len(combined) > summaryInputCap {
		combined = combined[:summaryInputCap]
	}

	prompt := fmt.Sprintf(`Summarize the following medical document in simple, clear language.

Structure the summary with markdown headers covering: a brief overview, patient information if present, the reason for the visit, findings and test results, diagnoses, treatment, and follow-up instructions. Explain all medical jargon immediately in plain English. Be concise and straight to the point.

MEDICAL DOCUMENT:
%s`, combined)

	summary, err := i.llm.Generate(ctx, summarySystemPrompt, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(summary), nil
}
