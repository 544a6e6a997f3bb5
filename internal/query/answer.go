package query

import (
	"fmt"
	"strings"
)

const answerSystemPrompt = "You are a helpful medical assistant. " +
	"Answer based ONLY on the provided medical document excerpts."

// BuildAnswerPrompt assembles the grounded generation prompt from the
// verbatim user question and the retrieved chunk texts labeled by
// ordinal position. Pure function; the grounding instructions tell the
// model to admit when the excerpts are insufficient.
func BuildAnswerPrompt(question string, chunkTexts []string) string {
	var ctx strings.Builder
	for i, text := range chunkTexts {
		fmt.Fprintf(&ctx, "Chunk %d:\n%s\n\n", i+1, text)
	}

	return fmt.Sprintf(`Answer the question based ONLY on the provided medical document excerpts.

Question: %s

Medical Document Excerpts:
%s
Instructions:
- Provide a clear, accurate answer based on the excerpts above
- If the excerpts don't contain enough information to answer, say so explicitly
- Use medical terminology appropriately but explain complex terms
- Be concise but thorough

Answer:`, question, ctx.String())
}
