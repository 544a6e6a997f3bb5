// Package chunker turns extracted document text into retrieval-sized,
// token-bounded chunks: a rule-based greedy packing path over sentences
// and a structure-aware path over the layout decomposition, with
// deduplication, a minimum-length gate, and oversized-chunk splitting.
package chunker

import (
	"regexp"
	"strings"

	"github.com/clearchart/medrag/internal/docai"
	"github.com/clearchart/medrag/internal/models"
)

const (
	// DefaultMaxTokens bounds a rule-based chunk.
	DefaultMaxTokens = 512
	// DefaultMinChunkLen drops fragments below retrieval value (stray
	// headers, page numbers, single-cell artifacts).
	DefaultMinChunkLen = 50
	// DefaultMaxChunkLen is the soft character cap for SplitLargeChunks.
	DefaultMaxChunkLen = 2000
)

// Chunk is a bounded unit of extracted text plus its provenance.
type Chunk struct {
	Text     string
	Metadata models.ChunkMetadata
}

// Builder packs sentences and structural segments into chunks.
type Builder struct {
	counter     TokenCounter
	maxTokens   int
	minChunkLen int
	maxChunkLen int
}

// NewBuilder constructs a Builder around the given token counter, using
// the default bounds for any non-positive limit.
func NewBuilder(counter TokenCounter, maxTokens, minChunkLen, maxChunkLen int) *Builder {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if minChunkLen <= 0 {
		minChunkLen = DefaultMinChunkLen
	}
	if maxChunkLen <= 0 {
		maxChunkLen = DefaultMaxChunkLen
	}
	return &Builder{counter: counter, maxTokens: maxTokens, minChunkLen: minChunkLen, maxChunkLen: maxChunkLen}
}

// ChunkText packs sentences into token-bounded chunks: greedy, single
// pass, no backtracking. A chunk never exceeds maxTokens unless a single
// sentence alone does (lone oversized sentences are not split here; see
// SplitLargeChunks). Output order equals sentence order, chunk_index is
// 1-based, and every chunk is typed rule_based.
func (b *Builder) ChunkText(text string) []Chunk {
	sentences := SplitSentences(text)

	var packed []string
	var current []string
	currentTokens := 0

	for _, sentence := range sentences {
		t := b.counter.Count(sentence)
		if currentTokens+t > b.maxTokens && len(current) > 0 {
			packed = append(packed, strings.Join(current, " "))
			current = []string{sentence}
			currentTokens = t
		} else {
			current = append(current, sentence)
			currentTokens += t
		}
	}
	if len(current) > 0 {
		packed = append(packed, strings.Join(current, " "))
	}

	chunks := make([]Chunk, 0, len(packed))
	for i, body := range packed {
		chunks = append(chunks, Chunk{
			Text: body,
			Metadata: models.ChunkMetadata{
				ChunkType:  models.ChunkTypeRuleBased,
				ChunkIndex: i + 1,
			},
		})
	}
	return chunks
}

// BuildChunks is the rule-based ingestion path: chunk the linear layout
// text, then append every form key-value pair as its own kv_pair chunk.
// The kv_pair index sequence restarts at 1 independently of the
// rule_based sequence; persisted metadata relies on per-type ordering.
func (b *Builder) BuildChunks(layout *docai.LayoutDocument, form *docai.FormDocument) []Chunk {
	chunks := b.ChunkText(docai.ExtractLayoutText(layout))

	for i, kv := range docai.ExtractFormKV(form) {
		chunks = append(chunks, Chunk{
			Text: kv.Text,
			Metadata: models.ChunkMetadata{
				ChunkType:  models.ChunkTypeKVPair,
				ChunkIndex: i + 1,
				Page:       kv.Page,
			},
		})
	}
	return chunks
}

// BuildSemanticChunks is the structure-aware path. Collection order is
// fixed: layout-block segments, page paragraphs, page tables, then form
// fields. Short fragments are dropped before deduplication so a noisy
// near-duplicate cannot shadow a substantive one.
func (b *Builder) BuildSemanticChunks(layout *docai.LayoutDocument, form *docai.FormDocument) []Chunk {
	var chunks []Chunk

	for i, seg := range docai.ExtractSegments(layout) {
		chunks = append(chunks, Chunk{
			Text: seg.Text,
			Metadata: models.ChunkMetadata{
				ChunkType:     seg.Type,
				ChunkIndex:    i + 1,
				SemanticLabel: seg.SemanticLabel,
				Page:          seg.Page,
				Confidence:    seg.Confidence,
			},
		})
	}

	for i, kv := range docai.ExtractFormKV(form) {
		chunks = append(chunks, Chunk{
			Text: kv.Text,
			Metadata: models.ChunkMetadata{
				ChunkType:     models.ChunkTypeFormField,
				ChunkIndex:    i + 1,
				SemanticLabel: "key_value_pair",
				Page:          kv.Page,
			},
		})
	}

	return Deduplicate(b.FilterSubstantive(chunks))
}

// FilterSubstantive drops chunks whose trimmed text is shorter than the
// minimum length. Pure, order-preserving, idempotent; the final content
// gate before persistence.
func (b *Builder) FilterSubstantive(chunks []Chunk) []Chunk {
	out := make([]Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		trimmed := strings.TrimSpace(chunk.Text)
		if len(trimmed) >= b.minChunkLen {
			chunk.Text = trimmed
			out = append(out, chunk)
		}
	}
	return out
}

// Deduplicate keeps the first occurrence of each normalized text. The
// same physical text routinely appears in both the block tree and the
// per-page decomposition, so emission-order dedup is required.
func Deduplicate(chunks []Chunk) []Chunk {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		key := strings.ToLower(docai.NormalizeSpace(chunk.Text))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, chunk)
	}
	return out
}

// terminalSplit breaks on sentence-terminal punctuation followed by
// whitespace, keeping the punctuation with the preceding fragment.
var terminalSplit = regexp.MustCompile(`(?s)(.*?[.!?])\s+`)

// SplitLargeChunks re-splits any chunk whose raw length exceeds the soft
// character cap, re-packing fragments greedily by character length under
// the same cap. Fragments keep the parent's metadata, gain is_split, and
// preserve relative order. Chunks under the cap pass through untouched.
func (b *Builder) SplitLargeChunks(chunks []Chunk) []Chunk {
	out := make([]Chunk, 0, len(chunks))

	for _, chunk := range chunks {
		if len(chunk.Text) <= b.maxChunkLen {
			out = append(out, chunk)
			continue
		}

		sentences := splitTerminal(chunk.Text)
		var current []string
		currentLen := 0

		emit := func() {
			if len(current) == 0 {
				return
			}
			split := chunk
			split.Text = strings.Join(current, " ")
			split.Metadata.IsSplit = true
			out = append(out, split)
		}

		for _, sentence := range sentences {
			n := len(sentence)
			if currentLen+n > b.maxChunkLen && len(current) > 0 {
				emit()
				current = []string{sentence}
				currentLen = n
			} else {
				current = append(current, sentence)
				currentLen += n
			}
		}
		emit()
	}
	return out
}

func splitTerminal(text string) []string {
	var parts []string
	consumed := 0
	for _, m := range terminalSplit.FindAllStringSubmatchIndex(text, -1) {
		parts = append(parts, text[m[2]:m[3]])
		consumed = m[1]
	}
	if rest := text[consumed:]; rest != "" {
		parts = append(parts, rest)
	}
	return parts
}
