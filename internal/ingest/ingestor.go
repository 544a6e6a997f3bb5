// Package ingest runs the background document pipeline: download the
// uploaded PDF, extract layout and form structure, chunk, persist chunk
// records, embed, index, and summarize.
package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/clearchart/medrag/internal/chunker"
	"github.com/clearchart/medrag/internal/core"
	"github.com/clearchart/medrag/internal/models"
	"github.com/clearchart/medrag/internal/objectstore"
)

// Config tunes the ingestion pipeline.
//
// EmbedBatchSize: chunks embedded and upserted per round trip.
// Semantic:       use the structure-aware chunking path when true,
//                 otherwise the rule-based token-packing path.
// SplitLarge:     apply the oversized-chunk post-pass (semantic path).
type Config struct {
	EmbedBatchSize int
	Semantic       bool
	SplitLarge     bool
}

// DocumentIngestor orchestrates the background ingestion pipeline with a
// bounded in-memory job queue of document IDs.
type DocumentIngestor struct {
	store     core.Store
	obj       core.ObjectClient
	embedder  core.EmbeddingProvider
	index     core.VectorIndex
	processor core.DocumentProcessor
	llm       core.LLMProvider
	builder   *chunker.Builder
	cfg       Config
	jobs      chan string
}

// NewDocumentIngestor constructs the ingestor with a bounded job queue (64).
func NewDocumentIngestor(
	store core.Store,
	obj core.ObjectClient,
	embedder core.EmbeddingProvider,
	index core.VectorIndex,
	processor core.DocumentProcessor,
	llm core.LLMProvider,
	builder *chunker.Builder,
	cfg Config,
) *DocumentIngestor {
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 100
	}
	return &DocumentIngestor{
		store: store, obj: obj, embedder: embedder, index: index,
		processor: processor, llm: llm, builder: builder, cfg: cfg,
		jobs: make(chan string, 64),
	}
}

// Start runs worker goroutines reading from the jobs channel.
func (i *DocumentIngestor) Start(ctx context.Context, numWorkers int) {
	for w := 1; w <= numWorkers; w++ {
		go func(w int) {
			for {
				select {
				case <-ctx.Done():
					log.Println("ingest: worker shutting down")
					return
				case docID := <-i.jobs:
					log.Printf("ingest: worker %d processing document %s", w, docID)
					if err := i.ProcessOne(ctx, docID); err != nil {
						log.Printf("ingest: document %s failed: %v", docID, err)
					}
				}
			}
		}(w)
	}
}

// Enqueue schedules a document ID for ingestion. Blocks when the queue
// is full.
func (i *DocumentIngestor) Enqueue(docID string) {
	i.jobs <- docID
}

// ProcessOne runs the full pipeline for a single document ID.
func (i *DocumentIngestor) ProcessOne(ctx context.Context, docID string) error {
	procCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	doc, err := i.store.GetDocumentByID(procCtx, docID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("document not found: %s", docID)
	}

	_ = i.store.UpdateDocumentStatus(procCtx, docID, models.StatusProcessing)

	if err := i.process(procCtx, doc); err != nil {
		_ = i.store.UpdateDocumentStatus(ctx, docID, models.StatusFailed)
		return err
	}
	return nil
}

func (i *DocumentIngestor) process(ctx context.Context, doc *models.Document) error {
	bucket, key := objectstore.ParseURL(doc.StorageURL)

	raw, err := i.obj.GetFile(ctx, bucket, key)
	if err != nil {
		return fmt.Errorf("fetch object: %w", err)
	}

	layout, form, err := i.processor.Process(ctx, raw, "application/pdf")
	if err != nil {
		return fmt.Errorf("process document: %w", err)
	}

	var chunks []chunker.Chunk
	if i.cfg.Semantic {
		chunks = i.builder.BuildSemanticChunks(layout, form)
		if i.cfg.SplitLarge {
			chunks = i.builder.SplitLargeChunks(chunks)
		}
	} else {
		chunks = i.builder.BuildChunks(layout, form)
	}
	chunks = i.builder.FilterSubstantive(chunks)
	log.Printf("ingest: document %s produced %d chunks", doc.ID, len(chunks))

	records := make([]models.ChunkRecord, len(chunks))
	for idx, ch := range chunks {
		meta := ch.Metadata
		meta.DocumentTitle = doc.Title
		records[idx] = models.ChunkRecord{
			ID:         uuid.NewString(),
			UserID:     doc.UserID,
			DocumentID: doc.ID,
			Text:       ch.Text,
			Metadata:   meta,
		}
	}

	if err := i.store.InsertChunks(ctx, records); err != nil {
		return fmt.Errorf("persist chunks: %w", err)
	}

	if err := i.embedAndIndex(ctx, records); err != nil {
		return err
	}

	// Summary generation is best-effort: a model failure must not fail
	// an otherwise fully indexed document.
	summary, err := i.generateSummary(ctx, records)
	if err != nil {
		log.Printf("ingest: summary for document %s skipped: %v", doc.ID, err)
		summary = ""
	}

	pageCount := len(layout.Pages)
	if err := i.store.FinishDocument(ctx, doc.ID, len(records), pageCount, summary); err != nil {
		return fmt.Errorf("finish document: %w", err)
	}

	log.Printf("ingest: document %s completed (%d chunks, %d pages)", doc.ID, len(records), pageCount)
	return nil
}

// embedAndIndex embeds chunk texts in bounded batches and streams each
// batch into the vector index, preserving record order.
func (i *DocumentIngestor) embedAndIndex(ctx context.Context, records []models.ChunkRecord) error {
	for start := 0; start < len(records); start += i.cfg.EmbedBatchSize {
		end := min(start+i.cfg.EmbedBatchSize, len(records))
		batch := records[start:end]

		texts := make([]string, len(batch))
		ids := make([]string, len(batch))
		for k := range batch {
			texts[k] = batch[k].Text
			ids[k] = batch[k].ID
		}

		vecs, err := i.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("embed size mismatch: got %d want %d", len(vecs), len(batch))
		}

		if err := i.index.Upsert(ctx, ids, vecs); err != nil {
			return fmt.Errorf("index upsert [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

var _ core.Ingestor = (*DocumentIngestor)(nil)
