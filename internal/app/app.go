// Package app wires configuration, storage, providers, the ingestion
// pipeline, and the HTTP server into a runnable application.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/clearchart/medrag/internal/chunker"
	"github.com/clearchart/medrag/internal/config"
	"github.com/clearchart/medrag/internal/core"
	"github.com/clearchart/medrag/internal/docai"
	"github.com/clearchart/medrag/internal/ingest"
	"github.com/clearchart/medrag/internal/llm"
	"github.com/clearchart/medrag/internal/objectstore"
	"github.com/clearchart/medrag/internal/query"
	"github.com/clearchart/medrag/internal/store"
	"github.com/clearchart/medrag/internal/vectorindex"
)

type App struct {
	Store    core.Store
	Object   core.ObjectClient
	Ingestor core.Ingestor
	Server   *Server

	cfg *config.Config
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	st, err := store.NewPostgresStore(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	log.Println("Database initialized and ready.")

	index := vectorindex.NewPgVectorIndex(st.(*store.PostgresStore).DB())

	objClient, err := objectstore.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	log.Println("Object storage initialized and ready.")

	embedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	llmProvider, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, fmt.Errorf("init llm: %w", err)
	}

	processor, err := newProcessor(cfg)
	if err != nil {
		return nil, err
	}

	builder := chunker.NewBuilder(newTokenCounter(cfg), 0, 0, 0)

	ingestor := ingest.NewDocumentIngestor(st, objClient, embedder, index, processor, llmProvider, builder, ingest.Config{
		Semantic:   cfg.SemanticChunking,
		SplitLarge: cfg.SemanticChunking,
	})

	querySvc := query.NewService(st, index, embedder, llmProvider)

	server := NewServer(cfg, st, objClient, index, ingestor, querySvc)

	return &App{Store: st, Object: objClient, Ingestor: ingestor, Server: server, cfg: cfg}, nil
}

// newProcessor selects the document-understanding backend: the external
// service when its processor ids are configured, otherwise the local
// extraction fallback.
func newProcessor(cfg *config.Config) (core.DocumentProcessor, error) {
	if cfg.DocAIEndpoint != "" && cfg.LayoutProcessorID != "" {
		client, err := docai.NewClient(cfg.DocAIEndpoint, cfg.DocAIProjectID, cfg.DocAILocation,
			cfg.LayoutProcessorID, cfg.FormProcessorID, cfg.DocAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("init document processor: %w", err)
		}
		return client, nil
	}
	log.Println("Document service not configured; using local extraction fallback.")
	return docai.NewFallbackProcessor(false), nil
}

// newTokenCounter prefers the real tokenizer; its vocabulary is fetched
// on first use, so a failure degrades to the character heuristic rather
// than blocking startup.
func newTokenCounter(cfg *config.Config) chunker.TokenCounter {
	counter, err := chunker.NewTiktokenCounter(cfg.TokenEncoding)
	if err != nil {
		log.Printf("tokenizer %q unavailable, using heuristic counter: %v", cfg.TokenEncoding, err)
		return chunker.HeuristicCounter{}
	}
	return counter
}

func (a *App) Close() {
	if a.Store != nil {
		_ = a.Store.Close()
	}
}
