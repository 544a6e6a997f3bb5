// Package query implements the retrieval-augmented query pipeline:
// processing gate, chat resolution, history-aware query rewriting,
// embedding, broad vector search, tenant-filtered candidate fetching,
// grounded generation, and chat persistence.
package query

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clearchart/medrag/internal/core"
	"github.com/clearchart/medrag/internal/models"
)

const (
	// searchCandidates is deliberately oversized relative to top_k: the
	// index has no tenant awareness, so other users' candidates and
	// orphaned ids must be filterable down to top_k without a second
	// round trip.
	searchCandidates = 100

	// historyWindow bounds the prior turns considered for rewriting.
	historyWindow = 5

	DefaultTopK = 10
	MaxTopK     = 20
)

// Request is one user query against their indexed corpus.
type Request struct {
	Question string
	ChatID   string
	TopK     int
}

// Result carries the grounded answer, its sources, and the chat the
// exchange was appended to.
type Result struct {
	Answer  string
	Sources []models.Source
	ChatID  string
}

// Service runs the per-query pipeline. It is stateless across queries;
// all cross-request state lives in the store.
type Service struct {
	store    core.Store
	index    core.VectorIndex
	embedder core.EmbeddingProvider
	llm      core.LLMProvider
}

func NewService(store core.Store, index core.VectorIndex, embedder core.EmbeddingProvider, llm core.LLMProvider) *Service {
	return &Service{store: store, index: index, embedder: embedder, llm: llm}
}

// ProcessQuery answers a question from the user's indexed documents.
// Stage order and failure semantics follow a fixed state machine; no
// chat messages are persisted unless generation succeeds.
func (s *Service) ProcessQuery(ctx context.Context, userID string, req Request) (*Result, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	// Fail fast while any of the caller's documents is mid-indexing:
	// querying a partially-indexed corpus yields confidently wrong
	// "no information found" answers.
	if err := s.checkProcessing(ctx, userID); err != nil {
		return nil, err
	}

	chat, err := s.resolveChat(ctx, userID, req.ChatID)
	if err != nil {
		return nil, err
	}

	searchQuery := s.enhanceQuery(ctx, chat.ID, req.Question)

	vecs, err := s.embedder.EmbedTexts(ctx, []string{searchQuery})
	if err != nil || len(vecs) == 0 {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := s.index.Search(ctx, vecs[0], searchCandidates)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(candidates) == 0 {
		return nil, ErrNoRelevantDocuments
	}

	chunkTexts, sources, err := s.fetchOwnedChunks(ctx, candidates, userID, topK)
	if err != nil {
		return nil, err
	}
	if len(chunkTexts) == 0 {
		return nil, ErrNoUserDocuments
	}

	// The prompt uses the verbatim original question, not the rewrite.
	answer, err := s.llm.Generate(ctx, answerSystemPrompt, BuildAnswerPrompt(req.Question, chunkTexts))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	if err := s.persistExchange(ctx, chat.ID, userID, req.Question, answer, sources); err != nil {
		return nil, fmt.Errorf("persist chat messages: %w", err)
	}

	return &Result{Answer: answer, Sources: sources, ChatID: chat.ID}, nil
}

func (s *Service) checkProcessing(ctx context.Context, userID string) error {
	processing, err := s.store.GetProcessingDocuments(ctx, userID)
	if err != nil {
		return fmt.Errorf("check processing documents: %w", err)
	}
	if len(processing) == 0 {
		return nil
	}
	name := processing[0].Title
	if name == "" {
		name = processing[0].FileName
	}
	if name == "" {
		name = "your document"
	}
	return &ProcessingError{DocumentName: name}
}

// resolveChat reuses the supplied chat when it exists and is owned by
// the caller, creates a fresh chat when none was supplied or the id is
// unknown, and rejects an ownership mismatch outright so callers cannot
// append to another user's chat by guessing an id.
func (s *Service) resolveChat(ctx context.Context, userID, chatID string) (*models.Chat, error) {
	if chatID != "" {
		chat, err := s.store.GetChat(ctx, chatID)
		if err != nil {
			return nil, fmt.Errorf("get chat: %w", err)
		}
		if chat != nil {
			if chat.UserID != userID {
				return nil, ErrChatAccessDenied
			}
			return chat, nil
		}
	}

	chat := &models.Chat{
		ID:     uuid.NewString(),
		UserID: userID,
		Title:  "New Chat",
	}
	if err := s.store.CreateChat(ctx, chat); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return chat, nil
}

// enhanceQuery rewrites the question as a standalone query using recent
// chat history. Best-effort: any failure falls back to the original
// question and never aborts the pipeline.
func (s *Service) enhanceQuery(ctx context.Context, chatID, question string) string {
	history, err := s.store.ListRecentMessages(ctx, chatID, historyWindow)
	if err != nil {
		log.Printf("query: history fetch failed, using question verbatim: %v", err)
		return question
	}
	if len(history) < 2 {
		return question
	}

	var transcript strings.Builder
	for _, msg := range history {
		fmt.Fprintf(&transcript, "%s: %s\n", msg.Role, msg.Content)
	}

	prompt := fmt.Sprintf(`Given the conversation below, rewrite the user's latest question as a standalone, context-complete search query of one or two sentences. Return only the rewritten query.

Conversation:
%s
Latest question: %s`, transcript.String(), question)

	rewritten, err := s.llm.Generate(ctx, "", prompt)
	if err != nil {
		log.Printf("query: rewrite failed, using question verbatim: %v", err)
		return question
	}
	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return question
	}
	return rewritten
}

// fetchOwnedChunks walks candidates in index order (ascending distance),
// keeps only chunks whose record exists and belongs to the caller, and
// stops as soon as topK matches are accepted. Foreign or orphaned
// candidates are silently discarded; the index cannot know about them.
func (s *Service) fetchOwnedChunks(ctx context.Context, candidates []core.Candidate, userID string, topK int) ([]string, []models.Source, error) {
	var (
		texts   []string
		sources []models.Source
	)

	for _, cand := range candidates {
		if len(texts) >= topK {
			break
		}

		record, err := s.store.GetChunk(ctx, cand.ChunkID)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch chunk %s: %w", cand.ChunkID, err)
		}
		if record == nil || record.UserID != userID {
			continue
		}

		texts = append(texts, record.Text)
		sources = append(sources, models.Source{
			ID:         cand.ChunkID,
			Distance:   cand.Distance,
			Metadata:   record.Metadata,
			DocumentID: record.DocumentID,
		})
	}

	return texts, sources, nil
}

// persistExchange writes the question and the answer as two ordered chat
// messages, then refreshes the chat's activity metadata.
func (s *Service) persistExchange(ctx context.Context, chatID, userID, question, answer string, sources []models.Source) error {
	now := time.Now().UTC()

	userMsg := &models.ChatMessage{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		UserID:    userID,
		Role:      "user",
		Content:   question,
		CreatedAt: now,
	}
	if err := s.store.CreateMessage(ctx, userMsg); err != nil {
		return err
	}

	assistantMsg := &models.ChatMessage{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		UserID:    userID,
		Role:      "assistant",
		Content:   answer,
		Sources:   sources,
		CreatedAt: now.Add(time.Millisecond),
	}
	if err := s.store.CreateMessage(ctx, assistantMsg); err != nil {
		return err
	}

	if err := s.store.TouchChat(ctx, chatID); err != nil {
		log.Printf("query: touch chat %s failed: %v", chatID, err)
	}
	if err := s.store.IncrementMessageCount(ctx, chatID, 2); err != nil {
		log.Printf("query: message count update for chat %s failed: %v", chatID, err)
	}
	return nil
}
