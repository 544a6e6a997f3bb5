package query

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearchart/medrag/internal/core"
	"github.com/clearchart/medrag/internal/models"
)

// fakeStore implements core.Store in memory with call tracking for the
// pipeline interactions under test.
type fakeStore struct {
	core.Store

	processing []models.Document
	chats      map[string]*models.Chat
	chunks     map[string]*models.ChunkRecord
	messages   map[string][]models.ChatMessage

	createdChats    []string
	createdMessages []models.ChatMessage
	touched         []string
	countDeltas     []int
	chunkFetches    []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chats:    map[string]*models.Chat{},
		chunks:   map[string]*models.ChunkRecord{},
		messages: map[string][]models.ChatMessage{},
	}
}

func (s *fakeStore) GetProcessingDocuments(ctx context.Context, userID string) ([]models.Document, error) {
	return s.processing, nil
}

func (s *fakeStore) CreateChat(ctx context.Context, chat *models.Chat) error {
	s.chats[chat.ID] = chat
	s.createdChats = append(s.createdChats, chat.ID)
	return nil
}

func (s *fakeStore) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	return s.chats[chatID], nil
}

func (s *fakeStore) TouchChat(ctx context.Context, chatID string) error {
	s.touched = append(s.touched, chatID)
	return nil
}

func (s *fakeStore) IncrementMessageCount(ctx context.Context, chatID string, delta int) error {
	s.countDeltas = append(s.countDeltas, delta)
	return nil
}

func (s *fakeStore) GetChunk(ctx context.Context, chunkID string) (*models.ChunkRecord, error) {
	s.chunkFetches = append(s.chunkFetches, chunkID)
	return s.chunks[chunkID], nil
}

func (s *fakeStore) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], *msg)
	s.createdMessages = append(s.createdMessages, *msg)
	return nil
}

func (s *fakeStore) ListRecentMessages(ctx context.Context, chatID string, limit int) ([]models.ChatMessage, error) {
	msgs := s.messages[chatID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

type fakeIndex struct {
	candidates []core.Candidate
	searched   bool
}

func (x *fakeIndex) Upsert(ctx context.Context, ids []string, vectors [][]float32) error {
	return nil
}

func (x *fakeIndex) Search(ctx context.Context, vector []float32, k int) ([]core.Candidate, error) {
	x.searched = true
	if len(x.candidates) > k {
		return x.candidates[:k], nil
	}
	return x.candidates, nil
}

func (x *fakeIndex) Remove(ctx context.Context, ids []string) error { return nil }

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

// fakeLLM answers generation calls in order and can fail selectively.
type fakeLLM struct {
	answers     []string
	errOn       int // 1-based call number to fail on, 0 = never
	calls       int
	userPrompts []string
}

func (l *fakeLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	l.calls++
	l.userPrompts = append(l.userPrompts, userPrompt)
	if l.errOn == l.calls {
		return "", errors.New("model unavailable")
	}
	if len(l.answers) >= l.calls {
		return l.answers[l.calls-1], nil
	}
	return "generated answer", nil
}

func ownedChunk(id, userID, text string) *models.ChunkRecord {
	return &models.ChunkRecord{ID: id, UserID: userID, DocumentID: "doc-" + userID, Text: text}
}

func pipeline(store *fakeStore, index *fakeIndex, llm *fakeLLM) *Service {
	return NewService(store, index, fakeEmbedder{}, llm)
}

func TestProcessQueryHappyPath(t *testing.T) {
	store := newFakeStore()
	index := &fakeIndex{}
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("chunk-%d", i)
		store.chunks[id] = ownedChunk(id, "alice", fmt.Sprintf("chunk body %d", i))
		index.candidates = append(index.candidates, core.Candidate{ChunkID: id, Distance: float64(i)})
	}
	llm := &fakeLLM{answers: []string{"the answer"}}

	svc := pipeline(store, index, llm)
	res, err := svc.ProcessQuery(context.Background(), "alice", Request{Question: "What was diagnosed?"})
	require.NoError(t, err)

	assert.Equal(t, "the answer", res.Answer)
	require.Len(t, res.Sources, 3)
	assert.Equal(t, "chunk-0", res.Sources[0].ID)
	assert.Equal(t, 0.0, res.Sources[0].Distance)

	// a fresh chat was created and both turns persisted
	require.Len(t, store.createdChats, 1)
	assert.Equal(t, store.createdChats[0], res.ChatID)
	require.Len(t, store.createdMessages, 2)
	assert.Equal(t, "user", store.createdMessages[0].Role)
	assert.Equal(t, "What was diagnosed?", store.createdMessages[0].Content)
	assert.Equal(t, "assistant", store.createdMessages[1].Role)
	assert.Equal(t, "the answer", store.createdMessages[1].Content)
	assert.Len(t, store.createdMessages[1].Sources, 3)
	assert.Equal(t, []string{res.ChatID}, store.touched)
	assert.Equal(t, []int{2}, store.countDeltas)
}

func TestProcessQueryTenantIsolation(t *testing.T) {
	store := newFakeStore()
	index := &fakeIndex{}

	// The closest half of the candidates belongs to another user; only
	// the caller's chunks may reach the prompt.
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("other-%d", i)
		store.chunks[id] = ownedChunk(id, "mallory", "someone else's record")
		index.candidates = append(index.candidates, core.Candidate{ChunkID: id, Distance: float64(i)})
	}
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("mine-%d", i)
		store.chunks[id] = ownedChunk(id, "alice", fmt.Sprintf("my record %d", i))
		index.candidates = append(index.candidates, core.Candidate{ChunkID: id, Distance: float64(10 + i)})
	}
	llm := &fakeLLM{}

	svc := pipeline(store, index, llm)
	res, err := svc.ProcessQuery(context.Background(), "alice", Request{Question: "q"})
	require.NoError(t, err)

	require.Len(t, res.Sources, 4)
	for i, src := range res.Sources {
		assert.Equal(t, fmt.Sprintf("mine-%d", i), src.ID)
	}
	for _, p := range llm.userPrompts {
		assert.NotContains(t, p, "someone else's record")
	}
}

func TestProcessQueryEarlyExitAtTopK(t *testing.T) {
	store := newFakeStore()
	index := &fakeIndex{}
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("c-%02d", i)
		store.chunks[id] = ownedChunk(id, "alice", fmt.Sprintf("text %d", i))
		index.candidates = append(index.candidates, core.Candidate{ChunkID: id, Distance: float64(i)})
	}

	svc := pipeline(store, index, &fakeLLM{})
	res, err := svc.ProcessQuery(context.Background(), "alice", Request{Question: "q", TopK: 5})
	require.NoError(t, err)

	require.Len(t, res.Sources, 5)
	// best-first order preserved
	for i, src := range res.Sources {
		assert.Equal(t, fmt.Sprintf("c-%02d", i), src.ID)
	}
	// fetching stopped once topK was satisfied
	assert.Len(t, store.chunkFetches, 5)
}

func TestProcessQueryProcessingGate(t *testing.T) {
	store := newFakeStore()
	store.processing = []models.Document{{ID: "d1", Title: "Lab Results", Status: models.StatusProcessing}}
	index := &fakeIndex{candidates: []core.Candidate{{ChunkID: "x"}}}

	svc := pipeline(store, index, &fakeLLM{})
	_, err := svc.ProcessQuery(context.Background(), "alice", Request{Question: "q"})

	var procErr *ProcessingError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, "Lab Results", procErr.DocumentName)
	assert.False(t, index.searched)
	assert.Empty(t, store.createdMessages)
}

func TestProcessQueryNoCandidates(t *testing.T) {
	store := newFakeStore()
	svc := pipeline(store, &fakeIndex{}, &fakeLLM{})

	_, err := svc.ProcessQuery(context.Background(), "alice", Request{Question: "q"})
	assert.ErrorIs(t, err, ErrNoRelevantDocuments)
	assert.Empty(t, store.createdMessages)
}

func TestProcessQueryNoOwnedChunks(t *testing.T) {
	store := newFakeStore()
	index := &fakeIndex{}
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("other-%d", i)
		store.chunks[id] = ownedChunk(id, "mallory", "not yours")
		index.candidates = append(index.candidates, core.Candidate{ChunkID: id, Distance: float64(i)})
	}
	// orphaned candidate with no backing record
	index.candidates = append(index.candidates, core.Candidate{ChunkID: "gone", Distance: 9})

	svc := pipeline(store, index, &fakeLLM{})
	_, err := svc.ProcessQuery(context.Background(), "alice", Request{Question: "q"})
	assert.ErrorIs(t, err, ErrNoUserDocuments)
}

func TestProcessQueryChatOwnership(t *testing.T) {
	store := newFakeStore()
	store.chats["c1"] = &models.Chat{ID: "c1", UserID: "mallory"}
	index := &fakeIndex{candidates: []core.Candidate{{ChunkID: "x"}}}

	svc := pipeline(store, index, &fakeLLM{})
	_, err := svc.ProcessQuery(context.Background(), "alice", Request{Question: "q", ChatID: "c1"})
	assert.ErrorIs(t, err, ErrChatAccessDenied)
	assert.False(t, index.searched)
}

func TestProcessQueryUnknownChatIDCreatesNew(t *testing.T) {
	store := newFakeStore()
	index := &fakeIndex{candidates: []core.Candidate{{ChunkID: "c", Distance: 1}}}
	store.chunks["c"] = ownedChunk("c", "alice", "some chunk text")

	svc := pipeline(store, index, &fakeLLM{})
	res, err := svc.ProcessQuery(context.Background(), "alice", Request{Question: "q", ChatID: "missing"})
	require.NoError(t, err)

	require.Len(t, store.createdChats, 1)
	assert.NotEqual(t, "missing", res.ChatID)
}

func TestEnhanceQueryShortHistoryVerbatim(t *testing.T) {
	store := newFakeStore()
	store.chats["c1"] = &models.Chat{ID: "c1", UserID: "alice"}
	store.messages["c1"] = []models.ChatMessage{{ChatID: "c1", Role: "user", Content: "hello"}}
	llm := &fakeLLM{}

	svc := pipeline(store, &fakeIndex{}, llm)
	got := svc.enhanceQuery(context.Background(), "c1", "what about the dosage?")
	assert.Equal(t, "what about the dosage?", got)
	assert.Zero(t, llm.calls)
}

func TestEnhanceQueryRewrites(t *testing.T) {
	store := newFakeStore()
	store.messages["c1"] = []models.ChatMessage{
		{ChatID: "c1", Role: "user", Content: "Tell me about metformin."},
		{ChatID: "c1", Role: "assistant", Content: "Metformin is..."},
	}
	llm := &fakeLLM{answers: []string{"What is the recommended metformin dosage?"}}

	svc := pipeline(store, &fakeIndex{}, llm)
	got := svc.enhanceQuery(context.Background(), "c1", "what about the dosage?")
	assert.Equal(t, "What is the recommended metformin dosage?", got)
}

func TestEnhanceQueryDegradesOnModelFailure(t *testing.T) {
	store := newFakeStore()
	store.messages["c1"] = []models.ChatMessage{
		{ChatID: "c1", Role: "user", Content: "a"},
		{ChatID: "c1", Role: "assistant", Content: "b"},
	}
	llm := &fakeLLM{errOn: 1}

	svc := pipeline(store, &fakeIndex{}, llm)
	got := svc.enhanceQuery(context.Background(), "c1", "original question")
	assert.Equal(t, "original question", got)
}

func TestProcessQueryNoPersistenceOnGenerationFailure(t *testing.T) {
	store := newFakeStore()
	index := &fakeIndex{candidates: []core.Candidate{{ChunkID: "c", Distance: 1}}}
	store.chunks["c"] = ownedChunk("c", "alice", "some chunk text")
	llm := &fakeLLM{errOn: 1}

	svc := pipeline(store, index, llm)
	_, err := svc.ProcessQuery(context.Background(), "alice", Request{Question: "q"})
	require.Error(t, err)

	assert.Empty(t, store.createdMessages)
	assert.Empty(t, store.touched)
	assert.Empty(t, store.countDeltas)
}
