package core

import (
	"context"
	"io"

	"github.com/clearchart/medrag/internal/docai"
	"github.com/clearchart/medrag/internal/models"
)

// Store defines all persistence operations the services need.
// It abstracts the metadata database so higher layers never depend on a
// specific engine.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocumentsByUser(ctx context.Context, userID string) ([]models.Document, error)
	GetProcessingDocuments(ctx context.Context, userID string) ([]models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status string) error
	FinishDocument(ctx context.Context, id string, chunkCount, pageCount int, summary string) error
	DeleteDocument(ctx context.Context, id string) error

	InsertChunks(ctx context.Context, chunks []models.ChunkRecord) error
	GetChunk(ctx context.Context, chunkID string) (*models.ChunkRecord, error)
	ListChunkIDsByDocument(ctx context.Context, documentID string) ([]string, error)
	DeleteChunks(ctx context.Context, chunkIDs []string) error

	CreateChat(ctx context.Context, chat *models.Chat) error
	GetChat(ctx context.Context, chatID string) (*models.Chat, error)
	ListChatsByUser(ctx context.Context, userID string, limit int) ([]models.Chat, error)
	TouchChat(ctx context.Context, chatID string) error
	IncrementMessageCount(ctx context.Context, chatID string, delta int) error
	DeleteChat(ctx context.Context, chatID string) error

	CreateMessage(ctx context.Context, msg *models.ChatMessage) error
	ListMessagesByChat(ctx context.Context, chatID string, limit int) ([]models.ChatMessage, error)
	ListRecentMessages(ctx context.Context, chatID string, limit int) ([]models.ChatMessage, error)

	Close() error
}

// Candidate is a nearest-neighbor match returned by the vector index.
// Distance ordering is ascending (best match first); the index has no
// notion of tenancy, so candidate ids may belong to any user or to
// deleted chunks.
type Candidate struct {
	ChunkID  string
	Distance float64
}

// VectorIndex defines interactions with the similarity index.
type VectorIndex interface {
	Upsert(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, k int) ([]Candidate, error)
	Remove(ctx context.Context, ids []string) error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)

	GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// DocumentProcessor turns raw document bytes into the layout and form
// representations used by the chunking stage. Implementations are the
// external document-understanding service or a local fallback extractor.
type DocumentProcessor interface {
	Process(ctx context.Context, raw []byte, contentType string) (*docai.LayoutDocument, *docai.FormDocument, error)
}

// Ingestor schedules and runs background document processing.
type Ingestor interface {
	Start(ctx context.Context, numWorkers int)
	Enqueue(docID string)
	ProcessOne(ctx context.Context, docID string) error
}
