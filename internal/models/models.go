package models

import (
	"time"
)

// Document processing statuses. A document is queryable only once it
// reaches StatusCompleted; the retrieval pipeline refuses to run while
// any of the caller's documents is still in a non-terminal status.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Chunk types as persisted in chunk metadata.
const (
	ChunkTypeRuleBased = "rule_based"
	ChunkTypeParagraph = "paragraph"
	ChunkTypeTable     = "table"
	ChunkTypeTextBlock = "text_block"
	ChunkTypeFormField = "form_field"
	ChunkTypeKVPair    = "kv_pair"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Document represents an uploaded medical PDF and its processing state.
type Document struct {
	ID         string    `db:"id" json:"document_id"`
	UserID     string    `db:"user_id" json:"user_id"`
	FileName   string    `db:"file_name" json:"filename"`
	Title      string    `db:"title" json:"title"`
	StorageURL string    `db:"storage_url" json:"storage_url"`
	FileSize   int64     `db:"file_size" json:"file_size"`
	Status     string    `db:"status" json:"processing_status"`
	PageCount  int       `db:"page_count" json:"page_count"`
	ChunkCount int       `db:"chunk_count" json:"chunk_count"`
	Summary    string    `db:"summary" json:"summary,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// ChunkMetadata carries the structural provenance of a chunk.
type ChunkMetadata struct {
	ChunkType     string  `json:"chunk_type"`
	ChunkIndex    int     `json:"chunk_index"`
	SemanticLabel string  `json:"semantic_label,omitempty"`
	Page          int     `json:"page,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	IsSplit       bool    `json:"is_split,omitempty"`
	DocumentTitle string  `json:"document_title,omitempty"`
}

// ChunkRecord is a persisted retrieval unit. The UserID field is the
// tenant-isolation boundary: the vector index knows nothing about owners,
// so every candidate it returns is checked against this field before use.
type ChunkRecord struct {
	ID         string        `db:"id" json:"chunk_id"`
	UserID     string        `db:"user_id" json:"user_id"`
	DocumentID string        `db:"document_id" json:"document_id"`
	Text       string        `db:"text" json:"text"`
	Metadata   ChunkMetadata `db:"metadata" json:"metadata"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}

// Chat represents one conversation session.
type Chat struct {
	ID           string    `db:"id" json:"chat_id"`
	UserID       string    `db:"user_id" json:"user_id"`
	Title        string    `db:"title" json:"title"`
	MessageCount int       `db:"message_count" json:"message_count"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Source points at a retrieved chunk that grounded an answer.
type Source struct {
	ID         string        `json:"id"`
	Distance   float64       `json:"distance"`
	Metadata   ChunkMetadata `json:"metadata"`
	DocumentID string        `json:"document_id"`
}

// ChatMessage represents an individual chat message (user or assistant).
// Assistant messages carry the sources their answer was grounded on.
type ChatMessage struct {
	ID        string    `db:"id" json:"message_id"`
	ChatID    string    `db:"chat_id" json:"chat_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Role      string    `db:"role" json:"role"`
	Content   string    `db:"content" json:"content"`
	Sources   []Source  `db:"sources" json:"sources,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"timestamp"`
}
