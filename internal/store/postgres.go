// Package store implements the metadata store on Postgres via the pgx
// stdlib driver. Chunk records live in a single top-level table keyed by
// generated chunk id, with user_id and document_id as filterable fields.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/clearchart/medrag/internal/config"
	"github.com/clearchart/medrag/internal/core"
	"github.com/clearchart/medrag/internal/models"
)

// maxBatchRows caps rows per transaction for bulk chunk writes and
// deletes, so a crash mid-operation loses at most one partial batch.
const maxBatchRows = 500

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, cfg *config.Config) (core.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the underlying handle so the vector index can share the
// connection pool.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// ---- users ----

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, first_name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
	`
	_, err := s.db.ExecContext(ctx, q, user.ID, user.FirstName, user.Email, user.PasswordHash)
	return err
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, first_name, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := s.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.FirstName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ---- documents ----

func (s *PostgresStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents
			(id, user_id, file_name, title, storage_url, file_size, status, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, now(), now())
	`
	_, err := s.db.ExecContext(ctx, q,
		doc.ID, doc.UserID, doc.FileName, doc.Title, doc.StorageURL, doc.FileSize, doc.Status)
	return err
}

const documentColumns = `id, user_id, file_name, title, storage_url, file_size, status, page_count, chunk_count, summary, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (*models.Document, error) {
	var d models.Document
	err := row.Scan(
		&d.ID, &d.UserID, &d.FileName, &d.Title, &d.StorageURL, &d.FileSize,
		&d.Status, &d.PageCount, &d.ChunkCount, &d.Summary, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *PostgresStore) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	doc, err := scanDocument(s.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return doc, err
}

func (s *PostgresStore) ListDocumentsByUser(ctx context.Context, userID string) ([]models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetProcessingDocuments(ctx context.Context, userID string) ([]models.Document, error) {
	q := `SELECT ` + documentColumns + `
		FROM documents
		WHERE user_id = $1 AND status IN ($2, $3, $4)
		ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, q, userID,
		models.StatusPending, models.StatusProcessing, models.StatusInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateDocumentStatus(ctx context.Context, id string, status string) error {
	const q = `UPDATE documents SET status = $2, updated_at = now() WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) FinishDocument(ctx context.Context, id string, chunkCount, pageCount int, summary string) error {
	const q = `
		UPDATE documents
		SET status = $2, chunk_count = $3, page_count = $4, summary = $5, updated_at = now()
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, q, id, models.StatusCompleted, chunkCount, pageCount, summary)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return err
}

// ---- chunks ----

// InsertChunks writes chunk records in transactions of at most
// maxBatchRows rows each, committed incrementally.
func (s *PostgresStore) InsertChunks(ctx context.Context, chunks []models.ChunkRecord) error {
	for start := 0; start < len(chunks); start += maxBatchRows {
		end := min(start+maxBatchRows, len(chunks))
		if err := s.insertChunkBatch(ctx, chunks[start:end]); err != nil {
			return fmt.Errorf("insert chunks [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

func (s *PostgresStore) insertChunkBatch(ctx context.Context, chunks []models.ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO chunks (id, user_id, document_id, text, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		meta, err := json.Marshal(ch.Metadata)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshal metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, ch.ID, ch.UserID, ch.DocumentID, ch.Text, meta); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) GetChunk(ctx context.Context, chunkID string) (*models.ChunkRecord, error) {
	const q = `
		SELECT id, user_id, document_id, text, metadata, created_at
		FROM chunks WHERE id = $1
	`
	var (
		ch   models.ChunkRecord
		meta []byte
	)
	err := s.db.QueryRowContext(ctx, q, chunkID).Scan(
		&ch.ID, &ch.UserID, &ch.DocumentID, &ch.Text, &meta, &ch.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(meta, &ch.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
	}
	return &ch, nil
}

func (s *PostgresStore) ListChunkIDsByDocument(ctx context.Context, documentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) DeleteChunks(ctx context.Context, chunkIDs []string) error {
	for start := 0; start < len(chunkIDs); start += maxBatchRows {
		end := min(start+maxBatchRows, len(chunkIDs))
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM chunks WHERE id = ANY($1)`, chunkIDs[start:end]); err != nil {
			return fmt.Errorf("delete chunks [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

// ---- chats ----

func (s *PostgresStore) CreateChat(ctx context.Context, chat *models.Chat) error {
	if chat == nil {
		return errors.New("nil chat")
	}
	const q = `
		INSERT INTO chats (id, user_id, title, message_count, created_at, updated_at)
		VALUES ($1, $2, $3, 0, now(), now())
	`
	_, err := s.db.ExecContext(ctx, q, chat.ID, chat.UserID, chat.Title)
	return err
}

func (s *PostgresStore) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	const q = `
		SELECT id, user_id, title, message_count, created_at, updated_at
		FROM chats WHERE id = $1
	`
	var c models.Chat
	err := s.db.QueryRowContext(ctx, q, chatID).Scan(
		&c.ID, &c.UserID, &c.Title, &c.MessageCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) ListChatsByUser(ctx context.Context, userID string, limit int) ([]models.Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
		SELECT id, user_id, title, message_count, created_at, updated_at
		FROM chats
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Chat
	for rows.Next() {
		var c models.Chat
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.MessageCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) TouchChat(ctx context.Context, chatID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE chats SET updated_at = now() WHERE id = $1`, chatID)
	return err
}

// IncrementMessageCount relies on the store's single-statement atomicity;
// no in-process locking is performed.
func (s *PostgresStore) IncrementMessageCount(ctx context.Context, chatID string, delta int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chats SET message_count = message_count + $2 WHERE id = $1`, chatID, delta)
	return err
}

func (s *PostgresStore) DeleteChat(ctx context.Context, chatID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = $1`, chatID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = $1`, chatID)
	return err
}

// ---- messages ----

func (s *PostgresStore) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg == nil {
		return errors.New("nil message")
	}
	sources, err := json.Marshal(msg.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	const q = `
		INSERT INTO messages (id, chat_id, user_id, role, content, sources, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, q, msg.ID, msg.ChatID, msg.UserID, msg.Role, msg.Content, sources, msg.CreatedAt)
	return err
}

func (s *PostgresStore) ListMessagesByChat(ctx context.Context, chatID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
		SELECT id, chat_id, user_id, role, content, sources, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	return s.queryMessages(ctx, q, chatID, limit)
}

// ListRecentMessages returns the last limit messages in chronological
// order (oldest of the tail first).
func (s *PostgresStore) ListRecentMessages(ctx context.Context, chatID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = 5
	}
	const q = `
		SELECT id, chat_id, user_id, role, content, sources, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	msgs, err := s.queryMessages(ctx, q, chatID, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *PostgresStore) queryMessages(ctx context.Context, q string, args ...any) ([]models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var (
			m       models.ChatMessage
			sources []byte
		)
		if err := rows.Scan(&m.ID, &m.ChatID, &m.UserID, &m.Role, &m.Content, &sources, &m.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(sources, &m.Sources); err != nil {
			return nil, fmt.Errorf("unmarshal message sources: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
