package handlers

import (
	"context"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	middleware "github.com/clearchart/medrag/internal/api/middlewares"
	"github.com/clearchart/medrag/internal/config"
	"github.com/clearchart/medrag/internal/core"
	"github.com/clearchart/medrag/internal/models"
	"github.com/clearchart/medrag/internal/objectstore"
)

const maxUploadBytes = 50 << 20 // 50 MB

type DocumentHandler struct {
	store    core.Store
	obj      core.ObjectClient
	index    core.VectorIndex
	ingestor core.Ingestor
	cfg      *config.Config
}

func NewDocumentHandler(store core.Store, obj core.ObjectClient, index core.VectorIndex, ing core.Ingestor, cfg *config.Config) *DocumentHandler {
	return &DocumentHandler{store: store, obj: obj, index: index, ingestor: ing, cfg: cfg}
}

// UploadDocument accepts a PDF, stores it in object storage, records the
// document as pending, and queues it for background ingestion.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or malformed form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file")
		return
	}
	defer file.Close()

	cleanFilename := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(cleanFilename), ".pdf") {
		writeError(w, http.StatusBadRequest, "only PDF files are supported")
		return
	}

	docID := uuid.NewString()
	key := userID + "/" + docID + "_" + cleanFilename

	uploadCtx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	url, err := h.obj.UploadFile(uploadCtx, h.cfg.BucketName, key, file, "application/pdf")
	if err != nil {
		log.Printf("documents: upload for user %s failed: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	title := strings.TrimSuffix(cleanFilename, filepath.Ext(cleanFilename))
	now := time.Now().UTC()
	doc := &models.Document{
		ID:         docID,
		UserID:     userID,
		FileName:   cleanFilename,
		Title:      title,
		StorageURL: url,
		FileSize:   header.Size,
		Status:     models.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.store.CreateDocument(uploadCtx, doc); err != nil {
		log.Printf("documents: metadata insert for %s failed: %v", docID, err)
		writeError(w, http.StatusInternalServerError, "failed to store document metadata")
		return
	}

	h.ingestor.Enqueue(doc.ID)

	writeJSON(w, http.StatusAccepted, doc)
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	documents, err := h.store.ListDocumentsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	if documents == nil {
		documents = []models.Document{}
	}

	writeJSON(w, http.StatusOK, documents)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.ownedDocument(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// ViewDocument streams the original PDF back to its owner.
func (h *DocumentHandler) ViewDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.ownedDocument(w, r)
	if !ok {
		return
	}

	bucket, key := objectstore.ParseURL(doc.StorageURL)
	body, err := h.obj.GetObjectReader(r.Context(), bucket, key)
	if err != nil {
		log.Printf("documents: stream %s failed: %v", doc.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch document")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename="+doc.FileName)
	_, _ = io.Copy(w, body)
}

// DeleteDocument removes the document and everything derived from it:
// index entries, chunk records, the stored object, then the metadata
// row. Index and object deletions are best-effort so a transient
// storage error cannot strand the metadata.
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.ownedDocument(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	chunkIDs, err := h.store.ListChunkIDsByDocument(ctx, doc.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}

	if len(chunkIDs) > 0 {
		if err := h.index.Remove(ctx, chunkIDs); err != nil {
			log.Printf("documents: index removal for %s failed: %v", doc.ID, err)
		}
		if err := h.store.DeleteChunks(ctx, chunkIDs); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to delete document")
			return
		}
	}

	bucket, key := objectstore.ParseURL(doc.StorageURL)
	if err := h.obj.DeleteFile(ctx, bucket, key); err != nil {
		log.Printf("documents: object delete for %s failed: %v", doc.ID, err)
	}

	if err := h.store.DeleteDocument(ctx, doc.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": doc.ID})
}

// ownedDocument loads the {document_id} route param and enforces
// ownership, writing the error response itself on failure.
func (h *DocumentHandler) ownedDocument(w http.ResponseWriter, r *http.Request) (*models.Document, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}

	docID := chi.URLParam(r, "document_id")
	doc, err := h.store.GetDocumentByID(r.Context(), docID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load document")
		return nil, false
	}
	if doc == nil || doc.UserID != userID {
		writeError(w, http.StatusNotFound, "document not found")
		return nil, false
	}
	return doc, true
}
