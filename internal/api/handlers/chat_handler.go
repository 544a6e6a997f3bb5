package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	middleware "github.com/clearchart/medrag/internal/api/middlewares"
	"github.com/clearchart/medrag/internal/core"
	"github.com/clearchart/medrag/internal/models"
	"github.com/clearchart/medrag/internal/query"
)

type ChatHandler struct {
	store   core.Store
	service *query.Service
}

func NewChatHandler(store core.Store, service *query.Service) *ChatHandler {
	return &ChatHandler{store: store, service: service}
}

type queryRequest struct {
	Question string `json:"question"`
	ChatID   string `json:"chat_id,omitempty"`
	TopK     int    `json:"top_k,omitempty"`
}

type queryResponse struct {
	Answer  string          `json:"answer"`
	Sources []models.Source `json:"sources"`
	ChatID  string          `json:"chat_id"`
}

// Query runs one question through the retrieval pipeline. Pipeline
// policy rejections map to distinct statuses; anything else is an
// internal error with a generic retry message.
func (h *ChatHandler) Query(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		writeError(w, http.StatusBadRequest, "a question is required")
		return
	}

	result, err := h.service.ProcessQuery(r.Context(), userID, query.Request{
		Question: req.Question,
		ChatID:   req.ChatID,
		TopK:     req.TopK,
	})
	if err != nil {
		var procErr *query.ProcessingError
		switch {
		case errors.As(err, &procErr):
			writeError(w, http.StatusConflict, procErr.Error())
		case errors.Is(err, query.ErrChatAccessDenied):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, query.ErrNoRelevantDocuments), errors.Is(err, query.ErrNoUserDocuments):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			log.Printf("chat: query for user %s failed: %v", userID, err)
			writeError(w, http.StatusInternalServerError, "something went wrong answering your question; please try again")
		}
		return
	}

	sources := result.Sources
	if sources == nil {
		sources = []models.Source{}
	}
	writeJSON(w, http.StatusOK, queryResponse{
		Answer:  result.Answer,
		Sources: sources,
		ChatID:  result.ChatID,
	})
}

func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	chats, err := h.store.ListChatsByUser(r.Context(), userID, 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list chats")
		return
	}
	if chats == nil {
		chats = []models.Chat{}
	}
	writeJSON(w, http.StatusOK, chats)
}

func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	chat, ok := h.ownedChat(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (h *ChatHandler) GetChatMessages(w http.ResponseWriter, r *http.Request) {
	chat, ok := h.ownedChat(w, r)
	if !ok {
		return
	}

	messages, err := h.store.ListMessagesByChat(r.Context(), chat.ID, 200)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	chat, ok := h.ownedChat(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteChat(r.Context(), chat.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete chat")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": chat.ID})
}

func (h *ChatHandler) ownedChat(w http.ResponseWriter, r *http.Request) (*models.Chat, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}

	chatID := chi.URLParam(r, "chat_id")
	chat, err := h.store.GetChat(r.Context(), chatID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load chat")
		return nil, false
	}
	if chat == nil || chat.UserID != userID {
		writeError(w, http.StatusNotFound, "chat not found")
		return nil, false
	}
	return chat, true
}
