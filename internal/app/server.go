package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/clearchart/medrag/internal/api/handlers"
	appMiddleware "github.com/clearchart/medrag/internal/api/middlewares"
	"github.com/clearchart/medrag/internal/config"
	"github.com/clearchart/medrag/internal/core"
	"github.com/clearchart/medrag/internal/query"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, st core.Store, obj core.ObjectClient, index core.VectorIndex, ing core.Ingestor, querySvc *query.Service) *Server {
	authHandler := handlers.NewAuthHandler(st)
	docHandler := handlers.NewDocumentHandler(st, obj, index, ing, cfg)
	chatHandler := handlers.NewChatHandler(st, querySvc)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware)

			protected.Post("/documents/upload", docHandler.UploadDocument)
			protected.Get("/documents", docHandler.ListDocuments)
			protected.Get("/documents/{document_id}", docHandler.GetDocument)
			protected.Get("/documents/{document_id}/view", docHandler.ViewDocument)
			protected.Delete("/documents/{document_id}", docHandler.DeleteDocument)

			protected.Post("/chat/query", chatHandler.Query)
			protected.Get("/chats", chatHandler.ListChats)
			protected.Get("/chats/{chat_id}", chatHandler.GetChat)
			protected.Get("/chats/{chat_id}/messages", chatHandler.GetChatMessages)
			protected.Delete("/chats/{chat_id}", chatHandler.DeleteChat)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
