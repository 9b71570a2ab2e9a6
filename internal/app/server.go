package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/markdave123-py/corpora/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/corpora/internal/api/middlewares"
	"github.com/markdave123-py/corpora/internal/config"
	"github.com/markdave123-py/corpora/internal/core"
	"github.com/markdave123-py/corpora/internal/core/ingest"
	"github.com/markdave123-py/corpora/internal/core/retrieval"
	"github.com/markdave123-py/corpora/internal/logger"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *logrus.Entry
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, db core.DbClient, obj core.ObjectClient, ing *ingest.Ingestor, retriever *retrieval.Retriever, llm core.LLMProvider) *Server {
	authHandler := handlers.NewAuthHandler(db, cfg)
	docHandler := handlers.NewDocumentHandler(db, obj, ing, cfg)
	folderHandler := handlers.NewFolderHandler(db, obj)
	sharedHandler := handlers.NewSharedDocumentHandler(db, obj, ing, cfg)
	chatHandler := handlers.NewChatHandler(db, retriever, llm, cfg)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWT(cfg.JWTSecret))

			protected.Post("/documents", docHandler.Upload)
			protected.Get("/documents", docHandler.List)
			protected.Delete("/documents/{id}", docHandler.Delete)
			protected.Post("/documents/{id}/reprocess", docHandler.Reprocess)
			protected.Patch("/documents/{id}/toggle", docHandler.ToggleActive)

			protected.Post("/folders", folderHandler.Create)
			protected.Get("/folders", folderHandler.List)
			protected.Delete("/folders/{id}", folderHandler.Delete)

			protected.Get("/shared-documents/storage", sharedHandler.StorageUsage)
			protected.Post("/shared-documents/folders", sharedHandler.CreateFolder)
			protected.Get("/shared-documents/folders", sharedHandler.ListFolders)
			protected.Patch("/shared-documents/folders/{id}/rename", sharedHandler.RenameFolder)
			protected.Delete("/shared-documents/folders/{id}", sharedHandler.DeleteFolder)
			protected.Post("/shared-documents", sharedHandler.Upload)
			protected.Get("/shared-documents", sharedHandler.List)
			protected.Get("/shared-documents/{id}/content", sharedHandler.Content)
			protected.Delete("/shared-documents/{id}", sharedHandler.Delete)
			protected.Post("/shared-documents/{id}/reprocess", sharedHandler.Reprocess)
			protected.Patch("/shared-documents/{id}/toggle-visibility", sharedHandler.ToggleVisibility)
			protected.Patch("/shared-documents/{id}/toggle-rag", sharedHandler.ToggleRAG)
			protected.Patch("/shared-documents/{id}/toggle-user", sharedHandler.ToggleUserPref)

			protected.Post("/chat/query", chatHandler.Query)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, log: logger.New("http")}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down")
	return s.httpServer.Shutdown(ctx)
}
