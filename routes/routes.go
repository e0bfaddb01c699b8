package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/rag-chat/app"
	"github.com/upb/rag-chat/handlers"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// Generation can legitimately take minutes on a cold local model.
	r.Use(middleware.Timeout(5 * time.Minute))

	// CORS middleware for the browser front-end
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	healthHandler := handlers.NewHealthHandler(deps.Store, deps.Logger)
	queryHandler := handlers.NewQueryHandler(deps.NewSession, deps.Logger)
	chatHandler := handlers.NewChatHandler(deps.NewSession, deps.Logger)
	corpusHandler := handlers.NewCorpusHandler(deps.Ingester, deps.Config.Storage.CorpusDirectory, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", healthHandler.HandleHealth)
	r.Get("/readyz", healthHandler.HandleReadiness)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Single-shot question answering
		r.Post("/ask", queryHandler.HandleQuery)

		// Multi-turn chat sessions
		r.Route("/chat/sessions", func(r chi.Router) {
			r.Post("/", chatHandler.HandleCreateSession)
			r.Post("/{id}/messages", chatHandler.HandleMessage)
			r.Get("/{id}/history", chatHandler.HandleHistory)
			r.Delete("/{id}", chatHandler.HandleDeleteSession)
		})

		// Corpus administration
		r.Post("/corpus/reload", corpusHandler.HandleReload)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
