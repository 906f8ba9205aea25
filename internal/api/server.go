// Package api assembles the HTTP server: routing, middleware chain and
// lifecycle.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/jumuia/creditlens/internal/api/handlers"
	"github.com/jumuia/creditlens/internal/api/middleware"
)

// Handlers bundles the endpoint handlers the server routes to.
type Handlers struct {
	Documents *handlers.DocumentsHandler
	Customers *handlers.CustomersHandler
	Rules     *handlers.RulesHandler
	Ops       *handlers.OpsHandler
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

// New builds the server with the full middleware chain applied.
func New(addr string, h Handlers, log zerolog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/documents", h.Documents.Upload)
	mux.HandleFunc("GET /api/documents/{id}", h.Documents.Get)
	mux.HandleFunc("GET /api/documents/{id}/transactions", h.Documents.Transactions)

	mux.HandleFunc("GET /api/customers/{id}/transactions", h.Customers.Transactions)
	mux.HandleFunc("POST /api/customers/{id}/score", h.Customers.Score)
	mux.HandleFunc("GET /api/customers/{id}/score", h.Customers.LatestScore)
	mux.HandleFunc("GET /api/customers/{id}/score/history", h.Customers.ScoreHistory)
	mux.HandleFunc("PUT /api/customers/{id}/supplementary", h.Customers.Supplementary)
	mux.HandleFunc("POST /api/customers/{id}/recategorize", h.Customers.Recategorize)

	mux.HandleFunc("GET /api/rules", h.Rules.List)
	mux.HandleFunc("POST /api/rules", h.Rules.Add)
	mux.HandleFunc("PUT /api/rules/{name}", h.Rules.Update)
	mux.HandleFunc("DELETE /api/rules/{name}", h.Rules.Remove)

	mux.HandleFunc("GET /api/queue/stats", h.Ops.QueueStats)
	mux.HandleFunc("POST /api/queue/{id}/requeue", h.Ops.Requeue)
	mux.HandleFunc("GET /api/errors", h.Ops.Errors)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: log.With().Str("component", "api").Logger(),
	}
}

// Start blocks serving requests until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("API server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("API server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the composed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
