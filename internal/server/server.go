// Package server exposes the payment agent over HTTP.
//
// Chat turns stream over SSE; confirmations resolve out of band
// through a shared waiter registry, so the confirm endpoint can
// unblock a chat stream held open in another request.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spachava753/gai"

	"github.com/yellowpay/payagent/internal/agent"
	"github.com/yellowpay/payagent/internal/config"
	"github.com/yellowpay/payagent/internal/confirm"
	"github.com/yellowpay/payagent/internal/invocation"
	"github.com/yellowpay/payagent/internal/session"
	"github.com/yellowpay/payagent/internal/storage"
	"github.com/yellowpay/payagent/internal/tools"
)

// LoopFactory builds the generation loop for one chat request. The
// executor carries the request's invocation state; hooks feed the SSE
// stream.
type LoopFactory func(exec *invocation.Executor, hooks agent.Hooks) (session.Generator, error)

// Server handles the chat API.
type Server struct {
	cfg      *config.Config
	store    *storage.Store
	registry *tools.Registry
	waiters  *confirm.Waiters
	newLoop  LoopFactory
}

// New assembles the server. The waiters gate is shared across all
// requests for the server's lifetime.
func New(cfg *config.Config, store *storage.Store, registry *tools.Registry, waiters *confirm.Waiters, newLoop LoopFactory) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		registry: registry,
		waiters:  waiters,
		newLoop:  newLoop,
	}
}

// Router builds the chi router with all routes registered.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/chat/confirm", s.handleConfirm)
		r.Get("/conversations", s.handleListConversations)
		r.Get("/conversations/{id}", s.handleGetConversation)
		r.Delete("/conversations/{id}", s.handleDeleteConversation)
	})
	return r
}

func (s *Server) genOpts(gai.Dialog) *gai.GenOpts {
	return s.cfg.Generation.ToGenOpts()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
