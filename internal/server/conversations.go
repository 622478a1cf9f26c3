package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/spachava753/gai"

	"github.com/yellowpay/payagent/internal/storage"
)

type conversationDetail struct {
	storage.Conversation
	Dialog []dialogMessage `json:"dialog"`
}

type dialogMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	IsError bool   `json:"isError,omitempty"`
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListConversations(r.Context())
	if err != nil {
		slog.Error("failed to list conversations", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if list == nil {
		list = []storage.Conversation{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conv, err := s.store.GetConversation(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		slog.Error("failed to get conversation", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get conversation")
		return
	}

	dialog, err := s.store.GetDialog(r.Context(), id)
	if err != nil {
		slog.Error("failed to load dialog", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load dialog")
		return
	}

	detail := conversationDetail{Conversation: conv, Dialog: make([]dialogMessage, 0, len(dialog))}
	for _, msg := range dialog {
		detail.Dialog = append(detail.Dialog, dialogMessage{
			Role:    roleName(msg.Role),
			Content: textContent(msg),
			IsError: msg.ToolResultError,
		})
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteConversation(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		slog.Error("failed to delete conversation", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func roleName(role gai.Role) string {
	switch role {
	case gai.User:
		return "user"
	case gai.Assistant:
		return "assistant"
	case gai.ToolResult:
		return "tool"
	default:
		return "unknown"
	}
}
