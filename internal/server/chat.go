package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/spachava753/gai"

	"github.com/yellowpay/payagent/internal/agent"
	"github.com/yellowpay/payagent/internal/confirm"
	"github.com/yellowpay/payagent/internal/invocation"
	"github.com/yellowpay/payagent/internal/render"
	"github.com/yellowpay/payagent/internal/session"
	"github.com/yellowpay/payagent/internal/storage"
	"github.com/yellowpay/payagent/internal/tools"
)

type chatRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	Message        string `json:"message"`
}

type confirmRequest struct {
	ToolCallID string `json:"toolCallId"`
	Accept     bool   `json:"accept"`
}

// handleChat runs one user turn and streams its progress as SSE
// events: "message" for assistant text, "card" for tool invocation
// state, "error" on failure and "done" when the turn committed.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error": "streaming not supported"}`, http.StatusInternalServerError)
		return
	}

	hooks := agent.Hooks{
		AssistantMessage: func(msg gai.Message) {
			text := textContent(msg)
			if text == "" {
				return
			}
			sendEvent(w, flusher, "message", map[string]string{"role": "assistant", "content": text})
		},
		InvocationDeclared: func(kind tools.Kind, snap invocation.Snapshot) {
			sendEvent(w, flusher, "card", render.Build(kind, snap))
		},
		InvocationSettled: func(kind tools.Kind, snap invocation.Snapshot) {
			sendEvent(w, flusher, "card", render.Build(kind, snap))
		},
	}

	exec := invocation.NewExecutor(s.registry, s.waiters)
	loop, err := s.newLoop(exec, hooks)
	if err != nil {
		slog.Error("failed to build generation loop", "error", err)
		sendEvent(w, flusher, "error", map[string]string{"error": "agent unavailable"})
		return
	}

	ctx := r.Context()
	var sess *session.Session
	if req.ConversationID == "" {
		sess, err = session.New(ctx, s.store, loop, s.cfg.Model)
	} else {
		sess, err = session.Load(ctx, s.store, loop, req.ConversationID)
	}
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			sendEvent(w, flusher, "error", map[string]string{"error": "conversation not found"})
			return
		}
		slog.Error("failed to open session", "error", err)
		sendEvent(w, flusher, "error", map[string]string{"error": "could not open conversation"})
		return
	}

	if _, err := sess.Send(ctx, req.Message, s.genOpts); err != nil {
		slog.Error("turn failed", "conversation", sess.Conversation().ID, "error", err)
		sendEvent(w, flusher, "error", map[string]string{
			"error":          turnErrorMessage(err),
			"conversationId": sess.Conversation().ID,
		})
		return
	}

	sendEvent(w, flusher, "done", map[string]string{"conversationId": sess.Conversation().ID})
}

// handleConfirm resolves a pending confirmation raised on a chat
// stream.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ToolCallID == "" {
		writeError(w, http.StatusBadRequest, "toolCallId is required")
		return
	}
	if err := s.waiters.Resolve(req.ToolCallID, req.Accept); err != nil {
		if errors.Is(err, confirm.ErrNoPending) {
			writeError(w, http.StatusNotFound, "no pending confirmation for that tool call")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resolve confirmation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

func turnErrorMessage(err error) string {
	var maxSteps *agent.MaxToolStepsError
	if errors.As(err, &maxSteps) {
		return maxSteps.Error()
	}
	var stream *agent.StreamError
	if errors.As(err, &stream) {
		return "the model stream failed, the turn was not saved"
	}
	return "the turn failed"
}

func textContent(msg gai.Message) string {
	var b strings.Builder
	for _, block := range msg.Blocks {
		if block.BlockType == gai.Content && block.ModalityType == gai.Text {
			b.WriteString(block.Content.String())
		}
	}
	return b.String()
}

func sendEvent(w io.Writer, flusher http.Flusher, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("failed to marshal SSE payload", "event", event, "error", err)
		return
	}
	if err := writeSSE(w, event, string(data)); err != nil {
		slog.Warn("failed to write SSE event", "event", event, "error", err)
		return
	}
	flusher.Flush()
}

func writeSSE(w io.Writer, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
