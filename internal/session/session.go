// Package session owns one conversation: its stored history, the
// generation loop, and the commit discipline for turns.
package session

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/spachava753/gai"

	"github.com/yellowpay/payagent/internal/agent"
	"github.com/yellowpay/payagent/internal/storage"
)

// Generator runs one full turn of model and tool round trips.
type Generator interface {
	Generate(ctx context.Context, dialog gai.Dialog, optsGen gai.GenOptsGenerator) (gai.Dialog, error)
}

// maxTitleLen bounds the conversation title derived from the first
// user message.
const maxTitleLen = 80

// Session is a single conversation bound to a store and a generator.
type Session struct {
	store  *storage.Store
	loop   Generator
	conv   storage.Conversation
	dialog gai.Dialog
}

// New starts a fresh conversation.
func New(ctx context.Context, store *storage.Store, loop Generator, model string) (*Session, error) {
	conv, err := store.CreateConversation(ctx, "", model)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return &Session{store: store, loop: loop, conv: conv}, nil
}

// Load resumes a stored conversation.
func Load(ctx context.Context, store *storage.Store, loop Generator, conversationID string) (*Session, error) {
	conv, err := store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	dialog, err := store.GetDialog(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return &Session{store: store, loop: loop, conv: conv, dialog: dialog}, nil
}

// Conversation returns the stored conversation metadata.
func (s *Session) Conversation() storage.Conversation {
	return s.conv
}

// Dialog returns the committed dialog.
func (s *Session) Dialog() gai.Dialog {
	return s.dialog
}

// Send runs one user turn to completion and commits it.
//
// The new messages are persisted only when the whole turn succeeds,
// with one exception: a turn cut off by the tool step limit is
// committed before the error surfaces, since its tool invocations
// already ran and their results must stay in the transcript. Any
// other failure leaves both the stored conversation and the
// in-memory dialog exactly as they were before the turn.
func (s *Session) Send(ctx context.Context, text string, optsGen gai.GenOptsGenerator) (gai.Dialog, error) {
	userMsg := gai.Message{
		Role: gai.User,
		Blocks: []gai.Block{{
			BlockType:    gai.Content,
			ModalityType: gai.Text,
			MimeType:     "text/plain",
			Content:      gai.Str(text),
		}},
	}

	next, genErr := s.loop.Generate(ctx, append(s.dialog, userMsg), optsGen)
	if genErr != nil {
		var maxSteps *agent.MaxToolStepsError
		if !errors.As(genErr, &maxSteps) {
			return nil, genErr
		}
	}

	turn := next[len(s.dialog):]
	if _, err := s.store.AppendMessages(ctx, s.conv.ID, turn); err != nil {
		return nil, fmt.Errorf("committing turn: %w", err)
	}
	if s.conv.Title == "" {
		s.conv.Title = deriveTitle(text)
		if err := s.store.SetTitle(ctx, s.conv.ID, s.conv.Title); err != nil {
			return nil, fmt.Errorf("titling conversation: %w", err)
		}
	}

	s.dialog = next
	return turn, genErr
}

func deriveTitle(text string) string {
	if len(text) <= maxTitleLen {
		return text
	}
	cut := maxTitleLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
