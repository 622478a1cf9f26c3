package session

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/spachava753/gai"

	"github.com/yellowpay/payagent/internal/agent"
	"github.com/yellowpay/payagent/internal/storage"
)

type fakeLoop struct {
	reply gai.Message
	err   error
	calls int
}

func (f *fakeLoop) Generate(ctx context.Context, dialog gai.Dialog, optsGen gai.GenOptsGenerator) (gai.Dialog, error) {
	f.calls++
	if f.err != nil {
		return slices.Clone(dialog), f.err
	}
	return append(slices.Clone(dialog), f.reply), nil
}

// truncatedLoop plays a turn whose tools already ran, then reports
// the step limit.
type truncatedLoop struct {
	turn gai.Dialog
}

func (l *truncatedLoop) Generate(ctx context.Context, dialog gai.Dialog, optsGen gai.GenOptsGenerator) (gai.Dialog, error) {
	return append(slices.Clone(dialog), l.turn...), &agent.MaxToolStepsError{Steps: 1}
}

func toolResult(toolCallID, text string) gai.Message {
	return gai.Message{
		Role: gai.ToolResult,
		Blocks: []gai.Block{{
			ID:           toolCallID,
			BlockType:    gai.Content,
			ModalityType: gai.Text,
			MimeType:     "text/plain",
			Content:      gai.Str(text),
		}},
	}
}

func assistant(text string) gai.Message {
	return gai.Message{
		Role: gai.Assistant,
		Blocks: []gai.Block{{
			BlockType:    gai.Content,
			ModalityType: gai.Text,
			MimeType:     "text/plain",
			Content:      gai.Str(text),
		}},
	}
}

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSendCommitsTurn(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	sess, err := New(ctx, store, &fakeLoop{reply: assistant("hello")}, "claude-sonnet-4-5")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	turn, err := sess.Send(ctx, "pay grace 100 usdc", nil)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(turn) != 2 {
		t.Fatalf("turn has %d messages, want 2", len(turn))
	}

	stored, err := store.GetDialog(ctx, sess.Conversation().ID)
	if err != nil {
		t.Fatalf("GetDialog() error = %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("stored dialog has %d messages, want 2", len(stored))
	}
	if got := stored[1].Blocks[0].Content.String(); got != "hello" {
		t.Errorf("stored assistant = %q", got)
	}

	conv, _ := store.GetConversation(ctx, sess.Conversation().ID)
	if conv.Title != "pay grace 100 usdc" {
		t.Errorf("Title = %q", conv.Title)
	}
}

func TestSendFailureCommitsNothing(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	boom := errors.New("stream failed")
	sess, err := New(ctx, store, &fakeLoop{err: boom}, "m")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := sess.Send(ctx, "hi", nil); !errors.Is(err, boom) {
		t.Fatalf("Send() error = %v, want %v", err, boom)
	}
	if len(sess.Dialog()) != 0 {
		t.Errorf("in-memory dialog has %d messages after failed turn, want 0", len(sess.Dialog()))
	}
	stored, err := store.GetDialog(ctx, sess.Conversation().ID)
	if err != nil {
		t.Fatalf("GetDialog() error = %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("stored dialog has %d messages after failed turn, want 0", len(stored))
	}
}

func TestSendMaxStepsCommitsExecutedTools(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	loop := &truncatedLoop{turn: gai.Dialog{
		gai.Message{
			Role: gai.Assistant,
			Blocks: []gai.Block{{
				ID:           "call-sendPayment-0",
				BlockType:    gai.ToolCall,
				ModalityType: gai.Text,
				MimeType:     "application/json",
				Content:      gai.Str(`{"name":"sendPayment","parameters":{"recipient":"grace","amount":"100"}}`),
			}},
		},
		toolResult("call-sendPayment-0", `{"txHash":"0xabc","status":"confirmed"}`),
	}}
	sess, err := New(ctx, store, loop, "m")
	if err != nil {
		t.Fatal(err)
	}

	turn, err := sess.Send(ctx, "pay grace 100 usdc", nil)
	var maxSteps *agent.MaxToolStepsError
	if !errors.As(err, &maxSteps) {
		t.Fatalf("Send() error = %v, want MaxToolStepsError", err)
	}
	if len(turn) != 3 {
		t.Fatalf("turn has %d messages, want 3", len(turn))
	}

	stored, err := store.GetDialog(ctx, sess.Conversation().ID)
	if err != nil {
		t.Fatalf("GetDialog() error = %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("stored dialog has %d messages after step-limited turn, want 3", len(stored))
	}
	if stored[2].Role != gai.ToolResult {
		t.Errorf("stored[2].Role = %v, want ToolResult", stored[2].Role)
	}
	if len(sess.Dialog()) != 3 {
		t.Errorf("in-memory dialog has %d messages, want 3", len(sess.Dialog()))
	}
}

func TestDeriveTitleRuneBoundary(t *testing.T) {
	long := strings.Repeat("€", 40)
	title := deriveTitle(long)
	if !utf8.ValidString(title) {
		t.Fatalf("deriveTitle produced invalid UTF-8: %q", title)
	}
	if len(title) > maxTitleLen {
		t.Errorf("title is %d bytes, want <= %d", len(title), maxTitleLen)
	}
	if want := strings.Repeat("€", 26); title != want {
		t.Errorf("title = %q, want %q", title, want)
	}
	if got := deriveTitle("short"); got != "short" {
		t.Errorf("deriveTitle(short) = %q", got)
	}
}

func TestLoadResumesDialog(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first, err := New(ctx, store, &fakeLoop{reply: assistant("one")}, "m")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := first.Send(ctx, "first turn", nil); err != nil {
		t.Fatal(err)
	}

	resumed, err := Load(ctx, store, &fakeLoop{reply: assistant("two")}, first.Conversation().ID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(resumed.Dialog()) != 2 {
		t.Fatalf("resumed dialog has %d messages, want 2", len(resumed.Dialog()))
	}

	if _, err := resumed.Send(ctx, "second turn", nil); err != nil {
		t.Fatal(err)
	}
	stored, _ := store.GetDialog(ctx, first.Conversation().ID)
	if len(stored) != 4 {
		t.Fatalf("stored dialog has %d messages, want 4", len(stored))
	}

	// Title is set on the first turn only.
	conv, _ := store.GetConversation(ctx, first.Conversation().ID)
	if conv.Title != "first turn" {
		t.Errorf("Title = %q", conv.Title)
	}
}

func TestLoadMissingConversation(t *testing.T) {
	store := newStore(t)
	if _, err := Load(context.Background(), store, &fakeLoop{}, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Load() error = %v, want ErrNotFound", err)
	}
}
