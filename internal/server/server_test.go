package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/spachava753/gai"

	"github.com/yellowpay/payagent/internal/agent"
	"github.com/yellowpay/payagent/internal/config"
	"github.com/yellowpay/payagent/internal/confirm"
	"github.com/yellowpay/payagent/internal/invocation"
	"github.com/yellowpay/payagent/internal/session"
	"github.com/yellowpay/payagent/internal/storage"
	"github.com/yellowpay/payagent/internal/tools"
)

// scriptedGenerator replays canned responses for one chat request.
type scriptedGenerator struct {
	mu    sync.Mutex
	steps []gai.Response
	calls int
}

func (g *scriptedGenerator) Register(tool gai.Tool) error { return nil }

func (g *scriptedGenerator) Generate(ctx context.Context, dialog gai.Dialog, opts *gai.GenOpts) (gai.Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls >= len(g.steps) {
		return gai.Response{}, fmt.Errorf("unexpected generation call %d", g.calls)
	}
	resp := g.steps[g.calls]
	g.calls++
	return resp, nil
}

func textResponse(text string) gai.Response {
	return gai.Response{Candidates: []gai.Message{{
		Role: gai.Assistant,
		Blocks: []gai.Block{{
			BlockType:    gai.Content,
			ModalityType: gai.Text,
			MimeType:     "text/plain",
			Content:      gai.Str(text),
		}},
	}}}
}

func toolCallResponse(id, name, args string) gai.Response {
	var params map[string]any
	json.Unmarshal([]byte(args), &params)
	data, _ := json.Marshal(gai.ToolCallInput{Name: name, Parameters: params})
	return gai.Response{Candidates: []gai.Message{{
		Role: gai.Assistant,
		Blocks: []gai.Block{{
			ID:           id,
			BlockType:    gai.ToolCall,
			ModalityType: gai.Text,
			MimeType:     "application/json",
			Content:      gai.Str(data),
		}},
	}}}
}

type payCallback struct{}

func (payCallback) Call(ctx context.Context, args json.RawMessage, id string) (gai.Message, error) {
	return tools.TextResult(id, `{"txHash":"0xfeed","chain":"polygon","recipient":"0xabc","token":"USDC","amount":100}`), nil
}

func testRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	defs := []tools.Definition{
		{
			Kind:     tools.KindSend,
			Mutating: true,
			Tool: gai.Tool{Name: tools.SendToolName, InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"recipient": {Type: "string"},
					"amount":    {Type: "number"},
				},
				Required: []string{"recipient", "amount"},
			}},
			Execute: payCallback{},
		},
		{
			Kind: tools.KindConfirmation,
			Tool: gai.Tool{Name: tools.ConfirmationToolName},
		},
	}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			t.Fatal(err)
		}
	}
	return r
}

// testServer wires the real loop, executor, waiters and storage
// behind httptest, with scripted model responses per chat request.
type testServer struct {
	*httptest.Server
	store   *storage.Store
	waiters *confirm.Waiters
}

func newTestServer(t *testing.T, scripts ...[]gai.Response) *testServer {
	t.Helper()

	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	registry := testRegistry(t)
	waiters := confirm.NewWaiters()
	t.Cleanup(func() { waiters.Close() })

	var mu sync.Mutex
	var request int
	factory := func(exec *invocation.Executor, hooks agent.Hooks) (session.Generator, error) {
		mu.Lock()
		defer mu.Unlock()
		if request >= len(scripts) {
			return nil, fmt.Errorf("unexpected chat request %d", request)
		}
		gen := &scriptedGenerator{steps: scripts[request]}
		request++
		loop, err := agent.NewToolLoop(gen, registry, exec, 5, hooks)
		if err != nil {
			return nil, err
		}
		return loop, nil
	}

	cfg := &config.Config{Model: "claude-sonnet-4-5", Addr: ":0", DBPath: ":memory:", MaxToolSteps: 5, MaxRetries: 1}
	srv := New(cfg, store, registry, waiters, factory)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, store: store, waiters: waiters}
}

type sseEvent struct {
	Event string
	Data  string
}

func readSSE(t *testing.T, body *bufio.Scanner, timeout time.Duration) []sseEvent {
	t.Helper()
	var events []sseEvent
	var current sseEvent
	done := make(chan struct{})
	go func() {
		defer close(done)
		for body.Scan() {
			line := body.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				current.Event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				current.Data = strings.TrimPrefix(line, "data: ")
			case line == "":
				if current.Event != "" {
					events = append(events, current)
					current = sseEvent{}
				}
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out reading SSE stream")
	}
	return events
}

func postChat(t *testing.T, ts *testServer, body string) []sseEvent {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/chat", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	return readSSE(t, bufio.NewScanner(resp.Body), 10*time.Second)
}

func findEvent(events []sseEvent, name string) (sseEvent, bool) {
	for _, e := range events {
		if e.Event == name {
			return e, true
		}
	}
	return sseEvent{}, false
}

func TestChatSimpleTurn(t *testing.T) {
	ts := newTestServer(t, []gai.Response{textResponse("You hold 2500 USDC.")})

	events := postChat(t, ts, `{"message":"balances?"}`)

	msg, ok := findEvent(events, "message")
	if !ok || !strings.Contains(msg.Data, "2500 USDC") {
		t.Fatalf("events = %+v, want assistant message", events)
	}
	done, ok := findEvent(events, "done")
	if !ok {
		t.Fatalf("events = %+v, want done event", events)
	}

	var payload struct {
		ConversationID string `json:"conversationId"`
	}
	json.Unmarshal([]byte(done.Data), &payload)
	if payload.ConversationID == "" {
		t.Fatal("done event missing conversationId")
	}

	conv, err := ts.store.GetConversation(context.Background(), payload.ConversationID)
	if err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if conv.Messages != 2 {
		t.Errorf("stored %d messages, want 2", conv.Messages)
	}
	if conv.Title != "balances?" {
		t.Errorf("Title = %q", conv.Title)
	}
}

func TestChatConfirmAcceptFlow(t *testing.T) {
	ts := newTestServer(t, []gai.Response{
		toolCallResponse("call-1", tools.ConfirmationToolName, `{"actionType":"send","message":"Send 100 USDC to 0xabc?"}`),
		toolCallResponse("call-2", tools.SendToolName, `{"recipient":"0xabc","amount":100}`),
		textResponse("Sent 100 USDC to 0xabc."),
	})

	// Resolve the confirmation as soon as it registers.
	go func() {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if pending := ts.waiters.Pending(); len(pending) > 0 {
				body, _ := json.Marshal(map[string]any{"toolCallId": pending[0], "accept": true})
				resp, err := http.Post(ts.URL+"/api/chat/confirm", "application/json", bytes.NewReader(body))
				if err == nil {
					resp.Body.Close()
				}
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	events := postChat(t, ts, `{"message":"pay grace 100 usdc"}`)

	var cardTypes []string
	for _, e := range events {
		if e.Event != "card" {
			continue
		}
		var card struct {
			Type string `json:"type"`
		}
		json.Unmarshal([]byte(e.Data), &card)
		cardTypes = append(cardTypes, card.Type)
	}
	want := []string{"confirm", "answered", "working", "sendReceipt"}
	if len(cardTypes) != len(want) {
		t.Fatalf("card types = %v, want %v", cardTypes, want)
	}
	for i := range want {
		if cardTypes[i] != want[i] {
			t.Fatalf("card types = %v, want %v", cardTypes, want)
		}
	}

	if _, ok := findEvent(events, "done"); !ok {
		t.Fatalf("events = %+v, want done", events)
	}
}

func TestChatConfirmRejectFlow(t *testing.T) {
	ts := newTestServer(t, []gai.Response{
		toolCallResponse("call-1", tools.ConfirmationToolName, `{"actionType":"send","message":"Send it?"}`),
		textResponse("Okay, I won't send it."),
	})

	go func() {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if pending := ts.waiters.Pending(); len(pending) > 0 {
				body, _ := json.Marshal(map[string]any{"toolCallId": pending[0], "accept": false})
				resp, err := http.Post(ts.URL+"/api/chat/confirm", "application/json", bytes.NewReader(body))
				if err == nil {
					resp.Body.Close()
				}
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	events := postChat(t, ts, `{"message":"pay grace"}`)

	var sawNo bool
	for _, e := range events {
		if e.Event == "card" && strings.Contains(e.Data, `"answered"`) && strings.Contains(e.Data, `"No"`) {
			sawNo = true
		}
	}
	if !sawNo {
		t.Fatalf("events = %+v, want answered card with No", events)
	}
	if _, ok := findEvent(events, "done"); !ok {
		t.Fatal("turn after rejection should still complete")
	}
}

func TestChatValidation(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/chat", "application/json", strings.NewReader(`{"message":"  "}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestChatUnknownConversation(t *testing.T) {
	ts := newTestServer(t, []gai.Response{textResponse("unused")})
	events := postChat(t, ts, `{"conversationId":"nope","message":"hi"}`)
	e, ok := findEvent(events, "error")
	if !ok || !strings.Contains(e.Data, "conversation not found") {
		t.Fatalf("events = %+v, want conversation not found error", events)
	}
}

func TestConfirmWithoutPending(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/chat/confirm", "application/json", strings.NewReader(`{"toolCallId":"ghost","accept":true}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestConversationLifecycle(t *testing.T) {
	ts := newTestServer(t, []gai.Response{textResponse("hello")})

	events := postChat(t, ts, `{"message":"hi"}`)
	done, _ := findEvent(events, "done")
	var payload struct {
		ConversationID string `json:"conversationId"`
	}
	json.Unmarshal([]byte(done.Data), &payload)

	resp, err := http.Get(ts.URL + "/api/conversations")
	if err != nil {
		t.Fatal(err)
	}
	var list []storage.Conversation
	json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if len(list) != 1 || list[0].ID != payload.ConversationID {
		t.Fatalf("list = %+v", list)
	}

	resp, err = http.Get(ts.URL + "/api/conversations/" + payload.ConversationID)
	if err != nil {
		t.Fatal(err)
	}
	var detail conversationDetail
	json.NewDecoder(resp.Body).Decode(&detail)
	resp.Body.Close()
	if len(detail.Dialog) != 2 || detail.Dialog[0].Role != "user" || detail.Dialog[1].Content != "hello" {
		t.Fatalf("detail = %+v", detail)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/conversations/"+payload.ConversationID, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	resp, _ = http.Get(ts.URL + "/api/conversations/" + payload.ConversationID)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
}
