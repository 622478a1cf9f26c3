package invocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/spachava753/gai"

	"github.com/yellowpay/payagent/internal/confirm"
	"github.com/yellowpay/payagent/internal/tools"
	"github.com/yellowpay/payagent/internal/wallet"
)

// Executor runs invocations exactly once and settles their results.
//
// Dispatch is idempotent per tool call ID: the first call starts
// execution in a goroutine, later calls for the same ID are no-ops.
// Multiple invocations declared in one assistant turn therefore run
// concurrently and are collected with Barrier.
type Executor struct {
	registry *tools.Registry
	gate     confirm.Gate

	mu      sync.Mutex
	records map[string]*record
}

type record struct {
	inv    Invocation
	done   chan struct{}
	result Result
	msg    gai.Message
}

// NewExecutor creates an Executor over the given tool set. The gate
// resolves confirmation invocations; all other tools run their
// registered callbacks.
func NewExecutor(registry *tools.Registry, gate confirm.Gate) *Executor {
	return &Executor{
		registry: registry,
		gate:     gate,
		records:  make(map[string]*record),
	}
}

// Dispatch starts executing inv unless an invocation with the same ID
// was dispatched before.
func (e *Executor) Dispatch(ctx context.Context, inv Invocation) {
	e.mu.Lock()
	if _, exists := e.records[inv.ID]; exists {
		e.mu.Unlock()
		return
	}
	rec := &record{inv: inv, done: make(chan struct{})}
	e.records[inv.ID] = rec
	e.mu.Unlock()

	go func() {
		result := e.run(ctx, inv)
		e.mu.Lock()
		rec.result = result
		rec.msg = resultMessage(inv.ID, result)
		e.mu.Unlock()
		close(rec.done)
	}()
}

// Await blocks until the invocation with the given ID settles and
// returns its tool result message.
func (e *Executor) Await(ctx context.Context, id string) (gai.Message, error) {
	e.mu.Lock()
	rec, ok := e.records[id]
	e.mu.Unlock()
	if !ok {
		return gai.Message{}, fmt.Errorf("no invocation dispatched for %q", id)
	}
	select {
	case <-ctx.Done():
		return gai.Message{}, ctx.Err()
	case <-rec.done:
		e.mu.Lock()
		defer e.mu.Unlock()
		return rec.msg, nil
	}
}

// Barrier waits for every listed invocation to settle and returns
// their tool result messages in the given declaration order, no
// matter which settled first.
func (e *Executor) Barrier(ctx context.Context, ids []string) ([]gai.Message, error) {
	msgs := make([]gai.Message, 0, len(ids))
	for _, id := range ids {
		msg, err := e.Await(ctx, id)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Snapshot reports the current lifecycle state of an invocation.
func (e *Executor) Snapshot(id string) (Snapshot, bool) {
	e.mu.Lock()
	rec, ok := e.records[id]
	e.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	select {
	case <-rec.done:
		e.mu.Lock()
		defer e.mu.Unlock()
		return Snapshot{Invocation: rec.inv, Status: Settled{Result: rec.result}}, true
	default:
		return Snapshot{Invocation: rec.inv, Status: Pending{Running: true}}, true
	}
}

func (e *Executor) run(ctx context.Context, inv Invocation) Result {
	def, err := e.registry.Lookup(inv.Tool)
	if err != nil {
		return Result{Content: err.Error(), IsError: true}
	}

	if def.Kind == tools.KindConfirmation {
		return e.runConfirmation(ctx, inv)
	}

	if err := e.registry.ValidateArgs(inv.Tool, inv.Args); err != nil {
		return Result{Content: err.Error(), IsError: true}
	}

	msg, err := def.Execute.Call(ctx, inv.Args, inv.ID)
	switch {
	case errors.Is(err, wallet.ErrRejected):
		return Result{Content: CancelledContent, Cancelled: true}
	case err != nil:
		return Result{Content: fmt.Sprintf("%s failed: %v", inv.Tool, err), IsError: true}
	}

	result := Result{IsError: msg.ToolResultError}
	if len(msg.Blocks) > 0 {
		result.Content = msg.Blocks[0].Content.String()
	}
	return result
}

func (e *Executor) runConfirmation(ctx context.Context, inv Invocation) Result {
	var args struct {
		ActionType string         `json:"actionType"`
		Message    string         `json:"message"`
		Parameters map[string]any `json:"parameters"`
	}
	if err := json.Unmarshal(inv.Args, &args); err != nil {
		return Result{Content: fmt.Sprintf("parsing confirmation parameters: %v", err), IsError: true}
	}

	decision, err := e.gate.Present(ctx, confirm.Request{
		ToolCallID: inv.ID,
		ActionType: args.ActionType,
		Message:    args.Message,
		Parameters: args.Parameters,
	})
	if err != nil {
		return Result{Content: fmt.Sprintf("confirmation aborted: %v", err), IsError: true}
	}
	if decision == confirm.Accepted {
		return Result{Content: "Yes"}
	}
	return Result{Content: "No"}
}

func resultMessage(id string, result Result) gai.Message {
	if result.IsError {
		return tools.ErrorResult(id, result.Content)
	}
	return tools.TextResult(id, result.Content)
}
