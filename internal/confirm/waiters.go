package confirm

import (
	"context"
	"sync"
)

// Waiters is a Gate whose decisions arrive out of band, keyed by tool
// call ID. The HTTP layer shares one Waiters across requests: the chat
// stream blocks in Present while a separate confirm request resolves
// it.
type Waiters struct {
	// OnPending, when set, is called as a request starts waiting.
	OnPending func(Request)

	mu      sync.Mutex
	pending map[string]chan Decision
	closed  bool
}

var _ Gate = (*Waiters)(nil)

// NewWaiters creates an empty waiter registry.
func NewWaiters() *Waiters {
	return &Waiters{pending: make(map[string]chan Decision)}
}

// Present registers the request and blocks until Resolve is called
// with the same tool call ID, the context ends, or the gate closes.
func (w *Waiters) Present(ctx context.Context, req Request) (Decision, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return Rejected, ErrClosed
	}
	ch := make(chan Decision, 1)
	w.pending[req.ToolCallID] = ch
	notify := w.OnPending
	w.mu.Unlock()

	if notify != nil {
		notify(req)
	}

	defer func() {
		w.mu.Lock()
		delete(w.pending, req.ToolCallID)
		w.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return Rejected, ctx.Err()
	case d, ok := <-ch:
		if !ok {
			return Rejected, ErrClosed
		}
		return d, nil
	}
}

// Resolve delivers the user's decision for a pending confirmation.
func (w *Waiters) Resolve(toolCallID string, accept bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch, ok := w.pending[toolCallID]
	if !ok {
		return ErrNoPending
	}
	delete(w.pending, toolCallID)
	if accept {
		ch <- Accepted
	} else {
		ch <- Rejected
	}
	close(ch)
	return nil
}

// Pending reports the tool call IDs currently awaiting a decision.
func (w *Waiters) Pending() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := make([]string, 0, len(w.pending))
	for id := range w.pending {
		ids = append(ids, id)
	}
	return ids
}

// Close releases every waiter with ErrClosed and rejects future
// Present calls.
func (w *Waiters) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	for id, ch := range w.pending {
		close(ch)
		delete(w.pending, id)
	}
	return nil
}
