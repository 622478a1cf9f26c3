package confirm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestWaitersAcceptAndReject(t *testing.T) {
	w := NewWaiters()
	defer w.Close()

	for _, tc := range []struct {
		accept bool
		want   Decision
	}{
		{accept: true, want: Accepted},
		{accept: false, want: Rejected},
	} {
		req := Request{ToolCallID: "call-" + tc.want.String(), ActionType: "send", Message: "Send 100 USDC?"}

		got := make(chan Decision, 1)
		errs := make(chan error, 1)
		go func() {
			d, err := w.Present(context.Background(), req)
			got <- d
			errs <- err
		}()

		// Wait for the request to register before resolving.
		deadline := time.Now().Add(time.Second)
		for len(w.Pending()) == 0 {
			if time.Now().After(deadline) {
				t.Fatal("confirmation never registered")
			}
			time.Sleep(time.Millisecond)
		}

		if err := w.Resolve(req.ToolCallID, tc.accept); err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if d := <-got; d != tc.want {
			t.Errorf("Present() = %v, want %v", d, tc.want)
		}
		if err := <-errs; err != nil {
			t.Errorf("Present() error = %v", err)
		}
	}
}

func TestWaitersResolveUnknown(t *testing.T) {
	w := NewWaiters()
	defer w.Close()
	if err := w.Resolve("nope", true); !errors.Is(err, ErrNoPending) {
		t.Fatalf("Resolve() error = %v, want ErrNoPending", err)
	}
}

func TestWaitersResolveTwice(t *testing.T) {
	w := NewWaiters()
	defer w.Close()

	done := make(chan struct{})
	go func() {
		w.Present(context.Background(), Request{ToolCallID: "c1"})
		close(done)
	}()
	for len(w.Pending()) == 0 {
		time.Sleep(time.Millisecond)
	}
	if err := w.Resolve("c1", true); err != nil {
		t.Fatalf("first Resolve() error = %v", err)
	}
	if err := w.Resolve("c1", false); !errors.Is(err, ErrNoPending) {
		t.Fatalf("second Resolve() error = %v, want ErrNoPending", err)
	}
	<-done
}

func TestWaitersContextCancel(t *testing.T) {
	w := NewWaiters()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := w.Present(ctx, Request{ToolCallID: "c2"})
		errs <- err
	}()
	for len(w.Pending()) == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-errs; !errors.Is(err, context.Canceled) {
		t.Fatalf("Present() error = %v, want context.Canceled", err)
	}
	// The abandoned entry must be cleaned up.
	deadline := time.Now().Add(time.Second)
	for len(w.Pending()) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("cancelled waiter left behind")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWaitersClose(t *testing.T) {
	w := NewWaiters()

	errs := make(chan error, 1)
	go func() {
		_, err := w.Present(context.Background(), Request{ToolCallID: "c3"})
		errs <- err
	}()
	for len(w.Pending()) == 0 {
		time.Sleep(time.Millisecond)
	}
	w.Close()
	if err := <-errs; !errors.Is(err, ErrClosed) {
		t.Fatalf("Present() error = %v, want ErrClosed", err)
	}
	if _, err := w.Present(context.Background(), Request{ToolCallID: "c4"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Present() after Close error = %v, want ErrClosed", err)
	}
}

func TestWaitersOnPending(t *testing.T) {
	w := NewWaiters()
	defer w.Close()

	seen := make(chan Request, 1)
	w.OnPending = func(req Request) { seen <- req }

	go func() {
		w.Present(context.Background(), Request{ToolCallID: "c5", ActionType: "swap"})
	}()

	select {
	case req := <-seen:
		if req.ActionType != "swap" {
			t.Errorf("OnPending req = %+v", req)
		}
	case <-time.After(time.Second):
		t.Fatal("OnPending never fired")
	}
	w.Resolve("c5", true)
}

func TestTerminalGate(t *testing.T) {
	for _, tc := range []struct {
		input string
		want  Decision
	}{
		{"y\n", Accepted},
		{"Yes\n", Accepted},
		{"n\n", Rejected},
		{"\n", Rejected},
		{"whatever\n", Rejected},
	} {
		var out strings.Builder
		g := &TerminalGate{In: strings.NewReader(tc.input), Out: &out}
		d, err := g.Present(context.Background(), Request{ToolCallID: "t1", Message: "Send it?"})
		if err != nil {
			t.Fatalf("Present(%q) error = %v", tc.input, err)
		}
		if d != tc.want {
			t.Errorf("Present(%q) = %v, want %v", tc.input, d, tc.want)
		}
		if !strings.Contains(out.String(), "Send it?") {
			t.Errorf("prompt missing message: %q", out.String())
		}
	}
}
