// Package invocation tracks tool calls through their lifecycle.
//
// An invocation is declared when the model emits a tool call block,
// executes at most once, and settles as resolved or cancelled. Settled
// invocations never change again: late duplicate dispatches and late
// confirmation decisions are ignored.
package invocation

import (
	"encoding/json"
	"fmt"
)

// CancelledContent is the tool result reported for an invocation the
// user declined to sign. The model sees this text and must not retry.
const CancelledContent = "Transaction cancelled."

// Invocation is a declared tool call.
type Invocation struct {
	// ID is the provider-assigned tool call ID.
	ID string

	// Tool is the wire name of the invoked tool.
	Tool string

	// Args is the raw JSON arguments from the model.
	Args json.RawMessage
}

// Result is the settled outcome of an invocation.
type Result struct {
	// Content is the tool result text handed back to the model.
	Content string

	// IsError marks execution failures and invalid arguments.
	IsError bool

	// Cancelled marks a user rejection. Cancelled results are not
	// errors: the model receives CancelledContent as a normal result.
	Cancelled bool
}

// Status is the lifecycle position of an invocation. Exactly one of
// the concrete variants applies at any time.
type Status interface {
	isStatus()
}

// Pending means the invocation was declared and has not settled.
// Running reports whether execution has started.
type Pending struct {
	Running bool
}

// Settled means the invocation reached a terminal state.
type Settled struct {
	Result Result
}

func (Pending) isStatus() {}
func (Settled) isStatus() {}

// Snapshot is a point-in-time view of one invocation for rendering.
type Snapshot struct {
	Invocation Invocation
	Status     Status
}

// Resolved returns the result when the snapshot is settled.
func (s Snapshot) Resolved() (Result, bool) {
	if settled, ok := s.Status.(Settled); ok {
		return settled.Result, true
	}
	return Result{}, false
}

func (s Snapshot) String() string {
	switch st := s.Status.(type) {
	case Settled:
		switch {
		case st.Result.Cancelled:
			return fmt.Sprintf("%s[%s] cancelled", s.Invocation.Tool, s.Invocation.ID)
		case st.Result.IsError:
			return fmt.Sprintf("%s[%s] failed", s.Invocation.Tool, s.Invocation.ID)
		default:
			return fmt.Sprintf("%s[%s] resolved", s.Invocation.Tool, s.Invocation.ID)
		}
	default:
		return fmt.Sprintf("%s[%s] pending", s.Invocation.Tool, s.Invocation.ID)
	}
}
