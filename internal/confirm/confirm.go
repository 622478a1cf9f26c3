// Package confirm gates risky agent actions on explicit user approval.
package confirm

import (
	"context"
	"errors"
)

var (
	// ErrNoPending is returned when a decision arrives for an unknown
	// or already-settled confirmation.
	ErrNoPending = errors.New("confirm: no pending confirmation")

	// ErrClosed is returned to waiters when the gate shuts down.
	ErrClosed = errors.New("confirm: gate closed")
)

// Decision is the user's verdict on a pending confirmation.
type Decision int

const (
	Rejected Decision = iota
	Accepted
)

func (d Decision) String() string {
	if d == Accepted {
		return "accepted"
	}
	return "rejected"
}

// Request describes the action awaiting approval.
type Request struct {
	// ToolCallID ties the confirmation back to the tool invocation
	// that raised it.
	ToolCallID string `json:"toolCallId"`

	// ActionType names the gated action, e.g. "send" or "swap".
	ActionType string `json:"actionType"`

	// Message is the human-readable question to show the user.
	Message string `json:"message"`

	// Parameters echoes the action arguments for display.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Gate blocks until the user decides on a request.
//
// Present must honor ctx cancellation: a confirmation can stay pending
// indefinitely if the user walks away.
type Gate interface {
	Present(ctx context.Context, req Request) (Decision, error)
}
