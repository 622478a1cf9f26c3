package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/spachava753/gai"

	"github.com/yellowpay/payagent/internal/invocation"
	"github.com/yellowpay/payagent/internal/tools"
)

// Hooks observe the progress of a turn. Nil hooks are skipped. The
// server streams them out as SSE events; the CLI prints them.
type Hooks struct {
	// AssistantMessage fires for each assistant message as it arrives.
	AssistantMessage func(msg gai.Message)

	// InvocationDeclared fires when a tool call is declared, before
	// it starts executing.
	InvocationDeclared func(kind tools.Kind, snap invocation.Snapshot)

	// InvocationSettled fires when a tool call resolves or cancels.
	InvocationSettled func(kind tools.Kind, snap invocation.Snapshot)
}

// ToolLoop runs the model-tool round trips of a single user turn.
//
// Each assistant message may declare any number of tool calls; they
// execute concurrently and the loop continues only after every one of
// them settles. The loop ends when the model answers without tool
// calls or the step bound is hit.
type ToolLoop struct {
	gen      gai.Generator
	registry *tools.Registry
	exec     *invocation.Executor
	maxSteps int
	hooks    Hooks
}

// NewToolLoop registers the tool set on base and returns the loop.
func NewToolLoop(base gai.ToolCapableGenerator, registry *tools.Registry, exec *invocation.Executor, maxSteps int, hooks Hooks, wrappers ...gai.WrapperFunc) (*ToolLoop, error) {
	for _, def := range registry.Definitions() {
		if err := base.Register(def.Tool); err != nil {
			return nil, fmt.Errorf("registering tool %s: %w", def.Name(), err)
		}
	}
	if maxSteps < 1 {
		maxSteps = 1
	}
	return &ToolLoop{
		gen:      gai.Wrap(base, wrappers...),
		registry: registry,
		exec:     exec,
		maxSteps: maxSteps,
		hooks:    hooks,
	}, nil
}

// Generate implements the turn loop. It returns the input dialog
// extended with every assistant message and tool result produced
// during the turn. On error the partial dialog is returned alongside,
// so callers decide what to keep.
func (l *ToolLoop) Generate(ctx context.Context, dialog gai.Dialog, optsGen gai.GenOptsGenerator) (gai.Dialog, error) {
	dialog = slices.Clone(dialog)

	for step := 0; step < l.maxSteps; step++ {
		var opts *gai.GenOpts
		if optsGen != nil {
			opts = optsGen(dialog)
		}

		resp, err := l.gen.Generate(ctx, dialog, opts)
		if err != nil {
			return dialog, &StreamError{Err: err}
		}
		if len(resp.Candidates) == 0 {
			return dialog, &StreamError{Err: errors.New("provider returned no candidates")}
		}

		msg := resp.Candidates[0]
		dialog = append(dialog, msg)
		if l.hooks.AssistantMessage != nil {
			l.hooks.AssistantMessage(msg)
		}

		invs := declaredInvocations(msg)
		if len(invs) == 0 {
			return dialog, nil
		}

		ids := make([]string, 0, len(invs))
		for _, inv := range invs {
			if l.hooks.InvocationDeclared != nil {
				l.hooks.InvocationDeclared(l.kindOf(inv.Tool), invocation.Snapshot{
					Invocation: inv,
					Status:     invocation.Pending{},
				})
			}
			l.exec.Dispatch(ctx, inv)
			ids = append(ids, inv.ID)
		}

		results, err := l.exec.Barrier(ctx, ids)
		if err != nil {
			return dialog, &StreamError{Err: err}
		}
		for _, inv := range invs {
			if l.hooks.InvocationSettled == nil {
				break
			}
			if snap, ok := l.exec.Snapshot(inv.ID); ok {
				l.hooks.InvocationSettled(l.kindOf(inv.Tool), snap)
			}
		}
		dialog = append(dialog, results...)
	}

	return dialog, &MaxToolStepsError{Steps: l.maxSteps}
}

func (l *ToolLoop) kindOf(toolName string) tools.Kind {
	def, err := l.registry.Lookup(toolName)
	if err != nil {
		return tools.Kind(-1)
	}
	return def.Kind
}

// declaredInvocations extracts tool calls from an assistant message.
// A tool call block whose payload cannot be parsed still yields an
// invocation; the executor settles it as an error result so the model
// hears back about it.
func declaredInvocations(msg gai.Message) []invocation.Invocation {
	var invs []invocation.Invocation
	for _, block := range msg.Blocks {
		if block.BlockType != gai.ToolCall {
			continue
		}
		inv := invocation.Invocation{ID: block.ID}

		var input gai.ToolCallInput
		if err := json.Unmarshal([]byte(block.Content.String()), &input); err == nil {
			inv.Tool = input.Name
			if args, err := json.Marshal(input.Parameters); err == nil {
				inv.Args = args
			}
		}
		invs = append(invs, inv)
	}
	return invs
}
