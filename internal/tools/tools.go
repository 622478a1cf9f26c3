// Package tools defines the payment tools exposed to the model.
//
// The registry is assembled once at startup and is immutable
// afterwards: renderers and the invocation state machine rely on the
// set of tool kinds being closed.
package tools

import (
	"fmt"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/spachava753/gai"
)

// Kind identifies a tool for renderer and gating dispatch. The set is
// closed: adding a Kind requires updating every switch over it.
type Kind int

const (
	KindSend Kind = iota
	KindSwap
	KindConvert
	KindFindRoute
	KindMultiChainBalance
	KindExploreProtocols
	KindYellowBalance
	KindConfirmation
)

// AllKinds lists every Kind. Exhaustiveness tests iterate it.
var AllKinds = []Kind{
	KindSend,
	KindSwap,
	KindConvert,
	KindFindRoute,
	KindMultiChainBalance,
	KindExploreProtocols,
	KindYellowBalance,
	KindConfirmation,
}

func (k Kind) String() string {
	switch k {
	case KindSend:
		return "send"
	case KindSwap:
		return "swap"
	case KindConvert:
		return "convert"
	case KindFindRoute:
		return "findRoute"
	case KindMultiChainBalance:
		return "multiChainBalance"
	case KindExploreProtocols:
		return "exploreProtocols"
	case KindYellowBalance:
		return "yellowBalance"
	case KindConfirmation:
		return "confirmation"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Definition couples a tool schema with its execution behavior.
type Definition struct {
	Tool gai.Tool
	Kind Kind

	// Mutating marks tools that move funds. Mutating tools are only
	// executed after the model has obtained user approval through the
	// confirmation tool.
	Mutating bool

	// Execute performs the tool call. Nil for the confirmation tool,
	// whose resolution comes from the user rather than from code.
	Execute gai.ToolCallback
}

// Name returns the wire name of the tool.
func (d Definition) Name() string { return d.Tool.Name }

// UnknownToolError reports a lookup of a name no tool was registered
// under.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// Registry is the fixed set of tools for a process.
type Registry struct {
	defs  map[string]Definition
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a definition. Names must be unique.
func (r *Registry) Register(def Definition) error {
	if def.Tool.Name == "" {
		return fmt.Errorf("tool has no name")
	}
	if _, exists := r.defs[def.Tool.Name]; exists {
		return fmt.Errorf("tool %q already registered", def.Tool.Name)
	}
	if def.Kind != KindConfirmation && def.Execute == nil {
		return fmt.Errorf("tool %q has no callback", def.Tool.Name)
	}
	r.defs[def.Tool.Name] = def
	r.order = append(r.order, def.Tool.Name)
	return nil
}

// Lookup finds a definition by wire name.
func (r *Registry) Lookup(name string) (Definition, error) {
	def, ok := r.defs[name]
	if !ok {
		return Definition{}, &UnknownToolError{Name: name}
	}
	return def, nil
}

// Definitions returns all definitions in registration order.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name])
	}
	return out
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.defs))
	for name := range r.defs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func objectSchema(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}
