package tools

import (
	"encoding/json"
	"fmt"
	"math"
)

// ArgumentError reports tool arguments that do not satisfy the tool's
// input schema. The model receives it as an error tool result instead
// of the tool executing.
type ArgumentError struct {
	Tool   string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Reason)
}

// ValidateArgs checks raw tool arguments against the registered input
// schema. Required fields must be present and typed properties must
// match their declared primitive type.
func (r *Registry) ValidateArgs(name string, argsJSON json.RawMessage) error {
	def, err := r.Lookup(name)
	if err != nil {
		return err
	}
	schema := def.Tool.InputSchema
	if schema == nil {
		return nil
	}

	params := map[string]any{}
	if len(argsJSON) > 0 {
		if err := json.Unmarshal(argsJSON, &params); err != nil {
			return &ArgumentError{Tool: name, Reason: fmt.Sprintf("arguments are not a JSON object: %v", err)}
		}
	}

	for _, field := range schema.Required {
		if _, exists := params[field]; !exists {
			return &ArgumentError{Tool: name, Reason: fmt.Sprintf("missing required field %q", field)}
		}
	}

	for key, value := range params {
		prop, ok := schema.Properties[key]
		if !ok || prop.Type == "" {
			continue
		}
		if err := checkType(value, prop.Type); err != nil {
			return &ArgumentError{Tool: name, Reason: fmt.Sprintf("field %q: %v", key, err)}
		}
	}
	return nil
}

func checkType(value any, expected string) error {
	switch expected {
	case "string":
		if _, ok := value.(string); ok {
			return nil
		}
	case "number":
		if _, ok := value.(float64); ok {
			return nil
		}
		if n, ok := value.(json.Number); ok {
			if _, err := n.Float64(); err == nil {
				return nil
			}
		}
	case "integer":
		if f, ok := value.(float64); ok && math.Trunc(f) == f {
			return nil
		}
		if n, ok := value.(json.Number); ok {
			if _, err := n.Int64(); err == nil {
				return nil
			}
		}
	case "boolean":
		if _, ok := value.(bool); ok {
			return nil
		}
	case "object":
		if _, ok := value.(map[string]any); ok {
			return nil
		}
	case "array":
		if _, ok := value.([]any); ok {
			return nil
		}
	case "null":
		if value == nil {
			return nil
		}
	default:
		return fmt.Errorf("unsupported schema type %q", expected)
	}
	return fmt.Errorf("expected %s, got %T", expected, value)
}
