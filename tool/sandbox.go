package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentkernel/structured-agents/types"
)

// InputKind enumerates the type annotations a sandbox script can declare for
// a named input.
type InputKind string

const (
	InputString InputKind = "string"
	InputInt    InputKind = "int"
	InputFloat  InputKind = "float"
	InputBool   InputKind = "bool"
)

// ScriptInput describes one declared, typed, named input on a sandbox
// script.
type ScriptInput struct {
	Name     string
	Kind     InputKind
	Required bool
	Default  any
}

// Script is the black-box sandbox-interpreter contract: script.run(inputs,
// limits) -> value. Pre-existing component, not reimplemented here.
type Script interface {
	Name() string
	Description() string
	Inputs() []ScriptInput
	Run(ctx context.Context, inputs map[string]any, limits Limits) (any, error)
}

// SandboxTool wraps a Script and implements Tool. The ToolSchema.Parameters
// JSON Schema is built once, at construction, by introspecting the script's
// declared inputs.
type SandboxTool struct {
	script Script
	schema types.ToolSchema
	limits Limits
}

// NewSandboxTool builds a SandboxTool, deriving its ToolSchema from the
// script's declared inputs. The description defaults to the script's name
// when the script does not provide one. limits bounds every Execute call on
// the returned tool; pass LimitsDefault when the caller has no per-tool risk
// tier configured.
func NewSandboxTool(script Script, limits Limits) (*SandboxTool, error) {
	params, err := buildParametersSchema(script.Inputs())
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", script.Name(), err)
	}
	description := script.Description()
	if description == "" {
		description = script.Name()
	}
	return &SandboxTool{
		script: script,
		schema: types.ToolSchema{
			Name:        script.Name(),
			Description: description,
			Parameters:  params,
		},
		limits: limits,
	}, nil
}

// Schema implements Tool.
func (t *SandboxTool) Schema() types.ToolSchema { return t.schema }

// Execute implements Tool per spec.md §4.3's execute semantics: derive
// call_id from the originating call (or "unknown"), run the script, and
// serialize a non-string result as JSON. Any error becomes an error
// ToolResult — it is never propagated.
func (t *SandboxTool) Execute(ctx context.Context, arguments map[string]any, call *types.ToolCall) types.ToolResult {
	callID := "unknown"
	if call != nil && call.ID != "" {
		callID = call.ID
	}

	result, err := t.script.Run(ctx, arguments, t.limits)
	if err != nil {
		return types.ToolResult{CallID: callID, Name: t.schema.Name, Output: err.Error(), IsError: true}
	}

	output, err := serializeResult(result)
	if err != nil {
		return types.ToolResult{CallID: callID, Name: t.schema.Name, Output: err.Error(), IsError: true}
	}
	return types.ToolResult{CallID: callID, Name: t.schema.Name, Output: output, IsError: false}
}

func serializeResult(result any) (string, error) {
	if s, ok := result.(string); ok {
		return s, nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("serialize tool result: %w", err)
	}
	return string(raw), nil
}

// buildParametersSchema maps declared script inputs to a JSON Schema object:
// string→"string", int→"integer", float→"number", bool→"boolean"; unknown
// kinds default to "string". Defaults are carried through; inputs declared
// Required that have no default are added to "required".
func buildParametersSchema(inputs []ScriptInput) (json.RawMessage, error) {
	properties := make(map[string]any, len(inputs))
	required := make([]string, 0, len(inputs))

	for _, in := range inputs {
		prop := map[string]any{"type": jsonSchemaType(in.Kind)}
		if in.Default != nil {
			prop["default"] = in.Default
		}
		properties[in.Name] = prop
		if in.Required && in.Default == nil {
			required = append(required, in.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal parameters schema: %w", err)
	}
	return raw, nil
}

func jsonSchemaType(kind InputKind) string {
	switch kind {
	case InputString:
		return "string"
	case InputInt:
		return "integer"
	case InputFloat:
		return "number"
	case InputBool:
		return "boolean"
	default:
		return "string"
	}
}
