// Package grammar builds model-endpoint-specific decoding-constraint
// payloads that force syntactically valid tool-call output. Each mode is a
// bare callable — (tools, config) -> payload | nil — never wrapped in a
// one-method "pipeline" class (spec.md §9).
package grammar

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/agentkernel/structured-agents/kernelerr"
	"github.com/agentkernel/structured-agents/types"
)

// Builder is the shared shape every grammar mode implements.
type Builder func(tools []types.ToolSchema, cfg types.DecodingConstraint) (any, error)

// Build dispatches to the mode-specific builder named by cfg.Strategy. It
// returns (nil, nil) for an empty tool set — no grammar payload is sent when
// there is nothing to constrain.
func Build(tools []types.ToolSchema, cfg types.DecodingConstraint) (any, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	switch cfg.Strategy {
	case types.GrammarEBNF:
		return BuildEBNF(tools, cfg)
	case types.GrammarStructuralTag:
		return BuildStructuralTag(tools, cfg)
	case types.GrammarJSONSchema:
		return BuildJSONSchema(tools, cfg)
	default:
		return nil, kernelerr.NewAdapterError(fmt.Sprintf("unknown grammar strategy: %q", cfg.Strategy), nil)
	}
}

// BuildEBNF builds an EBNF grammar in the tagged-special-token form: a strict
// no-whitespace call rule (never optional whitespace in root, which causes
// degenerate runs on small models) whose tool_name rule is an alternation
// over the tools' names. The arg_body rule comes from cfg.ArgsFormat alone;
// the tools' parameter schemas are not read, so argument names and types are
// not constrained.
func BuildEBNF(tools []types.ToolSchema, cfg types.DecodingConstraint) (any, error) {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		if strings.TrimSpace(t.Name) == "" {
			return nil, kernelerr.NewAdapterError("tool schema missing name in EBNF grammar build", nil)
		}
		names = append(names, fmt.Sprintf("%q", t.Name))
	}

	callArity := "call"
	if cfg.AllowParallelCalls {
		callArity = "call+"
	}

	argBody := argBodyRule(cfg.ArgsFormat)

	grammar := fmt.Sprintf(
		"root ::= %s\n"+
			"call ::= \"<start_function_call>\" \"call:\" tool_name \"{\" arg_body \"}\" \"<end_function_call>\"\n"+
			"tool_name ::= %s\n"+
			"arg_body ::= %s\n",
		callArity, strings.Join(names, " | "), argBody,
	)

	return map[string]any{
		"structured_outputs": map[string]any{
			"type":    "grammar",
			"grammar": grammar,
		},
	}, nil
}

func argBodyRule(format types.ArgsFormat) string {
	switch format {
	case types.ArgsJSON:
		return `"{" [^{}]* "}"`
	case types.ArgsEscapedStrings:
		return `([^<]* "<escape>" [^<]* "<escape>")*`
	case types.ArgsPermissive, "":
		return `[^}]*`
	default:
		return `[^}]*`
	}
}

// structuralTag mirrors the wire shape of a single entry in the
// structural_tag payload's "tags" array.
type structuralTag struct {
	Begin   string `json:"begin"`
	Content any    `json:"content"`
	End     string `json:"end"`
}

// BuildStructuralTag composes one Tag(begin, content, end) entry per tool.
// content uses a JSON-schema-aware sub-format so any downstream consumer
// (XML-tagged or JSON-native models) can reuse the same tool-parameter
// schema already carried on ToolSchema.
func BuildStructuralTag(tools []types.ToolSchema, cfg types.DecodingConstraint) (any, error) {
	tags := make([]structuralTag, 0, len(tools))
	for _, t := range tools {
		var params any
		if len(t.Parameters) > 0 {
			if err := json.Unmarshal(t.Parameters, &params); err != nil {
				return nil, kernelerr.NewAdapterError(fmt.Sprintf("tool %q has invalid parameters schema", t.Name), err)
			}
		}
		tags = append(tags, structuralTag{
			Begin: fmt.Sprintf("<start_function_call>call:%s{", t.Name),
			Content: map[string]any{
				"type":   "json_schema",
				"schema": params,
			},
			End: "}<end_function_call>",
		})
	}

	payload := map[string]any{
		"tags":               tags,
		"allow_parallel_calls": cfg.AllowParallelCalls,
	}
	serialized, err := json.Marshal(payload)
	if err != nil {
		return nil, kernelerr.NewAdapterError("failed to serialize structural_tag payload", err)
	}

	return map[string]any{
		"structured_outputs": map[string]any{
			"type":           "structural_tag",
			"structural_tag": json.RawMessage(serialized),
		},
	}, nil
}

// BuildJSONSchema is only valid when the model endpoint supports JSON-schema
// decoding and cfg.SendToolsToAPI is true. The composed schema is validated
// with jsonschema/v6 before being returned, so a malformed tool schema fails
// fast here rather than being silently rejected by the provider later.
func BuildJSONSchema(tools []types.ToolSchema, cfg types.DecodingConstraint) (any, error) {
	if !cfg.SendToolsToAPI {
		return nil, kernelerr.NewAdapterError("json_schema grammar mode requires send_tools_to_api=true", nil)
	}

	oneOf := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		var params map[string]any
		if len(t.Parameters) > 0 {
			if err := json.Unmarshal(t.Parameters, &params); err != nil {
				return nil, kernelerr.NewAdapterError(fmt.Sprintf("tool %q has invalid parameters schema", t.Name), err)
			}
		}
		oneOf = append(oneOf, map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":      map[string]any{"const": t.Name},
				"arguments": params,
			},
			"required": []string{"name", "arguments"},
		})
	}
	schema := map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"oneOf":   oneOf,
	}

	if err := validateSchema(schema); err != nil {
		return nil, kernelerr.NewAdapterError("composed json_schema grammar failed validation", err)
	}

	return map[string]any{
		"structured_outputs": map[string]any{
			"type": "json",
			"json": map[string]any{
				"json_schema": schema,
			},
		},
	}, nil
}

// validateSchema compiles the composed schema with jsonschema/v6 purely to
// catch structural mistakes (duplicate keys, invalid keyword combinations)
// before the payload reaches the provider.
func validateSchema(schema map[string]any) error {
	raw, err := json.Marshal(schema)
	if err != nil {
		return err
	}
	compiler := jsonschema.NewCompiler()
	resource, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return err
	}
	const resourceURL = "mem://composed-tool-grammar.json"
	if err := compiler.AddResource(resourceURL, resource); err != nil {
		return err
	}
	_, err = compiler.Compile(resourceURL)
	return err
}
