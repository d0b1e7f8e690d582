package respparse

import (
	"regexp"
	"strings"

	"github.com/agentkernel/structured-agents/types"
)

// functionGemmaPattern matches the tagged-special-token encoding:
// <start_function_call>call:name{arg body}<end_function_call>. The body is
// matched non-greedily up to the first closing brace that precedes the end
// tag — a deliberately strict, no-whitespace grammar mirrors the one the
// grammar package builds for this family (spec.md §4.2).
var functionGemmaPattern = regexp.MustCompile(`(?s)<start_function_call>call:([A-Za-z0-9_\-.]+)\{(.*?)\}<end_function_call>`)

// FunctionGemmaParser extracts tagged-special-token tool calls emitted by
// FunctionGemma-family models.
type FunctionGemmaParser struct{}

// Parse implements Parser.
func (FunctionGemmaParser) Parse(content string, structured []StructuredToolCall) (*string, []types.ToolCall) {
	if len(structured) > 0 {
		return nil, fromStructured(structured)
	}

	matches := functionGemmaPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		c := content
		return &c, nil
	}

	inbound := make([]types.ToolCall, 0, len(matches))
	for _, m := range matches {
		inbound = append(inbound, types.ToolCall{
			ID:        newLocalID(),
			Name:      m[1],
			Arguments: decodeFunctionGemmaArgs(m[2]),
		})
	}

	remaining := strings.TrimSpace(functionGemmaPattern.ReplaceAllString(content, ""))
	if remaining == "" {
		return nil, inbound
	}
	return &remaining, inbound
}

// decodeFunctionGemmaArgs parses `k:<escape>v<escape>,k2:<escape>v2<escape>`
// pairs into a map. A malformed body yields an empty map, consistent with
// the lenient-decode contract shared by every parser family.
func decodeFunctionGemmaArgs(body string) map[string]any {
	body = strings.TrimSpace(body)
	if body == "" {
		return map[string]any{}
	}
	result := map[string]any{}
	for _, pair := range strings.Split(body, ",") {
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) != 2 {
			return map[string]any{}
		}
		key := strings.TrimSpace(kv[0])
		val := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(kv[1]), "<escape>"), "<escape>")
		if key == "" {
			return map[string]any{}
		}
		result[key] = val
	}
	return result
}
