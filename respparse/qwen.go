package respparse

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/agentkernel/structured-agents/types"
)

// qwenToolCallPattern matches one or more inline `<tool_call>{...}</tool_call>`
// blocks, the Qwen-family tool-call encoding.
var qwenToolCallPattern = regexp.MustCompile(`(?s)<tool_call>\s*(\{.*?\})\s*</tool_call>`)

// QwenParser extracts inline XML-tagged tool calls emitted by Qwen-family
// models. It delegates to the shared structured path first, per the parser
// contract.
type QwenParser struct{}

// Parse implements Parser.
func (QwenParser) Parse(content string, structured []StructuredToolCall) (*string, []types.ToolCall) {
	if len(structured) > 0 {
		return nil, fromStructured(structured)
	}

	matches := qwenToolCallPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		c := content
		return &c, nil
	}

	inbound := make([]types.ToolCall, 0, len(matches))
	for _, m := range matches {
		inbound = append(inbound, parseQwenBlob(m[1]))
	}

	remaining := strings.TrimSpace(qwenToolCallPattern.ReplaceAllString(content, ""))
	if remaining == "" {
		return nil, inbound
	}
	return &remaining, inbound
}

func parseQwenBlob(blob string) types.ToolCall {
	name, argsJSON := splitNameAndArguments(blob)
	return types.ToolCall{
		ID:        newLocalID(),
		Name:      name,
		Arguments: decodeArguments(argsJSON),
	}
}

// splitNameAndArguments extracts {"name": "...", "arguments": {...}} from a
// decoded tool-call blob without requiring a full schema-typed struct.
func splitNameAndArguments(blob string) (name string, argumentsJSON string) {
	var envelope struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(blob), &envelope); err != nil {
		return "", ""
	}
	if envelope.Arguments == nil {
		return envelope.Name, ""
	}
	return envelope.Name, string(envelope.Arguments)
}
