// Package respparse extracts tool calls from a model response. Three
// variants share one contract: consume structured tool_calls verbatim when
// the API provides them, otherwise scan content for a family-specific
// inline/tagged encoding, otherwise pass content through unchanged.
package respparse

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/agentkernel/structured-agents/types"
)

// StructuredToolCall is the shape the model-endpoint-native `tool_calls`
// array arrives in (before arguments are decoded).
type StructuredToolCall struct {
	ID            string
	Name          string
	ArgumentsJSON string
}

// Parser extracts (content, tool calls) from a single model turn. Each
// family implements this independently; there is no shared base class, per
// spec.md §9 ("response-parser implementations as distinct values").
type Parser interface {
	Parse(content string, structured []StructuredToolCall) (*string, []types.ToolCall)
}

// decodeArguments performs the lenient JSON decode mandated by the
// response-parser contract: malformed JSON becomes an empty arguments map,
// never an error.
func decodeArguments(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return map[string]any{}
	}
	return decoded
}

// newLocalID generates a locally-assigned tool-call id with comfortably more
// than the 48 bits of entropy the spec requires (a UUIDv4 carries 122).
func newLocalID() string {
	return "local_" + uuid.NewString()
}

// fromStructured converts the API-native structured tool_calls into
// types.ToolCall, preserving ids verbatim — the single hard invariant of the
// parser contract.
func fromStructured(structured []StructuredToolCall) []types.ToolCall {
	calls := make([]types.ToolCall, 0, len(structured))
	for _, s := range structured {
		calls = append(calls, types.ToolCall{
			ID:        s.ID,
			Name:      s.Name,
			Arguments: decodeArguments(s.ArgumentsJSON),
		})
	}
	return calls
}

// DefaultParser is the generic fallback used when no model family matches an
// entry in the adapter registry. It only ever consumes structured tool_calls
// — it performs no inline-tag scanning of its own.
type DefaultParser struct{}

// Parse implements Parser.
func (DefaultParser) Parse(content string, structured []StructuredToolCall) (*string, []types.ToolCall) {
	if len(structured) > 0 {
		return nil, fromStructured(structured)
	}
	c := content
	return &c, nil
}
