package respparse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultParserPrefersStructuredToolCalls(t *testing.T) {
	content, calls := DefaultParser{}.Parse("ignored", []StructuredToolCall{
		{ID: "call_abc", Name: "add", ArgumentsJSON: `{"a":1,"b":2}`},
	})

	require.Nil(t, content)
	require.Len(t, calls, 1)
	require.Equal(t, "call_abc", calls[0].ID, "structured tool-call ids must be preserved verbatim")
	require.Equal(t, "add", calls[0].Name)
	require.Equal(t, map[string]any{"a": float64(1), "b": float64(2)}, calls[0].Arguments)
}

func TestDefaultParserMalformedArgumentsDecodeToEmptyMap(t *testing.T) {
	_, calls := DefaultParser{}.Parse("", []StructuredToolCall{
		{ID: "call_1", Name: "search", ArgumentsJSON: `{not json`},
	})

	require.Len(t, calls, 1)
	require.Equal(t, map[string]any{}, calls[0].Arguments, "malformed JSON arguments must decode to {} without error")
}

func TestDefaultParserPassesThroughPlainContent(t *testing.T) {
	content, calls := DefaultParser{}.Parse("hello there", nil)

	require.NotNil(t, content)
	require.Equal(t, "hello there", *content)
	require.Empty(t, calls)
}
