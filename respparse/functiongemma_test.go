package respparse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFunctionGemmaParserStructuredTakesPriority(t *testing.T) {
	_, calls := FunctionGemmaParser{}.Parse(
		"<start_function_call>call:ignored{}<end_function_call>",
		[]StructuredToolCall{{ID: "call_9", Name: "real", ArgumentsJSON: `{}`}},
	)

	require.Len(t, calls, 1)
	require.Equal(t, "call_9", calls[0].ID)
}

func TestFunctionGemmaParserExtractsTaggedCall(t *testing.T) {
	content := "<start_function_call>call:get_weather{city:<escape>Paris<escape>}<end_function_call>"

	remaining, calls := FunctionGemmaParser{}.Parse(content, nil)

	require.Len(t, calls, 1)
	require.Equal(t, "get_weather", calls[0].Name)
	require.Equal(t, map[string]any{"city": "Paris"}, calls[0].Arguments)
	require.NotEmpty(t, calls[0].ID)
	require.Nil(t, remaining)
}

func TestFunctionGemmaParserMalformedBodyYieldsEmptyArguments(t *testing.T) {
	content := "<start_function_call>call:broken{not a kv pair at all}<end_function_call>"

	_, calls := FunctionGemmaParser{}.Parse(content, nil)

	require.Len(t, calls, 1)
	require.Equal(t, map[string]any{}, calls[0].Arguments)
}

func TestFunctionGemmaParserNoMatchPassesContentThrough(t *testing.T) {
	remaining, calls := FunctionGemmaParser{}.Parse("no tags here", nil)

	require.Empty(t, calls)
	require.NotNil(t, remaining)
	require.Equal(t, "no tags here", *remaining)
}
