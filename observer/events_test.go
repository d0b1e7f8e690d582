package observer

import (
	"testing"

	"github.com/agentkernel/structured-agents/types"
	"github.com/stretchr/testify/require"
)

func TestEventTypesAreDistinct(t *testing.T) {
	events := []Event{
		NewKernelStartEvent(1, 0, 1),
		NewModelRequestEvent(1, 1, 0, "gpt-4o-mini"),
		NewModelResponseEvent(1, 10, nil, 0, types.TokenUsage{}),
		NewToolCallEvent(1, "add", "call_1", nil),
		NewToolResultEvent(1, "add", "call_1", false, 5, "8"),
		NewTurnCompleteEvent(1, 1, 1, 0),
		NewKernelEndEvent(1, types.TerminationNoToolCalls, 20),
	}

	seen := map[string]bool{}
	for _, e := range events {
		require.False(t, seen[e.Type()], "event type %q must be unique", e.Type())
		seen[e.Type()] = true
	}
	require.Len(t, seen, 7)
}

func TestToolResultEventOutputPreviewIsCallerTruncated(t *testing.T) {
	event := NewToolResultEvent(2, "search", "call_2", false, 3, "short")
	require.Equal(t, "short", event.OutputPreview)
}
