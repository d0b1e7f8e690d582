package kernel

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentkernel/structured-agents/adapter"
	"github.com/agentkernel/structured-agents/modelclient"
	"github.com/agentkernel/structured-agents/observer"
	"github.com/agentkernel/structured-agents/respparse"
	"github.com/agentkernel/structured-agents/tool"
	"github.com/agentkernel/structured-agents/types"
)

// scriptedClient replays a fixed sequence of responses, one per
// ChatCompletion call, so tests can drive a kernel run turn by turn without a
// real model endpoint.
type scriptedClient struct {
	mu        sync.Mutex
	responses []modelclient.Response
	calls     int
}

func (c *scriptedClient) ChatCompletion(_ context.Context, _ modelclient.Request) (modelclient.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp := c.responses[c.calls]
	c.calls++
	return resp, nil
}

// echoTool returns its "value" argument verbatim, after an optional sleep —
// used to exercise concurrent-execution ordering.
type echoTool struct {
	name  string
	delay time.Duration
}

func (t echoTool) Schema() types.ToolSchema {
	return types.ToolSchema{Name: t.name, Parameters: json.RawMessage(`{"type":"object"}`)}
}

func (t echoTool) Execute(ctx context.Context, arguments map[string]any, call *types.ToolCall) types.ToolResult {
	if t.delay > 0 {
		time.Sleep(t.delay)
	}
	value, _ := arguments["value"].(string)
	return types.ToolResult{CallID: call.ID, Name: t.name, Output: value}
}

var _ tool.Tool = echoTool{}

type recordingObserver struct {
	mu     sync.Mutex
	events []observer.Event
}

func (r *recordingObserver) Emit(_ context.Context, event observer.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingObserver) typeCounts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int{}
	for _, e := range r.events {
		counts[e.Type()]++
	}
	return counts
}

func testAdapter() *adapter.Adapter {
	return adapter.New("test", respparse.DefaultParser{}, types.DecodingConstraint{}, func([]types.ToolSchema, types.DecodingConstraint) (any, error) {
		return nil, nil
	})
}

func strContentCall(id, name string, args map[string]any) respparse.StructuredToolCall {
	raw, _ := json.Marshal(args)
	return respparse.StructuredToolCall{ID: id, Name: name, ArgumentsJSON: string(raw)}
}

func strPtr(s string) *string { return &s }

// Scenario A: structured tool-call ids survive Step unchanged.
func TestStepPreservesStructuredToolCallIDs(t *testing.T) {
	client := &scriptedClient{responses: []modelclient.Response{
		{ToolCalls: []respparse.StructuredToolCall{strContentCall("call_abc123", "echo", map[string]any{"value": "hi"})}},
	}}
	obs := &recordingObserver{}
	k, err := New(Config{
		Client:   client,
		Adapter:  testAdapter(),
		Observer: obs,
		Tools:    []tool.Tool{echoTool{name: "echo"}},
	})
	require.NoError(t, err)

	step, err := k.Step(context.Background(), nil, []ToolRef{"echo"}, 1)
	require.NoError(t, err)
	require.Len(t, step.ToolCalls, 1)
	require.Equal(t, "call_abc123", step.ToolCalls[0].ID)
	require.Len(t, step.ToolResults, 1)
	require.Equal(t, "call_abc123", step.ToolResults[0].CallID)
}

// Scenario B: single turn, no tool calls, terminates immediately.
func TestRunTerminatesOnNoToolCalls(t *testing.T) {
	content := "all done"
	client := &scriptedClient{responses: []modelclient.Response{{Content: &content}}}
	obs := &recordingObserver{}
	k, err := New(Config{Client: client, Adapter: testAdapter(), Observer: obs})
	require.NoError(t, err)

	result, err := k.Run(context.Background(), []types.Message{{Role: types.RoleUser, Content: strPtr("hi")}}, nil, 10, RunOptions{})

	require.NoError(t, err)
	require.Equal(t, types.TerminationNoToolCalls, result.TerminationReason)
	require.Equal(t, 1, result.TurnCount)
	require.NotNil(t, result.FinalMessage.Content)
	require.Equal(t, "all done", *result.FinalMessage.Content)

	counts := obs.typeCounts()
	require.Equal(t, 1, counts["kernel_start"])
	require.Equal(t, 1, counts["model_request"])
	require.Equal(t, 1, counts["model_response"])
	require.Equal(t, 1, counts["turn_complete"])
	require.Equal(t, 1, counts["kernel_end"])
	require.Zero(t, counts["tool_call"])
}

// Scenario C: two-turn workflow — first turn issues a tool call, second turn
// has nothing left to call and ends the run.
func TestRunTwoTurnWorkflowAppendsToolResultToHistory(t *testing.T) {
	final := "the answer is 7"
	client := &scriptedClient{responses: []modelclient.Response{
		{ToolCalls: []respparse.StructuredToolCall{strContentCall("call_1", "echo", map[string]any{"value": "7"})}},
		{Content: &final},
	}}
	k, err := New(Config{
		Client:  client,
		Adapter: testAdapter(),
		Tools:   []tool.Tool{echoTool{name: "echo"}},
	})
	require.NoError(t, err)

	result, err := k.Run(context.Background(), []types.Message{{Role: types.RoleUser, Content: strPtr("what is 3+4?")}}, []ToolRef{"echo"}, 10, RunOptions{})

	require.NoError(t, err)
	require.Equal(t, 2, result.TurnCount)
	require.Equal(t, types.TerminationNoToolCalls, result.TerminationReason)

	var sawToolMessage bool
	for _, m := range result.History {
		if m.Role == types.RoleTool && m.ToolCallID == "call_1" {
			sawToolMessage = true
			require.Equal(t, "7", *m.Content)
		}
	}
	require.True(t, sawToolMessage, "tool result must be appended to history as a role=tool message")
}

// Scenario D: concurrent tool execution preserves input-call order in the
// output regardless of completion order.
func TestExecuteToolCallsPreservesOrderUnderConcurrency(t *testing.T) {
	k, err := New(Config{
		Client:         &scriptedClient{},
		Adapter:        testAdapter(),
		Tools:          []tool.Tool{echoTool{name: "slow", delay: 20 * time.Millisecond}, echoTool{name: "fast"}},
		MaxConcurrency: 4,
	})
	require.NoError(t, err)

	calls := []types.ToolCall{
		{ID: "call_1", Name: "slow", Arguments: map[string]any{"value": "first"}},
		{ID: "call_2", Name: "fast", Arguments: map[string]any{"value": "second"}},
	}

	results := k.executeToolCalls(context.Background(), 1, calls)

	require.Len(t, results, 2)
	require.Equal(t, "call_1", results[0].CallID)
	require.Equal(t, "call_2", results[1].CallID)
}

// Scenario E: an unresolvable tool name produces an error ToolResult rather
// than aborting the step.
func TestExecuteToolCallsUnknownToolYieldsErrorResult(t *testing.T) {
	k, err := New(Config{Client: &scriptedClient{}, Adapter: testAdapter()})
	require.NoError(t, err)

	results := k.executeToolCalls(context.Background(), 1, []types.ToolCall{{ID: "call_1", Name: "missing"}})

	require.Len(t, results, 1)
	require.True(t, results[0].IsError)
	require.Contains(t, results[0].Output, "Unknown tool")
}

// Scenario F: history trimming keeps the first message plus the most recent
// maxMessages-1.
func TestTrimHistoryKeepsFirstMessageAndRecentTail(t *testing.T) {
	history := make([]types.Message, 0, 5)
	for i := 0; i < 5; i++ {
		letter := string(rune('a' + i))
		history = append(history, types.Message{Role: types.RoleUser, Content: strPtr(letter)})
	}

	trimmed := trimHistory(history, 3)

	require.Len(t, trimmed, 3)
	require.Equal(t, history[0], trimmed[0])
	require.Equal(t, history[3], trimmed[1])
	require.Equal(t, history[4], trimmed[2])
}

func TestTrimHistoryNoopWhenUnderLimit(t *testing.T) {
	history := []types.Message{{Role: types.RoleUser}, {Role: types.RoleAssistant}}
	require.Equal(t, history, trimHistory(history, 10))
}

func TestRunStopsAtMaxTurnsWhenToolCallsNeverStop(t *testing.T) {
	client := &scriptedClient{responses: []modelclient.Response{
		{ToolCalls: []respparse.StructuredToolCall{strContentCall("call_1", "echo", map[string]any{"value": "x"})}},
		{ToolCalls: []respparse.StructuredToolCall{strContentCall("call_2", "echo", map[string]any{"value": "x"})}},
	}}
	k, err := New(Config{Client: client, Adapter: testAdapter(), Tools: []tool.Tool{echoTool{name: "echo"}}})
	require.NoError(t, err)

	result, err := k.Run(context.Background(), nil, []ToolRef{"echo"}, 2, RunOptions{})

	require.NoError(t, err)
	require.Equal(t, types.TerminationMaxTurns, result.TerminationReason)
	require.Equal(t, 2, result.TurnCount)
}

func TestRunTerminatesOnTerminationPredicate(t *testing.T) {
	client := &scriptedClient{responses: []modelclient.Response{
		{ToolCalls: []respparse.StructuredToolCall{strContentCall("call_1", "echo", map[string]any{"value": "STOP"})}},
	}}
	k, err := New(Config{Client: client, Adapter: testAdapter(), Tools: []tool.Tool{echoTool{name: "echo"}}})
	require.NoError(t, err)

	result, err := k.Run(context.Background(), nil, []ToolRef{"echo"}, 10, RunOptions{
		TerminationPredicate: func(r types.ToolResult) bool { return r.Output == "STOP" },
	})

	require.NoError(t, err)
	require.Equal(t, types.TerminationPredicateMatched, result.TerminationReason)
	require.Equal(t, 1, result.TurnCount)
}
