// Package observer defines the kernel's typed lifecycle-event taxonomy and
// the fan-out machinery (null and composite observers) that deliver events
// to listeners. Exactly seven event variants exist; the kernel emits them in
// a fixed per-turn order (see kernel package).
package observer

import (
	"time"

	"github.com/agentkernel/structured-agents/types"
)

// Event is implemented by every concrete event variant. Turn is 0 for events
// emitted before turn 1 (KernelStartEvent only).
type Event interface {
	Type() string
	Turn() int
	Timestamp() time.Time
}

type baseEvent struct {
	turn int
	at   time.Time
}

func (b baseEvent) Turn() int          { return b.turn }
func (b baseEvent) Timestamp() time.Time { return b.at }

func newBase(turn int) baseEvent {
	return baseEvent{turn: turn, at: time.Now()}
}

// KernelStartEvent is emitted once, before turn 1.
type KernelStartEvent struct {
	baseEvent
	MaxTurns             int
	ToolsCount           int
	InitialMessagesCount int
}

// NewKernelStartEvent constructs a KernelStartEvent.
func NewKernelStartEvent(maxTurns, toolsCount, initialMessagesCount int) KernelStartEvent {
	return KernelStartEvent{
		baseEvent:            newBase(0),
		MaxTurns:             maxTurns,
		ToolsCount:           toolsCount,
		InitialMessagesCount: initialMessagesCount,
	}
}

func (KernelStartEvent) Type() string { return "kernel_start" }

// ModelRequestEvent is emitted once per turn, before the model API call.
type ModelRequestEvent struct {
	baseEvent
	MessagesCount int
	ToolsCount    int
	ModelLabel    string
}

// NewModelRequestEvent constructs a ModelRequestEvent.
func NewModelRequestEvent(turn, messagesCount, toolsCount int, modelLabel string) ModelRequestEvent {
	return ModelRequestEvent{
		baseEvent:     newBase(turn),
		MessagesCount: messagesCount,
		ToolsCount:    toolsCount,
		ModelLabel:    modelLabel,
	}
}

func (ModelRequestEvent) Type() string { return "model_request" }

// ModelResponseEvent is emitted once per turn, after the model API call.
type ModelResponseEvent struct {
	baseEvent
	DurationMS     int64
	Content        *string
	ToolCallsCount int
	Usage          types.TokenUsage
}

// NewModelResponseEvent constructs a ModelResponseEvent.
func NewModelResponseEvent(turn int, durationMS int64, content *string, toolCallsCount int, usage types.TokenUsage) ModelResponseEvent {
	return ModelResponseEvent{
		baseEvent:      newBase(turn),
		DurationMS:     durationMS,
		Content:        content,
		ToolCallsCount: toolCallsCount,
		Usage:          usage,
	}
}

func (ModelResponseEvent) Type() string { return "model_response" }

// ToolCallEvent is emitted once per tool call, before execution.
type ToolCallEvent struct {
	baseEvent
	ToolName  string
	CallID    string
	Arguments map[string]any
}

// NewToolCallEvent constructs a ToolCallEvent.
func NewToolCallEvent(turn int, toolName, callID string, arguments map[string]any) ToolCallEvent {
	return ToolCallEvent{
		baseEvent: newBase(turn),
		ToolName:  toolName,
		CallID:    callID,
		Arguments: arguments,
	}
}

func (ToolCallEvent) Type() string { return "tool_call" }

// ToolResultEvent is emitted once per tool call, after its ToolCallEvent.
type ToolResultEvent struct {
	baseEvent
	ToolName       string
	CallID         string
	IsError        bool
	DurationMS     int64
	OutputPreview  string
}

// NewToolResultEvent constructs a ToolResultEvent. OutputPreview is truncated
// to the first 100 characters by the caller (see kernel package).
func NewToolResultEvent(turn int, toolName, callID string, isError bool, durationMS int64, outputPreview string) ToolResultEvent {
	return ToolResultEvent{
		baseEvent:     newBase(turn),
		ToolName:      toolName,
		CallID:        callID,
		IsError:       isError,
		DurationMS:    durationMS,
		OutputPreview: outputPreview,
	}
}

func (ToolResultEvent) Type() string { return "tool_result" }

// TurnCompleteEvent is emitted once per turn, after all tools for that turn.
type TurnCompleteEvent struct {
	baseEvent
	ToolCallsCount   int
	ToolResultsCount int
	ErrorsCount      int
}

// NewTurnCompleteEvent constructs a TurnCompleteEvent.
func NewTurnCompleteEvent(turn, toolCallsCount, toolResultsCount, errorsCount int) TurnCompleteEvent {
	return TurnCompleteEvent{
		baseEvent:        newBase(turn),
		ToolCallsCount:   toolCallsCount,
		ToolResultsCount: toolResultsCount,
		ErrorsCount:      errorsCount,
	}
}

func (TurnCompleteEvent) Type() string { return "turn_complete" }

// KernelEndEvent is emitted once, after the loop terminates.
type KernelEndEvent struct {
	baseEvent
	TurnCount         int
	TerminationReason types.TerminationReason
	TotalDurationMS   int64
}

// NewKernelEndEvent constructs a KernelEndEvent.
func NewKernelEndEvent(turnCount int, reason types.TerminationReason, totalDurationMS int64) KernelEndEvent {
	return KernelEndEvent{
		baseEvent:         newBase(turnCount),
		TurnCount:         turnCount,
		TerminationReason: reason,
		TotalDurationMS:   totalDurationMS,
	}
}

func (KernelEndEvent) Type() string { return "kernel_end" }
