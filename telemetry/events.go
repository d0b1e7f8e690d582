package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/agentkernel/structured-agents/observer"
)

// EventObserver implements observer.Observer by translating the kernel's
// seven-variant lifecycle events into Logger/Metrics/Tracer calls. It is the
// bridge between the event-sourced turn loop and this package's telemetry
// backends — nothing else in the kernel knows about spans or counters.
type EventObserver struct {
	logger  Logger
	metrics Metrics
	tracer  Tracer

	mu        sync.Mutex
	turnSpans map[int]Span
	callSpans map[string]Span
}

// NewEventObserver builds an EventObserver. A nil logger/metrics/tracer
// defaults to its Noop implementation, so callers can wire only the backends
// they care about.
func NewEventObserver(logger Logger, metrics Metrics, tracer Tracer) *EventObserver {
	if logger == nil {
		logger = NoopLogger{}
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if tracer == nil {
		tracer = NoopTracer{}
	}
	return &EventObserver{
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
		turnSpans: make(map[int]Span),
		callSpans: make(map[string]Span),
	}
}

// Emit implements observer.Observer. It never returns an error: a telemetry
// backend failure must never abort a kernel run (CompositeObserver already
// isolates subscriber errors, but this observer has none of its own to
// surface).
func (o *EventObserver) Emit(ctx context.Context, event observer.Event) error {
	switch e := event.(type) {
	case observer.KernelStartEvent:
		o.logger.Info(ctx, "kernel run started",
			"max_turns", e.MaxTurns, "tools_count", e.ToolsCount, "initial_messages_count", e.InitialMessagesCount)
		o.metrics.IncCounter("agentkernel.runs_started_total", 1)

	case observer.ModelRequestEvent:
		_, span := o.tracer.Start(ctx, "agentkernel.model_request")
		span.AddEvent("request", "turn", e.Turn(), "model", e.ModelLabel, "tools_count", e.ToolsCount)
		o.setTurnSpan(e.Turn(), span)
		o.logger.Debug(ctx, "model request",
			"turn", e.Turn(), "messages_count", e.MessagesCount, "tools_count", e.ToolsCount, "model", e.ModelLabel)

	case observer.ModelResponseEvent:
		if span, ok := o.takeTurnSpan(e.Turn()); ok {
			span.AddEvent("response", "tool_calls_count", e.ToolCallsCount, "total_tokens", e.Usage.TotalTokens)
			span.End()
		}
		o.metrics.RecordTimer("agentkernel.model_request_duration", time.Duration(e.DurationMS)*time.Millisecond)
		o.metrics.IncCounter("agentkernel.model_tokens_total", float64(e.Usage.TotalTokens))
		o.logger.Info(ctx, "model response",
			"turn", e.Turn(), "duration_ms", e.DurationMS, "tool_calls_count", e.ToolCallsCount,
			"prompt_tokens", e.Usage.PromptTokens, "completion_tokens", e.Usage.CompletionTokens)

	case observer.ToolCallEvent:
		_, span := o.tracer.Start(ctx, "agentkernel.tool_call")
		span.AddEvent("call", "tool", e.ToolName, "call_id", e.CallID)
		o.setCallSpan(e.CallID, span)
		o.metrics.IncCounter("agentkernel.tool_calls_total", 1, "tool", e.ToolName)
		o.logger.Debug(ctx, "tool call", "turn", e.Turn(), "tool", e.ToolName, "call_id", e.CallID)

	case observer.ToolResultEvent:
		span, ok := o.takeCallSpan(e.CallID)
		if ok && e.IsError {
			span.SetStatus(codes.Error, e.OutputPreview)
		}
		if ok {
			span.End()
		}
		o.metrics.RecordTimer("agentkernel.tool_duration", time.Duration(e.DurationMS)*time.Millisecond, "tool", e.ToolName)
		if e.IsError {
			o.metrics.IncCounter("agentkernel.tool_errors_total", 1, "tool", e.ToolName)
			o.logger.Warn(ctx, "tool call failed",
				"tool", e.ToolName, "call_id", e.CallID, "output_preview", e.OutputPreview)
		} else {
			o.logger.Debug(ctx, "tool result",
				"tool", e.ToolName, "call_id", e.CallID, "duration_ms", e.DurationMS)
		}

	case observer.TurnCompleteEvent:
		o.logger.Info(ctx, "turn complete",
			"turn", e.Turn(), "tool_calls_count", e.ToolCallsCount,
			"tool_results_count", e.ToolResultsCount, "errors_count", e.ErrorsCount)
		if e.ErrorsCount > 0 {
			o.metrics.IncCounter("agentkernel.turn_errors_total", float64(e.ErrorsCount))
		}

	case observer.KernelEndEvent:
		reason := string(e.TerminationReason)
		o.logger.Info(ctx, "kernel run ended",
			"turn_count", e.TurnCount, "termination_reason", reason, "total_duration_ms", e.TotalDurationMS)
		o.metrics.RecordTimer("agentkernel.run_duration", time.Duration(e.TotalDurationMS)*time.Millisecond, "termination_reason", reason)
		o.metrics.IncCounter("agentkernel.runs_completed_total", 1, "termination_reason", reason)
	}
	return nil
}

func (o *EventObserver) setTurnSpan(turn int, span Span) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.turnSpans[turn] = span
}

func (o *EventObserver) takeTurnSpan(turn int) (Span, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	span, ok := o.turnSpans[turn]
	if ok {
		delete(o.turnSpans, turn)
	}
	return span, ok
}

func (o *EventObserver) setCallSpan(callID string, span Span) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.callSpans[callID] = span
}

func (o *EventObserver) takeCallSpan(callID string) (Span, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	span, ok := o.callSpans[callID]
	if ok {
		delete(o.callSpans, callID)
	}
	return span, ok
}
