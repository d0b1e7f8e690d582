package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentkernel/structured-agents/observer"
	"github.com/agentkernel/structured-agents/types"
)

type recordedLog struct {
	level   string
	msg     string
	keyvals []any
}

type fakeLogger struct {
	entries []recordedLog
}

func (f *fakeLogger) Debug(_ context.Context, msg string, kv ...any) { f.record("debug", msg, kv) }
func (f *fakeLogger) Info(_ context.Context, msg string, kv ...any)  { f.record("info", msg, kv) }
func (f *fakeLogger) Warn(_ context.Context, msg string, kv ...any)  { f.record("warn", msg, kv) }
func (f *fakeLogger) Error(_ context.Context, msg string, kv ...any) { f.record("error", msg, kv) }
func (f *fakeLogger) record(level, msg string, kv []any) {
	f.entries = append(f.entries, recordedLog{level: level, msg: msg, keyvals: kv})
}

type recordedMetric struct {
	kind  string
	name  string
	value float64
	tags  []string
}

type fakeMetrics struct {
	records []recordedMetric
}

func (f *fakeMetrics) IncCounter(name string, value float64, tags ...string) {
	f.records = append(f.records, recordedMetric{kind: "counter", name: name, value: value, tags: tags})
}
func (f *fakeMetrics) RecordTimer(name string, d time.Duration, tags ...string) {
	f.records = append(f.records, recordedMetric{kind: "timer", name: name, value: float64(d), tags: tags})
}
func (f *fakeMetrics) RecordGauge(name string, value float64, tags ...string) {
	f.records = append(f.records, recordedMetric{kind: "gauge", name: name, value: value, tags: tags})
}

type fakeSpan struct {
	ended  bool
	status codes.Code
}

func (s *fakeSpan) End(...trace.SpanEndOption)              { s.ended = true }
func (s *fakeSpan) AddEvent(string, ...any)                 {}
func (s *fakeSpan) SetStatus(code codes.Code, _ string)     { s.status = code }
func (s *fakeSpan) RecordError(error, ...trace.EventOption) {}

type fakeTracer struct {
	spans []*fakeSpan
}

func (f *fakeTracer) Start(ctx context.Context, _ string, _ ...trace.SpanStartOption) (context.Context, Span) {
	s := &fakeSpan{}
	f.spans = append(f.spans, s)
	return ctx, s
}
func (f *fakeTracer) Span(ctx context.Context) Span { return &fakeSpan{} }

func TestEventObserverDefaultsMissingBackendsToNoop(t *testing.T) {
	obs := NewEventObserver(nil, nil, nil)
	err := obs.Emit(context.Background(), observer.NewKernelStartEvent(3, 1, 2))
	require.NoError(t, err)
}

func TestEventObserverPairsModelRequestAndResponseSpans(t *testing.T) {
	tracer := &fakeTracer{}
	obs := NewEventObserver(&fakeLogger{}, &fakeMetrics{}, tracer)

	require.NoError(t, obs.Emit(context.Background(), observer.NewModelRequestEvent(1, 2, 1, "gpt-4o-mini")))
	require.Len(t, tracer.spans, 1)
	require.False(t, tracer.spans[0].ended)

	usage := types.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	require.NoError(t, obs.Emit(context.Background(), observer.NewModelResponseEvent(1, 42, nil, 1, usage)))
	require.True(t, tracer.spans[0].ended, "the model_request span for turn 1 must end on its matching model_response event")
}

func TestEventObserverMarksFailedToolResultSpanAsError(t *testing.T) {
	tracer := &fakeTracer{}
	metrics := &fakeMetrics{}
	obs := NewEventObserver(&fakeLogger{}, metrics, tracer)

	require.NoError(t, obs.Emit(context.Background(), observer.NewToolCallEvent(1, "calc.add", "call_1", nil)))
	require.Len(t, tracer.spans, 1)

	require.NoError(t, obs.Emit(context.Background(), observer.NewToolResultEvent(1, "calc.add", "call_1", true, 5, "boom")))
	require.True(t, tracer.spans[0].ended)
	require.Equal(t, codes.Error, tracer.spans[0].status)

	var sawErrorCounter bool
	for _, r := range metrics.records {
		if r.name == "agentkernel.tool_errors_total" {
			sawErrorCounter = true
		}
	}
	require.True(t, sawErrorCounter, "a failed tool result must increment the tool error counter")
}

func TestEventObserverRecordsKernelEndMetrics(t *testing.T) {
	metrics := &fakeMetrics{}
	obs := NewEventObserver(&fakeLogger{}, metrics, nil)

	require.NoError(t, obs.Emit(context.Background(), observer.NewKernelEndEvent(3, types.TerminationNoToolCalls, 500)))

	var sawDuration, sawCompleted bool
	for _, r := range metrics.records {
		switch r.name {
		case "agentkernel.run_duration":
			sawDuration = true
		case "agentkernel.runs_completed_total":
			sawCompleted = true
		}
	}
	require.True(t, sawDuration)
	require.True(t, sawCompleted)
}
