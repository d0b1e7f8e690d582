package kernel

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentkernel/structured-agents/adapter"
	"github.com/agentkernel/structured-agents/kernelerr"
	"github.com/agentkernel/structured-agents/modelclient"
	"github.com/agentkernel/structured-agents/observer"
	"github.com/agentkernel/structured-agents/respparse"
	"github.com/agentkernel/structured-agents/tool"
	"github.com/agentkernel/structured-agents/types"
)

// Step resolves tools, formats the request, builds the grammar payload, calls
// the client, parses the response, executes resulting tool calls, and
// returns a StepResult. An unrecoverable client error aborts the run as a
// *kernelerr.KernelError.
func (k *Kernel) Step(ctx context.Context, messages []types.Message, toolRefs []ToolRef, turn int) (types.StepResult, error) {
	resolvedSchemas, err := k.resolveTools(toolRefs)
	if err != nil {
		return types.StepResult{}, err
	}

	chatMessages := adapter.FormatMessages(messages)
	chatTools := adapter.FormatTools(resolvedSchemas)

	grammarPayload, err := k.adapter.BuildGrammar(resolvedSchemas)
	if err != nil {
		return types.StepResult{}, kernelerr.NewAdapterError("grammar construction failed", err)
	}

	req := modelclient.Request{
		Model:       k.modelLabel,
		Messages:    chatMessages,
		MaxTokens:   k.maxTokens,
		Temperature: k.temperature,
		ExtraBody:   grammarPayload,
	}
	// An unused-tool-choice sentinel: omit tool_choice entirely when there
	// are no tools rather than sending "none" to backends that may reject
	// it (spec.md §4.4 construction invariant).
	if len(chatTools) > 0 {
		req.Tools = chatTools
		req.ToolChoice = k.toolChoice
	}

	start := time.Now()
	resp, err := k.client.ChatCompletion(ctx, req)
	durationMS := time.Since(start).Milliseconds()
	if err != nil {
		pe := kernelerr.ClassifyProviderError(err)
		_ = k.observer.Emit(ctx, observer.NewModelResponseEvent(turn, durationMS, nil, 0, types.TokenUsage{}))
		return types.StepResult{}, kernelerr.NewKernelError(turn, "model_call", "chat completion failed", pe)
	}

	_ = k.observer.Emit(ctx, observer.NewModelResponseEvent(turn, durationMS, resp.Content, len(resp.ToolCalls), resp.Usage))

	structured := make([]respparse.StructuredToolCall, len(resp.ToolCalls))
	copy(structured, resp.ToolCalls)
	content, toolCalls := k.adapter.ParseResponse(contentOf(resp.Content), structured)

	assistantMessage := types.Message{
		Role:      types.RoleAssistant,
		Content:   content,
		ToolCalls: toolCalls,
	}

	toolResults := k.executeToolCalls(ctx, turn, toolCalls)

	return types.StepResult{
		AssistantMessage: assistantMessage,
		ToolCalls:        toolCalls,
		ToolResults:      toolResults,
		Usage:            resp.Usage,
	}, nil
}

func contentOf(content *string) string {
	if content == nil {
		return ""
	}
	return *content
}

// executeToolCalls runs every tool call, emitting a ToolCallEvent before and
// a ToolResultEvent after each, preserving input-call ordering in the
// returned slice regardless of maxConcurrency.
func (k *Kernel) executeToolCalls(ctx context.Context, turn int, calls []types.ToolCall) []types.ToolResult {
	results := make([]types.ToolResult, len(calls))
	if len(calls) == 0 {
		return results
	}

	if k.maxConcurrency <= 1 {
		for i, call := range calls {
			results[i] = k.executeOne(ctx, turn, call)
		}
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(k.maxConcurrency)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = k.executeOneRecovered(gctx, turn, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// executeOneRecovered wraps executeOne with panic recovery so one tool's
// panic never aborts sibling goroutines in the bounded gather — the
// concurrent-path equivalent of return_exceptions=true.
func (k *Kernel) executeOneRecovered(ctx context.Context, turn int, call types.ToolCall) (result types.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			result = types.ToolResult{CallID: call.ID, Name: call.Name, Output: fmt.Sprintf("panic: %v", r), IsError: true}
		}
	}()
	return k.executeOne(ctx, turn, call)
}

func (k *Kernel) executeOne(ctx context.Context, turn int, call types.ToolCall) types.ToolResult {
	_ = k.observer.Emit(ctx, observer.NewToolCallEvent(turn, call.Name, call.ID, call.Arguments))

	start := time.Now()
	t, ok := k.toolMap[call.Name]
	if !ok {
		result := types.ToolResult{
			CallID:  call.ID,
			Name:    call.Name,
			Output:  fmt.Sprintf("Unknown tool: %s", call.Name),
			IsError: true,
		}
		k.emitToolResultEvent(ctx, turn, result, time.Since(start).Milliseconds())
		return result
	}

	result := k.safeExecute(ctx, t, call)
	k.emitToolResultEvent(ctx, turn, result, time.Since(start).Milliseconds())
	return result
}

// safeExecute calls the tool's Execute, converting a panic into an error
// ToolResult — a single failing tool must never abort others.
func (k *Kernel) safeExecute(ctx context.Context, t tool.Tool, call types.ToolCall) (result types.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			result = types.ToolResult{CallID: call.ID, Name: call.Name, Output: fmt.Sprintf("panic: %v", r), IsError: true}
		}
	}()
	callCopy := call
	return t.Execute(ctx, call.Arguments, &callCopy)
}

func (k *Kernel) emitToolResultEvent(ctx context.Context, turn int, result types.ToolResult, durationMS int64) {
	_ = k.observer.Emit(ctx, observer.NewToolResultEvent(turn, result.Name, result.CallID, result.IsError, durationMS, previewOf(result.Output)))
}
