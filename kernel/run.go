package kernel

import (
	"context"
	"time"

	"github.com/agentkernel/structured-agents/observer"
	"github.com/agentkernel/structured-agents/types"
)

// RunOptions carries the optional knobs layered on top of the core run
// contract: a termination predicate and/or a RunPolicy cap.
type RunOptions struct {
	TerminationPredicate TerminationPredicate
	Policy               RunPolicy
}

// Run drives the multi-turn loop per spec.md §4.4: trims history, calls
// Step each turn, appends assistant+tool messages, emits lifecycle events in
// the mandated order, and terminates on the first of: a termination
// predicate match, no tool calls, turn exhaustion, or (opt-in) policy cap.
func (k *Kernel) Run(ctx context.Context, initialMessages []types.Message, toolRefs []ToolRef, maxTurns int, opts RunOptions) (types.RunResult, error) {
	history := make([]types.Message, len(initialMessages))
	copy(history, initialMessages)

	runStart := time.Now()
	resolvedSchemas, err := k.resolveTools(toolRefs)
	if err != nil {
		return types.RunResult{}, err
	}

	_ = k.observer.Emit(ctx, observer.NewKernelStartEvent(maxTurns, len(resolvedSchemas), len(initialMessages)))

	var (
		turn                 int
		terminationReason    types.TerminationReason
		totalUsage           types.TokenUsage
		consecutiveFailures  int
		toolCallBudget       = opts.Policy.MaxToolCalls
	)

	for turn = 1; turn <= maxTurns; turn++ {
		history = trimHistory(history, k.maxHistoryMessages)

		_ = k.observer.Emit(ctx, observer.NewModelRequestEvent(turn, len(history), len(resolvedSchemas), k.modelLabel))

		step, err := k.Step(ctx, history, toolRefs, turn)
		if err != nil {
			_ = k.observer.Emit(ctx, observer.NewKernelEndEvent(turn, types.TerminationError, time.Since(runStart).Milliseconds()))
			return types.RunResult{}, err
		}

		history = append(history, step.AssistantMessage)
		for _, result := range step.ToolResults {
			history = append(history, result.ToMessage())
		}
		totalUsage = totalUsage.Add(step.Usage)

		errorsCount := 0
		for _, r := range step.ToolResults {
			if r.IsError {
				errorsCount++
			}
		}
		_ = k.observer.Emit(ctx, observer.NewTurnCompleteEvent(turn, len(step.ToolCalls), len(step.ToolResults), errorsCount))

		if opts.Policy.MaxConsecutiveFailedToolCalls > 0 {
			if errorsCount > 0 && errorsCount == len(step.ToolResults) {
				consecutiveFailures++
			} else {
				consecutiveFailures = 0
			}
			if consecutiveFailures >= opts.Policy.MaxConsecutiveFailedToolCalls {
				terminationReason = types.TerminationPolicyCap
				break
			}
		}

		if toolCallBudget > 0 {
			toolCallBudget -= len(step.ToolCalls)
			if toolCallBudget <= 0 {
				terminationReason = types.TerminationPolicyCap
				break
			}
		}

		if opts.Policy.TimeBudget > 0 && time.Since(runStart) >= opts.Policy.TimeBudget {
			terminationReason = types.TerminationPolicyCap
			break
		}

		if _, ok := matchTerminationPredicate(opts.TerminationPredicate, step.ToolResults); ok {
			terminationReason = types.TerminationPredicateMatched
			break
		}

		if len(step.ToolCalls) == 0 {
			terminationReason = types.TerminationNoToolCalls
			break
		}
	}

	if terminationReason == "" {
		terminationReason = types.TerminationMaxTurns
		turn = maxTurns
	}

	_ = k.observer.Emit(ctx, observer.NewKernelEndEvent(turn, terminationReason, time.Since(runStart).Milliseconds()))

	var finalMessage types.Message
	if len(history) > 0 {
		finalMessage = history[len(history)-1]
	}

	return types.RunResult{
		FinalMessage:      finalMessage,
		History:           history,
		TurnCount:         turn,
		TerminationReason: terminationReason,
		Usage:             totalUsage,
	}, nil
}

// matchTerminationPredicate applies the caller-supplied predicate to each
// tool result in order; the first match ends the run.
func matchTerminationPredicate(pred TerminationPredicate, results []types.ToolResult) (types.ToolResult, bool) {
	if pred == nil {
		return types.ToolResult{}, false
	}
	for _, r := range results {
		if pred(r) {
			return r, true
		}
	}
	return types.ToolResult{}, false
}

// trimHistory keeps the first message (the system/developer anchor) and the
// most recent maxMessages-1, in that order, once history exceeds maxMessages.
func trimHistory(history []types.Message, maxMessages int) []types.Message {
	if maxMessages <= 0 || len(history) <= maxMessages {
		return history
	}
	trimmed := make([]types.Message, 0, maxMessages)
	trimmed = append(trimmed, history[0])
	tailStart := len(history) - (maxMessages - 1)
	trimmed = append(trimmed, history[tailStart:]...)
	return trimmed
}
