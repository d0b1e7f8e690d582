// Package kernel drives the multi-turn loop that calls the model, executes
// resulting tool calls, appends history, and emits the seven lifecycle
// events described in observer, in a fixed per-turn order.
package kernel

import (
	"fmt"
	"time"

	"github.com/agentkernel/structured-agents/adapter"
	"github.com/agentkernel/structured-agents/kernelerr"
	"github.com/agentkernel/structured-agents/modelclient"
	"github.com/agentkernel/structured-agents/observer"
	"github.com/agentkernel/structured-agents/telemetry"
	"github.com/agentkernel/structured-agents/tool"
	"github.com/agentkernel/structured-agents/types"
)

// TerminationPredicate is a caller-supplied function over a ToolResult whose
// first match ends a run early, with termination_reason =
// "termination_predicate".
type TerminationPredicate func(types.ToolResult) bool

// RunPolicy bundles optional caps the caller can attach in addition to
// max_turns. It never fires unless the caller sets a non-zero field; when it
// does fire it sets termination_reason = "policy_cap", an additive reason
// beyond the four the core spec enumerates.
type RunPolicy struct {
	MaxToolCalls                  int
	MaxConsecutiveFailedToolCalls int
	TimeBudget                    time.Duration
}

// Config constructs a Kernel. Client and Adapter are required; Tools may be
// empty. Tuning fields fall back to sane defaults when zero.
type Config struct {
	Client      modelclient.Client
	Adapter     *adapter.Adapter
	Tools       []tool.Tool
	Observer    observer.Observer
	Logger      telemetry.Logger

	MaxHistoryMessages int
	MaxConcurrency     int
	MaxTokens          int
	Temperature        float64
	ToolChoice         any
	ModelLabel         string
}

// Kernel is safe for concurrent Run calls: each run owns its own history
// slice and turn sequencer, and the tool map is built once and read-only.
type Kernel struct {
	client   modelclient.Client
	adapter  *adapter.Adapter
	observer observer.Observer
	logger   telemetry.Logger

	// toolMap is the name→Tool lookup table, built once in New and never
	// rebuilt per step (spec.md §4.4 construction invariant).
	toolMap map[string]tool.Tool

	maxHistoryMessages int
	maxConcurrency     int
	maxTokens          int
	temperature        float64
	toolChoice         any
	modelLabel         string
}

// New builds a Kernel, precomputing the name→Tool map once.
func New(cfg Config) (*Kernel, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("kernel: Client is required")
	}
	if cfg.Adapter == nil {
		return nil, fmt.Errorf("kernel: Adapter is required")
	}

	toolMap := make(map[string]tool.Tool, len(cfg.Tools))
	for _, t := range cfg.Tools {
		name := t.Schema().Name
		if _, exists := toolMap[name]; exists {
			return nil, kernelerr.NewAdapterError(fmt.Sprintf("duplicate tool name: %q", name), nil)
		}
		toolMap[name] = t
	}

	obs := cfg.Observer
	if obs == nil {
		obs = observer.NullObserver{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}

	maxHistory := cfg.MaxHistoryMessages
	if maxHistory <= 0 {
		maxHistory = 40
	}
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &Kernel{
		client:             cfg.Client,
		adapter:            cfg.Adapter,
		observer:           obs,
		logger:             logger,
		toolMap:            toolMap,
		maxHistoryMessages: maxHistory,
		maxConcurrency:     maxConcurrency,
		maxTokens:          maxTokens,
		temperature:        cfg.Temperature,
		toolChoice:         cfg.ToolChoice,
		modelLabel:         cfg.ModelLabel,
	}, nil
}

// ToolRef identifies a tool to resolve for a step or run: either a
// types.ToolSchema value (used as-is) or a plain string tool name (looked up
// against the kernel's tool map).
type ToolRef any

// resolveTools accepts either ToolSchema values or name strings resolved
// against the tool map, per spec.md §4.4 step 1.
func (k *Kernel) resolveTools(refs []ToolRef) ([]types.ToolSchema, error) {
	schemas := make([]types.ToolSchema, 0, len(refs))
	for _, ref := range refs {
		switch v := ref.(type) {
		case types.ToolSchema:
			schemas = append(schemas, v)
		case string:
			t, ok := k.toolMap[v]
			if !ok {
				return nil, kernelerr.NewAdapterError(fmt.Sprintf("unresolvable tool reference: %q", v), nil)
			}
			schemas = append(schemas, t.Schema())
		default:
			return nil, kernelerr.NewAdapterError(fmt.Sprintf("tool reference must be a ToolSchema or string, got %T", ref), nil)
		}
	}
	return schemas, nil
}

const outputPreviewLen = 100

func previewOf(output string) string {
	r := []rune(output)
	if len(r) <= outputPreviewLen {
		return output
	}
	return string(r[:outputPreviewLen])
}
