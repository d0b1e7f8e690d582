package agent

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/agentkernel/structured-agents/kernel"
	"github.com/agentkernel/structured-agents/kernelerr"
	"github.com/agentkernel/structured-agents/modelclient"
	"github.com/agentkernel/structured-agents/modelclient/openaicompat"
	"github.com/agentkernel/structured-agents/observer"
	"github.com/agentkernel/structured-agents/telemetry"
	"github.com/agentkernel/structured-agents/tool"
	"github.com/agentkernel/structured-agents/types"
)

const (
	envBaseURL = "STRUCTURED_AGENTS_BASE_URL"
	envAPIKey  = "STRUCTURED_AGENTS_API_KEY"

	defaultBaseURL = "http://localhost:8000/v1"
	defaultAPIKey  = "EMPTY"
)

// Agent is the assembled façade: manifest + adapter + client + tools +
// kernel, ready to Run(user_input).
type Agent struct {
	manifest *Manifest
	kernel   *kernel.Kernel
	tools    []types.ToolSchema
}

// FromBundleOptions layers field overrides and collaborators on top of the
// loaded manifest.
type FromBundleOptions struct {
	Observer     observer.Observer
	Logger       telemetry.Logger
	Metrics      telemetry.Metrics
	Tracer       telemetry.Tracer
	Client       modelclient.Client
	ScriptLoader tool.Loader
	ExtraTools   []tool.RegistryEntry

	MaxHistoryMessages int
	MaxConcurrency     int
	MaxTokens          int
	Temperature        float64
}

// FromBundle loads the manifest at path, discovers tools, resolves the
// adapter via AdapterRegistry, builds a model client from environment
// variables (unless overridden), and assembles a Kernel.
func FromBundle(ctx context.Context, path string, opts FromBundleOptions) (*Agent, error) {
	manifest, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}

	toolSet, err := discoverTools(ctx, manifest, opts, logger)
	if err != nil {
		return nil, err
	}

	familyName := strings.TrimSpace(manifest.Model.Plugin)
	if familyName == "" {
		familyName = strings.TrimSpace(manifest.Model.Plain)
	}
	ad := ResolveAdapter(familyName, manifest.DecodingConstraint())

	client, err := resolveClient(opts, manifest)
	if err != nil {
		return nil, err
	}

	tools := make([]tool.Tool, 0, len(toolSet))
	schemas := make([]types.ToolSchema, 0, len(toolSet))
	for _, t := range toolSet {
		tools = append(tools, t)
		schemas = append(schemas, t.Schema())
	}

	k, err := kernel.New(kernel.Config{
		Client:             client,
		Adapter:            ad,
		Tools:              tools,
		Observer:           buildObserver(opts),
		Logger:             logger,
		MaxHistoryMessages: opts.MaxHistoryMessages,
		MaxConcurrency:     opts.MaxConcurrency,
		MaxTokens:          opts.MaxTokens,
		Temperature:        opts.Temperature,
		ModelLabel:         modelLabel(manifest),
	})
	if err != nil {
		return nil, err
	}

	return &Agent{manifest: manifest, kernel: k, tools: schemas}, nil
}

// buildObserver composes the caller-supplied Observer (if any) with a
// telemetry.EventObserver driven by opts.Logger/Metrics/Tracer, so every
// FromBundle-assembled agent feeds lifecycle events into spans and metrics
// without the caller having to wire that themselves.
func buildObserver(opts FromBundleOptions) observer.Observer {
	eventObserver := telemetry.NewEventObserver(opts.Logger, opts.Metrics, opts.Tracer)
	if opts.Observer == nil {
		return eventObserver
	}
	return observer.NewCompositeObserver([]observer.Observer{eventObserver, opts.Observer}, nil, nil)
}

func modelLabel(m *Manifest) string {
	if m.Model.Plain != "" {
		return m.Model.Plain
	}
	return m.Model.Plugin
}

// discoverTools merges directory-discovered sandbox tools with any
// programmatically registered tools supplied via opts.ExtraTools.
func discoverTools(ctx context.Context, manifest *Manifest, opts FromBundleOptions, logger telemetry.Logger) ([]tool.Tool, error) {
	result := make([]tool.Tool, 0, len(opts.ExtraTools))
	for _, entry := range opts.ExtraTools {
		result = append(result, entry.Tool)
	}

	if opts.ScriptLoader == nil {
		// No sandbox loader supplied: the sandbox interpreter is an
		// external collaborator (spec.md §1), so directory discovery is a
		// no-op rather than an error when the caller only wants
		// programmatic tools.
		return result, nil
	}

	discovered, err := tool.Discover(ctx, manifest.AgentsDir, opts.ScriptLoader, logger, riskTiers(manifest.Tools))
	if err != nil {
		return nil, kernelerr.NewBundleError(manifest.AgentsDir, "tool discovery failed", err)
	}
	for _, d := range discovered {
		result = append(result, d)
	}
	return result, nil
}

// riskTiers builds a tool.LimitsFor lookup from the bundle's per-entry
// risk_tier configuration, keyed by tool name.
func riskTiers(entries []ToolEntry) tool.LimitsFor {
	tiers := make(map[string]tool.RiskTier, len(entries))
	for _, e := range entries {
		if e.RiskTier != "" {
			tiers[e.Name] = tool.RiskTier(e.RiskTier)
		}
	}
	return func(name string) tool.Limits {
		return tiers[name].Limits()
	}
}

// resolveClient returns opts.Client when supplied, else builds an
// OpenAI-compatible client from STRUCTURED_AGENTS_BASE_URL /
// STRUCTURED_AGENTS_API_KEY, optionally loading a local .env file first.
func resolveClient(opts FromBundleOptions, manifest *Manifest) (modelclient.Client, error) {
	if opts.Client != nil {
		return opts.Client, nil
	}

	_ = godotenv.Load()

	baseURL := os.Getenv(envBaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	apiKey := os.Getenv(envAPIKey)
	if apiKey == "" {
		apiKey = defaultAPIKey
	}

	defaultModel := modelLabel(manifest)
	if defaultModel == "" {
		return nil, kernelerr.NewBundleError(manifest.dir, "bundle model section resolves to an empty model name", nil)
	}

	client, err := openaicompat.NewFromConfig(baseURL, apiKey, defaultModel)
	if err != nil {
		return nil, fmt.Errorf("agent: build default model client: %w", err)
	}
	return client, nil
}

// Run builds the initial [system, user] messages and drives a full kernel
// run over the agent's discovered tool set.
func (a *Agent) Run(ctx context.Context, userInput string) (types.RunResult, error) {
	systemContent := a.manifest.SystemPrompt
	userContent := userInput

	refs := make([]kernel.ToolRef, len(a.tools))
	for i, s := range a.tools {
		refs[i] = s
	}

	initial := []types.Message{
		{Role: types.RoleSystem, Content: &systemContent},
		{Role: types.RoleUser, Content: &userContent},
	}

	return a.kernel.Run(ctx, initial, refs, a.manifest.MaxTurns, kernel.RunOptions{})
}
