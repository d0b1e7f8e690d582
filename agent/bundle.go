// Package agent is the thin façade: load a bundle manifest, wire an adapter,
// a model client, discovered tools, and a kernel, then expose Run(user_input).
package agent

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/agentkernel/structured-agents/kernelerr"
	"github.com/agentkernel/structured-agents/types"
)

// ModelSpec is either a plain model name or a {plugin, grammar} dict.
type ModelSpec struct {
	Plain   string
	Plugin  string
	Grammar *GrammarSpec
}

// GrammarSpec mirrors the bundle's optional grammar section, read into a
// types.DecodingConstraint.
type GrammarSpec struct {
	Strategy           string `yaml:"strategy"`
	AllowParallelCalls bool   `yaml:"allow_parallel_calls"`
	SendToolsToAPI     bool   `yaml:"send_tools_to_api"`
	ArgsFormat         string `yaml:"args_format"`
}

// ToolEntry is one bundle-declared tool reference. RiskTier selects the
// resource-limit preset ("strict", "default", "permissive") applied to the
// directory-discovered sandbox tool with the matching Name; tools with no
// matching entry, or an entry with an empty/unrecognized tier, run under
// tool.LimitsDefault.
type ToolEntry struct {
	Name        string `yaml:"name"`
	Registry    string `yaml:"registry"`
	Description string `yaml:"description"`
	RiskTier    string `yaml:"risk_tier"`
}

// Manifest is the parsed bundle.yaml.
type Manifest struct {
	Name         string `yaml:"name"`
	Model        ModelSpec
	SystemPrompt string `yaml:"-"`
	MaxTurns     int    `yaml:"max_turns"`
	Tools        []ToolEntry `yaml:"tools"`
	Registries   []yaml.Node `yaml:"registries"`
	AgentsDir    string      `yaml:"agents_dir"`

	// dir is the bundle's own directory, used to resolve AgentsDir
	// relative to the manifest file's parent.
	dir string
}

type rawManifest struct {
	Name           string      `yaml:"name"`
	Model          yaml.Node   `yaml:"model"`
	InitialContext struct {
		SystemPrompt string `yaml:"system_prompt"`
	} `yaml:"initial_context"`
	MaxTurns   int         `yaml:"max_turns"`
	Tools      []ToolEntry `yaml:"tools"`
	Registries []yaml.Node `yaml:"registries"`
	AgentsDir  string      `yaml:"agents_dir"`
}

// LoadManifest reads the bundle YAML at bundlePath, which may be a file or a
// directory containing bundle.yaml. agents_dir resolves relative to the
// manifest file's own parent directory.
func LoadManifest(bundlePath string) (*Manifest, error) {
	info, err := os.Stat(bundlePath)
	if err != nil {
		return nil, kernelerr.NewBundleError(bundlePath, "bundle path not found", err)
	}

	manifestPath := bundlePath
	if info.IsDir() {
		manifestPath = filepath.Join(bundlePath, "bundle.yaml")
	}

	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, kernelerr.NewBundleError(manifestPath, "failed to read bundle manifest", err)
	}

	var parsed rawManifest
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, kernelerr.NewBundleError(manifestPath, "failed to parse bundle manifest YAML", err)
	}
	if parsed.Name == "" {
		return nil, kernelerr.NewBundleError(manifestPath, "bundle manifest missing required field: name", nil)
	}

	model, err := decodeModelSpec(&parsed.Model)
	if err != nil {
		return nil, kernelerr.NewBundleError(manifestPath, "failed to parse model section", err)
	}

	maxTurns := parsed.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 20
	}
	agentsDir := parsed.AgentsDir
	if agentsDir == "" {
		agentsDir = "agents"
	}

	return &Manifest{
		Name:         parsed.Name,
		Model:        model,
		SystemPrompt: parsed.InitialContext.SystemPrompt,
		MaxTurns:     maxTurns,
		Tools:        parsed.Tools,
		Registries:   parsed.Registries,
		AgentsDir:    filepath.Join(filepath.Dir(manifestPath), agentsDir),
		dir:          filepath.Dir(manifestPath),
	}, nil
}

// decodeModelSpec handles the bundle's "model" field being either a plain
// string or a {plugin, grammar} mapping.
func decodeModelSpec(node *yaml.Node) (ModelSpec, error) {
	if node.Kind == 0 {
		return ModelSpec{}, fmt.Errorf("model section is required")
	}
	if node.Kind == yaml.ScalarNode {
		return ModelSpec{Plain: node.Value}, nil
	}

	var dict struct {
		Plugin  string       `yaml:"plugin"`
		Grammar *GrammarSpec `yaml:"grammar"`
	}
	if err := node.Decode(&dict); err != nil {
		return ModelSpec{}, err
	}
	return ModelSpec{Plugin: dict.Plugin, Grammar: dict.Grammar}, nil
}

// DecodingConstraint converts the manifest's optional grammar section into
// a types.DecodingConstraint, defaulting to structural_tag per the spec's
// own recommendation when no grammar section is present.
func (m *Manifest) DecodingConstraint() types.DecodingConstraint {
	g := m.Model.Grammar
	if g == nil {
		return types.DecodingConstraint{
			Strategy:       types.GrammarStructuralTag,
			SendToolsToAPI: true,
			ArgsFormat:     types.ArgsJSON,
		}
	}
	strategy := types.GrammarStrategy(g.Strategy)
	if strategy == "" {
		strategy = types.GrammarStructuralTag
	}
	argsFormat := types.ArgsFormat(g.ArgsFormat)
	if argsFormat == "" {
		argsFormat = types.ArgsJSON
	}
	return types.DecodingConstraint{
		Strategy:           strategy,
		AllowParallelCalls: g.AllowParallelCalls,
		SendToolsToAPI:     g.SendToolsToAPI,
		ArgsFormat:         argsFormat,
	}
}
