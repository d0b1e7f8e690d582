package agent

import (
	"github.com/agentkernel/structured-agents/adapter"
	"github.com/agentkernel/structured-agents/respparse"
	"github.com/agentkernel/structured-agents/types"
)

// Factory builds an Adapter for a model family given its resolved grammar
// configuration.
type Factory func(name string, grammarConfig types.DecodingConstraint) *adapter.Adapter

// AdapterRegistry is a module-level, write-once-at-import map from
// model-family name to Factory (spec.md §4.6/§9). Runtime extension is
// explicit: registry[name] = factory. Unknown families fall back to
// DefaultFactory.
var AdapterRegistry = map[string]Factory{
	"qwen":          newQwenAdapter,
	"functiongemma": newFunctionGemmaAdapter,
}

func newQwenAdapter(name string, cfg types.DecodingConstraint) *adapter.Adapter {
	return adapter.New(name, respparse.QwenParser{}, cfg, nil)
}

func newFunctionGemmaAdapter(name string, cfg types.DecodingConstraint) *adapter.Adapter {
	return adapter.New(name, respparse.FunctionGemmaParser{}, cfg, nil)
}

// DefaultFactory builds a generic adapter tolerant of structured tool_calls
// with no family-specific inline-tag scanning, used when a model-family name
// has no registry entry.
func DefaultFactory(name string, cfg types.DecodingConstraint) *adapter.Adapter {
	return adapter.New(name, respparse.DefaultParser{}, cfg, nil)
}

// ResolveAdapter looks up name in AdapterRegistry, falling back to
// DefaultFactory for unknown families.
func ResolveAdapter(name string, cfg types.DecodingConstraint) *adapter.Adapter {
	if factory, ok := AdapterRegistry[name]; ok {
		return factory(name, cfg)
	}
	return DefaultFactory(name, cfg)
}
