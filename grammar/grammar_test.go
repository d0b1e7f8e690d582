package grammar

import (
	"encoding/json"
	"testing"

	"github.com/agentkernel/structured-agents/kernelerr"
	"github.com/agentkernel/structured-agents/types"
	"github.com/stretchr/testify/require"
)

func sampleTools() []types.ToolSchema {
	return []types.ToolSchema{
		{
			Name:        "get_weather",
			Description: "Get the weather for a city",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}`),
		},
	}
}

func TestBuildReturnsNilForEmptyToolSet(t *testing.T) {
	payload, err := Build(nil, types.DecodingConstraint{Strategy: types.GrammarEBNF})

	require.NoError(t, err)
	require.Nil(t, payload)
}

func TestBuildUnknownStrategyReturnsAdapterError(t *testing.T) {
	_, err := Build(sampleTools(), types.DecodingConstraint{Strategy: "not_a_real_strategy"})

	require.Error(t, err)
	var adapterErr *kernelerr.AdapterError
	require.ErrorAs(t, err, &adapterErr)
}

func TestBuildEBNFProducesGrammarPayload(t *testing.T) {
	payload, err := Build(sampleTools(), types.DecodingConstraint{
		Strategy:   types.GrammarEBNF,
		ArgsFormat: types.ArgsJSON,
	})

	require.NoError(t, err)
	outputs, ok := payload.(map[string]any)["structured_outputs"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "grammar", outputs["type"])
	require.Contains(t, outputs["grammar"], "get_weather")
}

func TestBuildEBNFAllowsParallelCallsWhenConfigured(t *testing.T) {
	payload, err := Build(sampleTools(), types.DecodingConstraint{
		Strategy:           types.GrammarEBNF,
		AllowParallelCalls: true,
	})

	require.NoError(t, err)
	outputs := payload.(map[string]any)["structured_outputs"].(map[string]any)
	require.Contains(t, outputs["grammar"], "call+")
}

func TestBuildEBNFRejectsUnnamedTool(t *testing.T) {
	_, err := Build([]types.ToolSchema{{Name: "  "}}, types.DecodingConstraint{Strategy: types.GrammarEBNF})

	require.Error(t, err)
}

func TestBuildStructuralTagComposesOneTagPerTool(t *testing.T) {
	payload, err := Build(sampleTools(), types.DecodingConstraint{Strategy: types.GrammarStructuralTag})

	require.NoError(t, err)
	outputs := payload.(map[string]any)["structured_outputs"].(map[string]any)
	require.Equal(t, "structural_tag", outputs["type"])

	raw := outputs["structural_tag"].(json.RawMessage)
	var decoded struct {
		Tags []struct {
			Begin string `json:"begin"`
			End   string `json:"end"`
		} `json:"tags"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded.Tags, 1)
	require.Contains(t, decoded.Tags[0].Begin, "get_weather")
}

func TestBuildJSONSchemaRequiresSendToolsToAPI(t *testing.T) {
	_, err := Build(sampleTools(), types.DecodingConstraint{
		Strategy:       types.GrammarJSONSchema,
		SendToolsToAPI: false,
	})

	require.Error(t, err)
}

func TestBuildJSONSchemaProducesValidatedSchema(t *testing.T) {
	payload, err := Build(sampleTools(), types.DecodingConstraint{
		Strategy:       types.GrammarJSONSchema,
		SendToolsToAPI: true,
	})

	require.NoError(t, err)
	outputs := payload.(map[string]any)["structured_outputs"].(map[string]any)
	require.Equal(t, "json", outputs["type"])
}
