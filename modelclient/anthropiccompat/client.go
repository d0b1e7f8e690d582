// Package anthropiccompat implements modelclient.Client on top of the
// Anthropic Claude Messages API, as a bonus second black-box model client
// alongside openaicompat. It exists because the kernel's Client contract is
// provider-agnostic; wiring a second real provider exercises that.
package anthropiccompat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentkernel/structured-agents/adapter"
	"github.com/agentkernel/structured-agents/modelclient"
	"github.com/agentkernel/structured-agents/respparse"
	"github.com/agentkernel/structured-agents/types"
)

// MessagesAPI captures the subset of the Anthropic SDK used by this client,
// so tests can substitute a stub.
type MessagesAPI interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Options configures the client.
type Options struct {
	API          MessagesAPI
	DefaultModel string
	MaxTokens    int64
}

// Client implements modelclient.Client via the Anthropic Messages API.
type Client struct {
	api       MessagesAPI
	model     string
	maxTokens int64
}

// New builds a Client from the given options.
func New(opts Options) (*Client, error) {
	if opts.API == nil {
		return nil, errors.New("anthropiccompat: Messages API client is required")
	}
	if strings.TrimSpace(opts.DefaultModel) == "" {
		return nil, errors.New("anthropiccompat: default model is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Client{api: opts.API, model: opts.DefaultModel, maxTokens: maxTokens}, nil
}

// NewFromAPIKey constructs a Client using the SDK's default HTTP transport.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("anthropiccompat: api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(Options{API: &c.Messages, DefaultModel: defaultModel})
}

// ChatCompletion implements modelclient.Client, translating the flat
// message/tool contract into Claude's system+messages+tools shape and the
// response back into respparse.StructuredToolCall entries so the adapter's
// parser can consume it identically to the OpenAI path.
func (c *Client) ChatCompletion(ctx context.Context, req modelclient.Request) (modelclient.Response, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}

	system, messages := splitSystemAndMessages(req.Messages)

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: c.maxTokens,
		Messages:  messages,
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if len(req.Tools) > 0 {
		params.Tools = encodeTools(req.Tools)
	}

	resp, err := c.api.New(ctx, params)
	if err != nil {
		return modelclient.Response{}, err
	}
	return translateResponse(resp), nil
}

// splitSystemAndMessages pulls the leading system/developer messages out
// (Claude takes exactly one top-level system string) and converts the rest
// into Anthropic message params.
func splitSystemAndMessages(in []adapter.ChatMessage) (string, []sdk.MessageParam) {
	var system strings.Builder
	out := make([]sdk.MessageParam, 0, len(in))
	for _, m := range in {
		switch m.Role {
		case "system", "developer":
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(m.Content)
		case "user":
			out = append(out, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		case "assistant":
			blocks := assistantBlocks(m)
			out = append(out, sdk.NewAssistantMessage(blocks...))
		case "tool":
			out = append(out, sdk.NewUserMessage(sdk.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		}
	}
	return system.String(), out
}

func assistantBlocks(m adapter.ChatMessage) []sdk.ContentBlockParamUnion {
	blocks := make([]sdk.ContentBlockParamUnion, 0, 1+len(m.ToolCalls))
	if strings.TrimSpace(m.Content) != "" {
		blocks = append(blocks, sdk.NewTextBlock(m.Content))
	}
	for _, tc := range m.ToolCalls {
		var input any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
			input = map[string]any{}
		}
		blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, input, tc.Function.Name))
	}
	return blocks
}

func encodeTools(tools []adapter.ChatTool) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema map[string]any
		_ = json.Unmarshal(t.Function.Parameters, &schema)
		out = append(out, sdk.ToolUnionParam{
			OfTool: &sdk.ToolParam{
				Name:        t.Function.Name,
				Description: sdk.String(t.Function.Description),
				InputSchema: sdk.ToolInputSchemaParam{
					Properties: schema["properties"],
				},
			},
		})
	}
	return out
}

func translateResponse(msg *sdk.Message) modelclient.Response {
	out := modelclient.Response{
		StopReason: string(msg.StopReason),
		Usage: types.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}

	var text strings.Builder
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case sdk.TextBlock:
			text.WriteString(variant.Text)
		case sdk.ToolUseBlock:
			argsJSON, _ := json.Marshal(variant.Input)
			out.ToolCalls = append(out.ToolCalls, respparse.StructuredToolCall{
				ID:            variant.ID,
				Name:          variant.Name,
				ArgumentsJSON: string(argsJSON),
			})
		}
	}
	if text.Len() > 0 {
		c := text.String()
		out.Content = &c
	}
	return out
}
