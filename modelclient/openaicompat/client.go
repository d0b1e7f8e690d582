// Package openaicompat implements modelclient.Client against any
// OpenAI-compatible Chat Completions endpoint using go-openai.
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agentkernel/structured-agents/adapter"
	"github.com/agentkernel/structured-agents/modelclient"
)

// ChatAPI captures the subset of the go-openai client the adapter calls,
// so tests can substitute a stub without a real HTTP round trip.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Options configures the client.
type Options struct {
	API          ChatAPI
	DefaultModel string
}

// Client implements modelclient.Client via the OpenAI Chat Completions API.
type Client struct {
	api   ChatAPI
	model string
}

// New builds a Client from the given options.
func New(opts Options) (*Client, error) {
	if opts.API == nil {
		return nil, errors.New("openaicompat: API client is required")
	}
	model := strings.TrimSpace(opts.DefaultModel)
	if model == "" {
		return nil, errors.New("openaicompat: default model is required")
	}
	return &Client{api: opts.API, model: model}, nil
}

// NewFromConfig constructs a Client pointed at baseURL with apiKey. The
// underlying HTTP transport is wrapped with extraBodyRoundTripper so the
// grammar payload (req.ExtraBody, carried as `extra_body` on vLLM/SGLang-
// style OpenAI-compatible servers) reaches the wire even though go-openai's
// ChatCompletionRequest has no field for it.
func NewFromConfig(baseURL, apiKey, defaultModel string) (*Client, error) {
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = newExtraBodyHTTPClient()
	return New(Options{API: openai.NewClientWithConfig(cfg), DefaultModel: defaultModel})
}

// ChatCompletion implements modelclient.Client.
func (c *Client) ChatCompletion(ctx context.Context, req modelclient.Request) (modelclient.Response, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		messages = append(messages, msg)
	}

	request := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	}
	if len(req.Tools) > 0 {
		request.Tools = encodeTools(req.Tools)
	}
	if req.ToolChoice != nil {
		request.ToolChoice = req.ToolChoice
	}
	if req.ExtraBody != nil {
		ctx = withExtraBody(ctx, req.ExtraBody)
	}

	resp, err := c.api.CreateChatCompletion(ctx, request)
	if err != nil {
		return modelclient.Response{}, fmt.Errorf("openaicompat: chat completion: %w", err)
	}
	return translateResponse(resp), nil
}

func encodeTools(tools []adapter.ChatTool) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			},
		})
	}
	return out
}
