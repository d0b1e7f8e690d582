// Package bedrockcompat implements modelclient.Client on top of the AWS
// Bedrock Converse API, as a third black-box model client alongside
// openaicompat and anthropiccompat. It exists for the same reason
// anthropiccompat does: the kernel's Client contract is provider-agnostic,
// and wiring a third real provider behind it proves that out instead of
// just asserting it.
package bedrockcompat

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/agentkernel/structured-agents/kernelerr"
	"github.com/agentkernel/structured-agents/modelclient"
)

// RuntimeClient captures the subset of the Bedrock runtime API this client
// calls, so tests can substitute a stub. It matches *bedrockruntime.Client
// so callers can pass either the real SDK client or a fake.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures the client.
type Options struct {
	Runtime      RuntimeClient
	DefaultModel string
	MaxTokens    int32
	Temperature  float32
}

// Client implements modelclient.Client via the Bedrock Converse API.
type Client struct {
	runtime     RuntimeClient
	model       string
	maxTokens   int32
	temperature float32
}

// New builds a Client from the given options. The caller is responsible for
// constructing the underlying *bedrockruntime.Client (region, credentials,
// retry policy) — this package only adapts the Converse wire contract.
func New(opts Options) (*Client, error) {
	if opts.Runtime == nil {
		return nil, errors.New("bedrockcompat: runtime client is required")
	}
	if strings.TrimSpace(opts.DefaultModel) == "" {
		return nil, errors.New("bedrockcompat: default model is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = 0.7
	}
	return &Client{
		runtime:     opts.Runtime,
		model:       opts.DefaultModel,
		maxTokens:   maxTokens,
		temperature: temperature,
	}, nil
}

// ChatCompletion implements modelclient.Client, translating the flat
// message/tool contract into Bedrock's system+messages+toolConfig Converse
// shape and the response back into respparse.StructuredToolCall entries so
// the adapter's parser can consume it identically to the other two clients.
func (c *Client) ChatCompletion(ctx context.Context, req modelclient.Request) (modelclient.Response, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}

	canonToSan, sanToCanon := buildToolNameMaps(req.Tools)

	conversation, system, err := encodeMessages(req.Messages, canonToSan)
	if err != nil {
		return modelclient.Response{}, kernelerr.NewAdapterError("bedrockcompat: encode messages", err)
	}

	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = int32(req.MaxTokens)
	}
	temperature := c.temperature
	if req.Temperature > 0 {
		temperature = float32(req.Temperature)
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  &model,
		Messages: conversation,
		System:   system,
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
		},
	}
	if len(req.Tools) > 0 {
		input.ToolConfig = encodeTools(req.Tools, canonToSan)
	}

	output, err := c.runtime.Converse(ctx, input)
	if err != nil {
		if isRateLimited(err) {
			return modelclient.Response{}, kernelerr.NewProviderError(kernelerr.ProviderRateLimited, "bedrock converse rate limited", err)
		}
		return modelclient.Response{}, err
	}
	return translateResponse(output, sanToCanon)
}

// isRateLimited reports whether err reflects a Bedrock throttling response,
// matched either by the smithy API error code or the raw HTTP status,
// mirroring the provider's own two ways of signaling it.
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return true
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 429 {
		return true
	}
	return false
}
