// Package modelclient defines the black-box chat_completion contract the
// kernel calls against an OpenAI-compatible endpoint, plus the request/
// response shapes that cross that boundary. Concrete implementations live in
// the openaicompat, anthropiccompat, and bedrockcompat subpackages.
package modelclient

import (
	"context"

	"github.com/agentkernel/structured-agents/adapter"
	"github.com/agentkernel/structured-agents/respparse"
	"github.com/agentkernel/structured-agents/types"
)

// Request is the composed kwargs object the kernel builds for a single model
// call: model, messages, max_tokens, temperature always present; tools,
// tool_choice, and ExtraBody (the grammar payload) only when non-nil.
type Request struct {
	Model       string
	Messages    []adapter.ChatMessage
	MaxTokens   int
	Temperature float64
	Tools       []adapter.ChatTool
	ToolChoice  any
	ExtraBody   any
}

// Response is the client's translation of a provider completion back into
// the kernel's vocabulary.
type Response struct {
	Content    *string
	ToolCalls  []respparse.StructuredToolCall
	Usage      types.TokenUsage
	StopReason string
}

// Client is the black-box endpoint contract: chat_completion(messages,
// tools, constraint) -> response. Implementations must be safe for
// concurrent use — the kernel shares one Client across concurrent runs.
type Client interface {
	ChatCompletion(ctx context.Context, req Request) (Response, error)
}
