package openaicompat

import (
	openai "github.com/sashabaranov/go-openai"

	"github.com/agentkernel/structured-agents/modelclient"
	"github.com/agentkernel/structured-agents/respparse"
	"github.com/agentkernel/structured-agents/types"
)

// translateResponse maps an OpenAI chat completion back into
// modelclient.Response. Only the first choice is consulted — the kernel has
// no notion of multiple parallel completions per call.
func translateResponse(resp openai.ChatCompletionResponse) modelclient.Response {
	if len(resp.Choices) == 0 {
		return modelclient.Response{Usage: usageOf(resp)}
	}

	choice := resp.Choices[0]
	out := modelclient.Response{
		StopReason: string(choice.FinishReason),
		Usage:      usageOf(resp),
	}

	if content := choice.Message.Content; content != "" {
		c := content
		out.Content = &c
	}

	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, respparse.StructuredToolCall{
			ID:            tc.ID,
			Name:          tc.Function.Name,
			ArgumentsJSON: tc.Function.Arguments,
		})
	}

	return out
}

func usageOf(resp openai.ChatCompletionResponse) types.TokenUsage {
	return types.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:       resp.Usage.TotalTokens,
	}
}
