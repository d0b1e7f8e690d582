// Package adapter composes message/tool formatting, grammar delegation, and
// response parsing into the single contract the kernel drives each turn.
package adapter

import (
	"encoding/json"

	"github.com/agentkernel/structured-agents/grammar"
	"github.com/agentkernel/structured-agents/respparse"
	"github.com/agentkernel/structured-agents/types"
)

// ChatMessage is the OpenAI chat-format wire shape produced by
// FormatMessages.
type ChatMessage struct {
	Role       string `json:"role"`
	Content    string `json:"content,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
	ToolCalls  []ChatToolCall `json:"tool_calls,omitempty"`
}

// ChatToolCall is the OpenAI wire shape for an assistant-issued tool call.
type ChatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function ChatFunctionCall `json:"function"`
}

// ChatFunctionCall carries the name/arguments pair inside a ChatToolCall.
type ChatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatTool is the OpenAI tools-array wire shape produced by FormatTools.
type ChatTool struct {
	Type     string `json:"type"`
	Function ChatToolFunction `json:"function"`
}

// ChatToolFunction carries name/description/parameters inside a ChatTool.
type ChatToolFunction struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Adapter bundles a response parser, message/tool formatters, and an
// optional grammar builder for a specific model family. It is a value, not
// an interface with a common base — each family's parser is plugged in
// independently (spec.md §9).
type Adapter struct {
	Name            string
	Parser          respparse.Parser
	GrammarConfig   types.DecodingConstraint
	GrammarBuilder  grammar.Builder
}

// New builds an Adapter. A nil grammarBuilder selects grammar.Build, which
// dispatches on grammarConfig.Strategy.
func New(name string, parser respparse.Parser, grammarConfig types.DecodingConstraint, grammarBuilder grammar.Builder) *Adapter {
	if grammarBuilder == nil {
		grammarBuilder = grammar.Build
	}
	return &Adapter{Name: name, Parser: parser, GrammarConfig: grammarConfig, GrammarBuilder: grammarBuilder}
}

// FormatMessages renders history into OpenAI chat format. Tools are never
// injected as a synthetic system message — they travel separately via
// FormatTools.
func FormatMessages(messages []types.Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(messages))
	for _, m := range messages {
		cm := ChatMessage{
			Role:       string(m.Role),
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		if m.Content != nil {
			cm.Content = *m.Content
		}
		if len(m.ToolCalls) > 0 {
			cm.ToolCalls = make([]ChatToolCall, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				args, _ := json.Marshal(tc.Arguments)
				cm.ToolCalls = append(cm.ToolCalls, ChatToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: ChatFunctionCall{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
		}
		out = append(out, cm)
	}
	return out
}

// FormatTools renders tool schemas into the OpenAI tools array.
func FormatTools(schemas []types.ToolSchema) []ChatTool {
	if len(schemas) == 0 {
		return nil
	}
	out := make([]ChatTool, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, ChatTool{
			Type: "function",
			Function: ChatToolFunction{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		})
	}
	return out
}

// BuildGrammar invokes the adapter's grammar builder over the resolved tool
// set, returning (nil, nil) when the builder declines to produce a payload.
func (a *Adapter) BuildGrammar(tools []types.ToolSchema) (any, error) {
	if a.GrammarBuilder == nil {
		return nil, nil
	}
	return a.GrammarBuilder(tools, a.GrammarConfig)
}

// ParseResponse delegates to the adapter's configured parser.
func (a *Adapter) ParseResponse(content string, structured []respparse.StructuredToolCall) (*string, []types.ToolCall) {
	return a.Parser.Parse(content, structured)
}
