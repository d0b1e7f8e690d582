package bedrockcompat

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/agentkernel/structured-agents/adapter"
	"github.com/agentkernel/structured-agents/modelclient"
	"github.com/agentkernel/structured-agents/respparse"
	"github.com/agentkernel/structured-agents/types"
)

// buildToolNameMaps sanitizes every declared tool's canonical name into a
// Bedrock-safe name once, up front, so the same mapping is reused for both
// the tool configuration and any tool_use/tool_result blocks that reference
// it in conversation history.
func buildToolNameMaps(tools []adapter.ChatTool) (canonToSan, sanToCanon map[string]string) {
	canonToSan = make(map[string]string, len(tools))
	sanToCanon = make(map[string]string, len(tools))
	for _, t := range tools {
		sanitized := sanitizeToolName(t.Function.Name)
		canonToSan[t.Function.Name] = sanitized
		sanToCanon[sanitized] = t.Function.Name
	}
	return canonToSan, sanToCanon
}

// encodeMessages converts the flat chat-message history into Bedrock's
// system-blocks-plus-conversation shape. Tool-call correlation IDs that
// don't already satisfy Bedrock's toolUseId grammar are remapped to
// synthetic "tN" IDs, consistently, so a tool_use block and the tool_result
// block answering it always agree.
func encodeMessages(msgs []adapter.ChatMessage, canonToSan map[string]string) ([]brtypes.Message, []brtypes.SystemContentBlock, error) {
	toolUseIDMap := make(map[string]string)
	nextID := 0
	idFor := func(canonical string) string {
		if isProviderSafeID(canonical) {
			return canonical
		}
		if id, ok := toolUseIDMap[canonical]; ok {
			return id
		}
		nextID++
		id := fmt.Sprintf("t%d", nextID)
		toolUseIDMap[canonical] = id
		return id
	}
	nameFor := func(canonical string) string {
		if sanitized, ok := canonToSan[canonical]; ok {
			return sanitized
		}
		return sanitizeToolName(canonical)
	}

	conversation := make([]brtypes.Message, 0, len(msgs))
	system := make([]brtypes.SystemContentBlock, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system", "developer":
			if m.Content == "" {
				continue
			}
			system = append(system, &brtypes.SystemContentBlockMemberText{Value: m.Content})
		case "user":
			conversation = append(conversation, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
			})
		case "assistant":
			blocks := make([]brtypes.ContentBlock, 0, 1+len(m.ToolCalls))
			if m.Content != "" {
				blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: m.Content})
			}
			for _, tc := range m.ToolCalls {
				var input any
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
					input = map[string]any{}
				}
				id := idFor(tc.ID)
				name := nameFor(tc.Function.Name)
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
					ToolUseId: &id,
					Name:      &name,
					Input:     lazyDocument(input),
				}})
			}
			if len(blocks) == 0 {
				continue
			}
			conversation = append(conversation, brtypes.Message{Role: brtypes.ConversationRoleAssistant, Content: blocks})
		case "tool":
			id := idFor(m.ToolCallID)
			conversation = append(conversation, brtypes.Message{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberToolResult{Value: brtypes.ToolResultBlock{
					ToolUseId: &id,
					Content: []brtypes.ToolResultContentBlock{
						&brtypes.ToolResultContentBlockMemberText{Value: m.Content},
					},
				}}},
			})
		}
	}
	return conversation, system, nil
}

// encodeTools builds a Bedrock ToolConfiguration from the adapter's flat
// tool definitions, sanitizing each name through the shared canonToSan map
// built by buildToolNameMaps.
func encodeTools(tools []adapter.ChatTool, canonToSan map[string]string) *brtypes.ToolConfiguration {
	toolList := make([]brtypes.Tool, 0, len(tools))
	for _, t := range tools {
		sanitized := canonToSan[t.Function.Name]
		var schema any
		_ = json.Unmarshal(t.Function.Parameters, &schema)
		spec := brtypes.ToolSpecification{
			Name:        &sanitized,
			Description: &t.Function.Description,
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: toDocument(schema)},
		}
		toolList = append(toolList, &brtypes.ToolMemberToolSpec{Value: spec})
	}
	return &brtypes.ToolConfiguration{Tools: toolList}
}

// translateResponse maps a Bedrock ConverseOutput back into the kernel's
// provider-agnostic Response shape, reversing each tool_use block's
// sanitized name back to the canonical tool name via sanToCanon.
func translateResponse(output *bedrockruntime.ConverseOutput, sanToCanon map[string]string) (modelclient.Response, error) {
	if output == nil {
		return modelclient.Response{}, errNilOutput
	}
	var resp modelclient.Response
	var text string
	if msg, ok := output.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msg.Value.Content {
			switch v := block.(type) {
			case *brtypes.ContentBlockMemberText:
				text += v.Value
			case *brtypes.ContentBlockMemberToolUse:
				name := ""
				if v.Value.Name != nil {
					name = *v.Value.Name
					if canonical, ok := sanToCanon[name]; ok {
						name = canonical
					}
				}
				var id string
				if v.Value.ToolUseId != nil {
					id = *v.Value.ToolUseId
				}
				resp.ToolCalls = append(resp.ToolCalls, respparse.StructuredToolCall{
					ID:            id,
					Name:          name,
					ArgumentsJSON: string(decodeDocument(v.Value.Input)),
				})
			}
		}
	}
	if text != "" {
		resp.Content = &text
	}
	if usage := output.Usage; usage != nil {
		resp.Usage = types.TokenUsage{
			PromptTokens:     int(ptrValue(usage.InputTokens)),
			CompletionTokens: int(ptrValue(usage.OutputTokens)),
			TotalTokens:      int(ptrValue(usage.TotalTokens)),
		}
	}
	resp.StopReason = string(output.StopReason)
	return resp, nil
}

// toDocument converts a decoded JSON schema value into a Bedrock smithy
// document, falling back to a bare object schema when the value is absent.
func toDocument(schema any) document.Interface {
	if schema == nil {
		return lazyDocument(map[string]any{"type": "object"})
	}
	return lazyDocument(schema)
}

// decodeDocument marshals a smithy document back into raw JSON, returning
// nil when the document is empty or unset.
func decodeDocument(doc document.Interface) json.RawMessage {
	if doc == nil {
		return nil
	}
	data, err := doc.MarshalSmithyDocument()
	if err != nil || len(data) == 0 {
		return nil
	}
	return json.RawMessage(data)
}

func lazyDocument(v any) document.Interface {
	return document.NewLazyDocument(&v)
}

func ptrValue[T ~int32 | ~int64](ptr *T) T {
	if ptr == nil {
		return 0
	}
	return *ptr
}

var errNilOutput = errors.New("bedrockcompat: response is nil")
