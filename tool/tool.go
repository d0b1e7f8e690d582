// Package tool defines the tool protocol and the sandbox-backed tool
// implementation that discovers, schemas, and executes sandboxed scripts.
package tool

import (
	"context"

	"github.com/agentkernel/structured-agents/types"
)

// Ident is a distinct string type for tool names, preventing accidental
// mixing with free-form strings in maps and APIs.
type Ident string

// Tool is the minimal tool protocol: a schema plus an async Execute. Context
// is the originating ToolCall, or nil when a tool is invoked outside a
// kernel turn (e.g. from a test harness).
type Tool interface {
	Schema() types.ToolSchema
	Execute(ctx context.Context, arguments map[string]any, call *types.ToolCall) types.ToolResult
}

// RegistryEntry is a programmatically registered (non-sandbox) tool, listed
// alongside directory-discovered sandbox tools so a façade can mix native Go
// tools with sandbox scripts in one agent.
type RegistryEntry struct {
	Name string
	Tool Tool
}
