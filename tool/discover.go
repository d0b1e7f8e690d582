package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentkernel/structured-agents/telemetry"
)

// Loader loads a single sandbox script file with artifact generation
// disabled (avoiding workspace pollution), returning the loaded Script.
type Loader func(path string) (Script, error)

// LimitsFor resolves the resource-limit preset for a discovered script by
// its declared name, e.g. from a bundle's per-tool risk_tier configuration.
type LimitsFor func(name string) Limits

// Discover walks dir for sandbox-script files, loads each via loader, and
// returns the successfully-loaded ones as SandboxTools. A file that fails to
// load is logged as a warning and skipped — discovery never aborts on a
// single failure. limitsFor selects the per-tool Limits preset by the
// script's declared name; a nil limitsFor applies LimitsDefault to every
// discovered tool.
func Discover(ctx context.Context, dir string, loader Loader, logger telemetry.Logger, limitsFor LimitsFor) ([]*SandboxTool, error) {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	if limitsFor == nil {
		limitsFor = func(string) Limits { return LimitsDefault }
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("tool: read discovery dir %q: %w", dir, err)
	}

	tools := make([]*SandboxTool, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		script, err := loader(path)
		if err != nil {
			logger.Warn(ctx, "tool: failed to load sandbox script", "path", path, "error", err.Error())
			continue
		}

		wrapped, err := NewSandboxTool(script, limitsFor(script.Name()))
		if err != nil {
			logger.Warn(ctx, "tool: failed to build schema for sandbox script", "path", path, "error", err.Error())
			continue
		}
		tools = append(tools, wrapped)
	}
	return tools, nil
}
