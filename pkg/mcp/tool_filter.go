package mcp

import (
	"github.com/lambdamechanic/scrapinghub-mcp/pkg/allowlist"
	"github.com/lambdamechanic/scrapinghub-mcp/pkg/api"
)

type ToolFilter func(tool api.ServerTool) bool

func CompositeFilter(filters ...ToolFilter) ToolFilter {
	return func(tool api.ServerTool) bool {
		for _, f := range filters {
			if !f(tool) {
				return false
			}
		}

		return true
	}
}

// ShouldIncludePermitted keeps only the tools the gate permits. It is evaluated once at
// startup, so toggling mutation requires a restart.
func ShouldIncludePermitted(gate *allowlist.Gate) ToolFilter {
	return func(tool api.ServerTool) bool {
		return gate.IsPermitted(tool.Tool.Name)
	}
}

// ShouldIncludeNamed keeps only the named tools. An empty list keeps everything.
func ShouldIncludeNamed(names []string) ToolFilter {
	if len(names) == 0 {
		return func(api.ServerTool) bool { return true }
	}
	include := make(map[string]struct{}, len(names))
	for _, n := range names {
		include[n] = struct{}{}
	}
	return func(tool api.ServerTool) bool {
		_, ok := include[tool.Tool.Name]
		return ok
	}
}
