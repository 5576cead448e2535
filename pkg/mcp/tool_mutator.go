package mcp

import (
	"k8s.io/utils/ptr"

	"github.com/lambdamechanic/scrapinghub-mcp/pkg/allowlist"
	"github.com/lambdamechanic/scrapinghub-mcp/pkg/api"
)

type ToolMutator func(tool api.ServerTool) api.ServerTool

// WithSafetyAnnotations sets the read-only and destructive hints from the allowlist.
// Tool names are never inspected to guess their effect.
func WithSafetyAnnotations(gate *allowlist.Gate) ToolMutator {
	return func(tool api.ServerTool) api.ServerTool {
		mutating := gate.IsMutating(tool.Tool.Name)
		tool.Tool.Annotations.ReadOnlyHint = ptr.To(!mutating)
		tool.Tool.Annotations.DestructiveHint = ptr.To(mutating)
		return tool
	}
}
