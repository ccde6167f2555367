package routing

import (
	"github.com/theapemachine/toolgate/pkg/types"
)

// ApplyFilter returns the tools that pass the filter, preserving order.
// A nil filter passes everything through untouched.
func ApplyFilter(tools []types.ToolDefinition, filter *types.ToolFilter) []types.ToolDefinition {
	if filter == nil {
		return tools
	}
	allowed := make([]types.ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		if filter.Allowed(tool.Name) {
			allowed = append(allowed, tool)
		}
	}
	return allowed
}

// IsAllowed reports whether the named tool passes the filter. A nil
// filter allows every tool.
func IsAllowed(name string, filter *types.ToolFilter) bool {
	return filter.Allowed(name)
}
