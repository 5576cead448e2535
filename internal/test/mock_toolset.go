package test

import (
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/lambdamechanic/scrapinghub-mcp/pkg/api"
)

// MockToolset is a test helper for testing toolset functionality
type MockToolset struct {
	Name        string
	Description string
	Tools       []api.ServerTool
}

var _ api.Toolset = (*MockToolset)(nil)

func (m *MockToolset) GetName() string {
	return m.Name
}

func (m *MockToolset) GetDescription() string {
	return m.Description
}

func (m *MockToolset) GetTools() []api.ServerTool {
	if m.Tools == nil {
		return []api.ServerTool{}
	}
	return m.Tools
}

// NewMockTool returns a tool without parameters whose handler replies with content.
func NewMockTool(name, content string) api.ServerTool {
	return api.ServerTool{
		Tool: api.Tool{
			Name:        name,
			Description: "Mock tool " + name,
			InputSchema: &jsonschema.Schema{Type: "object", Properties: map[string]*jsonschema.Schema{}},
		},
		Handler: func(api.ToolHandlerParams) (*api.ToolCallResult, error) {
			return api.NewToolCallResult(content, nil), nil
		},
	}
}
