package scrapinghub

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"k8s.io/utils/ptr"

	"github.com/lambdamechanic/scrapinghub-mcp/pkg/api"
	"github.com/lambdamechanic/scrapinghub-mcp/pkg/scrapinghub"
)

// Toolset exposes one tool per Scrapinghub operation, named by the operation identifier.
type Toolset struct {
	operations []scrapinghub.Operation
}

var _ api.Toolset = (*Toolset)(nil)

// NewToolset returns a toolset for operations, or for every known operation when none are given.
func NewToolset(operations ...scrapinghub.Operation) *Toolset {
	if len(operations) == 0 {
		operations = scrapinghub.Operations()
	}
	return &Toolset{operations: operations}
}

func (t *Toolset) GetName() string {
	return "scrapinghub"
}

func (t *Toolset) GetDescription() string {
	return "Scrapy Cloud projects, spiders, jobs, items and logs"
}

func (t *Toolset) GetTools() []api.ServerTool {
	tools := make([]api.ServerTool, 0, len(t.operations))
	for _, op := range t.operations {
		tools = append(tools, api.ServerTool{
			Tool: api.Tool{
				Name:        op.ID,
				Description: op.Description,
				InputSchema: inputSchema(op),
				Annotations: api.ToolAnnotations{
					Title:         op.Title,
					OpenWorldHint: ptr.To(true),
				},
			},
			Handler: operationHandler(op),
		})
	}
	return tools
}

func inputSchema(op scrapinghub.Operation) *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(op.Params)),
	}
	for _, param := range op.Params {
		property := &jsonschema.Schema{
			Type:        string(param.Type),
			Description: param.Description,
		}
		if param.Type == scrapinghub.ParamArray {
			property.Items = &jsonschema.Schema{Type: "string"}
		}
		if param.Pattern != nil {
			property.Pattern = param.Pattern.String()
		}
		schema.Properties[param.Name] = property
		if param.Required {
			schema.Required = append(schema.Required, param.Name)
		}
	}
	return schema
}

func operationHandler(op scrapinghub.Operation) api.ToolHandlerFunc {
	return func(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
		result, err := params.Do(params.Context, op, params.GetArguments())
		if err != nil {
			return api.NewToolCallResult("", fmt.Errorf("failed to call %s: %w", op.ID, err)), nil
		}
		var indented bytes.Buffer
		if err := json.Indent(&indented, result, "", "  "); err != nil {
			return api.NewToolCallResult(string(result), nil), nil
		}
		return api.NewToolCallResult(indented.String(), nil), nil
	}
}
