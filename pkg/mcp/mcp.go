package mcp

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"k8s.io/klog/v2"

	"github.com/lambdamechanic/scrapinghub-mcp/pkg/allowlist"
	"github.com/lambdamechanic/scrapinghub-mcp/pkg/api"
	"github.com/lambdamechanic/scrapinghub-mcp/pkg/version"
)

// Configuration is built once at startup and never modified.
type Configuration struct {
	Gate     *allowlist.Gate
	Caller   api.Caller
	Toolsets []api.Toolset
	// EnabledTools further restricts the registered tools, empty means no restriction.
	EnabledTools []string
}

type Server struct {
	configuration *Configuration
	server        *server.MCPServer
	metrics       *Metrics
	enabledTools  []string
}

func NewServer(configuration Configuration) (*Server, error) {
	if configuration.Gate == nil {
		return nil, fmt.Errorf("an allowlist gate is required")
	}
	if configuration.Caller == nil {
		return nil, fmt.Errorf("a Scrapinghub caller is required")
	}
	s := &Server{
		configuration: &configuration,
		server: server.NewMCPServer(
			version.BinaryName,
			version.Version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
			server.WithLogging(),
		),
		metrics: NewMetrics(),
	}
	s.metrics.setAllowMutate(configuration.Gate.AllowMutate())
	if err := s.registerTools(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) registerTools() error {
	gate := s.configuration.Gate
	filter := CompositeFilter(
		ShouldIncludePermitted(gate),
		ShouldIncludeNamed(s.configuration.EnabledTools),
	)
	mutator := WithSafetyAnnotations(gate)

	var tools []server.ServerTool
	for _, toolset := range s.configuration.Toolsets {
		for _, tool := range toolset.GetTools() {
			tool = mutator(tool)
			mutating := gate.IsMutating(tool.Tool.Name)
			if !filter(tool) {
				s.metrics.observeTool(mutating, false)
				klog.V(2).Infof("Skipping tool %s from toolset %s (mutating: %t)", tool.Tool.Name, toolset.GetName(), mutating)
				continue
			}
			m3labsTool, err := s.toM3LabsServerTool(tool)
			if err != nil {
				return err
			}
			s.metrics.observeTool(mutating, true)
			s.enabledTools = append(s.enabledTools, tool.Tool.Name)
			tools = append(tools, m3labsTool)
		}
	}
	s.server.SetTools(tools...)
	klog.V(1).Infof("Registered tools %v (allow-mutate: %t)", s.enabledTools, gate.AllowMutate())
	return nil
}

func (s *Server) toM3LabsServerTool(tool api.ServerTool) (server.ServerTool, error) {
	schema := api.ToRawMessage(tool.Tool.InputSchema)
	if schema == nil {
		return server.ServerTool{}, fmt.Errorf("failed to marshal input schema for tool %s", tool.Tool.Name)
	}
	m3labsTool := mcp.NewToolWithRawSchema(tool.Tool.Name, tool.Tool.Description, schema)
	m3labsTool.Annotations = mcp.ToolAnnotation{
		Title:           tool.Tool.Annotations.Title,
		ReadOnlyHint:    tool.Tool.Annotations.ReadOnlyHint,
		DestructiveHint: tool.Tool.Annotations.DestructiveHint,
		IdempotentHint:  tool.Tool.Annotations.IdempotentHint,
		OpenWorldHint:   tool.Tool.Annotations.OpenWorldHint,
	}
	return server.ServerTool{Tool: m3labsTool, Handler: s.toolHandler(tool)}, nil
}

// toolHandler consults the gate on every call; a denial is a tool error, never a crash.
func (s *Server) toolHandler(tool api.ServerTool) server.ToolHandlerFunc {
	name := tool.Tool.Name
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := s.configuration.Gate.Check(name); err != nil {
			klog.V(1).Infof("Rejected call to mutating tool %s", name)
			s.metrics.observeCall(name, outcomeDenied)
			return NewTextResult("", err), nil
		}
		klog.V(5).Infof("Calling tool %s", name)
		result, err := tool.Handler(api.ToolHandlerParams{
			Context:         ctx,
			Caller:          s.configuration.Caller,
			ToolCallRequest: request,
		})
		if err != nil {
			s.metrics.observeCall(name, outcomeError)
			return nil, err
		}
		if result.Error != nil {
			s.metrics.observeCall(name, outcomeError)
		} else {
			s.metrics.observeCall(name, outcomeSuccess)
		}
		return NewTextResult(result.Content, result.Error), nil
	}
}

// GetEnabledTools returns the names of the registered tools in lexical order.
func (s *Server) GetEnabledTools() []string {
	names := append([]string(nil), s.enabledTools...)
	sort.Strings(names)
	return names
}

func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// ServeStdio serves the stdio transport until ctx is cancelled or stdin is closed.
func (s *Server) ServeStdio(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	return server.NewStdioServer(s.server).Listen(ctx, stdin, stdout)
}

func (s *Server) ServeHTTP() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s.server)
}

func NewTextResult(content string, err error) *mcp.CallToolResult {
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				mcp.TextContent{
					Type: "text",
					Text: err.Error(),
				},
			},
		}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: content,
			},
		},
	}
}
