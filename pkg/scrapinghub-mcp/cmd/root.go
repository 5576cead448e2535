package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericiooptions"
	"k8s.io/klog/v2"

	"github.com/lambdamechanic/scrapinghub-mcp/pkg/allowlist"
	"github.com/lambdamechanic/scrapinghub-mcp/pkg/api"
	"github.com/lambdamechanic/scrapinghub-mcp/pkg/config"
	internalhttp "github.com/lambdamechanic/scrapinghub-mcp/pkg/http"
	"github.com/lambdamechanic/scrapinghub-mcp/pkg/mcp"
	"github.com/lambdamechanic/scrapinghub-mcp/pkg/scrapinghub"
	shtoolset "github.com/lambdamechanic/scrapinghub-mcp/pkg/toolsets/scrapinghub"
	"github.com/lambdamechanic/scrapinghub-mcp/pkg/version"
)

var (
	long = `Scrapinghub Model Context Protocol (MCP) server

The server exposes Scrapy Cloud operations as MCP tools. Operations that are not listed
as non-mutating in the allowlist are only exposed with --allow-mutate.`

	examples = `
# run the stdio server with read-only operations
scrapinghub-mcp

# enable mutating operations such as jobs.run and jobs.delete
scrapinghub-mcp --allow-mutate

# show which operations would be exposed and exit
scrapinghub-mcp --list-tools

# serve the streamable HTTP transport on port 8080
scrapinghub-mcp --port 8080`
)

type MCPServerOptions struct {
	AllowMutate bool
	ConfigPath  string
	Port        string
	LogLevel    int
	ListTools   bool
	Tools       []string
	Version     bool

	// APIURL and StorageURL override the Scrapinghub endpoints.
	APIURL     string
	StorageURL string

	genericiooptions.IOStreams
}

func NewMCPServerOptions(streams genericiooptions.IOStreams) *MCPServerOptions {
	return &MCPServerOptions{
		IOStreams: streams,
		LogLevel:  -1,
	}
}

func NewMCPServer(streams genericiooptions.IOStreams) *cobra.Command {
	o := NewMCPServerOptions(streams)
	cmd := &cobra.Command{
		Use:           version.BinaryName + " [command] [options]",
		Short:         "Scrapinghub Model Context Protocol (MCP) server",
		Long:          long,
		Example:       examples,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(c *cobra.Command, args []string) error {
			if err := o.Validate(); err != nil {
				return err
			}
			return o.Run(c.Context())
		},
	}

	cmd.Flags().BoolVar(&o.Version, "version", o.Version, "Print version information and quit")
	cmd.Flags().BoolVar(&o.AllowMutate, "allow-mutate", o.AllowMutate, "Enable mutating Scrapinghub API operations")
	cmd.Flags().StringVar(&o.ConfigPath, "config", o.ConfigPath, "Path of the configuration file (default: search for "+config.FileName+")")
	cmd.Flags().StringVar(&o.Port, "port", o.Port, "Serve the streamable HTTP transport on this port instead of stdio (overrides server.port)")
	cmd.Flags().IntVar(&o.LogLevel, "log-level", o.LogLevel, "Set the log level (from 0 to 9)")
	cmd.Flags().BoolVar(&o.ListTools, "list-tools", o.ListTools, "Print every operation with its classification and permission, then exit")
	cmd.Flags().StringSliceVar(&o.Tools, "tools", o.Tools, "Comma-separated list of tools to expose (default: all permitted tools)")
	cmd.Flags().StringVar(&o.APIURL, "api-url", o.APIURL, "Scrapinghub API base URL")
	cmd.Flags().StringVar(&o.StorageURL, "storage-url", o.StorageURL, "Scrapinghub storage base URL")
	_ = cmd.Flags().MarkHidden("api-url")
	_ = cmd.Flags().MarkHidden("storage-url")

	return cmd
}

func (m *MCPServerOptions) Validate() error {
	if m.LogLevel > 9 {
		return fmt.Errorf("--log-level must be between 0 and 9")
	}
	if m.Port != "" {
		if _, err := strconv.ParseUint(m.Port, 10, 16); err != nil {
			return fmt.Errorf("--port must be a valid port number: %w", err)
		}
	}
	for _, tool := range m.Tools {
		if _, ok := scrapinghub.Lookup(tool); !ok {
			return fmt.Errorf("--tools: unknown tool %q", tool)
		}
	}
	return nil
}

func (m *MCPServerOptions) initializeLogging() {
	flagSet := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(flagSet)
	klog.SetOutput(m.ErrOut)
	_ = flagSet.Set("logtostderr", "false")
	if m.LogLevel >= 0 {
		_ = flagSet.Set("v", strconv.Itoa(m.LogLevel))
	}
}

func (m *MCPServerOptions) Run(ctx context.Context) error {
	if m.Version {
		_, _ = fmt.Fprintf(m.Out, "%s\n", version.Version)
		return nil
	}
	m.initializeLogging()
	if ctx == nil {
		ctx = context.Background()
	}

	resolver, err := config.NewResolver(m.ConfigPath)
	if err != nil {
		return err
	}
	resolved, err := resolver.Resolve()
	if err != nil {
		return err
	}
	if resolved.Path != "" {
		klog.V(0).Infof("Using configuration file %s", resolved.Path)
	} else {
		klog.V(0).Infof("No configuration file found, using the environment")
	}

	resolvedAllowlist, err := allowlist.Resolve(afero.NewOsFs(), resolved.Layout, resolved.Safety)
	if err != nil {
		return err
	}
	klog.V(0).Infof("Using %s allowlist", resolvedAllowlist.Source())
	gate := allowlist.NewGate(resolvedAllowlist, m.AllowMutate)

	if m.ListTools {
		return m.printTools(gate)
	}

	var clientOptions []scrapinghub.Option
	if m.APIURL != "" {
		clientOptions = append(clientOptions, scrapinghub.WithAPIURL(m.APIURL))
	}
	if m.StorageURL != "" {
		clientOptions = append(clientOptions, scrapinghub.WithStorageURL(m.StorageURL))
	}
	client, err := scrapinghub.NewClient(resolved.Auth.APIKey, clientOptions...)
	if err != nil {
		return err
	}

	mcpServer, err := mcp.NewServer(mcp.Configuration{
		Gate:         gate,
		Caller:       client,
		Toolsets:     []api.Toolset{shtoolset.NewToolset()},
		EnabledTools: m.Tools,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize MCP server: %w", err)
	}

	serverConfig := resolved.Server
	if m.Port != "" {
		serverConfig.Port = m.Port
	}
	klog.V(0).Infof("Starting server with %d tools (allow-mutate: %t)", len(mcpServer.GetEnabledTools()), m.AllowMutate)
	if serverConfig.Port != "" {
		return internalhttp.Serve(ctx, mcpServer, serverConfig)
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := mcpServer.ServeStdio(ctx, m.In, m.Out); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	klog.V(0).Info("Server stopped")
	return nil
}

func (m *MCPServerOptions) printTools(gate *allowlist.Gate) error {
	w := tabwriter.NewWriter(m.Out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TOOL\tCLASSIFICATION\tPERMITTED")
	permissions := gate.Permissions(scrapinghub.OperationIDs())
	for _, id := range scrapinghub.OperationIDs() {
		classification := "non-mutating"
		if gate.IsMutating(id) {
			classification = "mutating"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%t\n", id, classification, permissions[id])
	}
	return w.Flush()
}
