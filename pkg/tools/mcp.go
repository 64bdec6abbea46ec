package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/comigor/duckling-go/internal/config"
	"github.com/comigor/duckling-go/internal/logger"
)

// MCPClient is the subset of the mcp-go client used to list and call tools.
type MCPClient interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// MCPTool exposes one tool of an MCP server as a Tool.
type MCPTool struct {
	client MCPClient
	tool   mcp.Tool
}

func NewMCPTool(c MCPClient, tool mcp.Tool) *MCPTool {
	return &MCPTool{client: c, tool: tool}
}

func (t *MCPTool) Name() string { return t.tool.Name }

func (t *MCPTool) Description() string { return t.tool.Description }

func (t *MCPTool) Parameters() json.RawMessage {
	if len(t.tool.RawInputSchema) > 0 && string(t.tool.RawInputSchema) != "null" {
		return t.tool.RawInputSchema
	}
	b, err := json.Marshal(t.tool.InputSchema)
	if err != nil || string(b) == "{}" || string(b) == "null" {
		logger.L.Warn("MCP tool has an empty or invalid schema; using empty object schema", "tool", t.tool.Name)
		return emptySchema
	}
	return b
}

func (t *MCPTool) Run(ctx context.Context, args string) string {
	var toolArgs map[string]any
	if args != "" {
		if err := json.Unmarshal([]byte(args), &toolArgs); err != nil {
			return "Error: Could not parse arguments for tool " + t.tool.Name
		}
	}

	result, err := t.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: t.tool.Name, Arguments: toolArgs},
	})
	if err != nil {
		logger.L.Warn("MCP CallTool failed", "tool", t.tool.Name, "error", err)
		return fmt.Sprintf("Error: tool %s failed: %v", t.tool.Name, err)
	}

	text := firstText(result.Content)
	if result.IsError {
		logger.L.Warn("MCP tool executed with IsError=true", "tool", t.tool.Name, "content", text)
		if text == "" {
			return "Tool execution resulted in an error without specific text."
		}
		return text
	}
	if text != "" {
		return text
	}
	b, err := json.Marshal(result)
	if err != nil {
		return "Tool executed successfully, but result could not be formatted."
	}
	return string(b)
}

func firstText(contents []mcp.Content) string {
	for _, c := range contents {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// MCPTools lists the tools of an initialized client.
func MCPTools(ctx context.Context, c MCPClient) ([]Tool, error) {
	res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	out := make([]Tool, 0, len(res.Tools))
	for _, t := range res.Tools {
		out = append(out, NewMCPTool(c, t))
	}
	return out, nil
}

// ConnectMCPServers starts a client for every configured server and returns the
// tools they offer together with the clients to close on shutdown. Servers that
// fail to start are logged and skipped.
func ConnectMCPServers(ctx context.Context, servers []config.MCPServerConfig) ([]Tool, []MCPClient) {
	var (
		tools   []Tool
		clients []MCPClient
	)
	for _, serverCfg := range servers {
		c, err := startMCPClient(ctx, serverCfg)
		if err != nil {
			logger.L.Error("Failed to start MCP client", "name", serverCfg.Name, "error", err)
			continue
		}

		if _, err := c.Initialize(ctx, mcp.InitializeRequest{
			Params: mcp.InitializeParams{Capabilities: mcp.ClientCapabilities{}},
		}); err != nil {
			logger.L.Error("Failed to initialize MCP client", "name", serverCfg.Name, "error", err)
			if cerr := c.Close(); cerr != nil {
				logger.L.Warn("MCP client close error after init failure", "error", cerr)
			}
			continue
		}
		clients = append(clients, c)

		serverTools, err := MCPTools(ctx, c)
		if err != nil {
			logger.L.Warn("Failed to list tools for MCP client", "name", serverCfg.Name, "error", err)
			continue
		}
		for _, t := range serverTools {
			logger.L.Info("Registered tool from MCP server", "tool", t.Name(), "name", serverCfg.Name)
		}
		tools = append(tools, serverTools...)
	}
	return tools, clients
}

func startMCPClient(ctx context.Context, serverCfg config.MCPServerConfig) (*client.Client, error) {
	var (
		c   *client.Client
		err error
	)
	switch serverCfg.Type {
	case config.ClientTypeSSE:
		var opts []transport.ClientOption
		if len(serverCfg.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(serverCfg.Headers))
		}
		c, err = client.NewSSEMCPClient(serverCfg.URL, opts...)
	case config.ClientTypeStreamableHTTP:
		var opts []transport.StreamableHTTPCOption
		if len(serverCfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(serverCfg.Headers))
		}
		c, err = client.NewStreamableHttpClient(serverCfg.URL, opts...)
	case config.ClientTypeStdio:
		env := make([]string, 0, len(serverCfg.Env))
		for k, v := range serverCfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		// stdio clients are started by the constructor
		return client.NewStdioMCPClient(serverCfg.Command, env, serverCfg.Args...)
	default:
		return nil, fmt.Errorf("unsupported MCP server type %q (want sse, streamable_http or stdio)", serverCfg.Type)
	}
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		if cerr := c.Close(); cerr != nil {
			logger.L.Warn("MCP client close error after start failure", "error", cerr)
		}
		return nil, err
	}
	return c, nil
}
