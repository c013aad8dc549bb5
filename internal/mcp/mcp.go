// Package mcp exposes the gateway as MCP tools.
package mcp

import (
	_ "embed"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/maddev333/scubapwshapi"
	"github.com/maddev333/scubapwshapi/internal/gateway"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	gw *gateway.Gateway
}

// NewServer creates an MCP server with all tools registered.
func NewServer(gw *gateway.Gateway) *mcp.Server {
	h := &handler{gw: gw}

	s := mcp.NewServer(&mcp.Implementation{Name: "scubapwshapi", Version: scubapwshapi.Version}, &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
	})

	mcp.AddTool(s, &mcp.Tool{
		Name: "run_script",
		Description: `Run a script in a new interactive shell and return its standard output followed by its standard error.

The shell exits after the script. Each call gets its own shell; nothing persists between calls.
The run is recorded and can be viewed again with inspect_run.`,
	}, h.runScriptHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "weather_forecast",
		Description: "Generate a synthetic five-day weather forecast starting tomorrow.",
	}, h.forecastHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "inspect_run",
		Description: "Show a recorded run: script, shell, exit code, timing and combined output.",
	}, h.inspectHandler)

	return s
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
