// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mcpserver exposes the converter's operations as MCP tools so an
// assistant can index schemas, learn mappings, and analyze, convert and
// validate templates over stdio.
package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pdiddy/template-converter/internal/workflow"
)

// Name is the server name reported to clients.
const Name = "template-converter"

// New returns an MCP server with every tool registered against wf.
func New(wf *workflow.Workflow, version string) *server.MCPServer {
	s := server.NewMCPServer(Name, version, server.WithToolCapabilities(true))

	s.AddTool(
		mcp.NewTool("ping",
			mcp.WithDescription("Health check, returns pong"),
		),
		func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("pong"), nil
		},
	)

	RegisterReadTools(s, wf)
	RegisterWriteTools(s, wf)
	return s
}

// Serve runs s on stdin and stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}
