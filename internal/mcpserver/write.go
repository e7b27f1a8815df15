// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pdiddy/template-converter/internal/mappingstore"
	"github.com/pdiddy/template-converter/internal/workflow"
	"github.com/pdiddy/template-converter/pkg/types"
)

// RegisterWriteTools adds the tools that change the store or write files.
func RegisterWriteTools(s *server.MCPServer, wf *workflow.Workflow) {
	s.AddTool(learnTool(), learnHandler(wf))
	s.AddTool(convertTool(), convertHandler(wf))
	s.AddTool(mapTool(), mapHandler(wf))
}

// --- learn ---

func learnTool() mcp.Tool {
	return mcp.NewTool("learn",
		mcp.WithDescription("Learn field mappings from two instances of the same record, one per dialect, by matching the values they share. Loops in an optional template are paired with destination arrays. Results are recorded in the mapping store."),
		mcp.WithString("source",
			mcp.Description("File path or URL of the source-dialect instance"),
			mcp.Required(),
		),
		mcp.WithString("destination",
			mcp.Description("File path or URL of the destination-dialect instance"),
			mcp.Required(),
		),
		mcp.WithString("template",
			mcp.Description("Optional .docx template whose loops should be learned"),
		),
		mcp.WithString("project",
			mcp.Description("Project identifier recorded with the evidence"),
		),
		mcp.WithBoolean("include_low",
			mcp.Description("Also record low-confidence correspondences"),
		),
	)
}

func learnHandler(wf *workflow.Workflow) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		lr := workflow.LearnRequest{
			Source:      req.GetString("source", ""),
			Destination: req.GetString("destination", ""),
			Template:    req.GetString("template", ""),
			Project:     req.GetString("project", ""),
			IncludeLow:  req.GetBool("include_low", false),
		}
		if lr.Source == "" || lr.Destination == "" {
			return toolError(fmt.Errorf("source and destination are required"))
		}
		var sb strings.Builder
		if _, err := wf.Learn(ctx, lr, &sb); err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- convert ---

func convertTool() mcp.Tool {
	return mcp.NewTool("convert",
		mcp.WithDescription("Convert a .docx template from merge fields to brace tags using the built-in rules and stored mappings."),
		mcp.WithString("input",
			mcp.Description("Path to the source .docx"),
			mcp.Required(),
		),
		mcp.WithString("output",
			mcp.Description("Output path; defaults to <input>_converted.docx"),
		),
	)
}

func convertHandler(wf *workflow.Workflow) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		in := req.GetString("input", "")
		if in == "" {
			return toolError(fmt.Errorf("input is required"))
		}
		res, out, err := wf.Convert(ctx, in, req.GetString("output", ""), nil)
		if err != nil {
			return toolError(err)
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "converted: %s -> %s (%d fields)\n", in, out, len(res.Conversions))
		fmt.Fprintf(&sb, "before: %s\nafter:  %s\n", res.Before, res.After)
		if un := res.Unresolved(); len(un) > 0 {
			fmt.Fprintf(&sb, "unresolved: %s\n", strings.Join(un, ", "))
		}
		writeDiagnostics(&sb, res.Diagnostics)
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- map ---

func mapTool() mcp.Tool {
	return mcp.NewTool("map",
		mcp.WithDescription("Record a manual mapping. Manual mappings carry the maximum score and are never overridden by learned evidence."),
		mcp.WithString("source",
			mcp.Description("Source field, e.g. =client_name"),
			mcp.Required(),
		),
		mcp.WithString("destination",
			mcp.Description("Destination path, e.g. project.client_name"),
			mcp.Required(),
		),
	)
}

func mapHandler(wf *workflow.Workflow) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		src, dst := req.GetString("source", ""), req.GetString("destination", "")
		if src == "" || dst == "" {
			return toolError(fmt.Errorf("source and destination are required"))
		}
		m, err := wf.Store().Observe(ctx, mappingstore.Observation{
			Source:      src,
			Destination: strings.Trim(dst, "{}"),
			Kind:        types.SourceManual,
		})
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(formatMapping(m)), nil
	}
}
