// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pdiddy/template-converter/internal/schema"
	"github.com/pdiddy/template-converter/internal/validate"
	"github.com/pdiddy/template-converter/internal/workflow"
	"github.com/pdiddy/template-converter/pkg/types"
)

// RegisterReadTools adds the tools that leave the store and the file
// system untouched.
func RegisterReadTools(s *server.MCPServer, wf *workflow.Workflow) {
	s.AddTool(schemaTool(), schemaHandler(wf))
	s.AddTool(analyzeTool(), analyzeHandler(wf))
	s.AddTool(matchTool(), matchHandler(wf))
	s.AddTool(rankTool(), rankHandler(wf))
	s.AddTool(validateTool(), validateHandler())
	s.AddTool(mappingsTool(), mappingsHandler(wf))
}

// --- schema ---

func schemaTool() mcp.Tool {
	return mcp.NewTool("schema",
		mcp.WithDescription("Index a schema instance (JSON or YAML file, or http(s) URL) and list every path with its type and a sample value."),
		mcp.WithString("instance",
			mcp.Description("File path or URL of the schema instance"),
			mcp.Required(),
		),
		mcp.WithBoolean("full_arrays",
			mcp.Description("Index every array element instead of only the first"),
		),
	)
}

func schemaHandler(wf *workflow.Workflow) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ref := req.GetString("instance", "")
		if ref == "" {
			return toolError(fmt.Errorf("instance is required"))
		}
		fields, err := wf.Schema(ctx, ref, req.GetBool("full_arrays", false))
		if err != nil {
			return toolError(err)
		}
		if len(fields) == 0 {
			return mcp.NewToolResultText("No fields."), nil
		}
		var sb strings.Builder
		for _, p := range schema.SortedPaths(fields) {
			f := fields[p]
			fmt.Fprintf(&sb, "%s  %s", p, f.Type)
			if f.SampleValue != nil {
				fmt.Fprintf(&sb, "  %v", f.SampleValue)
			}
			sb.WriteByte('\n')
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- analyze ---

func analyzeTool() mcp.Tool {
	return mcp.NewTool("analyze",
		mcp.WithDescription("Classify the merge fields of a .docx template and report which ones the current rules and stored mappings resolve. Nothing is written."),
		mcp.WithString("template",
			mcp.Description("Path to the .docx template"),
			mcp.Required(),
		),
	)
}

func analyzeHandler(wf *workflow.Workflow) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := req.GetString("template", "")
		if path == "" {
			return toolError(fmt.Errorf("template is required"))
		}
		a, err := wf.Analyze(ctx, path, nil)
		if err != nil {
			return toolError(err)
		}

		var sb strings.Builder
		st := a.Structure
		fmt.Fprintf(&sb, "%s: %d simple, %d loops, %d conditionals, %d end markers\n",
			a.File, len(st.Simple), len(st.Loops), len(st.Conditionals), len(st.EndMarkers))
		for _, l := range a.Loops {
			fmt.Fprintf(&sb, "loop %s(%s): %s\n", l.Array, l.Var, strings.Join(l.Fields, ", "))
		}
		fmt.Fprintf(&sb, "converted %d field(s)\n", len(a.Result.Conversions))
		if un := a.Result.Unresolved(); len(un) > 0 {
			fmt.Fprintf(&sb, "unresolved: %s\n", strings.Join(un, ", "))
		}
		writeDiagnostics(&sb, a.Result.Diagnostics)
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- match ---

func matchTool() mcp.Tool {
	return mcp.NewTool("match",
		mcp.WithDescription("Match the fields of two schema instances by name and structure, one best destination per source field."),
		mcp.WithString("source",
			mcp.Description("File path or URL of the source-dialect instance"),
			mcp.Required(),
		),
		mcp.WithString("destination",
			mcp.Description("File path or URL of the destination-dialect instance"),
			mcp.Required(),
		),
		mcp.WithNumber("min_confidence",
			mcp.Description("Minimum confidence in [0,1]; defaults to the configured value"),
		),
	)
}

func matchHandler(wf *workflow.Workflow) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		src, dst := req.GetString("source", ""), req.GetString("destination", "")
		if src == "" || dst == "" {
			return toolError(fmt.Errorf("source and destination are required"))
		}
		results, err := wf.Match(ctx, src, dst, req.GetFloat("min_confidence", 0))
		if err != nil {
			return toolError(err)
		}
		return formatEntities(results, formatMatch)
	}
}

// --- rank ---

func rankTool() mcp.Tool {
	return mcp.NewTool("rank",
		mcp.WithDescription("Propose destination paths for the unresolved fields of a template, ranked by loop nesting and sibling coherence."),
		mcp.WithString("template",
			mcp.Description("Path to the .docx template"),
			mcp.Required(),
		),
		mcp.WithString("destination",
			mcp.Description("File path or URL of a destination-dialect instance"),
			mcp.Required(),
		),
		mcp.WithNumber("limit",
			mcp.Description("Candidates kept per field (default 3)"),
		),
	)
}

func rankHandler(wf *workflow.Workflow) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, dst := req.GetString("template", ""), req.GetString("destination", "")
		if path == "" || dst == "" {
			return toolError(fmt.Errorf("template and destination are required"))
		}
		rankings, err := wf.Rank(ctx, path, dst, req.GetInt("limit", 3))
		if err != nil {
			return toolError(err)
		}
		if len(rankings) == 0 {
			return mcp.NewToolResultText("No unresolved fields with candidates."), nil
		}
		var sb strings.Builder
		for _, r := range rankings {
			sb.WriteString(r.Field)
			sb.WriteByte('\n')
			for _, c := range r.Candidates {
				fmt.Fprintf(&sb, "  %s  %.2f %s\n", c.DestinationPath, c.Confidence, c.Level)
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- validate ---

func validateTool() mcp.Tool {
	return mcp.NewTool("validate",
		mcp.WithDescription("Validate a converted .docx: brace balance, section nesting, tag paths and leftover source markers."),
		mcp.WithString("path",
			mcp.Description("Path to the converted .docx"),
			mcp.Required(),
		),
	)
}

func validateHandler() server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := req.GetString("path", "")
		if path == "" {
			return toolError(fmt.Errorf("path is required"))
		}
		res, err := validate.File(path)
		if err != nil {
			return toolError(err)
		}
		var sb strings.Builder
		validate.Report(&sb, res)
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- mappings ---

func mappingsTool() mcp.Tool {
	return mcp.NewTool("mappings",
		mcp.WithDescription("List stored field mappings with their score and any competing destinations."),
		mcp.WithNumber("min_score",
			mcp.Description("Only list mappings with at least this score (0-10)"),
		),
	)
}

func mappingsHandler(wf *workflow.Workflow) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ms, err := wf.Store().Accepted(ctx, req.GetInt("min_score", 0))
		if err != nil {
			return toolError(err)
		}
		return formatEntities(ms, formatMapping)
	}
}

func formatEntities[T any](entities []T, format func(T) string) (*mcp.CallToolResult, error) {
	if len(entities) == 0 {
		return mcp.NewToolResultText("No results."), nil
	}
	var sb strings.Builder
	for _, e := range entities {
		sb.WriteString(format(e))
		sb.WriteByte('\n')
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func formatMatch(r types.MatchResult) string {
	return fmt.Sprintf("%s -> %s  %.2f %s (%s)", r.SourcePath, r.DestinationPath, r.Confidence, r.Level, r.MatchType)
}

func formatMapping(m types.FieldMapping) string {
	s := fmt.Sprintf("%s -> %s  score %d %s", m.SourceField, m.DestinationField, m.Score, m.Source)
	if amb, ok := m.Resolution().(types.Ambiguous); ok {
		alts := make([]string, len(amb.Alternatives))
		for i, a := range amb.Alternatives {
			alts[i] = fmt.Sprintf("%s (%d)", a.DestinationField, a.TimesSeen)
		}
		s += "  alternatives: " + strings.Join(alts, ", ")
	}
	return s
}

func writeDiagnostics(sb *strings.Builder, ds types.Diagnostics) {
	for _, d := range ds {
		fmt.Fprintf(sb, "%s\n", d)
	}
}
