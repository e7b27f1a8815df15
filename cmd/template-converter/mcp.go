// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"

	"github.com/pdiddy/template-converter/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the converter as MCP tools over stdio",
	Long: `MCP runs a Model Context Protocol server on stdin and stdout exposing
schema, analyze, match, rank, validate, mappings, learn, convert and map
as tools. Diagnostics go to stderr; stdout carries only the protocol.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, err := openWorkflow()
		if err != nil {
			return err
		}
		defer wf.Store().Close()

		return mcpserver.Serve(mcpserver.New(wf, version))
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
