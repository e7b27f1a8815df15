// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/template-converter/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema <instance>",
	Short: "Index a schema instance and list its paths",
	Long: `Schema loads a JSON or YAML instance (a local file or an http(s) URL)
and lists every path with its type and a sample value. Arrays are indexed
through their first element unless --full-arrays is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().Bool("tree", false, "print the paths as an indented tree")
	schemaCmd.Flags().Bool("full-arrays", false, "index every array element")
	schemaCmd.Flags().Bool("json", false, "output fields as JSON")

	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command, args []string) error {
	wf, err := openWorkflow()
	if err != nil {
		return err
	}
	defer wf.Store().Close()

	full, _ := cmd.Flags().GetBool("full-arrays")
	fields, err := wf.Schema(cmd.Context(), args[0], full)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(os.Stdout, fields)
	}
	if tree, _ := cmd.Flags().GetBool("tree"); tree {
		schema.BuildTree(fields).Print(os.Stdout)
		return nil
	}
	for _, p := range schema.SortedPaths(fields) {
		f := fields[p]
		if f.SampleValue != nil {
			fmt.Printf("%s  %s  %v\n", p, f.Type, f.SampleValue)
			continue
		}
		fmt.Printf("%s  %s\n", p, f.Type)
	}
	fmt.Printf("\n%d path(s)\n", len(fields))
	return nil
}
