// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/template-converter/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate <converted.docx>...",
	Short: "Check converted templates for brace-tag errors",
	Long: `Validate checks brace balance, section open/close nesting, tag path
syntax and leftover merge-field markers in each converted template.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	var results []validate.Result
	failed := 0
	for _, path := range args {
		r, err := validate.File(path)
		if err != nil {
			return err
		}
		if !r.Valid() {
			failed++
		}
		if asJSON {
			results = append(results, r)
			continue
		}
		validate.Report(os.Stdout, r)
	}
	if asJSON {
		if err := printJSON(os.Stdout, results); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed validation", failed, len(args))
	}
	return nil
}
