// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/template-converter/internal/workflow"
)

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Learn field mappings from a pair of schema instances",
	Long: `Learn compares two instances holding the same record, one in each
dialect, and pairs up paths whose values agree. When a template is given,
its loops are paired with destination arrays. Every correspondence is
recorded in the mapping store; repeated evidence raises its score.`,
	RunE: runLearn,
}

func init() {
	learnCmd.Flags().String("source", "", "source-dialect instance (file or URL)")
	learnCmd.Flags().String("destination", "", "destination-dialect instance (file or URL)")
	learnCmd.Flags().String("template", "", "optional .docx template whose loops are learned")
	learnCmd.Flags().String("project", "", "project identifier recorded with the evidence")
	learnCmd.Flags().Bool("include-low", false, "also record low-confidence correspondences")

	rootCmd.AddCommand(learnCmd)
}

func runLearn(cmd *cobra.Command, args []string) error {
	req := workflow.LearnRequest{}
	req.Source, _ = cmd.Flags().GetString("source")
	req.Destination, _ = cmd.Flags().GetString("destination")
	req.Template, _ = cmd.Flags().GetString("template")
	req.Project, _ = cmd.Flags().GetString("project")
	req.IncludeLow, _ = cmd.Flags().GetBool("include-low")
	if req.Source == "" || req.Destination == "" {
		return fmt.Errorf("provide --source and --destination")
	}

	wf, err := openWorkflow()
	if err != nil {
		return err
	}
	defer wf.Store().Close()

	_, err = wf.Learn(cmd.Context(), req, os.Stdout)
	return err
}
