// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match <source> <destination>",
	Short: "Match fields of two schema instances by name and structure",
	Long: `Match indexes both instances and proposes one destination path per
source path, scored on name similarity, type, depth and parent context.
Array paths are matched separately.`,
	Args: cobra.ExactArgs(2),
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().Float64("min-confidence", 0, "minimum confidence (default from config)")
	matchCmd.Flags().Bool("json", false, "output matches as JSON")

	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	wf, err := openWorkflow()
	if err != nil {
		return err
	}
	defer wf.Store().Close()

	minConf, _ := cmd.Flags().GetFloat64("min-confidence")
	results, err := wf.Match(cmd.Context(), args[0], args[1], minConf)
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(os.Stdout, results)
	}
	for _, r := range results {
		fmt.Printf("%s -> %s  %.2f %s (%s)\n", r.SourcePath, r.DestinationPath, r.Confidence, r.Level, r.MatchType)
	}
	fmt.Printf("\n%d match(es)\n", len(results))
	return nil
}
