// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rankCmd = &cobra.Command{
	Use:   "rank <template>",
	Short: "Rank destination candidates for unresolved template fields",
	Long: `Rank analyzes a template and, for each field no rule or stored mapping
resolves, lists destination paths with similar names ranked by loop
nesting, parent context and agreement with already mapped siblings.`,
	Args: cobra.ExactArgs(1),
	RunE: runRank,
}

func init() {
	rankCmd.Flags().String("destination", "", "destination-dialect instance (file or URL)")
	rankCmd.Flags().Int("limit", 3, "candidates shown per field (0 for all)")
	rankCmd.Flags().Bool("json", false, "output rankings as JSON")

	rootCmd.AddCommand(rankCmd)
}

func runRank(cmd *cobra.Command, args []string) error {
	dst, _ := cmd.Flags().GetString("destination")
	if dst == "" {
		return fmt.Errorf("provide --destination")
	}
	limit, _ := cmd.Flags().GetInt("limit")

	wf, err := openWorkflow()
	if err != nil {
		return err
	}
	defer wf.Store().Close()

	rankings, err := wf.Rank(cmd.Context(), args[0], dst, limit)
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(os.Stdout, rankings)
	}
	if len(rankings) == 0 {
		fmt.Println("No unresolved fields with candidates.")
		return nil
	}
	for _, r := range rankings {
		fmt.Println(r.Field)
		for _, c := range r.Candidates {
			fmt.Printf("  %s  %.2f %s\n", c.DestinationPath, c.Confidence, c.Level)
		}
	}
	return nil
}
