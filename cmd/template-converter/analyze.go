// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/template-converter/internal/workflow"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <template>...",
	Short: "Classify template fields and preview the conversion",
	Long: `Analyze lists the merge fields of each template by kind (simple,
loop, conditional, end marker), the loops and the fields inside them, and
runs the conversion in memory to show which fields would stay unresolved.
Nothing is written.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringToString("override", nil, "per-run mapping source=destination (repeatable)")
	analyzeCmd.Flags().Bool("json", false, "output the analysis as JSON")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	overrides, _ := cmd.Flags().GetStringToString("override")
	asJSON, _ := cmd.Flags().GetBool("json")

	wf, err := openWorkflow()
	if err != nil {
		return err
	}
	defer wf.Store().Close()

	var all []workflow.Analysis
	for _, path := range args {
		a, err := wf.Analyze(cmd.Context(), path, overrides)
		if err != nil {
			return err
		}
		if asJSON {
			all = append(all, a)
			continue
		}
		printAnalysis(a)
	}
	if asJSON {
		return printJSON(os.Stdout, all)
	}
	return nil
}

func printAnalysis(a workflow.Analysis) {
	st := a.Structure
	fmt.Printf("%s\n", a.File)
	fmt.Printf("  %d simple, %d loops, %d conditionals, %d end markers\n",
		len(st.Simple), len(st.Loops), len(st.Conditionals), len(st.EndMarkers))
	for _, l := range a.Loops {
		fmt.Printf("  loop %s(%s): %s\n", l.Array, l.Var, strings.Join(l.Fields, ", "))
	}
	printResult(os.Stdout, a.Result)
}
