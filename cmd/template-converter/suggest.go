// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/template-converter/internal/suggest"
	"github.com/pdiddy/template-converter/internal/workflow"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest <template>",
	Short: "Ask an AI model for destinations of unresolved fields",
	Long: `Suggest analyzes a template and sends its unresolved fields, the
conversion diagnostics, accepted mappings and (with --destination) the
destination paths to the configured model. With --record, suggestions at
or above --min-confidence are stored as ai-suggested evidence.

The API key is read from .secrets/openai-api-key or OPENAI_API_KEY.`,
	Args: cobra.ExactArgs(1),
	RunE: runSuggest,
}

func init() {
	suggestCmd.Flags().String("destination", "", "destination-dialect instance restricting the answers")
	suggestCmd.Flags().Bool("record", false, "record confident suggestions in the mapping store")
	suggestCmd.Flags().Float64("min-confidence", 0.7, "minimum confidence for --record")
	suggestCmd.Flags().String("project", "", "project identifier recorded with the evidence")
	suggestCmd.Flags().String("model", "", "model identifier (default from config)")
	suggestCmd.Flags().Bool("json", false, "output suggestions as JSON")

	rootCmd.AddCommand(suggestCmd)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	req := workflow.SuggestRequest{Template: args[0]}
	req.Destination, _ = cmd.Flags().GetString("destination")
	req.Record, _ = cmd.Flags().GetBool("record")
	req.MinConfidence, _ = cmd.Flags().GetFloat64("min-confidence")
	req.Project, _ = cmd.Flags().GetString("project")
	asJSON, _ := cmd.Flags().GetBool("json")

	wf, err := openWorkflow()
	if err != nil {
		return err
	}
	defer wf.Store().Close()

	cfg := wf.Config().AI
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		cfg.Model = model
	}
	backend, err := suggest.NewOpenAI(cfg)
	if err != nil {
		return err
	}

	resp, err := wf.Suggest(cmd.Context(), suggest.New(backend, cfg), req, os.Stdout)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(os.Stdout, resp)
	}
	for _, s := range resp.Suggestions {
		fmt.Printf("%s -> %s  %.2f\n", s.SourceField, s.DestinationField, s.Confidence)
		if s.Reason != "" {
			fmt.Printf("  %s\n", s.Reason)
		}
	}
	if resp.Reasoning != "" {
		fmt.Printf("\n%s\n", resp.Reasoning)
	}
	return nil
}
