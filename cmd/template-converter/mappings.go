// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/template-converter/internal/mappingstore"
	"github.com/pdiddy/template-converter/internal/review"
	"github.com/pdiddy/template-converter/pkg/types"
)

var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "Inspect and edit the mapping store",
	Long: `Mappings manages the store of learned field mappings: list, show, add,
delete, stats, export and import, plus an interactive review of ambiguous
mappings.`,
}

var mappingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored field and array mappings",
	RunE:  runMappingsList,
}

var mappingsShowCmd = &cobra.Command{
	Use:   "show <source>",
	Short: "Show one stored mapping with its evidence",
	Args:  cobra.ExactArgs(1),
	RunE:  runMappingsShow,
}

var mappingsAddCmd = &cobra.Command{
	Use:   "add <source> <destination>",
	Short: "Record a manual mapping",
	Long: `Add records a manual mapping. Manual mappings are pinned at the
maximum score and learned evidence never replaces them. With --array the
arguments name a source loop collection and a destination array.`,
	Args: cobra.ExactArgs(2),
	RunE: runMappingsAdd,
}

var mappingsDeleteCmd = &cobra.Command{
	Use:   "delete <source>",
	Short: "Delete a stored mapping",
	Args:  cobra.ExactArgs(1),
	RunE:  runMappingsDelete,
}

var mappingsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the mapping store",
	RunE:  runMappingsStats,
}

var mappingsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the mapping store as YAML or JSON",
	RunE:  runMappingsExport,
}

var mappingsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import mappings from a YAML or JSON export",
	Long: `Import merges an export into the store: existing mappings are kept
unless the imported one has a higher score. --replace clears the store
first.`,
	Args: cobra.ExactArgs(1),
	RunE: runMappingsImport,
}

var mappingsReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Resolve ambiguous mappings interactively",
	Long: `Review opens a terminal UI listing every learned mapping with
competing destinations. Choose a destination and accept it to record it as
a manual mapping, or copy its tag to the clipboard.`,
	RunE: runMappingsReview,
}

func init() {
	mappingsListCmd.Flags().Int("min-score", 0, "only list mappings with at least this score")
	mappingsListCmd.Flags().Bool("arrays", false, "list array mappings instead of field mappings")
	mappingsListCmd.Flags().Bool("json", false, "output mappings as JSON")

	mappingsShowCmd.Flags().Bool("array", false, "show an array mapping")
	mappingsAddCmd.Flags().Bool("array", false, "add an array mapping")
	mappingsDeleteCmd.Flags().Bool("array", false, "delete an array mapping")

	mappingsStatsCmd.Flags().Bool("json", false, "output stats as JSON")

	mappingsExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	mappingsExportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")

	mappingsImportCmd.Flags().String("format", "", "import format: yaml or json (default from extension)")
	mappingsImportCmd.Flags().Bool("replace", false, "clear the store before importing")

	mappingsCmd.AddCommand(mappingsListCmd, mappingsShowCmd, mappingsAddCmd, mappingsDeleteCmd,
		mappingsStatsCmd, mappingsExportCmd, mappingsImportCmd, mappingsReviewCmd)
	rootCmd.AddCommand(mappingsCmd)
}

func runMappingsList(cmd *cobra.Command, args []string) error {
	minScore, _ := cmd.Flags().GetInt("min-score")
	arrays, _ := cmd.Flags().GetBool("arrays")
	asJSON, _ := cmd.Flags().GetBool("json")

	wf, err := openWorkflow()
	if err != nil {
		return err
	}
	defer wf.Store().Close()
	ctx := cmd.Context()

	if arrays {
		ams, err := wf.Store().ArrayMappings(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(os.Stdout, ams)
		}
		for _, am := range ams {
			fmt.Printf("%s -> %s  score %d %s (%d fields)\n",
				am.SourceArray, am.DestinationArray, am.Score, am.Source, len(am.FieldMappings))
		}
		fmt.Printf("\n%d array mapping(s)\n", len(ams))
		return nil
	}

	ms, err := wf.Store().Accepted(ctx, minScore)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(os.Stdout, ms)
	}
	for _, m := range ms {
		fmt.Printf("%s -> %s  score %d %s", m.SourceField, m.DestinationField, m.Score, m.Level())
		if len(m.Alternatives) > 0 {
			fmt.Printf("  (%d alternatives)", len(m.Alternatives))
		}
		fmt.Println()
	}
	fmt.Printf("\n%d mapping(s)\n", len(ms))
	return nil
}

func runMappingsShow(cmd *cobra.Command, args []string) error {
	array, _ := cmd.Flags().GetBool("array")

	wf, err := openWorkflow()
	if err != nil {
		return err
	}
	defer wf.Store().Close()

	var v any
	if array {
		v, err = wf.Store().GetArray(cmd.Context(), args[0])
	} else {
		v, err = wf.Store().Get(cmd.Context(), args[0])
	}
	if mappingstore.IsNotFound(err) {
		return fmt.Errorf("no mapping for %s", args[0])
	}
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}

func runMappingsAdd(cmd *cobra.Command, args []string) error {
	array, _ := cmd.Flags().GetBool("array")

	wf, err := openWorkflow()
	if err != nil {
		return err
	}
	defer wf.Store().Close()
	ctx := cmd.Context()

	if array {
		am, err := wf.Store().ObserveArray(ctx, mappingstore.ArrayObservation{
			SourceArray:      args[0],
			DestinationArray: args[1],
			Kind:             types.SourceManual,
		})
		if err != nil {
			return err
		}
		fmt.Printf("added: %s -> %s (manual)\n", am.SourceArray, am.DestinationArray)
		return nil
	}

	m, err := wf.Store().Observe(ctx, mappingstore.Observation{
		Source:      args[0],
		Destination: strings.Trim(args[1], "{}"),
		Kind:        types.SourceManual,
	})
	if err != nil {
		return err
	}
	fmt.Printf("added: %s -> %s (manual)\n", m.SourceField, m.DestinationField)
	return nil
}

func runMappingsDelete(cmd *cobra.Command, args []string) error {
	array, _ := cmd.Flags().GetBool("array")

	wf, err := openWorkflow()
	if err != nil {
		return err
	}
	defer wf.Store().Close()

	if array {
		err = wf.Store().DeleteArray(cmd.Context(), args[0])
	} else {
		err = wf.Store().Delete(cmd.Context(), args[0])
	}
	if mappingstore.IsNotFound(err) {
		return fmt.Errorf("no mapping for %s", args[0])
	}
	if err != nil {
		return err
	}
	fmt.Printf("deleted: %s\n", args[0])
	return nil
}

func runMappingsStats(cmd *cobra.Command, args []string) error {
	wf, err := openWorkflow()
	if err != nil {
		return err
	}
	defer wf.Store().Close()

	st, err := wf.Store().Stats(cmd.Context())
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(os.Stdout, st)
	}
	fmt.Printf("Store: %s\n", wf.Store().Path())
	fmt.Printf("  mappings:          %d\n", st.Total)
	fmt.Printf("  high confidence:   %d\n", st.HighConfidence)
	fmt.Printf("  very high:         %d\n", st.VeryHighConfidence)
	fmt.Printf("  ambiguous:         %d\n", st.Ambiguous)
	fmt.Printf("  array mappings:    %d\n", st.ArrayMappings)
	fmt.Printf("  projects analyzed: %d\n", st.ProjectsAnalyzed)
	if !st.LastUpdated.IsZero() {
		fmt.Printf("  last updated:      %s\n", st.LastUpdated.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runMappingsExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	wf, err := openWorkflow()
	if err != nil {
		return err
	}
	defer wf.Store().Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}
	if err := wf.Store().Export(cmd.Context(), w, mappingstore.Format(format)); err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(os.Stderr, "exported: %s\n", output)
	}
	return nil
}

func runMappingsImport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	replace, _ := cmd.Flags().GetBool("replace")
	if format == "" {
		format = string(mappingstore.FormatYAML)
		if strings.EqualFold(filepath.Ext(args[0]), ".json") {
			format = string(mappingstore.FormatJSON)
		}
	}
	mode := mappingstore.ImportMerge
	if replace {
		mode = mappingstore.ImportReplace
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening %s: %w", args[0], err)
	}
	defer f.Close()

	wf, err := openWorkflow()
	if err != nil {
		return err
	}
	defer wf.Store().Close()

	sum, err := wf.Store().Import(cmd.Context(), f, mappingstore.Format(format), mode)
	if err != nil {
		return err
	}
	fmt.Printf("Import summary: %d imported, %d skipped, %d arrays imported, %d arrays skipped (total: %d)\n",
		sum.Imported, sum.Skipped, sum.ArrayImported, sum.ArraySkipped, sum.Total())
	return nil
}

func runMappingsReview(cmd *cobra.Command, args []string) error {
	wf, err := openWorkflow()
	if err != nil {
		return err
	}
	defer wf.Store().Close()

	sum, err := review.Run(cmd.Context(), wf.Store())
	if err != nil {
		return err
	}
	fmt.Printf("Review summary: %d accepted, %d pending (total: %d)\n", sum.Accepted, sum.Pending, sum.Total())
	return nil
}
