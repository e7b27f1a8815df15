// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/template-converter/internal/validate"
)

var convertCmd = &cobra.Command{
	Use:   "convert <input.docx>...",
	Short: "Convert templates from merge fields to brace tags",
	Long: `Convert rewrites each template's loops, conditionals and fields into
brace tags using the rule tables, accepted stored mappings and --override
pairs. Output goes to <name>_converted.docx next to the input, into
--out-dir, or to --output for a single input. Failures in a batch are
reported and the remaining inputs are still converted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringP("output", "o", "", "output path (single input only)")
	convertCmd.Flags().String("out-dir", "", "directory for converted files")
	convertCmd.Flags().StringToString("override", nil, "per-run mapping source=destination (repeatable)")
	convertCmd.Flags().Bool("validate", false, "validate the converted file")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	outDir, _ := cmd.Flags().GetString("out-dir")
	overrides, _ := cmd.Flags().GetStringToString("override")
	check, _ := cmd.Flags().GetBool("validate")
	if output != "" && len(args) > 1 {
		return fmt.Errorf("--output takes a single input; use --out-dir for batches")
	}

	wf, err := openWorkflow()
	if err != nil {
		return err
	}
	defer wf.Store().Close()
	ctx := cmd.Context()

	if len(args) > 1 || outDir != "" {
		res, err := wf.ConvertBatch(ctx, args, outDir, overrides, os.Stdout)
		if err != nil {
			return err
		}
		return res.Err()
	}

	res, out, err := wf.Convert(ctx, args[0], output, overrides)
	if err != nil {
		return err
	}
	fmt.Printf("converted: %s -> %s\n", args[0], out)
	printResult(os.Stdout, res)

	if !check {
		return nil
	}
	vr, err := validate.File(out)
	if err != nil {
		return err
	}
	validate.Report(os.Stdout, vr)
	if !vr.Valid() {
		return fmt.Errorf("%s failed validation", out)
	}
	return nil
}
