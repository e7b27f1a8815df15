// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rewrite

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/pdiddy/template-converter/internal/docx"
	"github.com/pdiddy/template-converter/pkg/types"
)

// ConvertFile converts the .docx at in and writes the result to out. A
// malformed archive or missing markup part fails before anything is
// written. Diagnostics, including errors, do not stop the write: the
// output is produced for inspection.
func (e *Engine) ConvertFile(in, out string, arrays []types.ArrayMapping) (Result, error) {
	pkg, err := docx.Open(in)
	if err != nil {
		return Result{}, err
	}
	res := e.Convert(pkg.Markup(), arrays)
	if err := pkg.WithMarkup(res.Markup).Save(out); err != nil {
		return res, fmt.Errorf("writing %s: %w", out, err)
	}
	return res, nil
}

// OutputPath returns the default output path for in: the same directory
// when outDir is empty, with "_converted" before the extension.
func OutputPath(in, outDir string) string {
	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in)) + "_converted.docx"
	if outDir == "" {
		outDir = filepath.Dir(in)
	}
	return filepath.Join(outDir, base)
}

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Flagged   int
	Failed    int
}

// Total returns the number of documents processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Flagged + r.Failed
}

// HasFailures reports whether any document failed or was flagged.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0 || r.Flagged > 0
}

// Summary is the one-line count of every outcome.
func (r BatchResult) Summary() string {
	return fmt.Sprintf("Batch summary: %d converted, %d flagged, %d failed (total: %d)",
		r.Converted, r.Flagged, r.Failed, r.Total())
}

// Err returns nil when every document converted cleanly.
func (r BatchResult) Err() error {
	if !r.HasFailures() {
		return nil
	}
	return fmt.Errorf("%d of %d template(s) failed or were flagged (%d failed, %d flagged)",
		r.Failed+r.Flagged, r.Total(), r.Failed, r.Flagged)
}

// ConvertBatch converts each input into outDir, printing one status line
// per document to w. A document whose result carries error diagnostics is
// written but counted as flagged.
func (e *Engine) ConvertBatch(inputs []string, outDir string, arrays []types.ArrayMapping, w io.Writer) BatchResult {
	var result BatchResult
	for _, in := range inputs {
		out := OutputPath(in, outDir)
		res, err := e.ConvertFile(in, out, arrays)
		name := filepath.Base(in)
		switch {
		case err != nil:
			fmt.Fprintf(w, "failed:  %s (%v)\n", name, err)
			result.Failed++
		case res.Diagnostics.HasErrors():
			fmt.Fprintf(w, "flagged: %s -> %s (%d errors, %d warnings)\n",
				name, out, len(res.Diagnostics.Errors()), len(res.Diagnostics.Warnings()))
			result.Flagged++
		default:
			fmt.Fprintf(w, "converted: %s -> %s (%d fields, %d warnings)\n",
				name, out, len(res.Conversions), len(res.Diagnostics.Warnings()))
			result.Converted++
		}
	}
	fmt.Fprintf(w, "\n%s\n", result.Summary())
	return result
}
