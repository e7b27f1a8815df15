// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/template-converter/internal/rewrite"
	"github.com/pdiddy/template-converter/pkg/types"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDiagnostics(w io.Writer, ds types.Diagnostics) {
	for _, d := range ds {
		fmt.Fprintf(w, "  %s\n", d)
	}
}

func printResult(w io.Writer, res rewrite.Result) {
	fmt.Fprintf(w, "  %d field(s) converted\n", len(res.Conversions))
	if un := res.Unresolved(); len(un) > 0 {
		fmt.Fprintf(w, "  unresolved: %s\n", strings.Join(un, ", "))
	}
	printDiagnostics(w, res.Diagnostics)
}
