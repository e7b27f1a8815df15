// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package validate checks converted templates for brace tag syntax errors
// before they are uploaded. Checks run on the visible text of the markup
// part, except the unconverted-field and residual-marker checks, which
// also look inside field instructions.
package validate

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/pdiddy/template-converter/internal/docx"
	"github.com/pdiddy/template-converter/internal/rewrite"
	"github.com/pdiddy/template-converter/pkg/types"
)

// Diagnostic codes produced by the validator.
const (
	CodeUnbalancedBraces   = "unbalanced-braces"
	CodeIncompleteTag      = "incomplete-tag"
	CodeDoubledBraces      = "doubled-braces"
	CodeEmptyTag           = "empty-tag"
	CodeUnclosedSection    = "unclosed-section"
	CodeStrayClose         = "stray-close"
	CodeMismatchedSection  = "mismatched-section"
	CodeSpaceInTag         = "space-in-tag"
	CodeInvalidCharacter   = "invalid-character"
	CodeInvalidPath        = "invalid-path"
	CodeDeepPath           = "deep-path"
	CodeUnconvertedField   = "unconverted-mergefield"
	CodePlaceholderMarkers = "placeholder-markers"
	CodeResidualMarker     = "residual-marker"
	CodeTagCount           = "tag-count"
)

// MaxPathDepth is the number of dots past which a field path draws a
// warning.
const MaxPathDepth = 5

// maxExamples caps the residual-marker errors reported per marker kind.
const maxExamples = 5

var (
	tagRe     = regexp.MustCompile(`\{([^{}]*)\}`)
	doubledRe = regexp.MustCompile(`\{\{+|\}\}+`)
	badChars  = []string{"[", "]", "<", ">", `"`, "'"}
)

// Result is the validation outcome for one document.
type Result struct {
	File        string            `json:"file" yaml:"file"`
	Diagnostics types.Diagnostics `json:"diagnostics" yaml:"diagnostics"`
}

// Valid reports whether the document has no error diagnostics.
func (r Result) Valid() bool {
	return !r.Diagnostics.HasErrors()
}

// File validates the .docx at path. A malformed archive or a missing
// markup part is returned as an error.
func File(path string) (Result, error) {
	pkg, err := docx.Open(path)
	if err != nil {
		return Result{File: path}, err
	}
	return Result{File: path, Diagnostics: Markup(pkg.Markup())}, nil
}

// Markup validates WordprocessingML markup.
func Markup(markup string) types.Diagnostics {
	text := rewrite.VisibleText(markup)

	var ds types.Diagnostics
	checkBraces(text, &ds)
	tags := tagRe.FindAllStringSubmatch(text, -1)
	checkSections(tags, &ds)
	checkFields(tags, &ds)
	checkLeftovers(markup, text, &ds)
	ds.Infof(CodeTagCount, "", "%d tag(s) found", len(tags))
	return ds
}

// checkBraces reports unequal brace counts, braces that are not part of a
// complete tag, and doubled braces left over from a double-brace dialect.
func checkBraces(text string, ds *types.Diagnostics) {
	opens, closes := strings.Count(text, "{"), strings.Count(text, "}")
	if opens != closes {
		ds.Errorf(CodeUnbalancedBraces, "", "%d opening '{' but %d closing '}'", opens, closes)
	}

	rest := tagRe.ReplaceAllString(text, "")
	if n := strings.Count(rest, "{"); n > 0 {
		ds.Errorf(CodeIncompleteTag, "", "found %d incomplete opening '{'", n)
	}
	if n := strings.Count(rest, "}"); n > 0 {
		ds.Errorf(CodeIncompleteTag, "", "found %d incomplete closing '}'", n)
	}

	if doubledRe.MatchString(text) {
		ds.Errorf(CodeDoubledBraces, "", "found doubled braces; tags use single braces")
	}
}

// checkSections pairs section open and close tags with a stack. A close
// tag naming a section deeper in the stack closes everything above it,
// each reported as mismatched.
func checkSections(tags [][]string, ds *types.Diagnostics) {
	type open struct {
		name  string
		sigil byte
	}
	var stack []open

	for _, m := range tags {
		content := strings.TrimSpace(m[1])
		if content == "" {
			continue
		}
		switch content[0] {
		case '#', '^':
			stack = append(stack, open{name: strings.TrimSpace(content[1:]), sigil: content[0]})
		case '/':
			name := strings.TrimSpace(content[1:])
			idx := -1
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].name == name {
					idx = i
					break
				}
			}
			if idx < 0 {
				ds.Errorf(CodeStrayClose, name, "closing tag {/%s} without an opening tag", name)
				continue
			}
			for i := len(stack) - 1; i > idx; i-- {
				ds.Errorf(CodeMismatchedSection, stack[i].name,
					"{%c%s} closed by {/%s}", stack[i].sigil, stack[i].name, name)
			}
			stack = stack[:idx]
		}
	}

	for i := len(stack) - 1; i >= 0; i-- {
		ds.Errorf(CodeUnclosedSection, stack[i].name, "{%c%s} is never closed", stack[i].sigil, stack[i].name)
	}
}

// checkFields looks at every non-section tag: empty tags, spaces and
// suspicious characters in names, and malformed paths.
func checkFields(tags [][]string, ds *types.Diagnostics) {
	for _, m := range tags {
		content := strings.TrimSpace(m[1])
		if content == "" {
			ds.Errorf(CodeEmptyTag, "", "found empty tag {}")
			continue
		}
		if strings.ContainsAny(content[:1], "#^/") {
			continue
		}
		name := strings.TrimLeft(content, "~@")

		if strings.Contains(name, " ") {
			ds.Warnf(CodeSpaceInTag, name, "field name contains spaces")
		}
		for _, c := range badChars {
			if strings.Contains(name, c) {
				ds.Warnf(CodeInvalidCharacter, name, "field contains potentially invalid character %q", c)
			}
		}

		if name == "." {
			continue
		}
		if strings.Contains(name, "..") {
			ds.Errorf(CodeInvalidPath, name, "consecutive dots in field path")
		}
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
			ds.Errorf(CodeInvalidPath, name, "leading or trailing dot in field path")
		}
		if depth := strings.Count(name, "."); depth > MaxPathDepth {
			ds.Warnf(CodeDeepPath, name, "very deep field path (%d levels); verify it is correct", depth)
		}
	}
}

// checkLeftovers reports source-dialect artifacts: MERGEFIELD
// instructions, « » placeholders and control markers.
func checkLeftovers(markup, text string, ds *types.Diagnostics) {
	if n := strings.Count(markup, "MERGEFIELD"); n > 0 {
		ds.Errorf(CodeUnconvertedField, "", "found %d unconverted MERGEFIELD reference(s); conversion incomplete", n)
	}
	if strings.ContainsAny(text, "«»") {
		ds.Warnf(CodePlaceholderMarkers, "", "found field placeholder markers (« »); they should be removed")
	}

	byKind := make(map[string][]string)
	for _, m := range rewrite.ResidualMarkers(markup) {
		k := markerKind(m)
		byKind[k] = append(byKind[k], m)
	}
	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		found := byKind[k]
		for _, m := range found[:min(len(found), maxExamples)] {
			*ds = append(*ds, types.Diagnostic{
				Severity: types.SeverityError,
				Code:     CodeResidualMarker,
				Marker:   m,
				Message:  "unconverted " + k + " marker; the template needs reconversion",
			})
		}
		if len(found) > maxExamples {
			ds.Errorf(CodeResidualMarker, "", "... and %d more %s marker(s)", len(found)-maxExamples, k)
		}
	}
}

// markerKind names a control marker by its keyword: ":each(x)" is "each".
func markerKind(m string) string {
	k := strings.TrimPrefix(m, ":")
	if i := strings.IndexByte(k, '('); i >= 0 {
		k = k[:i]
	}
	return k
}

// Report writes a human-readable summary of a result to w.
func Report(w io.Writer, r Result) {
	errs, warns := r.Diagnostics.Errors(), r.Diagnostics.Warnings()
	fmt.Fprintf(w, "Validation report: %s\n", r.File)
	if len(errs) == 0 && len(warns) == 0 {
		fmt.Fprintln(w, "  passed")
		return
	}
	if len(errs) > 0 {
		fmt.Fprintf(w, "  failed with %d error(s):\n", len(errs))
		for _, d := range errs {
			fmt.Fprintf(w, "    - %s\n", describe(d))
		}
	}
	if len(warns) > 0 {
		fmt.Fprintf(w, "  %d warning(s):\n", len(warns))
		for _, d := range warns {
			fmt.Fprintf(w, "    - %s\n", describe(d))
		}
	}
}

func describe(d types.Diagnostic) string {
	switch {
	case d.Marker != "":
		return fmt.Sprintf("%s: '%s'", d.Message, d.Marker)
	case d.Field != "":
		return fmt.Sprintf("%s: %s", d.Message, d.Field)
	}
	return d.Message
}
