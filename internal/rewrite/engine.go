// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rewrite converts WordprocessingML markup from the merge-field
// dialect to the brace tag dialect. Conversion runs three ordered passes
// over the markup text: loop structures, fields, then residual-marker
// cleanup. Every run is checked for content loss afterwards.
package rewrite

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pdiddy/template-converter/internal/fields"
	"github.com/pdiddy/template-converter/pkg/types"
)

// Strategy names the pass or field encoding that produced a conversion.
type Strategy string

const (
	StrategyLoop     Strategy = "loop"
	StrategyComplex  Strategy = "complex"
	StrategySimple   Strategy = "simple"
	StrategyInstr    Strategy = "instr"
	StrategySplitRun Strategy = "split-run"
)

// Conversion records one rewritten field.
type Conversion struct {
	Field    string   `json:"field" yaml:"field"`
	Tag      string   `json:"tag" yaml:"tag"`
	Strategy Strategy `json:"strategy" yaml:"strategy"`
}

func (c Conversion) String() string {
	return c.Field + " -> " + c.Tag
}

// Result is the outcome of converting one markup part.
type Result struct {
	Markup      string            `json:"-" yaml:"-"`
	Diagnostics types.Diagnostics `json:"diagnostics" yaml:"diagnostics"`
	Before      Counts            `json:"before" yaml:"before"`
	After       Counts            `json:"after" yaml:"after"`
	Conversions []Conversion      `json:"conversions" yaml:"conversions"`
}

// Unresolved returns the distinct field names no rule matched.
func (r Result) Unresolved() []string {
	var out []string
	for _, d := range r.Diagnostics {
		if d.Code == CodeUnresolved {
			out = append(out, d.Field)
		}
	}
	return out
}

// Diagnostic codes produced by the engine.
const (
	CodeUnresolved     = "unresolved-field"
	CodeCrossesBlock   = "field-crosses-block"
	CodeUnbalancedLoop = "unbalanced-loop"
	CodeUnbalancedCond = "unbalanced-conditional"
	CodeUnclosedBlock  = "unclosed-block"
	CodeLoopBalance    = "loop-balance"
	CodeResidualMarker = "residual-marker"
	CodeParagraphLoss  = "paragraph-loss"
	CodeTextLoss       = "text-loss"
	CodeTableLoss      = "table-loss"
)

// Engine converts markup using a fixed Table. An Engine holds no state
// between calls.
type Engine struct {
	table *Table
	cfg   types.RewriteConfig
}

// NewEngine returns an engine over table. Zero thresholds in cfg take the
// defaults.
func NewEngine(table *Table, cfg types.RewriteConfig) *Engine {
	def := types.DefaultConfig().Rewrite
	if cfg.SplitRunWindow <= 0 {
		cfg.SplitRunWindow = def.SplitRunWindow
	}
	if cfg.ParagraphLoss <= 0 {
		cfg.ParagraphLoss = def.ParagraphLoss
	}
	if cfg.TextLoss <= 0 {
		cfg.TextLoss = def.TextLoss
	}
	return &Engine{table: table, cfg: cfg}
}

// Table returns the lookup table the engine resolves against.
func (e *Engine) Table() *Table {
	return e.table
}

// run carries per-call state through the passes.
type run struct {
	res      Result
	resolver *Resolver
	warned   map[string]bool
}

func (r *run) unresolved(name, marker string) {
	if r.warned[name] {
		return
	}
	r.warned[name] = true
	r.res.Diagnostics = append(r.res.Diagnostics, types.Diagnostic{
		Severity: types.SeverityWarning,
		Code:     CodeUnresolved,
		Field:    name,
		Marker:   truncate(marker, 200),
		Message:  "no mapping found; field left in place",
	})
}

func (r *run) converted(name, tag string, s Strategy) {
	r.res.Conversions = append(r.res.Conversions, Conversion{Field: name, Tag: tag, Strategy: s})
}

// Convert rewrites markup. Array mappings drive the loop pass and the
// loop balance check; pass nil to rely on the rule tables alone. The
// result always carries the rewritten markup, even when it has error
// diagnostics.
func (e *Engine) Convert(markup string, arrays []types.ArrayMapping) Result {
	r := &run{
		resolver: e.table.NewResolver(arrays...),
		warned:   make(map[string]bool),
	}
	r.res.Before = CountContent(markup)
	r.res.Diagnostics = append(r.res.Diagnostics, CheckStructure(markup)...)

	out := markup
	if len(arrays) > 0 {
		out = e.loopPass(out, arrays, r)
	}
	out = e.fieldPass(out, r)

	for _, open := range r.resolver.Unclosed() {
		r.res.Diagnostics.Warnf(CodeUnclosedBlock, open, "block opened but never closed in the converted output")
	}

	if !e.cfg.SkipCleanup {
		out = Cleanup(out)
	}
	for _, m := range ResidualMarkers(out) {
		r.res.Diagnostics = append(r.res.Diagnostics, types.Diagnostic{
			Severity: types.SeverityError,
			Code:     CodeResidualMarker,
			Marker:   m,
			Message:  "source control marker remains after cleanup",
		})
	}
	r.res.Diagnostics = append(r.res.Diagnostics, CheckLoopBalance(out, arrays)...)

	r.res.After = CountContent(out)
	r.res.Diagnostics = append(r.res.Diagnostics,
		CheckContent(r.res.Before, r.res.After, e.cfg.ParagraphLoss, e.cfg.TextLoss)...)
	r.res.Markup = out
	return r.res
}

// loopPass rewrites loop start and end markers for each array mapping
// inside both the w:instr attribute of fldSimple elements and instrText
// runs. The marker is replaced in place by the destination tag; the field
// pass then recognizes the tag and collapses the field around it.
func (e *Engine) loopPass(markup string, arrays []types.ArrayMapping, r *run) string {
	for _, am := range arrays {
		name, path := arrayName(am.SourceArray), arrayName(am.DestinationArray)
		if name == "" || path == "" {
			continue
		}
		q := regexp.QuoteMeta(name)
		rewrites := []struct {
			re  *regexp.Regexp
			tag string
		}{
			{regexp.MustCompile(`(?i)(<w:fldSimple\b[^>]*\bw:instr="[^"]*MERGEFIELD\s+)` + q + `:each\([^)]*\)`), "{#" + path + "}"},
			{regexp.MustCompile(`(?i)(<w:instrText\b[^>]*>[^<]*MERGEFIELD\s+)` + q + `:each\([^)]*\)`), "{#" + path + "}"},
			{regexp.MustCompile(`(?i)(<w:fldSimple\b[^>]*\bw:instr="[^"]*MERGEFIELD\s+)` + q + `:endEach`), "{/" + path + "}"},
			{regexp.MustCompile(`(?i)(<w:instrText\b[^>]*>[^<]*MERGEFIELD\s+)` + q + `:endEach`), "{/" + path + "}"},
		}
		for _, rw := range rewrites {
			escaped := escapeAttr(rw.tag)
			markup = rw.re.ReplaceAllStringFunc(markup, func(match string) string {
				prefix := rw.re.FindStringSubmatch(match)[1]
				r.converted(strings.TrimPrefix(match, prefix), rw.tag, StrategyLoop)
				return prefix + escaped
			})
		}
	}
	return markup
}

// fieldPass resolves every scanned field in document order. Complete
// begin..end structures are replaced as a unit, fldSimple elements become
// a plain run, and bare instrText runs become text. Fields crossing a
// paragraph or table boundary are left alone. Instructions typed into
// display text are resolved in the same walk, so block markers in either
// encoding share one block stack.
func (e *Engine) fieldPass(markup string, r *run) string {
	spans := fields.Scan(markup)

	var edits []edit
	next := 0
	resolveBefore := func(pos int) {
		for ; next < len(spans) && spans[next].Start < pos; next++ {
			if ed, ok := e.rewriteSpan(markup, spans[next], r); ok {
				edits = append(edits, ed)
			}
		}
	}
	typed := e.splitRunEdits(markup, spans, r, resolveBefore)
	resolveBefore(len(markup) + 1)
	edits = append(edits, typed...)
	return applyEdits(markup, edits)
}

// rewriteSpan resolves one scanned field and returns its replacement.
func (e *Engine) rewriteSpan(markup string, sp fields.Span, r *run) (edit, bool) {
	if sp.Crosses {
		r.res.Diagnostics.Warnf(CodeCrossesBlock, sp.Name, "field spans a paragraph or table boundary; left in place")
		return edit{}, false
	}
	tag, ok := r.resolver.Resolve(sp.Name)
	if !ok {
		r.unresolved(sp.Name, markup[sp.Start:sp.End])
		return edit{}, false
	}

	text := `<w:t xml:space="preserve">` + escapeText(tag) + `</w:t>`
	switch sp.Kind {
	case fields.SpanSimple:
		text = `<w:r>` + sp.RunProps + text + `</w:r>`
		r.converted(sp.Name, tag, StrategySimple)
	case fields.SpanInstr:
		r.converted(sp.Name, tag, StrategyInstr)
	default:
		r.converted(sp.Name, tag, StrategyComplex)
	}
	return edit{start: sp.Start, end: sp.End, text: text}, true
}

// applyEdits writes non-overlapping edits into markup.
func applyEdits(markup string, edits []edit) string {
	if len(edits) == 0 {
		return markup
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })
	var b strings.Builder
	last := 0
	for _, ed := range edits {
		b.WriteString(markup[last:ed.start])
		b.WriteString(ed.text)
		last = ed.end
	}
	b.WriteString(markup[last:])
	return b.String()
}

// arrayName strips the "[]" suffix from a stored array path.
func arrayName(path string) string {
	return strings.TrimSuffix(strings.TrimSpace(path), "[]")
}

// escapeText escapes a tag for element content. Ampersands go first so
// the other entities are not double escaped.
func escapeText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	return strings.ReplaceAll(s, ">", "&gt;")
}

// escapeAttr escapes a tag for a double-quoted attribute value.
func escapeAttr(s string) string {
	return strings.ReplaceAll(escapeText(s), `"`, "&quot;")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
