// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fields

import (
	"html"
	"regexp"
	"sort"
	"strings"
)

// SpanKind identifies how a field is encoded in the markup.
type SpanKind string

const (
	// SpanComplex runs from a begin fldChar to its matching end fldChar.
	SpanComplex SpanKind = "complex"

	// SpanSimple is a w:fldSimple element carrying its instruction in the
	// w:instr attribute.
	SpanSimple SpanKind = "simple"

	// SpanInstr is a w:instrText element outside any complete field.
	SpanInstr SpanKind = "instr"
)

// Span locates one field in the markup. Start and End are byte offsets;
// markup[Start:End] is the text a rewrite replaces.
type Span struct {
	Kind  SpanKind
	Start int
	End   int

	// Instr is the unescaped instruction text. For complex fields it is
	// the concatenation of every instrText run before the separate marker.
	Instr string

	// Name is the MERGEFIELD argument.
	Name string

	// RunProps is the first w:rPr inside a fldSimple element, reused for
	// the replacement run.
	RunProps string

	// Crosses reports that the span contains a paragraph or table
	// boundary. Replacing it would drop document structure.
	Crosses bool
}

var (
	tokenRe = regexp.MustCompile(
		`<w:fldChar\b[^>]*>` +
			`|<w:instrText\b[^>]*/>` +
			`|<w:instrText\b[^>]*>[^<]*</w:instrText>` +
			`|<w:fldSimple\b[^>]*>`)
	fldCharTypeRe = regexp.MustCompile(`w:fldCharType="(\w+)"`)
	instrAttrRe   = regexp.MustCompile(`w:instr="([^"]*)"`)
	rPrRe         = regexp.MustCompile(`(?s)<w:rPr>.*?</w:rPr>|<w:rPr/>`)
	mergeFieldRe  = regexp.MustCompile(`(?i)MERGEFIELD\s+"?([^\s\\"]+)`)
)

// Scan walks the markup once and returns every merge field in document
// order. Fields that are not merge fields are omitted.
// Complex fields are tracked on a stack of open fields. A merge field
// nested in another merge field stays inside the outer span; one nested in
// a field that is not a merge field, such as IF, is returned on its own
// and the outer field is dropped. A begin marker with no matching end falls
// back to its bare instrText runs and the fields completed inside it.
func Scan(markup string) []Span {
	var (
		spans []Span
		open  []*openField
		skip  int
	)

	// emit hands a finished span to the innermost open field, or to the
	// result when no field is open.
	emit := func(sp ...Span) {
		if n := len(open); n > 0 {
			open[n-1].inner = append(open[n-1].inner, sp...)
			return
		}
		spans = append(spans, sp...)
	}

	for _, loc := range tokenRe.FindAllStringIndex(markup, -1) {
		start, end := loc[0], loc[1]
		if start < skip {
			continue
		}
		tok := markup[start:end]

		switch {
		case strings.HasPrefix(tok, "<w:fldChar"):
			if !strings.HasSuffix(tok, "/>") {
				end = closingEnd(markup, end, "</w:fldChar>")
				skip = end
			}
			switch fldCharType(tok) {
			case "begin":
				open = append(open, &openField{start: start})
			case "separate":
				if n := len(open); n > 0 {
					open[n-1].inResult = true
				}
			case "end":
				n := len(open)
				if n == 0 {
					continue
				}
				f := open[n-1]
				open = open[:n-1]
				sp := Span{Kind: SpanComplex, Start: f.start, End: end, Instr: joinInstr(f.instrs)}
				if sp.Name = MergeFieldName(sp.Instr); sp.Name == "" {
					emit(f.inner...)
					continue
				}
				sp.Crosses = crossesBlock(markup[sp.Start:sp.End])
				emit(sp)
			}

		case strings.HasPrefix(tok, "<w:instrText"):
			sp := Span{Kind: SpanInstr, Start: start, End: end, Instr: instrContent(tok)}
			n := len(open)
			switch {
			case n == 0:
				if sp.Name = MergeFieldName(sp.Instr); sp.Name != "" {
					spans = append(spans, sp)
				}
			case !open[n-1].inResult:
				open[n-1].instrs = append(open[n-1].instrs, sp)
			}

		case strings.HasPrefix(tok, "<w:fldSimple"):
			sp := Span{Kind: SpanSimple, Start: start, End: end}
			if !strings.HasSuffix(tok, "/>") {
				sp.End = closingEnd(markup, end, "</w:fldSimple>")
				skip = sp.End
			}
			if m := instrAttrRe.FindStringSubmatch(tok); m != nil {
				sp.Instr = html.UnescapeString(m[1])
			}
			sp.Name = MergeFieldName(sp.Instr)
			if sp.Name == "" {
				continue
			}
			sp.RunProps = rPrRe.FindString(markup[sp.Start:sp.End])
			sp.Crosses = crossesBlock(markup[sp.Start:sp.End])
			emit(sp)
		}
	}

	if len(open) > 0 {
		for _, f := range open {
			for _, sp := range f.instrs {
				if sp.Name = MergeFieldName(sp.Instr); sp.Name != "" {
					spans = append(spans, sp)
				}
			}
			spans = append(spans, f.inner...)
		}
		sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	}
	return spans
}

// openField is a complex field whose end marker has not been seen yet.
type openField struct {
	start    int
	instrs   []Span
	inResult bool
	inner    []Span
}

// MergeFieldName returns the argument of a MERGEFIELD instruction, or ""
// when instr is not one. Surrounding quotes are dropped.
func MergeFieldName(instr string) string {
	m := mergeFieldRe.FindStringSubmatch(instr)
	if m == nil {
		return ""
	}
	return m[1]
}

func fldCharType(tok string) string {
	if m := fldCharTypeRe.FindStringSubmatch(tok); m != nil {
		return m[1]
	}
	return ""
}

func instrContent(tok string) string {
	if strings.HasSuffix(tok, "/>") {
		return ""
	}
	open := strings.IndexByte(tok, '>')
	closing := strings.LastIndex(tok, "</w:instrText>")
	if open < 0 || closing <= open {
		return ""
	}
	return html.UnescapeString(tok[open+1 : closing])
}

func joinInstr(instrs []Span) string {
	var b strings.Builder
	for _, sp := range instrs {
		b.WriteString(sp.Instr)
	}
	return b.String()
}

// closingEnd returns the offset just past the next closing tag, or from
// when there is none.
func closingEnd(markup string, from int, closing string) int {
	if i := strings.Index(markup[from:], closing); i >= 0 {
		return from + i + len(closing)
	}
	return from
}

func crossesBlock(s string) bool {
	return strings.Contains(s, "</w:p>") || strings.Contains(s, "<w:tbl")
}
