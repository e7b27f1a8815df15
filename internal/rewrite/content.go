// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rewrite

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/template-converter/internal/fields"
	"github.com/pdiddy/template-converter/pkg/types"
)

// Counts measures the document content a rewrite must preserve.
type Counts struct {
	Paragraphs int `json:"paragraphs" yaml:"paragraphs"`
	TextRuns   int `json:"text_runs" yaml:"text_runs"`
	Tables     int `json:"tables" yaml:"tables"`
	TextLength int `json:"text_length" yaml:"text_length"`
}

func (c Counts) String() string {
	return fmt.Sprintf("%d paragraphs, %d text runs, %d tables, %d characters",
		c.Paragraphs, c.TextRuns, c.Tables, c.TextLength)
}

var (
	paragraphRe = regexp.MustCompile(`<w:p[>\s/]`)
	textRunRe   = regexp.MustCompile(`<w:t[>\s/]`)
	tableRe     = regexp.MustCompile(`<w:tbl[>\s/]`)
	nonEmptyRe  = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]+)</w:t>`)
)

// CountContent counts paragraphs, text runs, tables and visible characters.
func CountContent(markup string) Counts {
	c := Counts{
		Paragraphs: len(paragraphRe.FindAllStringIndex(markup, -1)),
		TextRuns:   len(textRunRe.FindAllStringIndex(markup, -1)),
		Tables:     len(tableRe.FindAllStringIndex(markup, -1)),
	}
	for _, sub := range nonEmptyRe.FindAllStringSubmatch(markup, -1) {
		c.TextLength += utf8.RuneCountInString(sub[1])
	}
	return c
}

// CheckContent compares counts taken before and after a rewrite. Losing
// more than paragraphLoss of the paragraphs or textLoss of the text, or
// any table, is a warning carrying both counts.
func CheckContent(before, after Counts, paragraphLoss, textLoss float64) types.Diagnostics {
	var ds types.Diagnostics
	if before.Paragraphs > 0 && float64(after.Paragraphs) < float64(before.Paragraphs)*(1-paragraphLoss) {
		ds.Warnf(CodeParagraphLoss, "", "paragraphs dropped from %d to %d (%.0f%% lost); the rewrite likely over-matched",
			before.Paragraphs, after.Paragraphs, lossPercent(before.Paragraphs, after.Paragraphs))
	}
	if before.TextLength > 0 && float64(after.TextLength) < float64(before.TextLength)*(1-textLoss) {
		ds.Warnf(CodeTextLoss, "", "text dropped from %d to %d characters (%.0f%% lost); the rewrite likely over-matched",
			before.TextLength, after.TextLength, lossPercent(before.TextLength, after.TextLength))
	}
	if after.Tables < before.Tables {
		ds.Warnf(CodeTableLoss, "", "tables dropped from %d to %d", before.Tables, after.Tables)
	}
	return ds
}

func lossPercent(before, after int) float64 {
	return 100 * float64(before-after) / float64(before)
}

// CheckStructure reports loop and conditional start markers without a
// matching end marker, and the reverse, as errors. Markers pair by base
// name.
func CheckStructure(markup string) types.Diagnostics {
	type balance struct{ starts, ends int }
	loops := make(map[string]*balance)
	conds := make(map[string]*balance)
	get := func(m map[string]*balance, k string) *balance {
		if m[k] == nil {
			m[k] = &balance{}
		}
		return m[k]
	}

	for _, name := range fields.ExtractNames(markup) {
		m := fields.ParseMarker(name)
		switch m.Kind {
		case fields.KindLoopStart:
			get(loops, m.Base).starts++
		case fields.KindLoopEnd:
			get(loops, m.Base).ends++
		case fields.KindCondStart:
			get(conds, m.Base).starts++
		case fields.KindCondEnd:
			get(conds, m.Base).ends++
		}
	}

	var ds types.Diagnostics
	report := func(m map[string]*balance, code, what string) {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b := m[k]
			switch {
			case b.starts > b.ends:
				ds.Errorf(code, k, "%s opened %d time(s) but closed %d time(s)", what, b.starts, b.ends)
			case b.ends > b.starts:
				ds.Errorf(code, k, "%s closed %d time(s) but opened %d time(s)", what, b.ends, b.starts)
			}
		}
	}
	report(loops, CodeUnbalancedLoop, "loop")
	report(conds, CodeUnbalancedCond, "conditional")
	return ds
}

// CheckLoopBalance counts the open and close tags of every mapped
// destination array in the visible text. Unequal counts are an error.
func CheckLoopBalance(markup string, arrays []types.ArrayMapping) types.Diagnostics {
	if len(arrays) == 0 {
		return nil
	}
	text := VisibleText(markup)
	seen := make(map[string]bool)
	var ds types.Diagnostics
	for _, am := range arrays {
		path := arrayName(am.DestinationArray)
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		opens := strings.Count(text, "{#"+path+"}") + strings.Count(text, "{^"+path+"}")
		closes := strings.Count(text, "{/"+path+"}")
		if opens != closes {
			ds.Errorf(CodeLoopBalance, path, "%d open tag(s) but %d close tag(s) in the output", opens, closes)
		}
	}
	return ds
}
