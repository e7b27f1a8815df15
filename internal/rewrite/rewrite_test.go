// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rewrite

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/template-converter/internal/docx"
	"github.com/pdiddy/template-converter/pkg/types"
)

func complexField(name string) string {
	return `<w:r><w:fldChar w:fldCharType="begin"/></w:r>` +
		`<w:r><w:instrText xml:space="preserve"> MERGEFIELD ` + name + ` \* MERGEFORMAT </w:instrText></w:r>` +
		`<w:r><w:fldChar w:fldCharType="separate"/></w:r>` +
		`<w:r><w:t>«` + name + `»</w:t></w:r>` +
		`<w:r><w:fldChar w:fldCharType="end"/></w:r>`
}

func simpleField(name string) string {
	return `<w:fldSimple w:instr=" MERGEFIELD ` + name + ` \* MERGEFORMAT ">` +
		`<w:r><w:t>«` + name + `»</w:t></w:r></w:fldSimple>`
}

func doc(paras ...string) string {
	var b strings.Builder
	b.WriteString(`<w:document><w:body>`)
	for _, p := range paras {
		b.WriteString(`<w:p>` + p + `</w:p>`)
	}
	b.WriteString(`</w:body></w:document>`)
	return b.String()
}

func newEngine(t *testing.T, overrides map[string]string) *Engine {
	t.Helper()
	rules, err := DefaultRules()
	require.NoError(t, err)
	return NewEngine(NewTable(rules, nil, overrides), types.RewriteConfig{})
}

func codes(ds types.Diagnostics) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Code
	}
	return out
}

var lineItems = []types.ArrayMapping{{SourceArray: "items[]", DestinationArray: "project.line_items[]"}}

func TestDefaultRules(t *testing.T) {
	r, err := DefaultRules()
	require.NoError(t, err)
	assert.Len(t, r.Fields, 29)
	assert.Len(t, r.Loops, 22)
	assert.Len(t, r.Conditionals, 39)
	assert.Equal(t, "{project.client_name}", r.Fields["=client_name"])
	assert.Equal(t, Block{Open: "{#locations}", Close: "{/locations}"}, r.Loops["locations:each(location)"])
	assert.Equal(t, `{#project_payments.pricing_model=="other"}`, r.Conditionals["payment_terms.other?:if"].Open)
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
fields:
  '=a': '{x.a}'
loops:
  'rows:each(row)': {open: '{#x.rows}', close: '{/x.rows}'}
`), 0o644))

	r, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"=a": "{x.a}"}, r.Fields)
	assert.Len(t, r.Loops, 1)
	assert.Empty(t, r.Conditionals)

	_, err = ParseRules([]byte("loops:\n  'a:each(b)': {open: '{#a}'}\n"))
	assert.Error(t, err)

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// Every built-in rule converts a document holding only its marker into
// exactly its destination tag.
func TestConvert_RoundTripEveryRule(t *testing.T) {
	rules := MustDefaultRules()
	e := newEngine(t, nil)

	cases := make(map[string]string)
	for k, v := range rules.Fields {
		cases[k] = v
	}
	for k, b := range rules.Loops {
		cases[k] = b.Open
	}
	for k, b := range rules.Conditionals {
		cases[k] = b.Open
	}

	for marker, want := range cases {
		for _, form := range []struct {
			name   string
			render func(string) string
		}{
			{"complex", complexField},
			{"simple", simpleField},
		} {
			t.Run(form.name+"/"+marker, func(t *testing.T) {
				res := e.Convert(doc(form.render(marker)), nil)
				assert.Equal(t, want, VisibleText(res.Markup))
				assert.Empty(t, ResidualMarkers(res.Markup))
				assert.NotContains(t, res.Markup, "MERGEFIELD")
				assert.Empty(t, res.Unresolved())
			})
		}
	}
}

func TestConvert_LoopScenario(t *testing.T) {
	e := newEngine(t, nil)
	markup := doc(
		complexField("=client_name"),
		complexField("items:each(row)"),
		complexField("=row.cost"),
		complexField("items:endEach"),
	)

	res := e.Convert(markup, lineItems)

	assert.Contains(t, res.Markup, "{project.client_name}")
	assert.Contains(t, res.Markup, "{#project.line_items}")
	assert.Contains(t, res.Markup, "{/project.line_items}")
	assert.Less(t, strings.Index(res.Markup, "{#project.line_items}"), strings.Index(res.Markup, "{/project.line_items}"))
	assert.NotContains(t, res.Markup, ":each")
	assert.NotContains(t, res.Markup, ":endEach")
	assert.Equal(t, []string{"=row.cost"}, res.Unresolved())
	assert.False(t, res.Diagnostics.HasErrors(), "diagnostics: %v", res.Diagnostics)

	var loops int
	for _, c := range res.Conversions {
		if c.Strategy == StrategyLoop {
			loops++
		}
	}
	assert.Equal(t, 2, loops)
}

func TestConvert_LoopScenarioWithOverride(t *testing.T) {
	e := newEngine(t, map[string]string{"row.cost": "cost"})
	markup := doc(
		complexField("items:each(row)"),
		complexField("=row.cost"),
		complexField("items:endEach"),
	)

	res := e.Convert(markup, lineItems)
	assert.Equal(t, "{#project.line_items}{cost}{/project.line_items}", VisibleText(res.Markup))
	assert.Empty(t, res.Diagnostics)
}

func TestConvert_LoopScenarioUsesLearnedInnerFields(t *testing.T) {
	markup := doc(
		complexField("=client_name"),
		complexField("items:each(row)"),
		complexField("=row.cost"),
		complexField("items:endEach"),
	)
	learned := []types.ArrayMapping{{
		SourceArray:      "items[]",
		DestinationArray: "project.line_items[]",
		FieldMappings:    []types.InnerMapping{{Source: "row.cost", Destination: "cost"}},
	}}

	tests := []struct {
		name      string
		overrides map[string]string
		want      string
	}{
		{
			name: "inner mapping resolves the loop field",
			want: "{project.client_name}{#project.line_items}{cost}{/project.line_items}",
		},
		{
			name:      "explicit field rule wins",
			overrides: map[string]string{"=row.cost": "amount"},
			want:      "{project.client_name}{#project.line_items}{amount}{/project.line_items}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, tt.overrides)
			res := e.Convert(markup, learned)

			assert.Equal(t, tt.want, VisibleText(res.Markup))
			assert.Empty(t, res.Unresolved())
			assert.False(t, res.Diagnostics.HasErrors(), "diagnostics: %v", res.Diagnostics)
		})
	}
}

func TestNewResolver_InnerMappings(t *testing.T) {
	r := NewTable(MustDefaultRules(), nil, nil).NewResolver(
		types.ArrayMapping{
			SourceArray:      "items[]",
			DestinationArray: "project.line_items[]",
			FieldMappings: []types.InnerMapping{
				{Source: "=row.cost", Destination: "{cost}"},
				{Source: "row.qty", Destination: ""},
				{Source: "items:each(row)", Destination: "{#rows}"},
			},
		},
		types.ArrayMapping{
			SourceArray:      "others[]",
			DestinationArray: "project.others[]",
			FieldMappings:    []types.InnerMapping{{Source: "row.cost", Destination: "price"}},
		},
	)

	tag, ok := r.Resolve("=row.cost")
	require.True(t, ok)
	assert.Equal(t, "{cost}", tag, "first array mapping wins")

	_, ok = r.Resolve("=row.qty")
	assert.False(t, ok, "empty destination is ignored")
}

func TestConvert_LoopPassSimpleFields(t *testing.T) {
	e := newEngine(t, nil)
	res := e.Convert(doc(simpleField("items:each(row)"), simpleField("items:endEach")), lineItems)

	assert.Equal(t, "{#project.line_items}{/project.line_items}", VisibleText(res.Markup))
	assert.NotContains(t, res.Markup, "fldSimple")
	assert.False(t, res.Diagnostics.HasErrors())
}

func TestConvert_ArrayMappingWithSplitInstruction(t *testing.T) {
	e := newEngine(t, nil)
	split := `<w:r><w:fldChar w:fldCharType="begin"/></w:r>` +
		`<w:r><w:instrText> MERGEFIELD ite</w:instrText></w:r>` +
		`<w:r><w:instrText>ms:each(row) </w:instrText></w:r>` +
		`<w:r><w:fldChar w:fldCharType="end"/></w:r>`

	res := e.Convert(doc(split, complexField("items:endEach")), lineItems)
	assert.Equal(t, "{#project.line_items}{/project.line_items}", VisibleText(res.Markup))
	assert.False(t, res.Diagnostics.HasErrors())
}

func TestConvert_UnbalancedLoop(t *testing.T) {
	e := newEngine(t, nil)
	res := e.Convert(doc(complexField("items:each(row)")), lineItems)

	assert.Contains(t, res.Markup, "{#project.line_items}", "output is still produced")
	got := codes(res.Diagnostics)
	assert.Contains(t, got, CodeUnbalancedLoop)
	assert.Contains(t, got, CodeLoopBalance)
	assert.Contains(t, got, CodeUnclosedBlock)
	assert.True(t, res.Diagnostics.HasErrors())
}

func TestConvert_Else(t *testing.T) {
	tests := []struct {
		name   string
		marker string
		want   string
	}{
		{
			name:   "positive block",
			marker: "payment_terms.other?",
			want: `{#project_payments.pricing_model=="other"}{project.client_name}` +
				`{/project_payments.pricing_model=="other"}{^project_payments.pricing_model=="other"}` +
				`{project.project_name}{/project_payments.pricing_model=="other"}`,
		},
		{
			name:   "inverted block",
			marker: "payment_terms.include_expenses",
			want: `{^include_expenses}{project.client_name}` +
				`{/include_expenses}{#include_expenses}` +
				`{project.project_name}{/include_expenses}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := tt.marker + ":if"
			if tt.marker == "payment_terms.include_expenses" {
				start = tt.marker + ":if(blank?)"
			}
			e := newEngine(t, nil)
			res := e.Convert(doc(
				complexField(start),
				complexField("=client_name"),
				complexField(tt.marker+":else"),
				complexField("=project_name"),
				complexField(tt.marker+":endIf"),
			), nil)

			assert.Equal(t, tt.want, VisibleText(res.Markup))
			assert.Empty(t, res.Diagnostics)
		})
	}
}

func TestConvert_BareInstrText(t *testing.T) {
	e := newEngine(t, nil)
	res := e.Convert(doc(`<w:r><w:instrText> MERGEFIELD =project_name </w:instrText></w:r>`), nil)

	assert.Contains(t, res.Markup, `<w:r><w:t xml:space="preserve">{project.project_name}</w:t></w:r>`)
	require.Len(t, res.Conversions, 1)
	assert.Equal(t, StrategyInstr, res.Conversions[0].Strategy)
}

func TestConvert_SplitKeywordAcrossRuns(t *testing.T) {
	e := newEngine(t, nil)
	markup := doc(`<w:r><w:t>Dear MERGE</w:t></w:r>` +
		`<w:r><w:rPr><w:b/></w:rPr><w:t>FIELD =client_name</w:t></w:r>` +
		`<w:r><w:t xml:space="preserve"> welcome</w:t></w:r>`)

	res := e.Convert(markup, nil)

	assert.Equal(t, "Dear {project.client_name} welcome", VisibleText(res.Markup))
	assert.Contains(t, res.Markup, `<w:rPr><w:b/></w:rPr>`, "run formatting is kept")
	require.Len(t, res.Conversions, 1)
	assert.Equal(t, StrategySplitRun, res.Conversions[0].Strategy)
	assert.Empty(t, res.Diagnostics)
}

func TestConvert_SplitKeywordDoesNotCrossParagraphs(t *testing.T) {
	e := newEngine(t, nil)
	markup := doc(`<w:r><w:t>MERGE</w:t></w:r>`, `<w:r><w:t>FIELD =client_name</w:t></w:r>`)

	res := e.Convert(markup, nil)
	assert.Equal(t, markup, res.Markup)
	assert.Empty(t, res.Conversions)
}

func TestConvert_MixedEncodingsShareBlockStack(t *testing.T) {
	typed := func(name string) string {
		return `<w:r><w:t>MERGE</w:t></w:r><w:r><w:t xml:space="preserve">FIELD ` + name + `</w:t></w:r>`
	}
	tests := []struct {
		name  string
		paras []string
		want  string
	}{
		{
			name: "else typed as text",
			paras: []string{
				complexField("payment_terms.other?:if"),
				complexField("=client_name"),
				typed("payment_terms.other?:else"),
				complexField("=project_name"),
				complexField("payment_terms.other?:endIf"),
			},
			want: `{#project_payments.pricing_model=="other"}{project.client_name}` +
				`{/project_payments.pricing_model=="other"}{^project_payments.pricing_model=="other"}` +
				`{project.project_name}{/project_payments.pricing_model=="other"}`,
		},
		{
			name: "block opened and closed as text around a field else",
			paras: []string{
				typed("payment_terms.other?:if"),
				complexField("=client_name"),
				complexField("payment_terms.other?:else"),
				complexField("=project_name"),
				typed("payment_terms.other?:endIf"),
			},
			want: `{#project_payments.pricing_model=="other"}{project.client_name}` +
				`{/project_payments.pricing_model=="other"}{^project_payments.pricing_model=="other"}` +
				`{project.project_name}{/project_payments.pricing_model=="other"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, nil)
			res := e.Convert(doc(tt.paras...), nil)

			assert.Equal(t, tt.want, VisibleText(res.Markup))
			assert.Empty(t, res.Unresolved())
			assert.NotContains(t, codes(res.Diagnostics), CodeUnclosedBlock)
			assert.False(t, res.Diagnostics.HasErrors(), "diagnostics: %v", res.Diagnostics)
		})
	}
}

func TestConvert_MergeFieldNestedInIF(t *testing.T) {
	ifField := func(body string) string {
		return `<w:r><w:fldChar w:fldCharType="begin"/></w:r>` +
			`<w:r><w:instrText xml:space="preserve"> IF </w:instrText></w:r>` +
			body +
			`<w:r><w:instrText xml:space="preserve"> = "" "none" "" </w:instrText></w:r>` +
			`<w:r><w:fldChar w:fldCharType="separate"/></w:r>` +
			`<w:r><w:t>none</w:t></w:r>` +
			`<w:r><w:fldChar w:fldCharType="end"/></w:r>`
	}

	t.Run("known field converts", func(t *testing.T) {
		e := newEngine(t, nil)
		res := e.Convert(doc(ifField(complexField("=client_name"))), nil)

		assert.Contains(t, VisibleText(res.Markup), "{project.client_name}")
		assert.NotContains(t, res.Markup, "MERGEFIELD")
		require.Len(t, res.Conversions, 1)
		assert.Equal(t, "=client_name", res.Conversions[0].Field)
		assert.Equal(t, StrategyComplex, res.Conversions[0].Strategy)
		assert.Empty(t, res.Unresolved())
	})

	t.Run("unknown field is reported", func(t *testing.T) {
		e := newEngine(t, nil)
		res := e.Convert(doc(ifField(complexField("=mystery"))), nil)

		assert.Equal(t, []string{"=mystery"}, res.Unresolved())
		assert.Contains(t, res.Markup, "MERGEFIELD =mystery")
	})
}

func TestMatchSplitField(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantOK   bool
		wantName string
	}{
		{"plain", "MERGEFIELD =a", true, "=a"},
		{"lower case", "mergefield =a", true, "=a"},
		{"switch ends name", `MERGEFIELD =a\* MERGEFORMAT`, true, "=a"},
		{"short gap", "MERGE" + strings.Repeat("x", 10) + "FIELD =a", true, "=a"},
		{"gap beyond window", "MERGE" + strings.Repeat("x", 60) + "FIELD =a", false, ""},
		{"no space after keyword", "MERGEFIELD=a", false, ""},
		{"no name", "MERGEFIELD   ", false, ""},
		{"second occurrence", "MERGE and MERGEFIELD =b", true, "=b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := matchSplitField(tt.input, 0, 50)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, m.name)
		})
	}
}

func TestConvert_UnresolvedFieldIsWarning(t *testing.T) {
	e := newEngine(t, nil)
	markup := doc(complexField("=mystery"), complexField("=mystery"))
	res := e.Convert(markup, nil)

	assert.Equal(t, []string{"=mystery"}, res.Unresolved(), "warned once per field")
	assert.False(t, res.Diagnostics.HasErrors())
	assert.Contains(t, res.Markup, "MERGEFIELD =mystery")
}

func TestConvert_FieldCrossingParagraphLeftInPlace(t *testing.T) {
	e := newEngine(t, nil)
	markup := `<w:p><w:r><w:fldChar w:fldCharType="begin"/></w:r>` +
		`<w:r><w:instrText> MERGEFIELD =client_name </w:instrText></w:r></w:p>` +
		`<w:p><w:r><w:t>Body text</w:t></w:r>` +
		`<w:r><w:fldChar w:fldCharType="end"/></w:r></w:p>`

	res := e.Convert(markup, nil)
	assert.Equal(t, markup, res.Markup)
	assert.Contains(t, codes(res.Diagnostics), CodeCrossesBlock)
}

func TestConvert_EndMarkerWithoutStartUsesTable(t *testing.T) {
	r := NewTable(MustDefaultRules(), nil, nil).NewResolver()
	tag, ok := r.Resolve("locations:endEach")
	require.True(t, ok)
	assert.Equal(t, "{/locations}", tag)

	tag, ok = r.Resolve("payment_terms.other?:endIf")
	require.True(t, ok)
	assert.Equal(t, `{/project_payments.pricing_model=="other"}`, tag)

	_, ok = r.Resolve(":else")
	assert.False(t, ok, ":else with no open block")
}

func TestNewTable_Precedence(t *testing.T) {
	rules := MustDefaultRules()
	accepted := []types.FieldMapping{
		{SourceField: "client_name", DestinationField: "client.display_name", Source: types.SourceLearned},
		{SourceField: "widgets:each(w)", DestinationField: "{#project.widgets}", Source: types.SourceManual},
	}

	table := NewTable(rules, accepted, nil)
	e, ok := table.Lookup("client_name")
	require.True(t, ok)
	assert.Equal(t, "{client.display_name}", e.Tag)
	assert.Equal(t, types.SourceLearned, e.Origin)

	r := table.NewResolver()
	open, ok := r.Resolve("widgets:each(w)")
	require.True(t, ok)
	assert.Equal(t, "{#project.widgets}", open)
	closing, ok := r.Resolve("widgets:endEach")
	require.True(t, ok)
	assert.Equal(t, "{/project.widgets}", closing)

	table = NewTable(rules, accepted, map[string]string{"=client_name": "custom"})
	tag, ok := table.Field("=client_name")
	require.True(t, ok)
	assert.Equal(t, "{custom}", tag)

	assert.Equal(t, "=a", FieldKey("a"))
	assert.Equal(t, "a:endEach", FieldKey("a:endEach"))
	assert.Equal(t, "{x}", Tag("x"))
	assert.Equal(t, "{#x}", Tag("{#x}"))
}

func TestCleanup_Idempotent(t *testing.T) {
	markup := doc(
		`<w:fldSimple w:instr=" MERGEFIELD foo:each(x) "><w:r><w:t>keep me</w:t></w:r></w:fldSimple>`,
		`<w:r><w:instrText> MERGEFIELD foo:endEach </w:instrText></w:r>`,
		`<w:r><w:t>:endIf</w:t></w:r><w:r><w:t>«bar:if(any?)»</w:t></w:r>`,
		`<w:r><w:t>x:else</w:t></w:r><w:r><w:t>Total: 10</w:t></w:r>`,
	)

	once := Cleanup(markup)
	twice := Cleanup(once)

	assert.Equal(t, once, twice)
	assert.Empty(t, ResidualMarkers(once))
	assert.Contains(t, once, `w:instr=" MERGEFIELD foo "`)
	assert.Contains(t, once, "keep me")
	assert.Contains(t, once, "Total: 10")
	assert.NotEmpty(t, ResidualMarkers(markup))
}

func TestCleanup_LeavesWordAttributes(t *testing.T) {
	markup := `<w:p><w:pPr><w:ind w:start="720" w:end="0"/></w:pPr><w:r><w:t>if:</w:t></w:r></w:p>`
	assert.Equal(t, markup, Cleanup(markup))
	assert.Empty(t, ResidualMarkers(markup))
}

func TestConvert_CleanOutputIsStable(t *testing.T) {
	e := newEngine(t, nil)
	res := e.Convert(doc(complexField("=client_name"), complexField("locations:each(location)"),
		complexField("=location.name"), complexField("locations:endEach")), nil)

	assert.Equal(t, res.Markup, Cleanup(res.Markup))
	assert.Equal(t, "{project.client_name}{#locations}{name}{/locations}", VisibleText(res.Markup))
}

func TestCountContent(t *testing.T) {
	c := CountContent(`<w:p><w:r><w:t>abc</w:t></w:r></w:p>` +
		`<w:tbl><w:tblPr/><w:tr><w:tc><w:p/></w:tc></w:tr></w:tbl>`)
	assert.Equal(t, Counts{Paragraphs: 2, TextRuns: 1, Tables: 1, TextLength: 3}, c)
}

func TestCheckContent(t *testing.T) {
	tests := []struct {
		name  string
		after Counts
		want  []string
	}{
		{"within tolerance", Counts{Paragraphs: 9, TextLength: 60, Tables: 1}, []string{}},
		{"everything lost", Counts{Paragraphs: 7, TextLength: 40}, []string{CodeParagraphLoss, CodeTextLoss, CodeTableLoss}},
		{"growth is fine", Counts{Paragraphs: 12, TextLength: 200, Tables: 2}, []string{}},
	}
	before := Counts{Paragraphs: 10, TextLength: 100, Tables: 1}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckContent(before, tt.after, 0.2, 0.5)
			assert.Equal(t, tt.want, codes(got))
			for _, d := range got {
				assert.Equal(t, types.SeverityWarning, d.Severity)
			}
		})
	}
}

func TestCheckStructure(t *testing.T) {
	ds := CheckStructure(doc(
		complexField("items:each(row)"),
		complexField("payment_terms.other?:endIf"),
		complexField("locations:each(location)"),
		complexField("locations:endEach"),
	))
	require.Len(t, ds, 2)
	assert.Equal(t, CodeUnbalancedLoop, ds[0].Code)
	assert.Equal(t, "items", ds[0].Field)
	assert.Equal(t, CodeUnbalancedCond, ds[1].Code)
	assert.Equal(t, "payment_terms.other?", ds[1].Field)
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "template.docx")
	require.NoError(t, docx.New(doc(complexField("=client_name"))).Save(in))

	e := newEngine(t, nil)
	out := OutputPath(in, "")
	assert.Equal(t, filepath.Join(dir, "template_converted.docx"), out)

	res, err := e.ConvertFile(in, out, nil)
	require.NoError(t, err)
	assert.Len(t, res.Conversions, 1)

	pkg, err := docx.Open(out)
	require.NoError(t, err)
	assert.Equal(t, "{project.client_name}", VisibleText(pkg.Markup()))
}

func TestConvertFile_MalformedWritesNothing(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "broken.docx")
	require.NoError(t, os.WriteFile(in, []byte("not a zip"), 0o644))
	out := filepath.Join(dir, "out.docx")

	_, err := newEngine(t, nil).ConvertFile(in, out, nil)
	require.Error(t, err)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestConvertBatch(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.docx")
	require.NoError(t, docx.New(doc(complexField("=client_name"))).Save(good))
	flagged := filepath.Join(dir, "flagged.docx")
	require.NoError(t, docx.New(doc(complexField("items:each(row)"))).Save(flagged))
	bad := filepath.Join(dir, "bad.docx")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o644))

	var buf bytes.Buffer
	result := newEngine(t, nil).ConvertBatch([]string{good, flagged, bad}, filepath.Join(dir, "out"), nil, &buf)

	assert.Equal(t, BatchResult{Converted: 1, Flagged: 1, Failed: 1}, result)
	assert.Equal(t, 3, result.Total())
	assert.True(t, result.HasFailures())
	log := buf.String()
	assert.Contains(t, log, "converted: good.docx")
	assert.Contains(t, log, "flagged: flagged.docx")
	assert.Contains(t, log, "failed:  bad.docx")
	assert.FileExists(t, filepath.Join(dir, "out", "good_converted.docx"))
	assert.Contains(t, log, "Batch summary: 1 converted, 1 flagged, 1 failed (total: 3)")
}

func TestBatchResult_SummaryAndErr(t *testing.T) {
	tests := []struct {
		name        string
		result      BatchResult
		wantSummary string
		wantErr     string
	}{
		{
			name:        "clean",
			result:      BatchResult{Converted: 2},
			wantSummary: "Batch summary: 2 converted, 0 flagged, 0 failed (total: 2)",
		},
		{
			name:        "flagged only",
			result:      BatchResult{Converted: 1, Flagged: 2},
			wantSummary: "Batch summary: 1 converted, 2 flagged, 0 failed (total: 3)",
			wantErr:     "2 of 3 template(s) failed or were flagged (0 failed, 2 flagged)",
		},
		{
			name:        "failed and flagged",
			result:      BatchResult{Flagged: 1, Failed: 1},
			wantSummary: "Batch summary: 0 converted, 1 flagged, 1 failed (total: 2)",
			wantErr:     "2 of 2 template(s) failed or were flagged (1 failed, 1 flagged)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantSummary, tt.result.Summary())
			err := tt.result.Err()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}
