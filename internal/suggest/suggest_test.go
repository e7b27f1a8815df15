// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package suggest

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/template-converter/internal/mappingstore"
	"github.com/pdiddy/template-converter/pkg/types"
)

type fakeBackend struct {
	resp   Response
	err    error
	prompt string
	calls  int
}

func (f *fakeBackend) Suggest(_ context.Context, prompt string) (Response, error) {
	f.calls++
	f.prompt = prompt
	return f.resp, f.err
}

func TestSuggest_FiltersAndSorts(t *testing.T) {
	backend := &fakeBackend{resp: Response{
		Reasoning: "  matched by name  ",
		Suggestions: []Suggestion{
			{SourceField: "=row.cost", DestinationField: "{unit_cost}", Confidence: 0.6},
			{SourceField: "=client", DestinationField: "project.client_name", Confidence: 1.4},
			{SourceField: "=not_asked", DestinationField: "project.x", Confidence: 0.9},
			{SourceField: "=row.qty", DestinationField: "", Confidence: 0.9},
			{SourceField: "=row.qty", DestinationField: "invented.path", Confidence: 0.9},
		},
	}}
	s := New(backend, types.AIConfig{})

	resp, err := s.Suggest(context.Background(), Request{
		Unresolved:  []string{"=client", "=row.cost", "=row.qty"},
		Destination: []string{"project.client_name", "unit_cost", "quantity"},
	})
	require.NoError(t, err)

	assert.Equal(t, "matched by name", resp.Reasoning)
	require.Len(t, resp.Suggestions, 2)
	assert.Equal(t, "=client", resp.Suggestions[0].SourceField)
	assert.Equal(t, 1.0, resp.Suggestions[0].Confidence, "confidence is clamped")
	assert.Equal(t, "unit_cost", resp.Suggestions[1].DestinationField, "braces are stripped")
}

func TestSuggest_NothingToAsk(t *testing.T) {
	backend := &fakeBackend{}
	resp, err := New(backend, types.AIConfig{}).Suggest(context.Background(), Request{})
	require.NoError(t, err)
	assert.Empty(t, resp.Suggestions)
	assert.Equal(t, 0, backend.calls)
}

func TestSuggest_BackendError(t *testing.T) {
	backend := &fakeBackend{err: errors.New("boom")}
	_, err := New(backend, types.AIConfig{}).Suggest(context.Background(), Request{Unresolved: []string{"=a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestPrompt(t *testing.T) {
	var ds types.Diagnostics
	ds.Errorf("unbalanced-loop", "items", "loop opened 1 time(s) but closed 0 time(s)")
	ds.Warnf("unresolved-field", "=a", "no mapping found")

	s := New(&fakeBackend{}, types.AIConfig{MaxMarkup: 10})
	prompt := s.Prompt(Request{
		Unresolved:  []string{"=a"},
		Diagnostics: ds,
		Known:       []types.FieldMapping{{SourceField: "=client_name", DestinationField: "project.client_name"}},
		Destination: []string{"project.client_name"},
		Markup:      strings.Repeat("x", 50),
	})

	assert.Contains(t, prompt, "- =a\n")
	assert.Contains(t, prompt, "unbalanced-loop")
	assert.NotContains(t, prompt, "no mapping found", "warnings are not sent")
	assert.Contains(t, prompt, `"destination": "project.client_name"`)
	assert.Contains(t, prompt, "- project.client_name\n")
	assert.Contains(t, prompt, strings.Repeat("x", 10)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("x", 11))
}

func TestRecord(t *testing.T) {
	store, err := mappingstore.NewStore(types.StoreConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	resp := Response{Suggestions: []Suggestion{
		{SourceField: "=client", DestinationField: "project.client_name", Confidence: 0.9},
		{SourceField: "=row.cost", DestinationField: "unit_cost", Confidence: 0.3},
	}}

	var buf bytes.Buffer
	sum, err := Record(context.Background(), store, resp, 0.5, "proj-1", &buf)
	require.NoError(t, err)
	assert.Equal(t, Summary{Recorded: 1, Skipped: 1}, sum)
	assert.Equal(t, 2, sum.Total())
	assert.Contains(t, buf.String(), "recorded: =client -> project.client_name")
	assert.Contains(t, buf.String(), "skipped: =row.cost -> unit_cost")

	m, err := store.Get(context.Background(), "=client")
	require.NoError(t, err)
	assert.Equal(t, types.SourceAISuggested, m.Source)
	assert.Equal(t, "project.client_name", m.DestinationField)
	assert.Equal(t, []string{"proj-1"}, m.Projects)

	_, err = store.Get(context.Background(), "=row.cost")
	assert.True(t, mappingstore.IsNotFound(err))
}

func TestGenerateSchema(t *testing.T) {
	s := generateSchema[Response]()
	assert.Equal(t, "object", s["type"])
	assert.Equal(t, false, s["additionalProperties"])
	assert.ElementsMatch(t, []string{"reasoning", "suggestions"}, s["required"])

	props := s["properties"].(map[string]any)
	items := props["suggestions"].(map[string]any)["items"].(map[string]any)
	assert.Equal(t, false, items["additionalProperties"])
	assert.ElementsMatch(t, []string{"confidence", "destination_field", "reason", "source_field"}, items["required"])
}

func TestDecodeModelJSON(t *testing.T) {
	var r Response
	require.NoError(t, decodeModelJSON(`Here you go: {"suggestions":[],"reasoning":"ok"} thanks`, &r))
	assert.Equal(t, "ok", r.Reasoning)

	assert.Error(t, decodeModelJSON("   ", &r))
	assert.Error(t, decodeModelJSON("no json here", &r))
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	_, err := NewOpenAI(types.AIConfig{Model: "gpt-4o-mini"})
	assert.Error(t, err)

	b, err := NewOpenAI(types.AIConfig{Model: "gpt-4o-mini", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, int64(4096), b.maxTokens)
}
