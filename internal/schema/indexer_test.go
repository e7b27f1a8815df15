// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/template-converter/pkg/types"
)

func sampleInstance() map[string]any {
	return map[string]any{
		"project": map[string]any{
			"client_name": "Acme Corp",
			"budget":      float64(1200),
			"active":      true,
			"notes":       nil,
			"locations": []any{
				map[string]any{"name": "HQ", "address": "1 Main St"},
				map[string]any{"name": "Branch", "address": "2 Side St"},
			},
		},
	}
}

func TestExtract_TemplateMode(t *testing.T) {
	fields := Extract(sampleInstance(), Options{})

	tests := []struct {
		path   string
		typ    types.FieldType
		depth  int
		parent string
	}{
		{"project", types.TypeObject, 0, ""},
		{"project.client_name", types.TypeString, 1, "project"},
		{"project.budget", types.TypeNumber, 1, "project"},
		{"project.active", types.TypeBoolean, 1, "project"},
		{"project.notes", types.TypeNull, 1, "project"},
		{"project.locations", types.TypeArray, 1, "project"},
		{"project.locations[0].name", types.TypeString, 3, "project.locations[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			f, ok := fields[tt.path]
			require.True(t, ok, "missing %s", tt.path)
			assert.Equal(t, tt.typ, f.Type)
			assert.Equal(t, tt.depth, f.Depth)
			assert.Equal(t, tt.parent, f.ParentPath)
		})
	}

	_, ok := fields["project.locations[1].name"]
	assert.False(t, ok, "template mode must only expand [0]")

	locs := fields["project.locations"]
	assert.True(t, locs.IsArray)
	assert.Equal(t, 2, locs.ArrayCount)
	assert.Equal(t, "[2 items]", locs.SampleValue)
	assert.Contains(t, locs.Children, "project.locations[0].address")
	assert.Equal(t, "{5 fields}", fields["project"].SampleValue)
}

func TestExtract_FullMode(t *testing.T) {
	fields := Extract(sampleInstance(), Options{FullArrays: true})
	f, ok := fields["project.locations[1].name"]
	require.True(t, ok)
	assert.Equal(t, "Branch", f.SampleValue)
}

func TestExtract_FullModeLargeArray(t *testing.T) {
	const n = 5000
	items := make([]any, n)
	for i := range items {
		items[i] = map[string]any{"cost": i, "label": fmt.Sprintf("item %d", i)}
	}
	fields := Extract(map[string]any{
		"items":      items,
		"items_note": "sibling sharing a name prefix",
		"itemsx":     map[string]any{"a": 1},
	}, Options{FullArrays: true})

	require.Len(t, fields, 2*n+4)
	children := fields["items"].Children
	require.Len(t, children, 2*n)
	assert.True(t, sort.StringsAreSorted(children))
	assert.Contains(t, children, fmt.Sprintf("items[%d].label", n-1))
	assert.NotContains(t, children, "items_note")
	assert.NotContains(t, children, "itemsx.a")
	assert.Equal(t, []string{"itemsx.a"}, fields["itemsx"].Children)
}

func TestDescendants(t *testing.T) {
	sorted := []string{
		"a", "a-b", "a.b", "a.b.c", "a[0]", "a[0].x", "ab", "ab.c",
	}
	require.True(t, sort.StringsAreSorted(sorted))

	tests := []struct {
		path string
		want []string
	}{
		{"a", []string{"a.b", "a.b.c", "a[0]", "a[0].x"}},
		{"a.b", []string{"a.b.c"}},
		{"a[0]", []string{"a[0].x"}},
		{"ab", []string{"ab.c"}},
		{"a-b", nil},
		{"missing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Descendants(sorted, tt.path))
		})
	}
}

func TestExtract_EdgeCases(t *testing.T) {
	assert.Empty(t, Extract(nil, Options{}))

	root := Extract("just a string", Options{})
	require.Len(t, root, 1)
	assert.Equal(t, types.TypeString, root["root"].Type)

	long := strings.Repeat("x", 80)
	fields := Extract(map[string]any{"s": long}, Options{})
	assert.Equal(t, strings.Repeat("x", 50)+"...", fields["s"].SampleValue)
}

func TestExtract_StripPrefix(t *testing.T) {
	instance := map[string]any{
		"data": map[string]any{
			"attributes": map[string]any{
				"content": map[string]any{
					"project": map[string]any{"name": "Apollo"},
				},
			},
			"id": "42",
		},
	}
	fields := Extract(instance, Options{StripPrefix: DefaultStripPrefix})
	require.Len(t, fields, 2)
	assert.Equal(t, "", fields["project"].ParentPath)
	assert.Equal(t, 0, fields["project"].Depth)
	assert.Equal(t, "project", fields["project.name"].ParentPath)
	assert.Equal(t, []string{"project.name"}, fields["project"].Children)
}

func TestLoadInstance(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"json", "a.json", `{"project": {"name": "Apollo"}}`},
		{"yaml", "a.yaml", "project:\n  name: Apollo\n"},
		{"sniffed", "a.txt", `{"project": {"name": "Apollo"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := filepath.Join(dir, tt.file)
			require.NoError(t, os.WriteFile(p, []byte(tt.content), 0o644))
			v, err := LoadInstance(p)
			require.NoError(t, err)
			fields := Extract(v, Options{})
			assert.Equal(t, "Apollo", fields["project.name"].SampleValue)
		})
	}

	_, err := LoadInstance(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestBuildTree(t *testing.T) {
	tree := BuildTree(Extract(sampleInstance(), Options{}))
	require.Len(t, tree.Children, 1)
	project := tree.Children[0]
	assert.Equal(t, "project", project.Name)

	var buf bytes.Buffer
	tree.Print(&buf)
	out := buf.String()
	assert.Contains(t, out, "locations[] (2 items)")
	assert.Contains(t, out, "    name (string): HQ")
}
