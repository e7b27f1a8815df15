// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schema flattens schema instances (arbitrary nested value trees)
// into path-addressed field metadata used by the matchers.
package schema

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/template-converter/pkg/types"
)

// DefaultStripPrefix is the envelope around merge data returned by the
// document service.
const DefaultStripPrefix = "data.attributes.content."

// Options controls Extract.
type Options struct {
	// FullArrays indexes every array element instead of only [0].
	FullArrays bool

	// StripPrefix keeps only paths that start with the prefix and removes it.
	StripPrefix string

	// SampleLength truncates string samples (default 50).
	SampleLength int
}

// Extract flattens instance into a path -> field map. It never fails:
// a nil instance yields an empty map and a scalar root yields a single
// "root" entry.
func Extract(instance any, opts Options) map[string]types.SchemaField {
	if opts.SampleLength <= 0 {
		opts.SampleLength = 50
	}
	fields := make(map[string]types.SchemaField)
	if instance == nil {
		return fields
	}

	ix := indexer{opts: opts, fields: fields}
	switch instance.(type) {
	case map[string]any:
		ix.walk(instance, "")
	default:
		ix.add("root", "root", instance)
	}
	linkChildren(fields)

	if opts.StripPrefix == "" {
		return fields
	}
	return stripPrefix(fields, opts.StripPrefix)
}

type indexer struct {
	opts   Options
	fields map[string]types.SchemaField
}

func (ix *indexer) walk(v any, path string) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := k
			if path != "" {
				child = path + "." + k
			}
			ix.add(child, k, t[k])
			ix.walk(t[k], child)
		}
	case []any:
		if len(t) == 0 {
			return
		}
		n := 1
		if ix.opts.FullArrays {
			n = len(t)
		}
		for i := 0; i < n; i++ {
			switch t[i].(type) {
			case map[string]any, []any:
				ix.walk(t[i], fmt.Sprintf("%s[%d]", path, i))
			}
		}
	}
}

func (ix *indexer) add(path, name string, v any) {
	f := types.SchemaField{
		Path:        path,
		Name:        name,
		Type:        TypeOf(v),
		ParentPath:  ParentPath(path),
		Depth:       Depth(path),
		SampleValue: ix.sample(v),
	}
	if arr, ok := v.([]any); ok {
		f.IsArray = true
		f.ArrayCount = len(arr)
	}
	ix.fields[path] = f
}

func (ix *indexer) sample(v any) any {
	switch t := v.(type) {
	case string:
		if utf8.RuneCountInString(t) > ix.opts.SampleLength {
			return string([]rune(t)[:ix.opts.SampleLength]) + "..."
		}
		return t
	case []any:
		return fmt.Sprintf("[%d items]", len(t))
	case map[string]any:
		return fmt.Sprintf("{%d fields}", len(t))
	default:
		return t
	}
}

// TypeOf infers the field type of a decoded JSON or YAML value.
func TypeOf(v any) types.FieldType {
	switch v.(type) {
	case nil:
		return types.TypeNull
	case string:
		return types.TypeString
	case bool:
		return types.TypeBoolean
	case int, int32, int64, uint, uint32, uint64, float32, float64:
		return types.TypeNumber
	case []any:
		return types.TypeArray
	case map[string]any:
		return types.TypeObject
	default:
		return types.TypeUnknown
	}
}

// Depth counts the object and array separators in path.
func Depth(path string) int {
	return strings.Count(path, ".") + strings.Count(path, "[")
}

// ParentPath returns path up to its last "." or "[" separator.
func ParentPath(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[:i]
	}
	if i := strings.LastIndex(path, "["); i >= 0 {
		return path[:i]
	}
	return ""
}

// linkChildren fills Children with every path nested under each field.
func linkChildren(fields map[string]types.SchemaField) {
	paths := SortedPaths(fields)
	for _, p := range paths {
		f := fields[p]
		if f.Type != types.TypeObject && f.Type != types.TypeArray {
			continue
		}
		f.Children = Descendants(paths, p)
		fields[p] = f
	}
}

// Descendants returns the paths nested under path, in sorted order. sorted
// must be sorted. Paths sharing a prefix are adjacent once sorted, so each
// of the "." and "[" ranges is found by binary search.
func Descendants(sorted []string, path string) []string {
	var out []string
	for _, sep := range []string{".", "["} {
		prefix := path + sep
		for i := sort.SearchStrings(sorted, prefix); i < len(sorted) && strings.HasPrefix(sorted[i], prefix); i++ {
			out = append(out, sorted[i])
		}
	}
	return out
}

func stripPrefix(fields map[string]types.SchemaField, prefix string) map[string]types.SchemaField {
	out := make(map[string]types.SchemaField, len(fields))
	trim := func(p string) string { return strings.TrimPrefix(p, prefix) }
	parent := strings.TrimSuffix(prefix, ".")
	for p, f := range fields {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		f.Path = trim(p)
		if f.ParentPath == parent {
			f.ParentPath = ""
		} else {
			f.ParentPath = trim(f.ParentPath)
		}
		f.Depth = Depth(f.Path)
		if len(f.Children) > 0 {
			kids := make([]string, len(f.Children))
			for i, c := range f.Children {
				kids[i] = trim(c)
			}
			f.Children = kids
		}
		out[f.Path] = f
	}
	return out
}

// SortedPaths returns the keys of fields in lexical order.
func SortedPaths(fields map[string]types.SchemaField) []string {
	paths := make([]string, 0, len(fields))
	for p := range fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
