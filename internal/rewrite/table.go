// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rewrite

import (
	"sort"
	"strings"

	"github.com/pdiddy/template-converter/internal/fields"
	"github.com/pdiddy/template-converter/pkg/types"
)

// Entry is one resolved simple-field rule and where it came from.
type Entry struct {
	Marker string           `json:"marker" yaml:"marker"`
	Tag    string           `json:"tag" yaml:"tag"`
	Origin types.SourceKind `json:"origin" yaml:"origin"`
}

// Table is the merged lookup the field pass resolves against. Built-in
// rules are overridden by accepted stored mappings, which are overridden
// by per-run overrides.
type Table struct {
	rules  Rules
	fields map[string]Entry
	blocks map[string]Block
}

// NewTable layers accepted stored mappings and overrides on top of rules.
// Keys may be given with or without the leading "="; destinations with or
// without braces. A control-marker key ("x:each(v)") whose destination is
// an open tag adds a block rule instead of a field rule.
func NewTable(rules Rules, accepted []types.FieldMapping, overrides map[string]string) *Table {
	t := &Table{
		rules:  rules,
		fields: make(map[string]Entry, len(rules.Fields)+len(accepted)+len(overrides)),
		blocks: make(map[string]Block),
	}
	for k, v := range rules.Fields {
		t.set(k, v, types.SourceHardcoded)
	}
	for _, m := range accepted {
		t.set(m.SourceField, m.DestinationField, m.Source)
	}
	for k, v := range overrides {
		t.set(k, v, types.SourceManual)
	}
	return t
}

func (t *Table) set(source, destination string, origin types.SourceKind) {
	if source == "" || destination == "" {
		return
	}
	m := fields.ParseMarker(source)
	if m.Kind == fields.KindLoopStart || m.Kind == fields.KindCondStart {
		open := Tag(destination)
		if b, ok := blockFor(open); ok {
			t.blocks[source] = b
		}
		return
	}
	key := FieldKey(source)
	t.fields[key] = Entry{Marker: key, Tag: Tag(destination), Origin: origin}
}

// Field returns the destination tag for a simple field marker.
func (t *Table) Field(name string) (string, bool) {
	e, ok := t.fields[name]
	return e.Tag, ok
}

// Lookup returns the full entry for a simple field marker.
func (t *Table) Lookup(name string) (Entry, bool) {
	e, ok := t.fields[FieldKey(name)]
	return e, ok
}

// Entries returns every simple-field rule sorted by marker.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.fields))
	for _, e := range t.fields {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Marker < out[j].Marker })
	return out
}

// Rules returns the built-in tables the table was built from.
func (t *Table) Rules() Rules {
	return t.rules
}

// startBlock returns the block a loop or conditional start marker opens.
// Stored block rules win over the built-in loop and conditional tables.
func (t *Table) startBlock(name string) (Block, bool) {
	if b, ok := t.blocks[name]; ok {
		return b, true
	}
	if b, ok := t.rules.Loops[name]; ok {
		return b, true
	}
	b, ok := t.rules.Conditionals[name]
	return b, ok
}

// endBlock finds the block closed by an end marker with the given base by
// scanning start-marker keys in sorted order. Loop ends prefer the loop
// table and conditional ends the conditional table.
func (t *Table) endBlock(m fields.Marker) (Block, bool) {
	tables := []map[string]Block{t.blocks, t.rules.Loops, t.rules.Conditionals}
	if m.Kind == fields.KindCondEnd {
		tables = []map[string]Block{t.blocks, t.rules.Conditionals, t.rules.Loops}
	}
	prefix := m.Base + ":"
	for _, tbl := range tables {
		for _, k := range sortedBlockKeys(tbl) {
			if strings.HasPrefix(k, prefix) {
				return tbl[k], true
			}
		}
	}
	return Block{}, false
}

// FieldKey normalizes a simple field source to its marker form "=path".
// Control markers and destination tags are returned unchanged.
func FieldKey(source string) string {
	m := fields.ParseMarker(source)
	if m.IsControl() || m.Kind == fields.KindTag || strings.HasPrefix(source, "=") {
		return source
	}
	return "=" + source
}

// Tag wraps a destination path in braces unless it already is a tag.
func Tag(destination string) string {
	if strings.HasPrefix(destination, "{") && strings.HasSuffix(destination, "}") {
		return destination
	}
	return "{" + destination + "}"
}

// blockFor derives the close tag for a "{#x}" or "{^x}" open tag.
func blockFor(open string) (Block, bool) {
	path, _, ok := openPath(open)
	if !ok {
		return Block{}, false
	}
	return Block{Open: open, Close: "{/" + path + "}"}, true
}

// openPath splits an open tag into its path and whether it is inverted.
func openPath(tag string) (path string, inverted, ok bool) {
	if len(tag) < 4 || tag[0] != '{' || tag[len(tag)-1] != '}' {
		return "", false, false
	}
	switch tag[1] {
	case '#':
		return tag[2 : len(tag)-1], false, true
	case '^':
		return tag[2 : len(tag)-1], true, true
	}
	return "", false, false
}

// Resolver resolves field names in document order. It tracks the open
// destination blocks so end markers and :else resolve against the block
// they actually close.
type Resolver struct {
	table  *Table
	arrays map[string]string
	inner  map[string]string
	stack  []frame
}

type frame struct {
	base     string
	path     string
	inverted bool
}

// NewResolver returns a resolver with an empty block stack. Array
// mappings take precedence over the loop table for their source arrays,
// and their loop-body field mappings resolve fields the table does not
// know. The first array mapping naming an inner field wins.
func (t *Table) NewResolver(arrays ...types.ArrayMapping) *Resolver {
	r := &Resolver{
		table:  t,
		arrays: make(map[string]string, len(arrays)),
		inner:  make(map[string]string),
	}
	for _, am := range arrays {
		if name, path := arrayName(am.SourceArray), arrayName(am.DestinationArray); name != "" && path != "" {
			r.arrays[name] = path
		}
		for _, fm := range am.FieldMappings {
			if fm.Source == "" || fm.Destination == "" {
				continue
			}
			key := FieldKey(fm.Source)
			if fields.ParseMarker(key).Kind != fields.KindSimple {
				continue
			}
			if _, ok := r.inner[key]; !ok {
				r.inner[key] = Tag(fm.Destination)
			}
		}
	}
	return r
}

// Resolve returns the destination tag for a field name, in order: simple
// field rules, loop-body field mappings, destination tags already written by the loop pass, array
// mappings, block start markers, end markers and :else.
func (r *Resolver) Resolve(name string) (string, bool) {
	if tag, ok := r.table.Field(name); ok {
		return tag, true
	}
	if tag, ok := r.inner[name]; ok {
		return tag, true
	}

	m := fields.ParseMarker(name)
	switch m.Kind {
	case fields.KindTag:
		r.track(name)
		return name, true

	case fields.KindLoopStart, fields.KindCondStart:
		if path, ok := r.arrays[m.Base]; ok && m.Kind == fields.KindLoopStart {
			open := "{#" + path + "}"
			r.push(m.Base, open)
			return open, true
		}
		b, ok := r.table.startBlock(name)
		if !ok {
			return "", false
		}
		r.push(m.Base, b.Open)
		return b.Open, true

	case fields.KindLoopEnd, fields.KindCondEnd:
		if f, ok := r.pop(m.Base); ok {
			return "{/" + f.path + "}", true
		}
		if path, ok := r.arrays[m.Base]; ok && m.Kind == fields.KindLoopEnd {
			closing := "{/" + path + "}"
			r.track(closing)
			return closing, true
		}
		b, ok := r.table.endBlock(m)
		if !ok {
			return "", false
		}
		return b.Close, true

	case fields.KindElse:
		return r.elseTag(m.Base)
	}
	return "", false
}

// Unclosed returns the open tags still on the stack, innermost last.
func (r *Resolver) Unclosed() []string {
	out := make([]string, len(r.stack))
	for i, f := range r.stack {
		sigil := "#"
		if f.inverted {
			sigil = "^"
		}
		out[i] = "{" + sigil + f.path + "}"
	}
	return out
}

func (r *Resolver) push(base, open string) {
	path, inverted, ok := openPath(open)
	if !ok {
		return
	}
	r.stack = append(r.stack, frame{base: base, path: path, inverted: inverted})
}

// pop removes the innermost frame opened for base. An empty base pops the
// innermost frame.
func (r *Resolver) pop(base string) (frame, bool) {
	for i := len(r.stack) - 1; i >= 0; i-- {
		if base == "" || r.stack[i].base == base {
			f := r.stack[i]
			r.stack = append(r.stack[:i], r.stack[i+1:]...)
			return f, true
		}
	}
	return frame{}, false
}

// track keeps the stack in step with tags the loop pass already wrote.
func (r *Resolver) track(tag string) {
	if _, _, ok := openPath(tag); ok {
		r.push("", tag)
		return
	}
	if strings.HasPrefix(tag, "{/") {
		path := tag[2 : len(tag)-1]
		for i := len(r.stack) - 1; i >= 0; i-- {
			if r.stack[i].path == path {
				r.stack = append(r.stack[:i], r.stack[i+1:]...)
				return
			}
		}
	}
}

// elseTag closes the innermost block opened for base, or the innermost
// block when none matches, and reopens it with the opposite sense.
func (r *Resolver) elseTag(base string) (string, bool) {
	idx := -1
	for i := len(r.stack) - 1; i >= 0; i-- {
		if base == "" || r.stack[i].base == base {
			idx = i
			break
		}
	}
	if idx < 0 && len(r.stack) > 0 {
		idx = len(r.stack) - 1
	}
	if idx < 0 {
		return "", false
	}
	f := &r.stack[idx]
	sigil := "^"
	if f.inverted {
		sigil = "#"
	}
	f.inverted = !f.inverted
	return "{/" + f.path + "}{" + sigil + f.path + "}", true
}
