// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package coherence re-ranks destination candidates for a source field by
// how well they fit the loop nesting and sibling mappings around the field.
package coherence

import (
	"regexp"
	"strings"
)

// FieldKind classifies a source marker.
type FieldKind string

const (
	KindSimple      FieldKind = "simple"
	KindConditional FieldKind = "conditional"
	KindLoopStart   FieldKind = "loop_start"
	KindLoopEnd     FieldKind = "loop_end"
	KindBlockEnd    FieldKind = "block_end"
)

// FieldContext is the structural position of one non-loop marker.
type FieldContext struct {
	Kind FieldKind `json:"kind"`

	// ContextPath lists the enclosing loop variables, outermost first.
	ContextPath []string `json:"context_path"`

	// Depth is len(ContextPath).
	Depth int `json:"depth"`

	// Siblings are the markers seen earlier at the same depth.
	Siblings []string `json:"siblings,omitempty"`
}

// Structure maps source markers to their context. A marker that occurs
// several times keeps its last position.
type Structure map[string]FieldContext

var eachVarRe = regexp.MustCompile(`:each\((\w+)\)`)

// Classify returns the kind of a source marker and, for loop starts, the
// loop variable.
func Classify(field string) (FieldKind, string) {
	switch {
	case strings.Contains(field, ":each"):
		if m := eachVarRe.FindStringSubmatch(field); m != nil {
			return KindLoopStart, m[1]
		}
		before, _, _ := strings.Cut(field, ":each")
		return KindLoopStart, before
	case strings.Contains(field, ":endEach"), strings.HasSuffix(field, ":end"):
		return KindLoopEnd, ""
	case strings.Contains(field, ":endIf"):
		return KindBlockEnd, ""
	case strings.Contains(field, ":if"):
		return KindConditional, ""
	default:
		return KindSimple, ""
	}
}

// ParseStructure walks markers in document order, tracking the open loop
// variables. Conditional ends do not close loops.
func ParseStructure(fields []string) Structure {
	structure := make(Structure)
	var stack []string
	siblings := make(map[int][]string)

	for _, f := range fields {
		kind, loopVar := Classify(f)
		switch kind {
		case KindLoopStart:
			stack = append(stack, loopVar)
		case KindLoopEnd:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case KindBlockEnd:
		default:
			depth := len(stack)
			structure[f] = FieldContext{
				Kind:        kind,
				ContextPath: append([]string(nil), stack...),
				Depth:       depth,
				Siblings:    append([]string(nil), siblings[depth]...),
			}
			siblings[depth] = append(siblings[depth], f)
		}
	}
	return structure
}
