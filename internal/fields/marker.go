// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fields finds merge fields in WordprocessingML markup and
// classifies the source-dialect markers they carry.
package fields

import (
	"regexp"
	"sort"
	"strings"
)

// MarkerKind identifies the shape of a source-dialect field name.
type MarkerKind string

const (
	KindSimple    MarkerKind = "simple"
	KindLoopStart MarkerKind = "loop_start"
	KindLoopEnd   MarkerKind = "loop_end"
	KindCondStart MarkerKind = "cond_start"
	KindCondEnd   MarkerKind = "cond_end"
	KindElse      MarkerKind = "else"
	KindTag       MarkerKind = "tag"
	KindUnknown   MarkerKind = "unknown"
)

// Marker is a parsed field name such as "=client_name",
// "locations:each(location)" or "payment_terms.other?:if".
type Marker struct {
	Raw  string
	Kind MarkerKind

	// Base is the part before the first ':' ("locations" for
	// "locations:each(location)"), or the path after '=' for simple fields.
	Base string

	// Arg is the parenthesized argument, if any: the loop variable for
	// :each, the predicate for :if.
	Arg string
}

var (
	eachRe = regexp.MustCompile(`^(.*?):each\(([^)]*)\)$`)
	ifRe   = regexp.MustCompile(`^(.*?):if(?:\(([^)]*)\))?$`)
)

// ParseMarker classifies a field name by its marker suffix.
func ParseMarker(name string) Marker {
	m := Marker{Raw: name, Kind: KindUnknown}
	switch {
	case name == "":
	case strings.HasPrefix(name, "{") && strings.HasSuffix(name, "}"):
		m.Kind = KindTag
		m.Base = strings.Trim(name, "{}#^/")
	case strings.HasPrefix(name, "="):
		m.Kind = KindSimple
		m.Base = name[1:]
	case eachRe.MatchString(name):
		sub := eachRe.FindStringSubmatch(name)
		m.Kind, m.Base, m.Arg = KindLoopStart, sub[1], sub[2]
	case strings.HasSuffix(name, ":endEach"):
		m.Kind, m.Base = KindLoopEnd, strings.TrimSuffix(name, ":endEach")
	case strings.HasSuffix(name, ":endIf"):
		m.Kind, m.Base = KindCondEnd, strings.TrimSuffix(name, ":endIf")
	case strings.HasSuffix(name, ":end"):
		m.Kind, m.Base = KindLoopEnd, strings.TrimSuffix(name, ":end")
	case ifRe.MatchString(name):
		sub := ifRe.FindStringSubmatch(name)
		m.Kind, m.Base, m.Arg = KindCondStart, sub[1], sub[2]
	case name == ":else" || strings.HasSuffix(name, ":else"):
		m.Kind, m.Base = KindElse, strings.TrimSuffix(name, ":else")
	}
	return m
}

// IsControl reports whether the marker opens, closes or splits a block.
func (m Marker) IsControl() bool {
	switch m.Kind {
	case KindLoopStart, KindLoopEnd, KindCondStart, KindCondEnd, KindElse:
		return true
	}
	return false
}

// Structure groups distinct field names by marker shape.
type Structure struct {
	Simple       []string `json:"simple" yaml:"simple"`
	Loops        []string `json:"loops" yaml:"loops"`
	Conditionals []string `json:"conditionals" yaml:"conditionals"`
	EndMarkers   []string `json:"end_markers" yaml:"end_markers"`
}

// Total returns the number of classified names.
func (s Structure) Total() int {
	return len(s.Simple) + len(s.Loops) + len(s.Conditionals) + len(s.EndMarkers)
}

// Classify deduplicates names and sorts them into the four groups. Names
// matching none of the shapes are dropped. Each group is sorted.
func Classify(names []string) Structure {
	seen := make(map[string]bool, len(names))
	var s Structure
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		switch {
		case strings.HasPrefix(n, "="):
			s.Simple = append(s.Simple, n)
		case strings.Contains(n, ":each"):
			s.Loops = append(s.Loops, n)
		case strings.Contains(n, ":if"):
			s.Conditionals = append(s.Conditionals, n)
		case strings.Contains(n, ":end"), strings.Contains(n, ":else"):
			s.EndMarkers = append(s.EndMarkers, n)
		}
	}
	sort.Strings(s.Simple)
	sort.Strings(s.Loops)
	sort.Strings(s.Conditionals)
	sort.Strings(s.EndMarkers)
	return s
}

// ExtractNames returns the merge field names in markup in document order,
// duplicates included. Instructions split across instrText runs are
// joined before the name is read.
func ExtractNames(markup string) []string {
	var names []string
	for _, sp := range Scan(markup) {
		if sp.Name != "" {
			names = append(names, sp.Name)
		}
	}
	return names
}
