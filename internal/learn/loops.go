// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package learn

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/template-converter/pkg/types"
)

// Loop is a source-dialect repeating block found in template markup.
type Loop struct {
	// Array is the collection expression before ":each", e.g. "locations".
	Array string `json:"array" yaml:"array"`

	// Var is the loop variable, e.g. "location".
	Var string `json:"var" yaml:"var"`

	// Fields lists the distinct "var.field" references inside the block,
	// in order of first appearance.
	Fields []string `json:"fields" yaml:"fields"`
}

var (
	eachRe    = regexp.MustCompile(`([\w.]*):each\((\w+)\)`)
	endEachRe = regexp.MustCompile(`:endEach`)
)

// DetectLoops finds every name:each(var) marker and collects the =var.field
// references up to the next :endEach. A marker repeated in the field's
// display text, or a loop used twice, is reported once.
func DetectLoops(markup string) []Loop {
	var loops []Loop
	seenLoop := make(map[string]bool)
	for _, m := range eachRe.FindAllStringSubmatchIndex(markup, -1) {
		l := Loop{Array: markup[m[2]:m[3]], Var: markup[m[4]:m[5]]}
		key := l.Array + ":" + l.Var
		if seenLoop[key] {
			continue
		}
		seenLoop[key] = true
		start := m[0]
		end := endEachRe.FindStringIndex(markup[start:])
		if end != nil {
			body := markup[start : start+end[1]]
			fieldRe := regexp.MustCompile(`=` + regexp.QuoteMeta(l.Var) + `\.(\w+)`)
			seen := make(map[string]bool)
			for _, fm := range fieldRe.FindAllStringSubmatch(body, -1) {
				name := l.Var + "." + fm[1]
				if !seen[name] {
					seen[name] = true
					l.Fields = append(l.Fields, name)
				}
			}
		}
		loops = append(loops, l)
	}
	return loops
}

// stripWrapper descends into data.attributes.content when present.
func stripWrapper(v any) any {
	cur := v
	for _, k := range []string{"data", "attributes", "content"} {
		m, ok := cur.(map[string]any)
		if !ok {
			return v
		}
		next, ok := m[k]
		if !ok {
			return v
		}
		cur = next
	}
	return cur
}

// MatchArray searches destination for the array of objects whose first
// element best covers the loop's fields. Keys are visited in sorted order
// and only a strictly better score replaces the current best, so the first
// array found wins ties.
func MatchArray(loop Loop, destination any) (string, float64, bool) {
	names := fieldNames(loop)
	bestPath, bestScore := "", 0.0

	var walk func(v any, path string)
	walk = func(v any, path string) {
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
				if arr, ok := t[k].([]any); ok && len(arr) > 0 {
					if item, ok := arr[0].(map[string]any); ok {
						if s := itemScore(names, loop.Var, item); s > bestScore {
							bestScore, bestPath = s, child
						}
					}
				}
				switch t[k].(type) {
				case map[string]any, []any:
					walk(t[k], child)
				}
			}
		case []any:
			for _, item := range t {
				switch item.(type) {
				case map[string]any, []any:
					walk(item, path)
				}
			}
		}
	}
	walk(stripWrapper(destination), "")

	if bestPath == "" {
		return "", 0, false
	}
	return bestPath, bestScore, true
}

func fieldNames(loop Loop) []string {
	names := make([]string, len(loop.Fields))
	for i, f := range loop.Fields {
		if _, after, ok := strings.Cut(f, "."); ok {
			names[i] = after
		} else {
			names[i] = f
		}
	}
	return names
}

// itemScore is the fraction of loop fields found among item's keys: an
// exact or underscore-joined key ("name" or "location_name") counts 1, a
// case-insensitive substring match either way counts 0.5.
func itemScore(names []string, loopVar string, item map[string]any) float64 {
	if len(names) == 0 || len(item) == 0 {
		return 0
	}
	keys := make([]string, 0, len(item))
	for k := range item {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	matched := 0.0
	for _, name := range names {
		if _, ok := item[name]; ok {
			matched++
			continue
		}
		if _, ok := item[strings.ReplaceAll(name, ".", "_")]; ok {
			matched++
			continue
		}
		if _, ok := item[loopVar+"_"+name]; ok {
			matched++
			continue
		}
		ln := strings.ToLower(name)
		for _, k := range keys {
			lk := strings.ToLower(k)
			if strings.Contains(lk, ln) || strings.Contains(ln, lk) {
				matched += 0.5
				break
			}
		}
	}
	return matched / float64(len(names))
}

// matchKey returns the item key a loop field maps to, or "".
func matchKey(name, loopVar string, item map[string]any) string {
	for _, k := range []string{name, strings.ReplaceAll(name, ".", "_"), loopVar + "_" + name} {
		if _, ok := item[k]; ok {
			return k
		}
	}
	keys := make([]string, 0, len(item))
	for k := range item {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ln := strings.ToLower(name)
	for _, k := range keys {
		lk := strings.ToLower(k)
		if strings.Contains(lk, ln) || strings.Contains(ln, lk) {
			return k
		}
	}
	return ""
}

// LoopMapping is a learned loop-to-array correspondence with the overlap
// fraction that selected it.
type LoopMapping struct {
	Loop       Loop
	Mapping    types.ArrayMapping
	Confidence float64
}

// LearnLoops detects the loops in markup and pairs each with a destination
// array. Loops without any matching array are omitted.
func LearnLoops(markup string, destination any) []LoopMapping {
	now := time.Now().UTC()
	root := stripWrapper(destination)

	var out []LoopMapping
	for _, l := range DetectLoops(markup) {
		path, score, ok := MatchArray(l, root)
		if !ok {
			continue
		}
		source := l.Array
		if source == "" {
			source = l.Var
		}
		am := types.ArrayMapping{
			SourceArray:      source + "[]",
			DestinationArray: path + "[]",
			Score:            1,
			Source:           types.SourceLearned,
			TimesSeen:        1,
			FirstSeen:        now,
			LastSeen:         now,
		}
		if item := firstItem(root, path); item != nil {
			for i, name := range fieldNames(l) {
				if k := matchKey(name, l.Var, item); k != "" {
					am.FieldMappings = append(am.FieldMappings, types.InnerMapping{Source: l.Fields[i], Destination: k})
				}
			}
		}
		out = append(out, LoopMapping{Loop: l, Mapping: am, Confidence: score})
	}
	return out
}

// firstItem follows a dot path (descending through first array elements)
// and returns the first element of the array it names.
func firstItem(root any, path string) map[string]any {
	cur := root
	for _, seg := range strings.Split(path, ".") {
		for {
			arr, ok := cur.([]any)
			if !ok || len(arr) == 0 {
				break
			}
			cur = arr[0]
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[seg]
	}
	arr, ok := cur.([]any)
	if !ok || len(arr) == 0 {
		return nil
	}
	item, _ := arr[0].(map[string]any)
	return item
}
