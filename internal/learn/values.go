// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package learn infers field correspondences between two schema instances
// from literal values they share, and loop-to-array correspondences from
// the fields a template loop references.
package learn

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/template-converter/pkg/types"
)

// Confidence values attached to value correspondences per level.
const (
	HighConfidence   = 0.9
	MediumConfidence = 0.6
	LowConfidence    = 0.3
)

// Options controls LearnCorrespondences.
type Options struct {
	// StripPrefix is removed from paths that start with it.
	StripPrefix string
}

// ValuePaths maps every scalar leaf value of instance to the paths where it
// occurs. Array elements reuse the array's path without an index, so one
// value repeated across elements yields one path. Keys are the canonical
// string form of the value, prefixed with its kind ("s:" or "n:").
func ValuePaths(instance any, stripPrefix string) map[string][]string {
	out := make(map[string][]string)
	seen := make(map[string]map[string]bool)

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
				switch t[k].(type) {
				case map[string]any, []any:
					walk(t[k], child)
					continue
				}
				key, ok := valueKey(t[k])
				if !ok {
					continue
				}
				final := child
				if stripPrefix != "" {
					final = strings.TrimPrefix(child, stripPrefix)
				}
				if seen[key] == nil {
					seen[key] = make(map[string]bool)
				}
				if !seen[key][final] {
					seen[key][final] = true
					out[key] = append(out[key], final)
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
	walk(instance, "")
	return out
}

// valueKey returns the comparison key for a scalar. Booleans, nil, empty
// strings and strings of two characters or fewer are not discriminative
// and are rejected.
func valueKey(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		if len([]rune(t)) <= 2 {
			return "", false
		}
		return "s:" + t, true
	case float64:
		return "n:" + strconv.FormatFloat(t, 'g', -1, 64), true
	case float32:
		return "n:" + strconv.FormatFloat(float64(t), 'g', -1, 64), true
	case int:
		return "n:" + strconv.FormatFloat(float64(t), 'g', -1, 64), true
	case int64:
		return "n:" + strconv.FormatFloat(float64(t), 'g', -1, 64), true
	case uint64:
		return "n:" + strconv.FormatFloat(float64(t), 'g', -1, 64), true
	default:
		return "", false
	}
}

func displayValue(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[i+1:]
	}
	return key
}

// LearnCorrespondences proposes source -> destination paths for every value
// present in both instances. A value seen at exactly one path on each side
// is high confidence; one source path and several destination paths is
// medium (shortest destination wins); anything else is low (shortest on each
// side). Results are ordered high, medium, low, then by source path.
func LearnCorrespondences(source, destination any, opts Options) []types.MatchResult {
	src := ValuePaths(source, opts.StripPrefix)
	dst := ValuePaths(destination, opts.StripPrefix)

	var out []types.MatchResult
	for key, sp := range src {
		dp, ok := dst[key]
		if !ok {
			continue
		}
		r := types.MatchResult{MatchType: types.MatchValue, Value: displayValue(key)}
		switch {
		case len(sp) == 1 && len(dp) == 1:
			r.SourcePath, r.DestinationPath = sp[0], dp[0]
			r.Level, r.Confidence = types.LevelHigh, HighConfidence
		case len(sp) == 1:
			r.SourcePath, r.DestinationPath = sp[0], shortest(dp)
			r.Level, r.Confidence = types.LevelMedium, MediumConfidence
		default:
			r.SourcePath, r.DestinationPath = shortest(sp), shortest(dp)
			r.Level, r.Confidence = types.LevelLow, LowConfidence
		}
		r.Reasons = []string{fmt.Sprintf("value %q at %d source and %d destination paths", r.Value, len(sp), len(dp))}
		out = append(out, r)
	}

	rank := map[types.ConfidenceLevel]int{types.LevelHigh: 0, types.LevelMedium: 1, types.LevelLow: 2}
	sort.Slice(out, func(i, j int) bool {
		if ri, rj := rank[out[i].Level], rank[out[j].Level]; ri != rj {
			return ri < rj
		}
		if out[i].SourcePath != out[j].SourcePath {
			return out[i].SourcePath < out[j].SourcePath
		}
		if out[i].DestinationPath != out[j].DestinationPath {
			return out[i].DestinationPath < out[j].DestinationPath
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// shortest returns the shortest path, breaking ties lexically.
func shortest(paths []string) string {
	best := paths[0]
	for _, p := range paths[1:] {
		if len(p) < len(best) || (len(p) == len(best) && p < best) {
			best = p
		}
	}
	return best
}
