// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package coherence

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pdiddy/template-converter/pkg/types"
)

// SiblingLookup resolves the destination already chosen for a source
// marker. The mapping store and MapLookup implement it.
type SiblingLookup interface {
	Destination(source string) (string, bool)
}

// MapLookup is a SiblingLookup over mappings chosen during the current run.
type MapLookup map[string]string

func (m MapLookup) Destination(source string) (string, bool) {
	d, ok := m[source]
	return d, ok
}

// Context is the surrounding state a candidate is scored against.
type Context struct {
	Structure Structure

	// Open lists the destination path segments of the repeating blocks open
	// at the field, e.g. ["project", "pricing", "phases"].
	Open []string

	// Siblings resolves sibling markers to their chosen destinations. Nil
	// disables the sibling rule.
	Siblings SiblingLookup
}

// Scorer applies the depth, context and sibling rules.
type Scorer struct {
	cfg types.CoherenceConfig
}

// NewScorer returns a Scorer; zero weights fall back to the defaults.
func NewScorer(cfg types.CoherenceConfig) *Scorer {
	if cfg == (types.CoherenceConfig{}) {
		cfg = types.DefaultConfig().Coherence
	}
	return &Scorer{cfg: cfg}
}

type segment struct {
	name    string
	isArray bool
}

// parsePath splits a destination path into segments, treating "[]" or "#"
// in a segment as an array marker and dropping tag braces.
func parsePath(path string) []segment {
	parts := strings.Split(path, ".")
	segs := make([]segment, 0, len(parts))
	for _, p := range parts {
		arr := strings.Contains(p, "[]") || strings.Contains(p, "#")
		name := strings.NewReplacer("[]", "", "#", "", "{", "", "}", "").Replace(p)
		segs = append(segs, segment{name: name, isArray: arr})
	}
	return segs
}

func arrayDepth(segs []segment) int {
	n := 0
	for _, s := range segs {
		if s.isArray {
			n++
		}
	}
	return n
}

func names(segs []segment) []string {
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = s.name
	}
	return out
}

func commonPrefixLen(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

// Score rates one candidate for field in [0,1].
func (s *Scorer) Score(field, candidate string, ctx Context) (float64, []string) {
	info := ctx.Structure[field]
	segs := parsePath(candidate)
	var reasons []string
	score := 0.0

	switch d := arrayDepth(segs) - info.Depth; {
	case d == 0:
		score += s.cfg.DepthWeight
		reasons = append(reasons, fmt.Sprintf("nesting depth %d matches", info.Depth))
	case d == 1 || d == -1:
		score += s.cfg.DepthWeight / 2
		reasons = append(reasons, "nesting depth off by one")
	}

	if len(ctx.Open) > 0 {
		cand := names(segs)
		shared := commonPrefixLen(cand, ctx.Open)
		switch {
		case shared == len(ctx.Open):
			score += s.cfg.ContextWeight
			reasons = append(reasons, fmt.Sprintf("inside open block %s", strings.Join(ctx.Open, ".")))
		case shared >= 2:
			score += s.cfg.ContextWeight / 2
			reasons = append(reasons, fmt.Sprintf("shares %d segments with open block", shared))
		}
	}

	if ctx.Siblings != nil && len(info.Siblings) > 0 {
		var mapped []string
		for _, sib := range info.Siblings {
			if d, ok := ctx.Siblings.Destination(sib); ok {
				mapped = append(mapped, stripTag(d))
			}
		}
		if prefix := commonPrefix(mapped); prefix != "" && strings.HasPrefix(stripTag(candidate), prefix) {
			ratio := float64(len(prefix)) / float64(len(stripTag(candidate)))
			score += s.cfg.SiblingWeight * ratio
			reasons = append(reasons, fmt.Sprintf("agrees with sibling prefix %s", prefix))
		}
	}

	return math.Min(score, 1.0), reasons
}

func stripTag(p string) string {
	return strings.Trim(p, "{}#^/")
}

// commonPrefix returns the longest run of dot segments shared by all paths.
func commonPrefix(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	common := strings.Split(paths[0], ".")
	for _, p := range paths[1:] {
		common = common[:commonPrefixLen(common, strings.Split(p, "."))]
	}
	return strings.Join(common, ".")
}

// Level buckets a coherence score.
func (s *Scorer) Level(score float64) types.ConfidenceLevel {
	switch {
	case score >= s.cfg.HighLevel:
		return types.LevelHigh
	case score >= s.cfg.MediumLevel:
		return types.LevelMedium
	default:
		return types.LevelLow
	}
}

// ScoreCandidates re-ranks candidates for field by coherence. The returned
// results carry the coherence score as Confidence, keep the original
// reasons and append the coherence ones. Equal scores keep input order.
func (s *Scorer) ScoreCandidates(field string, candidates []types.MatchResult, ctx Context) []types.MatchResult {
	out := make([]types.MatchResult, len(candidates))
	for i, c := range candidates {
		score, reasons := s.Score(field, c.DestinationPath, ctx)
		c.Reasons = append(append([]string(nil), c.Reasons...), reasons...)
		c.Confidence = score
		c.Level = s.Level(score)
		if c.SourcePath == "" {
			c.SourcePath = field
		}
		out[i] = c
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}
