// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package match scores source/destination field pairs by name, type and
// structural position when value evidence is missing or ambiguous.
package match

import (
	"fmt"
	"math"
	"regexp"
	"sort"

	"github.com/pdiddy/template-converter/internal/schema"
	"github.com/pdiddy/template-converter/pkg/types"
)

// Matcher scores field pairs. Name similarity dominates; type, array
// composition, depth and parent evidence together add at most SupportCap.
type Matcher struct {
	cfg types.MatcherConfig
}

// New returns a Matcher. Zero-valued settings fall back to the defaults.
func New(cfg types.MatcherConfig) *Matcher {
	def := types.DefaultConfig().Matcher
	if cfg.NameThreshold == 0 {
		cfg.NameThreshold = def.NameThreshold
	}
	if cfg.ExactNameWeight == 0 {
		cfg.ExactNameWeight = def.ExactNameWeight
	}
	if cfg.SupportCap == 0 {
		cfg.SupportCap = def.SupportCap
	}
	if cfg.NoNameCap == 0 {
		cfg.NoNameCap = def.NoNameCap
	}
	if cfg.MinConfidence == 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	if cfg.ArrayMinConfidence == 0 {
		cfg.ArrayMinConfidence = def.ArrayMinConfidence
	}
	return &Matcher{cfg: cfg}
}

// NameSimilarity compares two field names in [0,1].
func NameSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	n1, n2 := NormalizeName(a), NormalizeName(b)
	if n1 == n2 {
		return 0.95
	}
	if s := synonymScore(n1, n2); s > 0 {
		return s
	}
	words1, words2 := SplitWords(n1), SplitWords(n2)
	if len(words1) == 1 && contains(words2, words1[0]) {
		return 0.5 + 0.25/float64(len(words2))
	}
	if len(words2) == 1 && contains(words1, words2[0]) {
		return 0.5 + 0.25/float64(len(words1))
	}
	return LevenshteinNormalized(n1, n2)
}

// TypesCompatible reports whether two inferred types can hold the same data.
func TypesCompatible(a, b types.FieldType) bool {
	if a == b {
		return true
	}
	numbers := map[types.FieldType]bool{"number": true, "integer": true, "float": true, "decimal": true}
	if numbers[a] && numbers[b] {
		return true
	}
	strs := map[types.FieldType]bool{"string": true, "text": true}
	return strs[a] && strs[b]
}

// Level buckets a match confidence.
func Level(confidence float64) types.ConfidenceLevel {
	switch {
	case confidence >= 0.8:
		return types.LevelHigh
	case confidence >= 0.5:
		return types.LevelMedium
	case confidence > 0:
		return types.LevelLow
	default:
		return types.LevelNone
	}
}

type fieldInfo struct {
	path       string
	name       string
	typ        types.FieldType
	isArray    bool
	arrayCount int
	parentPath string
	depth      int
	children   []string
}

type index struct {
	paths  []string
	fields map[string]fieldInfo
}

func buildIndex(structure map[string]types.SchemaField) index {
	paths := schema.SortedPaths(structure)
	ix := index{paths: paths, fields: make(map[string]fieldInfo, len(paths))}
	for _, p := range paths {
		f := structure[p]
		typ := f.Type
		if typ == "" {
			typ = types.TypeUnknown
		}
		ix.fields[p] = fieldInfo{
			path:       p,
			name:       FieldName(p),
			typ:        typ,
			isArray:    f.IsArray,
			arrayCount: f.ArrayCount,
			parentPath: schema.ParentPath(p),
			depth:      schema.Depth(p),
			children:   schema.Descendants(paths, p),
		}
	}
	return ix
}

// score compares one source field against one destination field. It returns
// zero and MatchNone when no evidence at all was found.
func (m *Matcher) score(src, dst fieldInfo) (float64, types.MatchType, []string) {
	var reasons []string
	nameScore := 0.0
	matchType := types.MatchFuzzy

	sim := NameSimilarity(src.name, dst.name)
	switch {
	case sim == 1:
		reasons = append(reasons, fmt.Sprintf("exact name match: %q", src.name))
		nameScore = m.cfg.ExactNameWeight
		matchType = types.MatchExact
	case sim >= m.cfg.NameThreshold:
		reasons = append(reasons, fmt.Sprintf("similar name: %q ~ %q (%.0f%%)", src.name, dst.name, sim*100))
		nameScore = 0.4 + (sim-m.cfg.NameThreshold)*0.5
		matchType = types.MatchName
	case sim >= 0.5:
		reasons = append(reasons, fmt.Sprintf("partial name match: %q ~ %q (%.0f%%)", src.name, dst.name, sim*100))
		nameScore = sim * 0.5
		matchType = types.MatchName
	}

	support := 0.0
	if src.typ == dst.typ {
		reasons = append(reasons, fmt.Sprintf("same type: %s", src.typ))
		support += 0.15
	} else if TypesCompatible(src.typ, dst.typ) {
		reasons = append(reasons, fmt.Sprintf("compatible types: %s ~ %s", src.typ, dst.typ))
		support += 0.08
	}

	if src.isArray && dst.isArray {
		if as := childJaccard(src.children, dst.children); as > 0.3 {
			reasons = append(reasons, fmt.Sprintf("similar array structure (%.0f%%)", as*100))
			support += as * 0.15
			if matchType == types.MatchFuzzy {
				matchType = types.MatchStructural
			}
		}
	}

	switch d := src.depth - dst.depth; {
	case d == 0:
		reasons = append(reasons, "same nesting depth")
		support += 0.05
	case d == 1 || d == -1:
		support += 0.02
	}

	if src.parentPath != "" && dst.parentPath != "" {
		p1, p2 := FieldName(src.parentPath), FieldName(dst.parentPath)
		if ps := NameSimilarity(p1, p2); ps >= 0.8 {
			reasons = append(reasons, fmt.Sprintf("similar parent: %q ~ %q", p1, p2))
			support += ps * 0.05
		}
	}

	if len(reasons) == 0 {
		return 0, types.MatchNone, nil
	}

	total := nameScore + math.Min(support, m.cfg.SupportCap)
	if nameScore == 0 {
		total = math.Min(total, m.cfg.NoNameCap)
	}
	return total, matchType, reasons
}

func childJaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return jaccard(nameSet(a), nameSet(b))
}

func nameSet(paths []string) map[string]bool {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[FieldName(p)] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	union := make(map[string]bool, len(a)+len(b))
	common := 0
	for k := range a {
		union[k] = true
		if b[k] {
			common++
		}
	}
	for k := range b {
		union[k] = true
	}
	if len(union) == 0 {
		return 0
	}
	return float64(common) / float64(len(union))
}

func (m *Matcher) candidates(src fieldInfo, dst index) []types.MatchResult {
	var out []types.MatchResult
	for _, p := range dst.paths {
		conf, mt, reasons := m.score(src, dst.fields[p])
		if conf <= 0 {
			continue
		}
		out = append(out, types.MatchResult{
			SourcePath:      src.path,
			DestinationPath: p,
			Confidence:      conf,
			Level:           Level(conf),
			MatchType:       mt,
			Reasons:         reasons,
		})
	}
	return out
}

// FindMatches returns every candidate pair at or above minConfidence (the
// configured default when minConfidence is zero), highest confidence first.
func (m *Matcher) FindMatches(src, dst map[string]types.SchemaField, minConfidence float64) []types.MatchResult {
	if minConfidence == 0 {
		minConfidence = m.cfg.MinConfidence
	}
	si, di := buildIndex(src), buildIndex(dst)

	var out []types.MatchResult
	for _, p := range si.paths {
		for _, c := range m.candidates(si.fields[p], di) {
			if c.Confidence >= minConfidence {
				out = append(out, c)
			}
		}
	}
	sortByConfidence(out)
	return out
}

var typePriority = map[types.MatchType]int{
	types.MatchExact:      4,
	types.MatchName:       3,
	types.MatchStructural: 2,
	types.MatchFuzzy:      1,
}

// FindBestMatches keeps one candidate per source field. Ties on confidence
// prefer exact > name > structural > fuzzy, then the lexically first
// destination path.
func (m *Matcher) FindBestMatches(src, dst map[string]types.SchemaField, minConfidence float64) []types.MatchResult {
	if minConfidence == 0 {
		minConfidence = m.cfg.MinConfidence
	}
	si, di := buildIndex(src), buildIndex(dst)

	var out []types.MatchResult
	for _, p := range si.paths {
		cands := m.candidates(si.fields[p], di)
		if len(cands) == 0 {
			continue
		}
		sort.SliceStable(cands, func(i, j int) bool {
			if cands[i].Confidence != cands[j].Confidence {
				return cands[i].Confidence > cands[j].Confidence
			}
			if pi, pj := typePriority[cands[i].MatchType], typePriority[cands[j].MatchType]; pi != pj {
				return pi > pj
			}
			return cands[i].DestinationPath < cands[j].DestinationPath
		})
		if cands[0].Confidence >= minConfidence {
			out = append(out, cands[0])
		}
	}
	sortByConfidence(out)
	return out
}

// MatchArrays pairs each source array with the destination array whose item
// fields, name, size and parent agree best. The first destination wins ties.
func (m *Matcher) MatchArrays(src, dst map[string]types.SchemaField, minConfidence float64) []types.MatchResult {
	if minConfidence == 0 {
		minConfidence = m.cfg.ArrayMinConfidence
	}
	si, di := buildIndex(src), buildIndex(dst)

	var out []types.MatchResult
	for _, sp := range si.paths {
		s := si.fields[sp]
		if !s.isArray {
			continue
		}
		var best *types.MatchResult
		bestScore := 0.0
		for _, dp := range di.paths {
			d := di.fields[dp]
			if !d.isArray {
				continue
			}
			score, reasons := arrayScore(s, d, si.paths, di.paths)
			if score > bestScore && score >= minConfidence {
				bestScore = score
				best = &types.MatchResult{
					SourcePath:      sp,
					DestinationPath: dp,
					Confidence:      score,
					Level:           Level(score),
					MatchType:       types.MatchArray,
					Reasons:         reasons,
				}
			}
		}
		if best != nil {
			out = append(out, *best)
		}
	}
	sortByConfidence(out)
	return out
}

func arrayScore(s, d fieldInfo, srcPaths, dstPaths []string) (float64, []string) {
	var reasons []string
	total := 0.0

	if sim := NameSimilarity(s.name, d.name); sim >= 0.8 {
		reasons = append(reasons, fmt.Sprintf("array name match: %q ~ %q", s.name, d.name))
		total += sim * 0.3
	}

	sf, df := itemFields(s.path, srcPaths), itemFields(d.path, dstPaths)
	if len(sf) > 0 && len(df) > 0 {
		if fs := jaccard(sf, df); fs > 0 {
			reasons = append(reasons, fmt.Sprintf("common item fields (%.0f%%)", fs*100))
			total += fs * 0.5
		}
	}

	if s.arrayCount > 0 && d.arrayCount > 0 {
		ratio := float64(min(s.arrayCount, d.arrayCount)) / float64(max(s.arrayCount, d.arrayCount))
		if ratio > 0.5 {
			reasons = append(reasons, fmt.Sprintf("similar item count: %d vs %d", s.arrayCount, d.arrayCount))
			total += ratio * 0.1
		}
	}

	if s.parentPath != "" && d.parentPath != "" {
		p1, p2 := FieldName(s.parentPath), FieldName(d.parentPath)
		if ps := NameSimilarity(p1, p2); ps >= 0.7 {
			reasons = append(reasons, fmt.Sprintf("similar parent: %q ~ %q", p1, p2))
			total += ps * 0.1
		}
	}

	if total > 0.5 {
		reasons = append(reasons, "structural")
	} else if total > 0 {
		reasons = append(reasons, "weak")
	}
	return total, reasons
}

// itemFields returns the leaf names found under arrayPath[N].
func itemFields(arrayPath string, paths []string) map[string]bool {
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(arrayPath) + `\[\d+\]\.(.+)$`)
	set := make(map[string]bool)
	for _, p := range paths {
		if mm := re.FindStringSubmatch(p); mm != nil {
			set[FieldName(mm[1])] = true
		}
	}
	return set
}

func sortByConfidence(ms []types.MatchResult) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].Confidence != ms[j].Confidence {
			return ms[i].Confidence > ms[j].Confidence
		}
		if ms[i].SourcePath != ms[j].SourcePath {
			return ms[i].SourcePath < ms[j].SourcePath
		}
		return ms[i].DestinationPath < ms[j].DestinationPath
	})
}
