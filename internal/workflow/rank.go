// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pdiddy/template-converter/internal/coherence"
	"github.com/pdiddy/template-converter/internal/fields"
	"github.com/pdiddy/template-converter/internal/learn"
	"github.com/pdiddy/template-converter/internal/match"
	"github.com/pdiddy/template-converter/pkg/types"
)

// minNameSimilarity keeps a destination path as a candidate for ranking.
const minNameSimilarity = 0.5

// Ranking lists the coherence-ranked destination candidates for one
// unresolved field.
type Ranking struct {
	Field      string              `json:"field" yaml:"field"`
	Candidates []types.MatchResult `json:"candidates" yaml:"candidates"`
}

// Rank proposes destinations for the fields of the template at path that
// no rule resolves. Candidates are destination paths whose last segment
// resembles the field name; they are re-ranked by loop nesting, the open
// loop's destination array and sibling mappings in the store. At most
// limit candidates are kept per field (0 keeps all).
func (w *Workflow) Rank(ctx context.Context, path, dstRef string, limit int) ([]Ranking, error) {
	a, err := w.Analyze(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	dst, err := w.Schema(ctx, dstRef, false)
	if err != nil {
		return nil, fmt.Errorf("loading destination: %w", err)
	}

	structure := coherence.ParseStructure(fields.ExtractNames(a.Markup))
	loopArrays := w.loopDestinations(ctx, a.Loops)
	scorer := coherence.NewScorer(w.cfg.Coherence)
	paths := destinationPaths(dst)

	var out []Ranking
	for _, field := range a.Result.Unresolved() {
		cands := nameCandidates(field, paths)
		if len(cands) == 0 {
			continue
		}
		cctx := coherence.Context{Structure: structure, Siblings: w.store}
		if fc, ok := structure[field]; ok && len(fc.ContextPath) > 0 {
			inner := fc.ContextPath[len(fc.ContextPath)-1]
			if arr, ok := loopArrays[inner]; ok {
				cctx.Open = strings.Split(arr, ".")
			}
		}
		ranked := scorer.ScoreCandidates(field, cands, cctx)
		if limit > 0 && len(ranked) > limit {
			ranked = ranked[:limit]
		}
		out = append(out, Ranking{Field: field, Candidates: ranked})
	}
	return out, nil
}

// loopDestinations maps loop variables to the destination array path
// stored for their collection, without the "[]" suffix.
func (w *Workflow) loopDestinations(ctx context.Context, loops []learn.Loop) map[string]string {
	out := make(map[string]string, len(loops))
	for _, l := range loops {
		am, err := w.store.GetArray(ctx, l.Array)
		if err != nil {
			continue
		}
		out[l.Var] = strings.TrimSuffix(am.DestinationArray, "[]")
	}
	return out
}

// destinationPaths lists scalar destination paths with array indices
// written as "[]".
func destinationPaths(dst map[string]types.SchemaField) []string {
	var out []string
	seen := make(map[string]bool)
	for p, f := range dst {
		if f.Type == types.TypeObject || f.Type == types.TypeArray {
			continue
		}
		p = strings.ReplaceAll(p, "[0]", "[]")
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// nameCandidates pairs field with every destination path whose last
// segment is similar enough to the field's.
func nameCandidates(field string, paths []string) []types.MatchResult {
	name := match.FieldName(strings.TrimPrefix(field, "="))
	var out []types.MatchResult
	for _, p := range paths {
		sim := match.NameSimilarity(name, match.FieldName(strings.ReplaceAll(p, "[]", "")))
		if sim < minNameSimilarity {
			continue
		}
		out = append(out, types.MatchResult{
			SourcePath:      field,
			DestinationPath: p,
			Confidence:      sim,
			Level:           match.Level(sim),
			MatchType:       types.MatchName,
			Reasons:         []string{fmt.Sprintf("name similarity %.2f", sim)},
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}
