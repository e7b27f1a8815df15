// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package learn

import (
	"context"
	"fmt"
	"io"

	"github.com/pdiddy/template-converter/internal/mappingstore"
	"github.com/pdiddy/template-converter/pkg/types"
)

// Recorder stores learned evidence. The mapping store satisfies it.
type Recorder interface {
	Observe(ctx context.Context, obs mappingstore.Observation) (types.FieldMapping, error)
	ObserveArray(ctx context.Context, obs mappingstore.ArrayObservation) (types.ArrayMapping, error)
}

// RecordOptions controls Record.
type RecordOptions struct {
	// Project tags every observation.
	Project string

	// IncludeLow records low-confidence correspondences too. By default
	// only high and medium ones become evidence.
	IncludeLow bool
}

// Summary counts the outcome of recording one learning run.
type Summary struct {
	Recorded int
	Skipped  int
	Loops    int
}

// Total returns the number of correspondences considered.
func (s Summary) Total() int {
	return s.Recorded + s.Skipped + s.Loops
}

// Record turns value correspondences and loop mappings into store
// observations of kind learned, writing one line per item to w.
func Record(ctx context.Context, rec Recorder, results []types.MatchResult, loops []LoopMapping, opts RecordOptions, w io.Writer) (Summary, error) {
	var sum Summary
	for _, r := range results {
		if r.Level == types.LevelLow && !opts.IncludeLow {
			fmt.Fprintf(w, "skipped: %s -> %s (%s)\n", r.SourcePath, r.DestinationPath, r.Level)
			sum.Skipped++
			continue
		}
		_, err := rec.Observe(ctx, mappingstore.Observation{
			Source:      r.SourcePath,
			Destination: r.DestinationPath,
			Value:       r.Value,
			Project:     opts.Project,
			Kind:        types.SourceLearned,
		})
		if err != nil {
			return sum, fmt.Errorf("recording %s: %w", r.SourcePath, err)
		}
		fmt.Fprintf(w, "learned: %s -> %s (%s, value %q)\n", r.SourcePath, r.DestinationPath, r.Level, r.Value)
		sum.Recorded++
	}

	for _, lm := range loops {
		_, err := rec.ObserveArray(ctx, mappingstore.ArrayObservation{
			SourceArray:      lm.Mapping.SourceArray,
			DestinationArray: lm.Mapping.DestinationArray,
			FieldMappings:    lm.Mapping.FieldMappings,
			Project:          opts.Project,
			Kind:             types.SourceLearned,
		})
		if err != nil {
			return sum, fmt.Errorf("recording loop %s: %w", lm.Mapping.SourceArray, err)
		}
		fmt.Fprintf(w, "loop: %s -> %s (%.2f, %d fields)\n",
			lm.Mapping.SourceArray, lm.Mapping.DestinationArray, lm.Confidence, len(lm.Mapping.FieldMappings))
		sum.Loops++
	}
	return sum, nil
}
