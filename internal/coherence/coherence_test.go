// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package coherence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/template-converter/pkg/types"
)

var phaseFields = []string{
	"phases_with_tasks:each(phase)",
	"=phase.name",
	"phase.tasks:each(task)",
	"=task.name",
	"=task.description",
	"phase.tasks:endEach",
	"phases_with_tasks:endEach",
	"=client_name",
}

func TestParseStructure(t *testing.T) {
	s := ParseStructure(phaseFields)

	require.Contains(t, s, "=task.description")
	desc := s["=task.description"]
	assert.Equal(t, []string{"phase", "task"}, desc.ContextPath)
	assert.Equal(t, 2, desc.Depth)
	assert.Equal(t, []string{"=task.name"}, desc.Siblings)

	assert.Equal(t, 1, s["=phase.name"].Depth)
	assert.Equal(t, 0, s["=client_name"].Depth)
	assert.Empty(t, s["=client_name"].ContextPath)
	assert.NotContains(t, s, "phase.tasks:each(task)")
}

func TestParseStructure_ConditionalEndKeepsLoop(t *testing.T) {
	s := ParseStructure([]string{
		"locations:each(location)",
		"location.notes:if(present?)",
		"location.notes:endIf",
		"=location.name",
		"locations:endEach",
	})
	assert.Equal(t, []string{"location"}, s["=location.name"].ContextPath)
	assert.Equal(t, KindConditional, s["location.notes:if(present?)"].Kind)
}

func TestScoreCandidates_PrefersOpenBlock(t *testing.T) {
	sc := NewScorer(types.CoherenceConfig{})
	ctx := Context{
		Structure: ParseStructure(phaseFields),
		Open:      []string{"project", "pricing", "phases"},
	}
	cands := []types.MatchResult{
		{DestinationPath: "some_other_array[].random_field[].name"},
		{DestinationPath: "project.tasks[].name"},
		{DestinationPath: "project.pricing.phases[].services[].name"},
	}

	got := sc.ScoreCandidates("=task.name", cands, ctx)
	require.Len(t, got, 3)
	assert.Equal(t, "project.pricing.phases[].services[].name", got[0].DestinationPath)
	assert.InDelta(t, 0.7, got[0].Confidence, 1e-9)
	assert.Equal(t, types.LevelHigh, got[0].Level)
	assert.Equal(t, "=task.name", got[0].SourcePath)

	// Same depth but outside the open block.
	assert.Equal(t, "some_other_array[].random_field[].name", got[1].DestinationPath)
	assert.InDelta(t, 0.3, got[1].Confidence, 1e-9)

	assert.Equal(t, "project.tasks[].name", got[2].DestinationPath)
	assert.InDelta(t, 0.15, got[2].Confidence, 1e-9)
	assert.Equal(t, types.LevelLow, got[2].Level)
}

func TestScore_ContextMonotonic(t *testing.T) {
	sc := NewScorer(types.CoherenceConfig{})
	ctx := Context{
		Structure: Structure{"=x": {Depth: 1}},
		Open:      []string{"a", "b", "c"},
	}
	full, _ := sc.Score("=x", "a.b.c[].x", ctx)
	partial, _ := sc.Score("=x", "a.b.z[].x", ctx)
	none, _ := sc.Score("=x", "q.b.c[].x", ctx)
	assert.GreaterOrEqual(t, full, partial)
	assert.GreaterOrEqual(t, partial, none)
	assert.Greater(t, full, none)
}

func TestScore_Siblings(t *testing.T) {
	sc := NewScorer(types.CoherenceConfig{})
	structure := ParseStructure([]string{"=a", "=b", "=c"})
	ctx := Context{
		Structure: structure,
		Siblings: MapLookup{
			"=a": "{project.client.name}",
			"=b": "{project.client.email}",
		},
	}
	with, reasons := sc.Score("=c", "project.client.phone", ctx)
	without, _ := sc.Score("=c", "vendor.phone", ctx)

	// depth 0 == 0 gives 0.3; sibling prefix "project.client" (14 of 20 chars).
	assert.InDelta(t, 0.3+0.3*14.0/20.0, with, 1e-9)
	assert.InDelta(t, 0.3, without, 1e-9)
	assert.Contains(t, reasons, "agrees with sibling prefix project.client")
}

func TestScore_Capped(t *testing.T) {
	sc := NewScorer(types.CoherenceConfig{DepthWeight: 0.6, ContextWeight: 0.6, SiblingWeight: 0.3, HighLevel: 0.7, MediumLevel: 0.4})
	ctx := Context{Structure: Structure{"=x": {}}, Open: []string{"a"}}
	score, _ := sc.Score("=x", "a.x", ctx)
	assert.Equal(t, 1.0, score)
}
