// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mappingstore

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/template-converter/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(types.StoreConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestObserve_NewAndRepeat(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m, err := s.Observe(ctx, Observation{Source: "client_name", Destination: "project.client_name", Value: "Acme", Project: "101"})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Score)
	assert.Equal(t, types.SourceLearned, m.Source)
	assert.Equal(t, 1, m.TimesSeen)

	prev := m.Score
	for i := 0; i < 12; i++ {
		m, err = s.Observe(ctx, Observation{Source: "client_name", Destination: "project.client_name", Value: fmt.Sprintf("v%d", i), Project: "101"})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, m.Score, prev, "score must never decrease")
		prev = m.Score
	}
	assert.Equal(t, types.MaxScore, m.Score)
	assert.Equal(t, 13, m.TimesSeen)
	assert.Equal(t, []string{"v7", "v8", "v9", "v10", "v11"}, m.SampleValues)
	assert.Equal(t, []string{"101"}, m.Projects)
	assert.True(t, m.LastSeen.After(m.FirstSeen))

	got, err := s.Get(ctx, "client_name")
	require.NoError(t, err)
	assert.Equal(t, m.SampleValues, got.SampleValues)
	assert.Equal(t, m.Score, got.Score)
}

func TestObserve_ConflictKeepsAlternative(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Observe(ctx, Observation{Source: "name", Destination: "project.name"})
	require.NoError(t, err)
	_, err = s.Observe(ctx, Observation{Source: "name", Destination: "project.title", Project: "7"})
	require.NoError(t, err)
	m, err := s.Observe(ctx, Observation{Source: "name", Destination: "project.title", Project: "8"})
	require.NoError(t, err)

	assert.Equal(t, "project.name", m.DestinationField)
	require.Len(t, m.Alternatives, 1)
	assert.Equal(t, "project.title", m.Alternatives[0].DestinationField)
	assert.Equal(t, 2, m.Alternatives[0].TimesSeen)
	assert.Equal(t, []string{"7", "8"}, m.Alternatives[0].Projects)

	res, ok := m.Resolution().(types.Ambiguous)
	require.True(t, ok)
	assert.Equal(t, "project.name", res.Primary())
	assert.Equal(t, "project.title", res.Alternatives[0].DestinationField)

	amb, err := s.Ambiguous(ctx)
	require.NoError(t, err)
	assert.Len(t, amb, 1)
}

func TestObserve_ManualIsSticky(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m, err := s.Observe(ctx, Observation{Source: "price", Destination: "pricing.rate", Kind: types.SourceManual})
	require.NoError(t, err)
	assert.Equal(t, types.MaxScore, m.Score)
	assert.Equal(t, types.LevelManual, m.Level())

	for i := 0; i < 3; i++ {
		m, err = s.Observe(ctx, Observation{Source: "price", Destination: "pricing.total"})
		require.NoError(t, err)
	}
	assert.Equal(t, "pricing.rate", m.DestinationField)
	assert.Equal(t, types.MaxScore, m.Score)
	assert.Equal(t, types.SourceManual, m.Source)
	require.Len(t, m.Alternatives, 1)
	assert.Equal(t, 3, m.Alternatives[0].TimesSeen)
}

func TestObserve_ManualPromotesAlternative(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Observe(ctx, Observation{Source: "qty", Destination: "count"})
	require.NoError(t, err)
	_, err = s.Observe(ctx, Observation{Source: "qty", Destination: "quantity"})
	require.NoError(t, err)
	m, err := s.Observe(ctx, Observation{Source: "qty", Destination: "quantity", Kind: types.SourceManual})
	require.NoError(t, err)

	assert.Equal(t, "quantity", m.DestinationField)
	assert.Equal(t, types.SourceManual, m.Source)
	assert.Equal(t, types.MaxScore, m.Score)
	assert.Equal(t, 2, m.TimesSeen)
	require.Len(t, m.Alternatives, 1)
	assert.Equal(t, "count", m.Alternatives[0].DestinationField)
	assert.Equal(t, 1, m.Alternatives[0].TimesSeen)
}

func TestObserve_ManualConfirmsSame(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Observe(ctx, Observation{Source: "a", Destination: "b"})
	require.NoError(t, err)
	m, err := s.Observe(ctx, Observation{Source: "a", Destination: "b", Kind: types.SourceManual})
	require.NoError(t, err)
	assert.Equal(t, types.MaxScore, m.Score)
	assert.Equal(t, types.SourceManual, m.Source)
}

func TestObserve_Validation(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Observe(context.Background(), Observation{Source: "a"})
	assert.Error(t, err)
}

func TestAcceptedAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Observe(ctx, Observation{Source: "once", Destination: "x"})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = s.Observe(ctx, Observation{Source: "twice", Destination: "y"})
		require.NoError(t, err)
	}
	_, err = s.Observe(ctx, Observation{Source: "manual", Destination: "z", Kind: types.SourceManual})
	require.NoError(t, err)
	_, err = s.ObserveArray(ctx, ArrayObservation{SourceArray: "locations", DestinationArray: "project.locations"})
	require.NoError(t, err)
	require.NoError(t, s.RecordProjectAnalyzed(ctx))

	acc, err := s.Accepted(ctx, 2)
	require.NoError(t, err)
	require.Len(t, acc, 2)
	assert.Equal(t, "manual", acc[0].SourceField)
	assert.Equal(t, "twice", acc[1].SourceField)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.HighConfidence)
	assert.Equal(t, 1, st.VeryHighConfidence)
	assert.Equal(t, 1, st.ArrayMappings)
	assert.Equal(t, 1, st.ProjectsAnalyzed)
	assert.False(t, st.LastUpdated.IsZero())

	dest, ok := s.Destination("=twice")
	assert.True(t, ok)
	assert.Equal(t, "y", dest)
}

func TestObserveArray(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	am, err := s.ObserveArray(ctx, ArrayObservation{
		SourceArray:      "locations",
		DestinationArray: "project.locations",
		FieldMappings:    []types.InnerMapping{{Source: "name", Destination: "location_name"}},
		Kind:             types.SourceLearned,
	})
	require.NoError(t, err)
	assert.Equal(t, "locations[]", am.SourceArray)
	assert.Equal(t, "project.locations[]", am.DestinationArray)
	assert.Equal(t, 1, am.Score)

	am, err = s.ObserveArray(ctx, ArrayObservation{
		SourceArray:      "locations[]",
		DestinationArray: "project.locations[]",
		FieldMappings: []types.InnerMapping{
			{Source: "name", Destination: "location_name"},
			{Source: "address", Destination: "address"},
		},
		Kind: types.SourceLearned,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, am.Score)
	assert.Equal(t, 2, am.TimesSeen)
	assert.Len(t, am.FieldMappings, 2)

	// Learned evidence for another destination does not replace it.
	am, err = s.ObserveArray(ctx, ArrayObservation{SourceArray: "locations", DestinationArray: "sites", Kind: types.SourceLearned})
	require.NoError(t, err)
	assert.Equal(t, "project.locations[]", am.DestinationArray)

	got, err := s.GetArray(ctx, "locations")
	require.NoError(t, err)
	assert.Equal(t, am.FieldMappings, got.FieldMappings)

	require.NoError(t, s.DeleteArray(ctx, "locations"))
	_, err = s.GetArray(ctx, "locations")
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(s.DeleteArray(ctx, "locations")))
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Observe(ctx, Observation{Source: "a", Destination: "b"})
	require.NoError(t, err)
	_, err = s.Observe(ctx, Observation{Source: "a", Destination: "c"})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "a"))
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "a"), ErrNotFound)
}

func TestExportImport(t *testing.T) {
	for _, format := range []Format{FormatYAML, FormatJSON} {
		t.Run(string(format), func(t *testing.T) {
			ctx := context.Background()
			src := newTestStore(t)
			_, err := src.Observe(ctx, Observation{Source: "client_name", Destination: "project.client_name", Value: "Acme"})
			require.NoError(t, err)
			_, err = src.Observe(ctx, Observation{Source: "client_name", Destination: "client.name"})
			require.NoError(t, err)
			_, err = src.ObserveArray(ctx, ArrayObservation{SourceArray: "locations", DestinationArray: "project.locations"})
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, src.Export(ctx, &buf, format))

			dst := newTestStore(t)
			_, err = dst.Observe(ctx, Observation{Source: "client_name", Destination: "other"})
			require.NoError(t, err)

			sum, err := dst.Import(ctx, bytes.NewReader(buf.Bytes()), format, ImportMerge)
			require.NoError(t, err)
			assert.Equal(t, 0, sum.Imported)
			assert.Equal(t, 1, sum.Skipped)
			assert.Equal(t, 1, sum.ArrayImported)
			m, err := dst.Get(ctx, "client_name")
			require.NoError(t, err)
			assert.Equal(t, "other", m.DestinationField)

			sum, err = dst.Import(ctx, bytes.NewReader(buf.Bytes()), format, ImportReplace)
			require.NoError(t, err)
			assert.Equal(t, 1, sum.Imported)
			assert.Equal(t, 2, sum.Total())
			m, err = dst.Get(ctx, "client_name")
			require.NoError(t, err)
			assert.Equal(t, "project.client_name", m.DestinationField)
			assert.Equal(t, []string{"Acme"}, m.SampleValues)
			require.Len(t, m.Alternatives, 1)
			assert.Equal(t, "client.name", m.Alternatives[0].DestinationField)
		})
	}
}

func TestExport_UnknownFormat(t *testing.T) {
	s := newTestStore(t)
	var buf bytes.Buffer
	assert.Error(t, s.Export(context.Background(), &buf, Format("xml")))
}
