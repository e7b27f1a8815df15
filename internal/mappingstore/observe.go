// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mappingstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/template-converter/pkg/types"
)

const maxSamples = 5

// Observation is one piece of evidence that Source maps to Destination.
type Observation struct {
	Source      string
	Destination string

	// Value is the sample value that produced the evidence, if any.
	Value string

	// Project identifies where the evidence came from, if known.
	Project string

	// Kind defaults to SourceLearned.
	Kind types.SourceKind
}

// initialScore is the score of a freshly stored mapping.
func initialScore(kind types.SourceKind) int {
	if kind == types.SourceManual {
		return types.MaxScore
	}
	return 1
}

// Observe records one observation:
//   - unknown source: stored with score 1, or MaxScore when manual;
//   - same destination: times seen and score rise, manual jumps to MaxScore;
//   - different destination: kept as an alternative, unless the observation
//     is manual, which promotes it and demotes the old primary.
func (s *Store) Observe(ctx context.Context, obs Observation) (types.FieldMapping, error) {
	if obs.Source == "" || obs.Destination == "" {
		return types.FieldMapping{}, fmt.Errorf("observation needs source and destination")
	}
	if obs.Kind == "" {
		obs.Kind = types.SourceLearned
	}
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.FieldMapping{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	m, err := getMapping(ctx, tx, obs.Source)
	switch {
	case errors.Is(err, ErrNotFound):
		m = types.FieldMapping{
			SourceField:      obs.Source,
			DestinationField: obs.Destination,
			Score:            initialScore(obs.Kind),
			Source:           obs.Kind,
			TimesSeen:        1,
			FirstSeen:        now,
		}
	case err != nil:
		return types.FieldMapping{}, err
	case m.DestinationField == obs.Destination:
		m.TimesSeen++
		if obs.Kind == types.SourceManual {
			m.Source = types.SourceManual
			m.Score = types.MaxScore
		} else {
			m.Score = min(m.Score+1, types.MaxScore)
		}
	case obs.Kind == types.SourceManual:
		m = promote(m, obs)
	default:
		m.Alternatives = addAlternative(m.Alternatives, obs.Destination, obs.Project, 1)
	}

	m.LastSeen = now
	if obs.Value != "" && !contains(m.SampleValues, obs.Value) {
		m.SampleValues = append(m.SampleValues, obs.Value)
		if len(m.SampleValues) > maxSamples {
			m.SampleValues = m.SampleValues[len(m.SampleValues)-maxSamples:]
		}
	}
	if obs.Project != "" && !contains(m.Projects, obs.Project) {
		m.Projects = append(m.Projects, obs.Project)
	}

	if err := putMapping(ctx, tx, m); err != nil {
		return types.FieldMapping{}, err
	}
	if err := s.touch(ctx, tx); err != nil {
		return types.FieldMapping{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.FieldMapping{}, fmt.Errorf("committing observation: %w", err)
	}
	return m, nil
}

// promote makes a manual destination primary; the old primary becomes an
// alternative carrying its usage count.
func promote(m types.FieldMapping, obs Observation) types.FieldMapping {
	prior := 0
	var kept []types.Alternative
	for _, a := range m.Alternatives {
		if a.DestinationField == obs.Destination {
			prior = a.TimesSeen
			continue
		}
		kept = append(kept, a)
	}
	kept = addAlternative(kept, m.DestinationField, "", m.TimesSeen)
	for _, p := range m.Projects {
		kept = addAlternative(kept, m.DestinationField, p, 0)
	}

	m.Alternatives = kept
	m.DestinationField = obs.Destination
	m.Source = types.SourceManual
	m.Score = types.MaxScore
	m.TimesSeen = prior + 1
	return m
}

func addAlternative(alts []types.Alternative, dest, project string, seen int) []types.Alternative {
	for i := range alts {
		if alts[i].DestinationField == dest {
			alts[i].TimesSeen += seen
			if project != "" && !contains(alts[i].Projects, project) {
				alts[i].Projects = append(alts[i].Projects, project)
			}
			return alts
		}
	}
	a := types.Alternative{DestinationField: dest, TimesSeen: seen}
	if project != "" {
		a.Projects = []string{project}
	}
	return append(alts, a)
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func getMapping(ctx context.Context, q queryer, source string) (types.FieldMapping, error) {
	var (
		m                   types.FieldMapping
		kind                string
		samples, projects   sql.NullString
		firstSeen, lastSeen sql.NullString
	)
	err := q.QueryRowContext(ctx,
		`SELECT source_field, destination_field, score, source, sample_values, projects, times_seen, first_seen, last_seen
		 FROM mappings WHERE source_field = ?`, source,
	).Scan(&m.SourceField, &m.DestinationField, &m.Score, &kind, &samples, &projects, &m.TimesSeen, &firstSeen, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return types.FieldMapping{}, fmt.Errorf("%s: %w", source, ErrNotFound)
	}
	if err != nil {
		return types.FieldMapping{}, fmt.Errorf("querying mapping %s: %w", source, err)
	}
	m.Source = types.SourceKind(kind)
	m.SampleValues = decodeList(samples)
	m.Projects = decodeList(projects)
	m.FirstSeen = decodeTime(firstSeen)
	m.LastSeen = decodeTime(lastSeen)

	alts, err := getAlternatives(ctx, q, source)
	if err != nil {
		return types.FieldMapping{}, err
	}
	m.Alternatives = alts
	return m, nil
}

func getAlternatives(ctx context.Context, q queryer, source string) ([]types.Alternative, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT destination_field, times_seen, projects FROM alternatives
		 WHERE source_field = ? ORDER BY times_seen DESC, destination_field`, source)
	if err != nil {
		return nil, fmt.Errorf("querying alternatives for %s: %w", source, err)
	}
	defer rows.Close()

	var alts []types.Alternative
	for rows.Next() {
		var a types.Alternative
		var projects sql.NullString
		if err := rows.Scan(&a.DestinationField, &a.TimesSeen, &projects); err != nil {
			return nil, fmt.Errorf("scanning alternative: %w", err)
		}
		a.Projects = decodeList(projects)
		alts = append(alts, a)
	}
	return alts, rows.Err()
}

func putMapping(ctx context.Context, tx execer, m types.FieldMapping) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO mappings (source_field, destination_field, score, source, sample_values, projects, times_seen, first_seen, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source_field) DO UPDATE SET
			destination_field=excluded.destination_field, score=excluded.score, source=excluded.source,
			sample_values=excluded.sample_values, projects=excluded.projects,
			times_seen=excluded.times_seen, first_seen=excluded.first_seen, last_seen=excluded.last_seen`,
		m.SourceField, m.DestinationField, m.Score, string(m.Source),
		encodeList(m.SampleValues), encodeList(m.Projects), m.TimesSeen,
		encodeTime(m.FirstSeen), encodeTime(m.LastSeen),
	)
	if err != nil {
		return fmt.Errorf("upserting mapping %s: %w", m.SourceField, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM alternatives WHERE source_field = ?`, m.SourceField); err != nil {
		return fmt.Errorf("clearing alternatives for %s: %w", m.SourceField, err)
	}
	for _, a := range m.Alternatives {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO alternatives (source_field, destination_field, times_seen, projects) VALUES (?, ?, ?, ?)`,
			m.SourceField, a.DestinationField, a.TimesSeen, encodeList(a.Projects))
		if err != nil {
			return fmt.Errorf("inserting alternative %s for %s: %w", a.DestinationField, m.SourceField, err)
		}
	}
	return nil
}

// ArrayObservation is evidence that a source loop collection maps to a
// destination array.
type ArrayObservation struct {
	SourceArray      string
	DestinationArray string
	FieldMappings    []types.InnerMapping
	Project          string

	// Kind defaults to SourceManual, matching arrays confirmed by hand.
	Kind types.SourceKind
}

// NormalizeArrayPath ensures p ends with "[]".
func NormalizeArrayPath(p string) string {
	if strings.HasSuffix(p, "[]") {
		return p
	}
	return p + "[]"
}

// ObserveArray records an array mapping. Repeats of the same destination
// raise the score and merge inner field mappings; a different destination
// replaces the stored one only when the observation is manual.
func (s *Store) ObserveArray(ctx context.Context, obs ArrayObservation) (types.ArrayMapping, error) {
	if obs.SourceArray == "" || obs.DestinationArray == "" {
		return types.ArrayMapping{}, fmt.Errorf("array observation needs source and destination")
	}
	if obs.Kind == "" {
		obs.Kind = types.SourceManual
	}
	src := NormalizeArrayPath(obs.SourceArray)
	dst := NormalizeArrayPath(obs.DestinationArray)
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.ArrayMapping{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	am, err := getArrayMapping(ctx, tx, src)
	switch {
	case errors.Is(err, ErrNotFound):
		am = types.ArrayMapping{
			SourceArray:      src,
			DestinationArray: dst,
			FieldMappings:    mergeInner(nil, obs.FieldMappings),
			Score:            initialScore(obs.Kind),
			Source:           obs.Kind,
			TimesSeen:        1,
			FirstSeen:        now,
		}
	case err != nil:
		return types.ArrayMapping{}, err
	case am.DestinationArray == dst:
		am.TimesSeen++
		if obs.Kind == types.SourceManual {
			am.Source = types.SourceManual
			am.Score = types.MaxScore
		} else {
			am.Score = min(am.Score+1, types.MaxScore)
		}
		am.FieldMappings = mergeInner(am.FieldMappings, obs.FieldMappings)
	case obs.Kind == types.SourceManual:
		am.DestinationArray = dst
		am.FieldMappings = mergeInner(nil, obs.FieldMappings)
		am.Source = types.SourceManual
		am.Score = types.MaxScore
		am.TimesSeen = 1
	}

	am.LastSeen = now
	if obs.Project != "" && !contains(am.Projects, obs.Project) {
		am.Projects = append(am.Projects, obs.Project)
	}

	if err := putArrayMapping(ctx, tx, am); err != nil {
		return types.ArrayMapping{}, err
	}
	if err := s.touch(ctx, tx); err != nil {
		return types.ArrayMapping{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.ArrayMapping{}, fmt.Errorf("committing array observation: %w", err)
	}
	return am, nil
}

func mergeInner(existing, add []types.InnerMapping) []types.InnerMapping {
	seen := make(map[types.InnerMapping]bool, len(existing))
	for _, fm := range existing {
		seen[fm] = true
	}
	out := existing
	for _, fm := range add {
		if !seen[fm] {
			seen[fm] = true
			out = append(out, fm)
		}
	}
	return out
}

func getArrayMapping(ctx context.Context, q queryer, source string) (types.ArrayMapping, error) {
	var (
		am                  types.ArrayMapping
		kind                string
		inner, projects     sql.NullString
		firstSeen, lastSeen sql.NullString
	)
	err := q.QueryRowContext(ctx,
		`SELECT source_array, destination_array, field_mappings, score, source, times_seen, projects, first_seen, last_seen
		 FROM array_mappings WHERE source_array = ?`, source,
	).Scan(&am.SourceArray, &am.DestinationArray, &inner, &am.Score, &kind, &am.TimesSeen, &projects, &firstSeen, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ArrayMapping{}, fmt.Errorf("%s: %w", source, ErrNotFound)
	}
	if err != nil {
		return types.ArrayMapping{}, fmt.Errorf("querying array mapping %s: %w", source, err)
	}
	am.Source = types.SourceKind(kind)
	am.Projects = decodeList(projects)
	am.FirstSeen = decodeTime(firstSeen)
	am.LastSeen = decodeTime(lastSeen)
	if inner.Valid && inner.String != "" {
		if err := json.Unmarshal([]byte(inner.String), &am.FieldMappings); err != nil {
			return types.ArrayMapping{}, fmt.Errorf("decoding field mappings for %s: %w", source, err)
		}
		if len(am.FieldMappings) == 0 {
			am.FieldMappings = nil
		}
	}
	return am, nil
}

func putArrayMapping(ctx context.Context, tx execer, am types.ArrayMapping) error {
	inner := "[]"
	if len(am.FieldMappings) > 0 {
		data, err := json.Marshal(am.FieldMappings)
		if err != nil {
			return fmt.Errorf("encoding field mappings: %w", err)
		}
		inner = string(data)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO array_mappings (source_array, destination_array, field_mappings, score, source, times_seen, projects, first_seen, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source_array) DO UPDATE SET
			destination_array=excluded.destination_array, field_mappings=excluded.field_mappings,
			score=excluded.score, source=excluded.source, times_seen=excluded.times_seen,
			projects=excluded.projects, first_seen=excluded.first_seen, last_seen=excluded.last_seen`,
		am.SourceArray, am.DestinationArray, inner, am.Score, string(am.Source), am.TimesSeen,
		encodeList(am.Projects), encodeTime(am.FirstSeen), encodeTime(am.LastSeen),
	)
	if err != nil {
		return fmt.Errorf("upserting array mapping %s: %w", am.SourceArray, err)
	}
	return nil
}
