// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mappingstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/template-converter/pkg/types"
)

// Get returns the mapping for source, or ErrNotFound.
func (s *Store) Get(ctx context.Context, source string) (types.FieldMapping, error) {
	return getMapping(ctx, s.db, source)
}

// All returns every mapping ordered by source field.
func (s *Store) All(ctx context.Context) ([]types.FieldMapping, error) {
	return s.list(ctx, 0)
}

// Accepted returns the mappings whose score is at least minScore. These are
// the mappings the rewrite engine trusts over its built-in rules.
func (s *Store) Accepted(ctx context.Context, minScore int) ([]types.FieldMapping, error) {
	return s.list(ctx, minScore)
}

func (s *Store) list(ctx context.Context, minScore int) ([]types.FieldMapping, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_field FROM mappings WHERE score >= ? ORDER BY source_field`, minScore)
	if err != nil {
		return nil, fmt.Errorf("listing mappings: %w", err)
	}
	var sources []string
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning mapping: %w", err)
		}
		sources = append(sources, src)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]types.FieldMapping, 0, len(sources))
	for _, src := range sources {
		m, err := getMapping(ctx, s.db, src)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Ambiguous returns the mappings that carry at least one alternative.
func (s *Store) Ambiguous(ctx context.Context) ([]types.FieldMapping, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []types.FieldMapping
	for _, m := range all {
		if len(m.Alternatives) > 0 {
			out = append(out, m)
		}
	}
	return out, nil
}

// Destination returns the accepted destination for a source field. A
// leading "=" on source is ignored so template markers resolve to their
// stored paths.
func (s *Store) Destination(source string) (string, bool) {
	ctx := context.Background()
	for _, key := range []string{source, strings.TrimPrefix(source, "=")} {
		if m, err := s.Get(ctx, key); err == nil {
			return m.DestinationField, true
		}
	}
	return "", false
}

// GetArray returns the array mapping for source, or ErrNotFound.
func (s *Store) GetArray(ctx context.Context, source string) (types.ArrayMapping, error) {
	return getArrayMapping(ctx, s.db, NormalizeArrayPath(source))
}

// ArrayMappings returns every array mapping ordered by source array.
func (s *Store) ArrayMappings(ctx context.Context) ([]types.ArrayMapping, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source_array FROM array_mappings ORDER BY source_array`)
	if err != nil {
		return nil, fmt.Errorf("listing array mappings: %w", err)
	}
	var sources []string
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning array mapping: %w", err)
		}
		sources = append(sources, src)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]types.ArrayMapping, 0, len(sources))
	for _, src := range sources {
		am, err := getArrayMapping(ctx, s.db, src)
		if err != nil {
			return nil, err
		}
		out = append(out, am)
	}
	return out, nil
}

// Delete removes the mapping for source and its alternatives.
func (s *Store) Delete(ctx context.Context, source string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM mappings WHERE source_field = ?`, source)
	if err != nil {
		return fmt.Errorf("deleting mapping %s: %w", source, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", source, ErrNotFound)
	}
	return s.touch(ctx, s.db)
}

// DeleteArray removes the array mapping for source.
func (s *Store) DeleteArray(ctx context.Context, source string) error {
	source = NormalizeArrayPath(source)
	res, err := s.db.ExecContext(ctx, `DELETE FROM array_mappings WHERE source_array = ?`, source)
	if err != nil {
		return fmt.Errorf("deleting array mapping %s: %w", source, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", source, ErrNotFound)
	}
	return s.touch(ctx, s.db)
}

// Stats summarizes the store.
type Stats struct {
	Total              int       `json:"total_mappings" yaml:"total_mappings"`
	HighConfidence     int       `json:"high_confidence" yaml:"high_confidence"`
	VeryHighConfidence int       `json:"very_high_confidence" yaml:"very_high_confidence"`
	Ambiguous          int       `json:"ambiguous" yaml:"ambiguous"`
	ArrayMappings      int       `json:"array_mappings" yaml:"array_mappings"`
	ProjectsAnalyzed   int       `json:"projects_analyzed" yaml:"projects_analyzed"`
	LastUpdated        time.Time `json:"last_updated,omitempty" yaml:"last_updated,omitempty"`
}

// Stats counts mappings by score band: high is a score of 2 or more, very
// high 5 or more.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*),
			coalesce(sum(CASE WHEN score >= 2 THEN 1 ELSE 0 END), 0),
			coalesce(sum(CASE WHEN score >= 5 THEN 1 ELSE 0 END), 0)
		 FROM mappings`,
	).Scan(&st.Total, &st.HighConfidence, &st.VeryHighConfidence)
	if err != nil {
		return Stats{}, fmt.Errorf("counting mappings: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(DISTINCT source_field) FROM alternatives`).Scan(&st.Ambiguous); err != nil {
		return Stats{}, fmt.Errorf("counting alternatives: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM array_mappings`).Scan(&st.ArrayMappings); err != nil {
		return Stats{}, fmt.Errorf("counting array mappings: %w", err)
	}

	meta, err := s.meta(ctx)
	if err != nil {
		return Stats{}, err
	}
	st.ProjectsAnalyzed, _ = strconv.Atoi(meta["projects_analyzed"])
	if lu := meta["last_updated"]; lu != "" {
		st.LastUpdated = decodeTime(sql.NullString{String: lu, Valid: true})
	}
	return st, nil
}

func (s *Store) meta(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k string
		var v sql.NullString
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning metadata: %w", err)
		}
		out[k] = v.String
	}
	return out, rows.Err()
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
