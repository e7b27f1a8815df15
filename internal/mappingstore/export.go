// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mappingstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/template-converter/pkg/types"
)

// Format selects the export encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ImportMode selects how Import treats existing records.
type ImportMode string

const (
	// ImportMerge keeps existing records and adds only new ones.
	ImportMerge ImportMode = "merge"

	// ImportReplace clears the store before importing.
	ImportReplace ImportMode = "replace"
)

// Metadata describes an exported document.
type Metadata struct {
	Version          string    `json:"version" yaml:"version"`
	LastUpdated      time.Time `json:"last_updated,omitempty" yaml:"last_updated,omitempty"`
	ProjectsAnalyzed int       `json:"total_projects_analyzed" yaml:"total_projects_analyzed"`
}

// Document is the flat export/import shape.
type Document struct {
	Metadata      Metadata                      `json:"metadata" yaml:"metadata"`
	Mappings      map[string]types.FieldMapping `json:"mappings" yaml:"mappings"`
	ArrayMappings map[string]types.ArrayMapping `json:"array_mappings" yaml:"array_mappings"`
}

// ImportSummary holds counts from an import.
type ImportSummary struct {
	Imported      int
	Skipped       int
	ArrayImported int
	ArraySkipped  int
}

// Total returns the number of records read.
func (s ImportSummary) Total() int {
	return s.Imported + s.Skipped + s.ArrayImported + s.ArraySkipped
}

// Snapshot loads the whole store into a Document.
func (s *Store) Snapshot(ctx context.Context) (Document, error) {
	doc := Document{
		Metadata:      Metadata{Version: schemaVersion},
		Mappings:      make(map[string]types.FieldMapping),
		ArrayMappings: make(map[string]types.ArrayMapping),
	}
	all, err := s.All(ctx)
	if err != nil {
		return Document{}, err
	}
	for _, m := range all {
		doc.Mappings[m.SourceField] = m
	}
	arrays, err := s.ArrayMappings(ctx)
	if err != nil {
		return Document{}, err
	}
	for _, am := range arrays {
		doc.ArrayMappings[am.SourceArray] = am
	}
	st, err := s.Stats(ctx)
	if err != nil {
		return Document{}, err
	}
	doc.Metadata.LastUpdated = st.LastUpdated
	doc.Metadata.ProjectsAnalyzed = st.ProjectsAnalyzed
	return doc, nil
}

// Export writes the store to w as YAML or JSON.
func (s *Store) Export(ctx context.Context, w io.Writer, format Format) error {
	doc, err := s.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("reading store for export: %w", err)
	}

	var data []byte
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		data = append(data, '\n')
	case FormatYAML, "":
		data, err = yaml.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
	_, err = w.Write(data)
	return err
}

// Import reads a Document from r. Merge mode skips sources already in the
// store; replace mode clears the store first. Records missing a
// destination are skipped.
func (s *Store) Import(ctx context.Context, r io.Reader, format Format, mode ImportMode) (ImportSummary, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("reading import: %w", err)
	}

	var doc Document
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	case FormatYAML, "":
		err = yaml.Unmarshal(data, &doc)
	default:
		return ImportSummary{}, fmt.Errorf("unknown import format %q", format)
	}
	if err != nil {
		return ImportSummary{}, fmt.Errorf("parsing import document: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if mode == ImportReplace {
		for _, stmt := range []string{
			`DELETE FROM alternatives`,
			`DELETE FROM mappings`,
			`DELETE FROM array_mappings`,
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return ImportSummary{}, fmt.Errorf("clearing store: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE meta SET value = ? WHERE key = 'projects_analyzed'`,
			strconv.Itoa(doc.Metadata.ProjectsAnalyzed)); err != nil {
			return ImportSummary{}, fmt.Errorf("resetting metadata: %w", err)
		}
	}

	now := s.now()
	var summary ImportSummary

	keys := make([]string, 0, len(doc.Mappings))
	for k := range doc.Mappings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		m := doc.Mappings[k]
		if m.SourceField == "" {
			m.SourceField = k
		}
		if m.DestinationField == "" {
			summary.Skipped++
			continue
		}
		if mode != ImportReplace {
			if _, err := getMapping(ctx, tx, m.SourceField); err == nil {
				summary.Skipped++
				continue
			} else if !IsNotFound(err) {
				return summary, err
			}
		}
		m = normalizeImported(m, now)
		if err := putMapping(ctx, tx, m); err != nil {
			return summary, err
		}
		summary.Imported++
	}

	akeys := make([]string, 0, len(doc.ArrayMappings))
	for k := range doc.ArrayMappings {
		akeys = append(akeys, k)
	}
	sort.Strings(akeys)
	for _, k := range akeys {
		am := doc.ArrayMappings[k]
		if am.SourceArray == "" {
			am.SourceArray = k
		}
		if am.DestinationArray == "" {
			summary.ArraySkipped++
			continue
		}
		am.SourceArray = NormalizeArrayPath(am.SourceArray)
		am.DestinationArray = NormalizeArrayPath(am.DestinationArray)
		if mode != ImportReplace {
			if _, err := getArrayMapping(ctx, tx, am.SourceArray); err == nil {
				summary.ArraySkipped++
				continue
			} else if !IsNotFound(err) {
				return summary, err
			}
		}
		if am.Source == "" {
			am.Source = types.SourceLearned
		}
		if am.TimesSeen == 0 {
			am.TimesSeen = 1
		}
		if am.FirstSeen.IsZero() {
			am.FirstSeen = now
		}
		if am.LastSeen.IsZero() {
			am.LastSeen = now
		}
		if err := putArrayMapping(ctx, tx, am); err != nil {
			return summary, err
		}
		summary.ArrayImported++
	}

	if err := s.touch(ctx, tx); err != nil {
		return summary, err
	}
	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("committing import: %w", err)
	}
	return summary, nil
}

// normalizeImported fills defaults and restores the manual invariant.
func normalizeImported(m types.FieldMapping, now time.Time) types.FieldMapping {
	if m.Source == "" {
		m.Source = types.SourceLearned
	}
	if m.Source == types.SourceManual {
		m.Score = types.MaxScore
	}
	m.Score = max(min(m.Score, types.MaxScore), 1)
	if m.TimesSeen == 0 {
		m.TimesSeen = 1
	}
	if m.FirstSeen.IsZero() {
		m.FirstSeen = now
	}
	if m.LastSeen.IsZero() {
		m.LastSeen = now
	}
	if len(m.SampleValues) > maxSamples {
		m.SampleValues = m.SampleValues[len(m.SampleValues)-maxSamples:]
	}
	return m
}
