// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"sort"
	"time"
)

// MaxScore is the score ceiling for a stored mapping. Manual mappings are
// pinned at MaxScore.
const MaxScore = 10

// SourceKind records how a mapping entered the store.
type SourceKind string

const (
	SourceHardcoded   SourceKind = "hardcoded"
	SourceLearned     SourceKind = "learned"
	SourceManual      SourceKind = "manual"
	SourceAISuggested SourceKind = "ai-suggested"
)

// ConfidenceLevel is the coarse confidence bucket shown to users.
type ConfidenceLevel string

const (
	LevelManual ConfidenceLevel = "manual"
	LevelHigh   ConfidenceLevel = "high"
	LevelMedium ConfidenceLevel = "medium"
	LevelLow    ConfidenceLevel = "low"
	LevelNone   ConfidenceLevel = "none"
)

// MatchType explains which heuristic produced a match.
type MatchType string

const (
	MatchExact      MatchType = "exact"
	MatchName       MatchType = "name"
	MatchStructural MatchType = "structural"
	MatchFuzzy      MatchType = "fuzzy"
	MatchWeak       MatchType = "weak"
	MatchValue      MatchType = "value"
	MatchArray      MatchType = "array"
	MatchNone       MatchType = "none"
)

// Alternative is a competing destination observed for a source field.
type Alternative struct {
	DestinationField string   `json:"destination_field" yaml:"destination_field"`
	TimesSeen        int      `json:"times_seen" yaml:"times_seen"`
	Projects         []string `json:"projects,omitempty" yaml:"projects,omitempty"`
}

// FieldMapping is a persisted correspondence from a source-dialect field to a
// destination-dialect field.
type FieldMapping struct {
	// SourceField is the source marker, e.g. "=client_name".
	SourceField string `json:"source_field" yaml:"source_field"`

	// DestinationField is the destination tag, e.g. "{project.client_name}".
	DestinationField string `json:"destination_field" yaml:"destination_field"`

	// Score grows with repeated observations and is capped at MaxScore.
	Score int `json:"score" yaml:"score"`

	// Source records how the mapping was created.
	Source SourceKind `json:"source" yaml:"source"`

	// SampleValues keeps the last five distinct values seen for this field.
	SampleValues []string `json:"sample_values,omitempty" yaml:"sample_values,omitempty"`

	// Projects lists the distinct projects that contributed evidence.
	Projects []string `json:"projects,omitempty" yaml:"projects,omitempty"`

	TimesSeen int       `json:"times_seen" yaml:"times_seen"`
	FirstSeen time.Time `json:"first_seen" yaml:"first_seen"`
	LastSeen  time.Time `json:"last_seen" yaml:"last_seen"`

	// Alternatives holds destinations that disagreed with DestinationField.
	Alternatives []Alternative `json:"alternatives,omitempty" yaml:"alternatives,omitempty"`
}

// Confidence returns Score normalized into [0,1].
func (m FieldMapping) Confidence() float64 {
	s := m.Score
	if s < 0 {
		s = 0
	}
	if s > MaxScore {
		s = MaxScore
	}
	return float64(s) / MaxScore
}

// Level buckets the mapping. Manual mappings are always LevelManual.
func (m FieldMapping) Level() ConfidenceLevel {
	switch {
	case m.Source == SourceManual:
		return LevelManual
	case m.Score >= 5:
		return LevelHigh
	case m.Score >= 2:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Resolution returns the accepted destination, together with ranked
// alternatives when the evidence is ambiguous.
func (m FieldMapping) Resolution() Resolution {
	if len(m.Alternatives) == 0 {
		return Accepted{Destination: m.DestinationField}
	}
	alts := make([]Alternative, len(m.Alternatives))
	copy(alts, m.Alternatives)
	sort.SliceStable(alts, func(i, j int) bool {
		if alts[i].TimesSeen != alts[j].TimesSeen {
			return alts[i].TimesSeen > alts[j].TimesSeen
		}
		return alts[i].DestinationField < alts[j].DestinationField
	})
	return Ambiguous{Accepted: Accepted{Destination: m.DestinationField}, Alternatives: alts}
}

// Resolution is either Accepted or Ambiguous.
type Resolution interface {
	resolution()
	Primary() string
}

// Accepted is an unambiguous destination.
type Accepted struct {
	Destination string
}

func (Accepted) resolution()       {}
func (a Accepted) Primary() string { return a.Destination }

// Ambiguous carries the accepted destination and the competing ones,
// most frequently seen first.
type Ambiguous struct {
	Accepted
	Alternatives []Alternative
}

// InnerMapping maps one field inside a loop body.
type InnerMapping struct {
	Source      string `json:"source" yaml:"source"`
	Destination string `json:"destination" yaml:"destination"`
}

// ArrayMapping maps a source loop collection to a destination array. Both
// paths end with "[]".
type ArrayMapping struct {
	SourceArray      string         `json:"source_array" yaml:"source_array"`
	DestinationArray string         `json:"destination_array" yaml:"destination_array"`
	FieldMappings    []InnerMapping `json:"field_mappings,omitempty" yaml:"field_mappings,omitempty"`
	Score            int            `json:"score" yaml:"score"`
	Source           SourceKind     `json:"source" yaml:"source"`
	TimesSeen        int            `json:"times_seen" yaml:"times_seen"`
	Projects         []string       `json:"projects,omitempty" yaml:"projects,omitempty"`
	FirstSeen        time.Time      `json:"first_seen" yaml:"first_seen"`
	LastSeen         time.Time      `json:"last_seen" yaml:"last_seen"`
}

// MatchResult is a transient proposed correspondence between two paths.
type MatchResult struct {
	SourcePath      string          `json:"source_path" yaml:"source_path"`
	DestinationPath string          `json:"destination_path" yaml:"destination_path"`
	Confidence      float64         `json:"confidence" yaml:"confidence"`
	Level           ConfidenceLevel `json:"level" yaml:"level"`
	MatchType       MatchType       `json:"match_type" yaml:"match_type"`
	Reasons         []string        `json:"reasons,omitempty" yaml:"reasons,omitempty"`

	// Value is the shared value that produced a value-correspondence match.
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}
