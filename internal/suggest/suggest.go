// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package suggest asks an AI backend for destination paths for fields the
// rewrite engine could not resolve, and records the suggestions it
// accepts in the mapping store as ai-suggested evidence.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pdiddy/template-converter/internal/mappingstore"
	"github.com/pdiddy/template-converter/pkg/types"
)

// Backend abstracts the AI API so tests can supply a fake.
type Backend interface {
	Suggest(ctx context.Context, prompt string) (Response, error)
}

// Response is the structured answer a backend returns.
type Response struct {
	Suggestions []Suggestion `json:"suggestions" yaml:"suggestions" jsonschema:"description=One entry per unresolved source field"`
	Reasoning   string       `json:"reasoning" yaml:"reasoning" jsonschema:"description=Overall explanation of the suggestions"`
}

// Suggestion proposes one destination path for a source field.
type Suggestion struct {
	SourceField      string  `json:"source_field" yaml:"source_field" jsonschema:"description=Source field exactly as listed"`
	DestinationField string  `json:"destination_field" yaml:"destination_field" jsonschema:"description=Dot-separated destination path without braces"`
	Reason           string  `json:"reason" yaml:"reason"`
	Confidence       float64 `json:"confidence" yaml:"confidence"`
}

// Request gathers the context sent to the backend.
type Request struct {
	// Unresolved lists the source field names no rule matched.
	Unresolved []string

	// Diagnostics are validation or conversion errors worth explaining.
	Diagnostics types.Diagnostics

	// Known holds accepted mappings as examples of the naming scheme.
	Known []types.FieldMapping

	// Destination lists the destination schema paths.
	Destination []string

	// Markup is an excerpt of the document markup.
	Markup string
}

// Limits bound how much context goes into one prompt.
const (
	maxKnown       = 30
	maxDestination = 400
	maxDiagnostics = 10
)

// Suggester builds prompts, calls the backend and filters its answers.
type Suggester struct {
	backend   Backend
	maxMarkup int
}

// New returns a Suggester over backend. cfg.MaxMarkup bounds the markup
// excerpt.
func New(backend Backend, cfg types.AIConfig) *Suggester {
	if cfg.MaxMarkup <= 0 {
		cfg.MaxMarkup = types.DefaultConfig().AI.MaxMarkup
	}
	return &Suggester{backend: backend, maxMarkup: cfg.MaxMarkup}
}

// Suggest asks the backend about req.Unresolved. Suggestions for fields
// that were not asked about, with an empty destination, or naming a path
// outside req.Destination (when given) are dropped. Destinations are
// returned without braces.
func (s *Suggester) Suggest(ctx context.Context, req Request) (Response, error) {
	if len(req.Unresolved) == 0 {
		return Response{Reasoning: "no unresolved fields"}, nil
	}
	resp, err := s.backend.Suggest(ctx, s.Prompt(req))
	if err != nil {
		return Response{}, fmt.Errorf("requesting suggestions: %w", err)
	}

	asked := make(map[string]bool, len(req.Unresolved))
	for _, f := range req.Unresolved {
		asked[f] = true
	}
	known := make(map[string]bool, len(req.Destination))
	for _, p := range req.Destination {
		known[p] = true
	}

	out := Response{Reasoning: strings.TrimSpace(resp.Reasoning)}
	for _, sg := range resp.Suggestions {
		sg.DestinationField = strings.Trim(strings.TrimSpace(sg.DestinationField), "{}")
		if !asked[sg.SourceField] || sg.DestinationField == "" {
			continue
		}
		if len(known) > 0 && !known[sg.DestinationField] {
			continue
		}
		sg.Confidence = min(max(sg.Confidence, 0), 1)
		out.Suggestions = append(out.Suggestions, sg)
	}
	sort.SliceStable(out.Suggestions, func(i, j int) bool {
		return out.Suggestions[i].Confidence > out.Suggestions[j].Confidence
	})
	return out, nil
}

// Prompt renders the user message for req.
func (s *Suggester) Prompt(req Request) string {
	var b strings.Builder
	b.WriteString("UNRESOLVED SOURCE FIELDS:\n")
	for _, f := range req.Unresolved {
		fmt.Fprintf(&b, "- %s\n", f)
	}

	if errs := req.Diagnostics.Errors(); len(errs) > 0 {
		b.WriteString("\nERRORS DETECTED:\n")
		for _, d := range errs[:min(len(errs), maxDiagnostics)] {
			fmt.Fprintf(&b, "- %s\n", d)
		}
	}

	if len(req.Known) > 0 {
		type pair struct {
			Source      string `json:"source"`
			Destination string `json:"destination"`
		}
		pairs := make([]pair, 0, min(len(req.Known), maxKnown))
		for _, m := range req.Known[:min(len(req.Known), maxKnown)] {
			pairs = append(pairs, pair{m.SourceField, m.DestinationField})
		}
		data, _ := json.MarshalIndent(pairs, "", "  ")
		b.WriteString("\nKNOWN MAPPINGS:\n")
		b.Write(data)
		b.WriteString("\n")
	}

	if len(req.Destination) > 0 {
		b.WriteString("\nDESTINATION PATHS (use only these):\n")
		for _, p := range req.Destination[:min(len(req.Destination), maxDestination)] {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}

	if req.Markup != "" {
		excerpt := req.Markup
		if len(excerpt) > s.maxMarkup {
			excerpt = excerpt[:s.maxMarkup]
		}
		b.WriteString("\nTEMPLATE MARKUP (excerpt):\n")
		b.WriteString(excerpt)
		b.WriteString("\n")
	}
	return b.String()
}

// Recorder stores accepted suggestions. The mapping store satisfies it.
type Recorder interface {
	Observe(ctx context.Context, obs mappingstore.Observation) (types.FieldMapping, error)
}

// Summary counts the outcome of recording suggestions.
type Summary struct {
	Recorded int
	Skipped  int
}

// Total returns the number of suggestions considered.
func (s Summary) Total() int {
	return s.Recorded + s.Skipped
}

// Record stores every suggestion at or above minConfidence as ai-suggested
// evidence and writes one line per suggestion to w.
func Record(ctx context.Context, rec Recorder, resp Response, minConfidence float64, project string, w io.Writer) (Summary, error) {
	var sum Summary
	for _, sg := range resp.Suggestions {
		if sg.Confidence < minConfidence {
			fmt.Fprintf(w, "skipped: %s -> %s (confidence %.2f)\n", sg.SourceField, sg.DestinationField, sg.Confidence)
			sum.Skipped++
			continue
		}
		_, err := rec.Observe(ctx, mappingstore.Observation{
			Source:      sg.SourceField,
			Destination: sg.DestinationField,
			Project:     project,
			Kind:        types.SourceAISuggested,
		})
		if err != nil {
			return sum, fmt.Errorf("recording %s: %w", sg.SourceField, err)
		}
		fmt.Fprintf(w, "recorded: %s -> %s (confidence %.2f)\n", sg.SourceField, sg.DestinationField, sg.Confidence)
		sum.Recorded++
	}
	return sum, nil
}
