// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"
	"fmt"
	"io"

	"github.com/pdiddy/template-converter/internal/suggest"
)

// SuggestRequest names the inputs of one suggestion run.
type SuggestRequest struct {
	Template string

	// Destination is an optional schema reference; when set, suggestions
	// are restricted to its paths.
	Destination string

	// Record stores suggestions at or above MinConfidence.
	Record        bool
	MinConfidence float64
	Project       string
}

// Suggest asks s for destinations of the template's unresolved fields and,
// when req.Record is set, records the confident ones as ai-suggested
// evidence.
func (w *Workflow) Suggest(ctx context.Context, s *suggest.Suggester, req SuggestRequest, out io.Writer) (suggest.Response, error) {
	a, err := w.Analyze(ctx, req.Template, nil)
	if err != nil {
		return suggest.Response{}, err
	}
	known, err := w.store.Accepted(ctx, w.cfg.Store.AcceptScore)
	if err != nil {
		return suggest.Response{}, err
	}

	sreq := suggest.Request{
		Unresolved:  a.Result.Unresolved(),
		Diagnostics: a.Result.Diagnostics,
		Known:       known,
		Markup:      a.Markup,
	}
	if req.Destination != "" {
		dst, err := w.Schema(ctx, req.Destination, false)
		if err != nil {
			return suggest.Response{}, fmt.Errorf("loading destination: %w", err)
		}
		sreq.Destination = destinationPaths(dst)
	}

	resp, err := s.Suggest(ctx, sreq)
	if err != nil {
		return suggest.Response{}, err
	}
	if !req.Record {
		return resp, nil
	}
	sum, err := suggest.Record(ctx, w.store, resp, req.MinConfidence, req.Project, out)
	if err != nil {
		return resp, err
	}
	fmt.Fprintf(out, "\nSuggest summary: %d recorded, %d skipped (total: %d)\n", sum.Recorded, sum.Skipped, sum.Total())
	return resp, nil
}
