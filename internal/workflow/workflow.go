// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workflow composes the converter's stages into the operations the
// CLI and the MCP server expose: indexing a schema instance, learning
// mappings from two instances, ranking candidates for unresolved fields,
// analyzing and converting templates, and asking for AI suggestions.
package workflow

import (
	"context"
	"fmt"
	"io"

	"github.com/pdiddy/template-converter/internal/docx"
	"github.com/pdiddy/template-converter/internal/fields"
	"github.com/pdiddy/template-converter/internal/learn"
	"github.com/pdiddy/template-converter/internal/mappingstore"
	"github.com/pdiddy/template-converter/internal/match"
	"github.com/pdiddy/template-converter/internal/rewrite"
	"github.com/pdiddy/template-converter/internal/schema"
	"github.com/pdiddy/template-converter/internal/source"
	"github.com/pdiddy/template-converter/pkg/types"
)

// Loader resolves a schema reference (file path or URL) to an instance.
type Loader interface {
	Load(ctx context.Context, ref string) (any, error)
}

// Workflow binds configuration, the mapping store and an instance loader.
type Workflow struct {
	cfg    types.Config
	store  *mappingstore.Store
	loader Loader
}

// New returns a Workflow. A nil loader reads local files and fetches URLs
// with cfg.Source.
func New(cfg types.Config, store *mappingstore.Store, loader Loader) *Workflow {
	if loader == nil {
		loader = source.NewLoader(cfg.Source, io.Discard)
	}
	return &Workflow{cfg: cfg, store: store, loader: loader}
}

// Config returns the settings the workflow runs with.
func (w *Workflow) Config() types.Config {
	return w.cfg
}

// Store returns the mapping store.
func (w *Workflow) Store() *mappingstore.Store {
	return w.store
}

// Schema loads ref and indexes it. The configured strip prefix applies
// when the instance carries it; instances without the envelope are
// indexed from their root.
func (w *Workflow) Schema(ctx context.Context, ref string, full bool) (map[string]types.SchemaField, error) {
	inst, err := w.loader.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return w.extract(inst, full), nil
}

func (w *Workflow) extract(inst any, full bool) map[string]types.SchemaField {
	opts := schema.Options{FullArrays: full, StripPrefix: w.cfg.Source.StripPrefix}
	out := schema.Extract(inst, opts)
	if len(out) == 0 && opts.StripPrefix != "" {
		opts.StripPrefix = ""
		out = schema.Extract(inst, opts)
	}
	return out
}

// Match runs the semantic matcher between two instances: the best
// destination per source field, followed by array matches.
func (w *Workflow) Match(ctx context.Context, srcRef, dstRef string, minConfidence float64) ([]types.MatchResult, error) {
	src, err := w.Schema(ctx, srcRef, false)
	if err != nil {
		return nil, fmt.Errorf("loading source: %w", err)
	}
	dst, err := w.Schema(ctx, dstRef, false)
	if err != nil {
		return nil, fmt.Errorf("loading destination: %w", err)
	}
	if minConfidence <= 0 {
		minConfidence = w.cfg.Matcher.MinConfidence
	}
	m := match.New(w.cfg.Matcher)
	out := m.FindBestMatches(src, dst, minConfidence)
	out = append(out, m.MatchArrays(src, dst, w.cfg.Matcher.ArrayMinConfidence)...)
	return out, nil
}

// LearnRequest names the inputs of one learning run.
type LearnRequest struct {
	// Source and Destination are schema references holding the same
	// record in each dialect.
	Source      string
	Destination string

	// Template is an optional .docx whose loops are paired with
	// destination arrays.
	Template string

	Project    string
	IncludeLow bool
}

// Learn infers correspondences from values shared by the two instances and
// loop mappings from the template, and records them in the store.
func (w *Workflow) Learn(ctx context.Context, req LearnRequest, out io.Writer) (learn.Summary, error) {
	src, err := w.loader.Load(ctx, req.Source)
	if err != nil {
		return learn.Summary{}, fmt.Errorf("loading source: %w", err)
	}
	dst, err := w.loader.Load(ctx, req.Destination)
	if err != nil {
		return learn.Summary{}, fmt.Errorf("loading destination: %w", err)
	}

	results := learn.LearnCorrespondences(src, dst, learn.Options{StripPrefix: w.cfg.Source.StripPrefix})
	var loops []learn.LoopMapping
	if req.Template != "" {
		pkg, err := docx.Open(req.Template)
		if err != nil {
			return learn.Summary{}, err
		}
		loops = learn.LearnLoops(pkg.Markup(), dst)
	}

	sum, err := learn.Record(ctx, w.store, results, loops, learn.RecordOptions{
		Project:    req.Project,
		IncludeLow: req.IncludeLow,
	}, out)
	if err != nil {
		return sum, err
	}
	if err := w.store.RecordProjectAnalyzed(ctx); err != nil {
		return sum, err
	}
	fmt.Fprintf(out, "\nLearn summary: %d learned, %d skipped, %d loops (total: %d)\n",
		sum.Recorded, sum.Skipped, sum.Loops, sum.Total())
	return sum, nil
}

// Engine builds a rewrite engine from the rule tables, the accepted stored
// mappings and overrides, and returns the stored array mappings to drive
// its loop pass.
func (w *Workflow) Engine(ctx context.Context, overrides map[string]string) (*rewrite.Engine, []types.ArrayMapping, error) {
	rules, err := rewrite.LoadRules(w.cfg.Rewrite.RulesFile)
	if err != nil {
		return nil, nil, err
	}
	accepted, err := w.store.Accepted(ctx, w.cfg.Store.AcceptScore)
	if err != nil {
		return nil, nil, err
	}
	arrays, err := w.store.ArrayMappings(ctx)
	if err != nil {
		return nil, nil, err
	}
	table := rewrite.NewTable(rules, accepted, overrides)
	return rewrite.NewEngine(table, w.cfg.Rewrite), arrays, nil
}

// Analysis is a dry-run conversion of one template.
type Analysis struct {
	File      string           `json:"file" yaml:"file"`
	Structure fields.Structure `json:"structure" yaml:"structure"`
	Loops     []learn.Loop     `json:"loops" yaml:"loops"`
	Result    rewrite.Result   `json:"result" yaml:"result"`
	Markup    string           `json:"-" yaml:"-"`
}

// Analyze classifies the fields of the template at path and converts it in
// memory, reporting what would resolve without writing anything.
func (w *Workflow) Analyze(ctx context.Context, path string, overrides map[string]string) (Analysis, error) {
	pkg, err := docx.Open(path)
	if err != nil {
		return Analysis{}, err
	}
	engine, arrays, err := w.Engine(ctx, overrides)
	if err != nil {
		return Analysis{}, err
	}
	markup := pkg.Markup()
	return Analysis{
		File:      path,
		Structure: fields.Classify(fields.ExtractNames(markup)),
		Loops:     learn.DetectLoops(markup),
		Result:    engine.Convert(markup, arrays),
		Markup:    markup,
	}, nil
}

// Convert converts in to out (rewrite.OutputPath when out is empty).
func (w *Workflow) Convert(ctx context.Context, in, out string, overrides map[string]string) (rewrite.Result, string, error) {
	engine, arrays, err := w.Engine(ctx, overrides)
	if err != nil {
		return rewrite.Result{}, "", err
	}
	if out == "" {
		out = rewrite.OutputPath(in, "")
	}
	res, err := engine.ConvertFile(in, out, arrays)
	return res, out, err
}

// ConvertBatch converts every input into outDir, one status line each.
func (w *Workflow) ConvertBatch(ctx context.Context, inputs []string, outDir string, overrides map[string]string, out io.Writer) (rewrite.BatchResult, error) {
	engine, arrays, err := w.Engine(ctx, overrides)
	if err != nil {
		return rewrite.BatchResult{}, err
	}
	return engine.ConvertBatch(inputs, outDir, arrays, out), nil
}
