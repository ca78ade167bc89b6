// Package pipeline drives one analysis run: hierarchy, timelines, analyzers, qualitative content and merge.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"

	"epicscope/internal/analysis"
	"epicscope/internal/config"
	"epicscope/internal/eventlog"
	"epicscope/internal/freshness"
	"epicscope/internal/hierarchy"
	"epicscope/internal/jira"
	"epicscope/internal/llm"
	"epicscope/internal/logging"
	"epicscope/internal/snapshot"
	"epicscope/internal/stats"
	"epicscope/internal/summary"
)

// TreeBuilder produces the hierarchy below an epic.
type TreeBuilder interface {
	Build(ctx context.Context, rootKey string, mode freshness.Mode) (*hierarchy.Tree, error)
}

// Pipeline holds the components of a run. One Pipeline may serve many runs; runs share no state.
type Pipeline struct {
	Trees      TreeBuilder
	Registry   *analysis.Registry
	Fields     eventlog.FieldMap
	Location   *time.Location
	Summarizer llm.Summarizer
	Failures   *logging.FailureLog

	// MaxContextNodes bounds the excerpt sent to the summarizer.
	MaxContextNodes    int
	QualitativeTimeout time.Duration
	Now                func() time.Time
}

// New wires a pipeline from configuration. Without an LLM key the qualitative section stays absent.
func New(cfg *config.AppConfig, profile *config.Profile, client jira.Client, store snapshot.Store, failures *logging.FailureLog) (*Pipeline, error) {
	conv, err := ConventionsFrom(profile)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		Trees: hierarchy.NewBuilder(client, store, hierarchy.Options{
			Taxonomy:     conv.Taxonomy,
			Workers:      cfg.FetchWorkers,
			FetchTimeout: cfg.FetchTimeout,
			Failures:     failures,
		}),
		Registry:           NewRegistry(conv, cfg.AnalyzerTimeout),
		Fields:             conv.Fields,
		Location:           conv.Stats.Location,
		Failures:           failures,
		MaxContextNodes:    cfg.LLM.MaxContextNodes,
		QualitativeTimeout: cfg.LLM.Timeout,
	}

	summarizer, err := llm.NewOpenAI(cfg.LLM)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		log.Info().Msg("No LLM key configured, qualitative section will be absent")
	case err != nil:
		return nil, err
	default:
		p.Summarizer = llm.NewCachedSummarizer(summarizer, cfg.LLM.CacheDir)
	}
	return p, nil
}

// Run analyzes one epic. It returns an error only when ctx is done; every other failure
// leaves a hole in the document.
func (p *Pipeline) Run(ctx context.Context, epicKey string, mode freshness.Mode) (*Report, error) {
	start := time.Now()
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}

	tree, err := p.Trees.Build(ctx, epicKey, mode)
	if err != nil {
		return nil, fmt.Errorf("build hierarchy for %s: %w", epicKey, err)
	}
	timelines := eventlog.Build(tree, p.Fields)

	results := p.Registry.RunAll(ctx, analysis.Input{Tree: tree, Timelines: timelines, Now: now})
	for name, res := range results {
		if !res.OK {
			p.recordFailure(epicKey, "analyze:"+name, res.Error)
		}
	}

	q, qErr := p.qualitative(ctx, tree, results)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := summary.Merge(summary.NewProvenance(tree, mode.String(), now), p.Registry.Names(), results, q, qErr)
	rep := &Report{EpicKey: epicKey, Tree: tree, Document: doc, Location: p.Location}
	if res, ok := results[string(analysis.KindBacklog)]; ok && res.OK {
		if b, ok := res.Payload.(*stats.BacklogResult); ok {
			rep.Backlog = b.Series
		}
	}
	if res, ok := results[string(analysis.KindStatus)]; ok && res.OK {
		rep.Status, _ = res.Payload.(*stats.StatusResult)
	}

	log.Info().
		Str("epic", epicKey).
		Int("nodes", tree.Len()).
		Int("holes", len(doc.Holes())).
		Dur("elapsed", time.Since(start)).
		Msg("Analysis finished")
	return rep, nil
}

func (p *Pipeline) qualitative(ctx context.Context, tree *hierarchy.Tree, results map[string]analysis.Result) (*llm.Qualitative, error) {
	if p.Summarizer == nil {
		return nil, llm.ErrNotConfigured
	}
	var creep []stats.CreepRecord
	if res, ok := results[string(analysis.KindTimeCreep)]; ok && res.OK {
		if tc, ok := res.Payload.(*stats.TimeCreepResult); ok {
			creep = tc.Records
		}
	}

	qctx := ctx
	if p.QualitativeTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, p.QualitativeTimeout)
		defer cancel()
	}
	q, err := p.Summarizer.Summarize(qctx, llm.NewExcerpt(tree, creep, p.MaxContextNodes))
	if err != nil {
		log.Error().Err(err).Str("epic", tree.Root().Key).Str("phase", "qualitative").Msg("Qualitative summary failed")
		p.recordFailure(tree.Root().Key, "qualitative", err.Error())
		return nil, err
	}
	return q, nil
}

func (p *Pipeline) recordFailure(unit, phase, reason string) {
	if err := p.Failures.Record(unit, phase, reason); err != nil {
		log.Warn().Err(err).Msg("Failed to record failure")
	}
}

// Outcome is the result of one key of a batch.
type Outcome struct {
	Key    string
	Report *Report
	Err    error
}

// RunAll analyzes keys one after another. A failing key does not stop the batch; a done ctx does.
func (p *Pipeline) RunAll(ctx context.Context, keys []string, mode freshness.Mode) []Outcome {
	out := make([]Outcome, 0, len(keys))
	for i, key := range keys {
		if ctx.Err() != nil {
			out = append(out, Outcome{Key: key, Err: ctx.Err()})
			continue
		}
		log.Info().Str("epic", key).Int("index", i+1).Int("total", len(keys)).Msg("Analyzing epic")
		rep, err := p.Run(ctx, key, mode)
		if err != nil {
			log.Error().Err(err).Str("epic", key).Msg("Analysis aborted")
			p.recordFailure(key, "run", err.Error())
		}
		out = append(out, Outcome{Key: key, Report: rep, Err: err})
	}
	return out
}

var keyPattern = regexp.MustCompile(`[A-Z][A-Z0-9]*-\d+`)

// ReadKeysFile extracts issue keys from a file in order of first appearance.
func ReadKeysFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keys file: %w", err)
	}
	seen := map[string]bool{}
	var keys []string
	for _, k := range keyPattern.FindAllString(string(data), -1) {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no issue keys in %s", path)
	}
	return keys, nil
}
