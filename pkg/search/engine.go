// Package search runs the identification pipeline: precursor filtering,
// fragment matching and scoring against targets and decoys, then
// target-decoy FDR over the best solutions.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BostonUniversityCBMS/Glycresoft/pkg/config"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/core"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/decoy"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/fdr"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/filter"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/fragment"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/match"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/precursor"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/score"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records run metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithGlycanPool lets decoys carry isobaric compositions no target uses.
func WithGlycanPool(pool []core.GlycanComposition) Option {
	return func(e *Engine) { e.glycanPool = pool }
}

// WithRejected counts candidates the caller dropped before building the
// engine, so they are reported with the run.
func WithRejected(t Tally) Option {
	return func(e *Engine) { e.rejected = t }
}

// Engine scores spectra against a fixed candidate pool. Everything it holds
// is built by NewEngine and read-only afterwards, so Run and ScoreSpectrum
// may be called concurrently.
type Engine struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *Metrics

	precursor precursor.Filter
	peaks     filter.Config
	tolerance core.Tolerance
	scorer    *score.Scorer
	mode      fdr.Mode
	workers   int

	glycanPool []core.GlycanComposition
	rejected   Tally
	targets    *precursor.Index
	decoys     *precursor.Index
	cache      *fragment.Cache
	buildTally Tally
}

// NewEngine validates cfg, generates decoys for candidates and builds the
// fragment cache of both sides. Candidates that cannot be fragmented and
// targets without a collision-free decoy are tallied and logged, not
// fatal. A configuration error is returned before any work is done.
func NewEngine(ctx context.Context, cfg config.Config, candidates []*core.Candidate, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	tol, err := cfg.FragmentTolerance()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:        cfg,
		logger:     slog.Default(),
		precursor:  cfg.PrecursorFilter(),
		peaks:      cfg.Peaks,
		tolerance:  tol,
		scorer:     score.NewScorer(cfg.ScoreOptions()),
		mode:       cfg.FDRMode(),
		workers:    cfg.WorkerCount(),
		buildTally: make(Tally),
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, r := range e.rejected.Reasons() {
		e.buildTally.Add(r, e.rejected[r])
		e.metrics.observeBuildFailure(r, e.rejected[r])
	}

	decoyOpts := cfg.DecoyOptions()
	decoyOpts.GlycanPool = e.glycanPool
	nextID := 0
	for _, c := range candidates {
		nextID = max(nextID, c.ID)
	}
	decoys, decoyFailures := decoy.NewGenerator(candidates, decoyOpts).GenerateAll(candidates, nextID+1)
	for _, f := range decoyFailures {
		e.logger.Warn("no decoy for candidate", "candidate", f.Target.String(), "replicate", f.Replicate, "error", f.Err)
	}
	e.buildTally.Add(ReasonDecoyCollision, len(decoyFailures))
	e.metrics.observeBuildFailure(ReasonDecoyCollision, len(decoyFailures))

	pool := make([]*core.Candidate, 0, len(candidates)+len(decoys))
	pool = append(pool, candidates...)
	pool = append(pool, decoys...)

	start := time.Now()
	cache, buildFailures, err := fragment.BuildCache(ctx, fragment.NewGenerator(cfg.FragmentOptions()), pool, e.workers)
	if err != nil {
		return nil, fmt.Errorf("building fragment cache: %w", err)
	}
	for _, f := range buildFailures {
		e.logger.Warn("cannot fragment candidate", "candidate", f.Candidate.String(), "error", f.Err)
	}
	e.buildTally.Add(ReasonFragmentGeneration, len(buildFailures))
	e.metrics.observeBuildFailure(ReasonFragmentGeneration, len(buildFailures))
	e.cache = cache

	var targets, decoyPool []*core.Candidate
	for _, c := range pool {
		if _, ok := cache.Ions(c); !ok {
			continue
		}
		if c.Decoy {
			decoyPool = append(decoyPool, c)
		} else {
			targets = append(targets, c)
		}
	}
	e.targets = precursor.NewIndex(targets)
	e.decoys = precursor.NewIndex(decoyPool)

	e.logger.Info("engine ready",
		"targets", e.targets.Len(),
		"decoys", e.decoys.Len(),
		"workers", e.workers,
		"cache_build", time.Since(start).Round(time.Millisecond))
	return e, nil
}

// Targets returns the number of indexed target candidates.
func (e *Engine) Targets() int { return e.targets.Len() }

// Decoys returns the number of indexed decoy candidates.
func (e *Engine) Decoys() int { return e.decoys.Len() }

// Config returns the engine settings.
func (e *Engine) Config() config.Config { return e.cfg }

// ScoreSpectrum scores one spectrum against every precursor-compatible
// target and decoy and returns the best of each side with the diagnostic
// solution set. It never fails; problems are reported in Skipped and Err.
func (e *Engine) ScoreSpectrum(s *core.Spectrum) SpectrumResult {
	start := time.Now()
	res := e.scoreSpectrum(s)
	outcome := "scored"
	if res.Skipped != "" {
		outcome = string(res.Skipped)
	}
	e.metrics.observeSpectrum(outcome, time.Since(start))
	return res
}

func (e *Engine) scoreSpectrum(s *core.Spectrum) SpectrumResult {
	res := SpectrumResult{SpectrumID: s.ID}
	if err := s.Validate(); err != nil {
		res.Skipped, res.Err = ReasonInvalidSpectrum, err
		return res
	}

	spectrum := e.peaks.Apply(s)
	res.Signature = score.OxoniumSignature(spectrum, e.tolerance)
	if gate := e.cfg.Scoring.MinOxoniumRatio; gate > 0 && res.Signature.Ratio < gate {
		res.Skipped = ReasonNoOxoniumSignal
		return res
	}

	targetHits := e.precursor.Candidates(e.targets, spectrum)
	decoyHits := e.precursor.Candidates(e.decoys, spectrum)
	if len(targetHits) == 0 && len(decoyHits) == 0 {
		res.Skipped = ReasonNoPrecursorMatch
		return res
	}

	targets := e.evaluate(spectrum, targetHits)
	decoys := e.evaluate(spectrum, decoyHits)
	e.metrics.observeCandidates("target", len(targetHits))
	e.metrics.observeCandidates("decoy", len(decoyHits))

	res.Target = best(targets)
	res.Decoy = best(decoys)
	if res.Target == nil && res.Decoy == nil {
		res.Skipped = ReasonNoFragmentMatch
		return res
	}
	res.Solutions = newSolutionSet(targets, e.cfg.Scoring.DiagnosticFloor)
	return res
}

// evaluate scores every hit that matched at least one fragment.
func (e *Engine) evaluate(spectrum *core.Spectrum, hits []precursor.Hit) []Solution {
	var out []Solution
	for _, hit := range hits {
		ions, ok := e.cache.Ions(hit.Candidate)
		if !ok {
			continue
		}
		m := match.Match(spectrum.Peaks, ions, e.tolerance)
		if !m.Matched() {
			continue
		}
		out = append(out, Solution{
			Candidate: hit.Candidate,
			Score:     e.scorer.Score(&m, hit.Candidate),
			Hit:       hit,
		})
	}
	return out
}

func best(solutions []Solution) *Solution {
	if len(solutions) == 0 {
		return nil
	}
	top := solutions[0]
	for _, s := range solutions[1:] {
		if s.better(top) {
			top = s
		}
	}
	return &top
}

// Run scores spectra in a pool of Workers goroutines, then estimates
// q-values over the best solutions once every spectrum is done. A
// cancelled context aborts the run with ctx.Err() and no partial report.
func (e *Engine) Run(ctx context.Context, spectra []*core.Spectrum) (*Report, error) {
	start := time.Now()
	results := make([]SpectrumResult, len(spectra))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, s := range spectra {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.ScoreSpectrum(s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := e.assemble(results)
	e.metrics.setAccepted(report.Accepted)

	attrs := []any{
		"spectra", report.Spectra,
		"identified", len(report.Records),
		"accepted", report.Accepted,
		"q_threshold", report.QThreshold,
		"elapsed", time.Since(start).Round(time.Millisecond),
	}
	for _, r := range report.Tally.Reasons() {
		attrs = append(attrs, string(r), report.Tally[r])
	}
	e.logger.Info("search complete", attrs...)
	return report, nil
}

// assemble runs the FDR step over finished spectrum results.
func (e *Engine) assemble(results []SpectrumResult) *Report {
	report := &Report{
		Spectra:    len(results),
		QThreshold: e.cfg.FDR.QThreshold,
		Tally:      make(Tally),
	}
	report.Tally.Merge(e.buildTally)

	var entries []fdr.Entry
	for _, r := range results {
		if r.Skipped != "" {
			report.Tally.Add(r.Skipped, 1)
			if r.Err != nil {
				e.logger.Debug("spectrum skipped", "spectrum", r.SpectrumID, "reason", r.Skipped, "error", r.Err)
			}
			continue
		}
		if r.Target != nil {
			e.metrics.observeBest("target", r.Target.Score.Composite)
		}
		if r.Decoy != nil {
			e.metrics.observeBest("decoy", r.Decoy.Score.Composite)
		}
		switch {
		case e.mode == fdr.Separate:
			if r.Target != nil {
				entries = append(entries, fdr.Entry{Score: r.Target.Score.Composite})
			}
			if r.Decoy != nil {
				entries = append(entries, fdr.Entry{Score: r.Decoy.Score.Composite, Decoy: true})
			}
		case decoyWins(r):
			entries = append(entries, fdr.Entry{Score: r.Decoy.Score.Composite, Decoy: true})
		default:
			entries = append(entries, fdr.Entry{Score: r.Target.Score.Composite})
		}
	}

	table := fdr.Estimate(entries)
	if threshold, ok := table.Threshold(report.QThreshold); ok {
		report.ScoreThreshold = threshold
	}

	for _, r := range results {
		if r.Skipped != "" {
			continue
		}
		if r.Target != nil {
			rec := record(r, *r.Target, table.QValue(r.Target.Score.Composite))
			rec.Accepted = rec.QValue <= report.QThreshold && (e.mode == fdr.Separate || !decoyWins(r))
			if rec.Accepted {
				report.Accepted++
			}
			report.Records = append(report.Records, rec)
		}
		if r.Decoy != nil {
			report.DecoyRecords = append(report.DecoyRecords, record(r, *r.Decoy, table.QValue(r.Decoy.Score.Composite)))
		}
		if len(r.Solutions.Solutions) > 0 {
			report.Diagnostics = append(report.Diagnostics, SpectrumDiagnostics{
				SpectrumID: r.SpectrumID,
				Signature:  r.Signature,
				Solutions:  r.Solutions,
			})
		}
	}
	return report
}

func decoyWins(r SpectrumResult) bool {
	if r.Decoy == nil {
		return false
	}
	if r.Target == nil {
		return true
	}
	return fdr.DecoyWins(r.Target.Score.Composite, r.Decoy.Score.Composite)
}

func record(r SpectrumResult, s Solution, q float64) IdentificationRecord {
	return IdentificationRecord{
		SpectrumID:        r.SpectrumID,
		Candidate:         s.Candidate,
		Score:             s.Score,
		Decoy:             s.Candidate.Decoy,
		QValue:            q,
		Charge:            s.Hit.Charge,
		IsotopeOffset:     s.Hit.IsotopeOffset,
		PrecursorErrorPPM: s.Hit.ErrorPPM,
		Signature:         r.Signature,
	}
}
