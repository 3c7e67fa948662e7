// Package dicetest runs properties: it drives generators from package
// proptest through a run mode, detects failing trials, shrinks them and
// hands back a RunCode that reproduces the smallest failure it found.
//
// Basic usage:
//
//	eng, err := dicetest.New(dicetest.DefaultSettings())
//	if err != nil {
//	    return err
//	}
//	report, err := eng.Run(ctx, dicetest.Repeatedly(),
//	    dicetest.Holds(proptest.IntRange(0, 1999), func(n int) bool { return n < 1000 }))
//
// A failing report's Code can be replayed with dicetest.Debug(report.Code).
package dicetest

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shipq/dicetest/prng"
)

// Engine runs properties under fixed Settings. It is safe for concurrent use.
type Engine struct {
	settings Settings
	logger   *slog.Logger
}

// New validates settings and returns an Engine.
func New(settings Settings) (*Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &Engine{settings: settings, logger: settings.logger()}, nil
}

// Settings returns the engine's settings.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Run executes prop under mode. The returned error is non-nil only for
// configuration problems; failing trials are reported in the Report.
//
// Cancelling ctx stops issuing trials and shrink candidates. Trials already
// running are allowed to finish.
func (e *Engine) Run(ctx context.Context, mode Mode, prop Property) (*Report, error) {
	if !prop.valid() {
		return nil, &ConfigError{Field: "property", Value: "<nil>", Reason: "build it with ForAll or Holds"}
	}

	start := time.Now()
	report := &Report{RunID: uuid.New(), Mode: mode}
	logger := e.logger.With("run_id", report.RunID.String(), "mode", mode.Kind.String())

	switch mode.Kind {
	case ModeDebug:
		if err := checkCode(mode.Code); err != nil {
			return nil, err
		}
		e.debug(logger, mode.Code, prop, report)
	case ModeOnce:
		e.once(ctx, logger, prop, report)
	case ModeRepeatedly:
		e.repeatedly(ctx, logger, prop, report)
	default:
		return nil, &ConfigError{Field: "mode", Value: mode.Kind, Reason: "unknown mode"}
	}

	report.Elapsed = time.Since(start)
	logger.Info("run finished",
		"status", report.Status.String(),
		"trials", report.Trials,
		"regressions", report.Regressions,
		"elapsed_ms", float64(report.Elapsed.Nanoseconds())/1e6,
	)
	return report, nil
}

func checkCode(code RunCode) error {
	if code.Size < 0 || code.Size > maxSize {
		return &ConfigError{Field: "code", Value: code.Size, Reason: "size out of range"}
	}
	return nil
}

func (e *Engine) masterSeed() prng.Seed {
	if e.settings.Seed != nil {
		return *e.settings.Seed
	}
	return prng.FromEntropy()
}

// debug replays code with every draw logged. It never shrinks.
func (e *Engine) debug(logger *slog.Logger, code RunCode, prop Property, report *Report) {
	report.Seed = code.Seed
	logger.Info("replaying", "code", code.String(), "seed", code.Seed.String(), "trial", code.Trial)

	res := runTrial(code, code.trialSeed(), prop, logger)
	report.Trials = 1
	report.Draws = res.trace.Draws
	report.Metric = res.trace.Metric()
	report.Code = code
	report.Value = res.value
	if res.failed() {
		report.setFailure(res, res, 0, 0)
		logger.Info("trial failed", "code", code.String(), "failure", res.failure.String())
		return
	}
	report.Status = StatusPass
}

func (e *Engine) once(ctx context.Context, logger *slog.Logger, prop Property, report *Report) {
	master := e.masterSeed()
	report.Seed = master
	logger.Info("run started", "seed", master.String())

	code := RunCode{Seed: master, Size: e.settings.Size}
	res := runTrial(code, code.trialSeed(), prop, nil)
	report.Trials = 1
	if !res.failed() {
		report.Status = StatusPass
		return
	}
	e.fail(ctx, logger, prop, res, report)
}

func (e *Engine) repeatedly(ctx context.Context, logger *slog.Logger, prop Property, report *Report) {
	master := e.masterSeed()
	report.Seed = master
	logger.Info("run started",
		"seed", master.String(),
		"trials", e.settings.Trials,
		"workers", e.settings.Workers,
		"regressions", len(e.settings.Regressions),
	)

	for _, code := range e.settings.Regressions {
		if ctx.Err() != nil {
			report.Status = StatusExhausted
			return
		}
		report.Regressions++
		res := runTrial(code, code.trialSeed(), prop, nil)
		if res.failed() {
			logger.Info("regression failed", "code", code.String())
			e.fail(ctx, logger, prop, res, report)
			return
		}
	}

	res, ran, exhausted := e.search(ctx, master, prop)
	report.Trials = ran
	switch {
	case res != nil:
		e.fail(ctx, logger, prop, *res, report)
	case exhausted:
		report.Status = StatusExhausted
	default:
		report.Status = StatusPass
	}
}

// search runs the random trials of master. It returns the failing trial
// with the lowest index regardless of the order in which workers finished,
// the number of trials run, and whether the budget ended early.
func (e *Engine) search(ctx context.Context, master prng.Seed, prop Property) (*trialResult, int, bool) {
	budget := ctx
	if e.settings.Timeout > 0 {
		var cancel context.CancelFunc
		budget, cancel = context.WithTimeout(ctx, e.settings.Timeout)
		defer cancel()
	}

	trials := e.settings.Trials
	results := make([]*trialResult, trials)
	var firstFail atomic.Int64
	firstFail.Store(math.MaxInt64)
	var ran atomic.Int64

	var g errgroup.Group
	g.SetLimit(e.settings.Workers)

	chain := seedChain{next: master}
	exhausted := false
	for i := 0; i < trials; i++ {
		if int64(i) > firstFail.Load() {
			break
		}
		if budget.Err() != nil {
			exhausted = true
			break
		}
		seed := chain.advance()
		code := RunCode{Seed: master, Trial: uint64(i), Size: e.settings.Size}
		g.Go(func() error {
			if int64(i) > firstFail.Load() {
				return nil
			}
			res := runTrial(code, seed, prop, nil)
			ran.Add(1)
			if res.failed() {
				results[i] = &res
				lowerTo(&firstFail, int64(i))
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r != nil {
			return r, int(ran.Load()), false
		}
	}
	return nil, int(ran.Load()), exhausted
}

// lowerTo stores v in a if it is below the current value.
func lowerTo(a *atomic.Int64, v int64) {
	for {
		cur := a.Load()
		if v >= cur || a.CompareAndSwap(cur, v) {
			return
		}
	}
}

// fail shrinks orig when the predicate caused it and records the result.
func (e *Engine) fail(ctx context.Context, logger *slog.Logger, prop Property, orig trialResult, report *Report) {
	logger.Info("trial failed",
		"trial", orig.code.Trial,
		"code", orig.code.String(),
		"failure", orig.failure.String(),
	)

	best, attempts, shrinks := orig, 0, 0
	if orig.shrinkable() && e.settings.MaxShrinks > 0 {
		s := &shrinker{
			prop:       prop,
			seed:       orig.code.trialSeed(),
			maxAttempt: e.settings.MaxShrinks,
			reseeds:    e.settings.ShrinkReseeds,
			logger:     logger,
		}
		best = s.run(ctx, orig)
		attempts, shrinks = s.attempts, s.accepted
		logger.Info("shrink finished",
			"code", best.code.String(),
			"metric", best.trace.Metric(),
			"original_metric", orig.trace.Metric(),
			"attempts", attempts,
			"accepted", shrinks,
		)
	}
	report.setFailure(orig, best, attempts, shrinks)
}
