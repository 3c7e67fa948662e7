package dicetest

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/shipq/dicetest/prng"
	"github.com/shipq/dicetest/proptest"
)

func TestShrinkTargets(t *testing.T) {
	tests := []struct {
		size int
		want []int
	}{
		{-3, nil},
		{0, nil},
		{1, []int{0}},
		{2, []int{0, 1}},
		{4, []int{0, 2, 3}},
		{100, []int{0, 50, 75, 99}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, shrinkTargets(tt.size)); diff != "" {
			t.Errorf("shrinkTargets(%d) mismatch (-want +got):\n%s", tt.size, diff)
		}
	}
}

func TestShrink_EveryAcceptedCandidateFails(t *testing.T) {
	var failing []RunCode

	gen := proptest.Slice(proptest.IntRange(0, 100))
	pred := func(s []int) bool { return len(s) < 3 }
	prop := Holds(gen, pred)

	eng := mustEngine(t, seeded(42))
	report := mustRun(t, eng, Repeatedly(), prop)
	if report.Status != StatusFail {
		t.Fatalf("Status = %v, want fail", report.Status)
	}
	if report.Shrinks == 0 {
		t.Fatal("expected at least one accepted shrink")
	}
	if report.Metric >= report.OriginalMetric {
		t.Errorf("Metric = %d, want below OriginalMetric = %d", report.Metric, report.OriginalMetric)
	}
	if report.ShrinkAttempts > eng.Settings().MaxShrinks {
		t.Errorf("ShrinkAttempts = %d exceeds cap %d", report.ShrinkAttempts, eng.Settings().MaxShrinks)
	}

	// Replay every code on the path the shrinker took.
	s := &shrinker{
		prop:       prop,
		seed:       report.OriginalCode.trialSeed(),
		maxAttempt: eng.Settings().MaxShrinks,
		reseeds:    eng.Settings().ShrinkReseeds,
		logger:     eng.logger,
	}
	best := runTrial(report.OriginalCode, s.seed, prop, nil)
	attempts := 0
	for {
		var next *trialResult
		for _, code := range candidates(best, s.reseeds) {
			if attempts >= s.maxAttempt {
				break
			}
			attempts++
			res := runTrial(code, s.seed, prop, nil)
			if res.shrinkable() && res.trace.Metric() < best.trace.Metric() {
				res.code = res.code.prune(res.trace)
				next = &res
				break
			}
		}
		if next == nil {
			break
		}
		failing = append(failing, next.code)
		best = *next
	}

	for _, code := range failing {
		replay := mustRun(t, eng, Debug(code), prop)
		if replay.Status != StatusFail {
			t.Errorf("accepted candidate %s passes on replay", code)
		}
	}
	if !best.code.Equal(report.Code) {
		t.Errorf("replayed search ended at %s, engine reported %s", best.code, report.Code)
	}
}

func TestShrink_ReducesSliceLength(t *testing.T) {
	prop := Holds(proptest.Slice(proptest.IntRange(0, 1000)), func(s []int) bool {
		return len(s) < 5
	})
	report := mustRun(t, mustEngine(t, seeded(9)), Repeatedly(), prop)
	if report.Status != StatusFail {
		t.Fatalf("Status = %v, want fail", report.Status)
	}
	got := report.Value.([]int)
	orig := report.OriginalValue.([]int)
	if len(got) < 5 {
		t.Fatalf("shrunk value %v no longer fails", got)
	}
	if len(got) > len(orig) {
		t.Errorf("shrunk length %d > original length %d", len(got), len(orig))
	}
}

func TestShrink_RespectsMaxShrinks(t *testing.T) {
	s := seeded(42)
	s.MaxShrinks = 3
	prop := Holds(proptest.Slice(proptest.Int()), func(v []int) bool { return len(v) < 2 })
	report := mustRun(t, mustEngine(t, s), Repeatedly(), prop)
	if report.ShrinkAttempts > 3 {
		t.Errorf("ShrinkAttempts = %d, want <= 3", report.ShrinkAttempts)
	}
}

func TestShrink_Disabled(t *testing.T) {
	s := seeded(1)
	s.MaxShrinks = 0
	report := mustRun(t, mustEngine(t, s), Repeatedly(), belowThousand())
	if report.ShrinkAttempts != 0 || !report.Code.Equal(report.OriginalCode) {
		t.Errorf("shrinking ran with MaxShrinks = 0: %d attempts", report.ShrinkAttempts)
	}
}

func TestShrink_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prop := Holds(proptest.Slice(proptest.Int()), func(v []int) bool { return len(v) < 2 })
	code := RunCode{Seed: prng.Seed(1), Size: 100}
	s := &shrinker{prop: prop, seed: code.trialSeed(), maxAttempt: 100, reseeds: 2, logger: DefaultSettings().logger()}
	orig := runTrial(code, s.seed, prop, nil)
	got := s.run(ctx, orig)
	if s.attempts != 0 || !got.code.Equal(orig.code) {
		t.Errorf("shrinker ran %d attempts after cancel", s.attempts)
	}
}

func TestCandidates_SiblingPairs(t *testing.T) {
	gen := proptest.Zip(proptest.Slice(proptest.Int()), proptest.Slice(proptest.Int()))
	prop := Holds(gen, func(proptest.Pair[[]int, []int]) bool { return false })
	code := RunCode{Seed: prng.Seed(3), Size: 8}
	res := runTrial(code, code.trialSeed(), prop, nil)

	c := proptest.NewContext(prng.Seed(0), 8)
	l, r := c.Split()

	found := false
	for _, cand := range candidates(res, 0) {
		lc, lok := cand.capAt(l.Path())
		rc, rok := cand.capAt(r.Path())
		if lok && rok && lc.Size == 4 && rc.Size == 4 {
			found = true
			break
		}
	}
	if !found {
		t.Error("candidates() never halves both halves of the zip together")
	}
}
