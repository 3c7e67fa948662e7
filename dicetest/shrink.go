package dicetest

import (
	"context"
	"log/slog"
	"slices"

	"github.com/shipq/dicetest/prng"
	"github.com/shipq/dicetest/proptest"
)

// shrinker runs a greedy, first-improvement search over size caps.
//
// Candidates for the current best are enumerated in trace order, root
// first. For every context of size s > 0 the search tries the sizes 0, s/2,
// 3s/4 and s-1, each first with the context's current seed and then with
// up to reseeds derived ones. After single contexts it tries sibling pairs,
// both halved and then both zeroed. A candidate is accepted only if the
// predicate still fails and the size metric strictly drops, so the search
// terminates and never widens the failure.
type shrinker struct {
	prop       Property
	seed       prng.Seed
	maxAttempt int
	reseeds    int
	logger     *slog.Logger

	attempts int
	accepted int
}

func (s *shrinker) run(ctx context.Context, orig trialResult) trialResult {
	best := orig
	for {
		improved := false
		for _, code := range candidates(best, s.reseeds) {
			if s.attempts >= s.maxAttempt || ctx.Err() != nil {
				return best
			}
			s.attempts++
			res := runTrial(code, s.seed, s.prop, nil)
			if !res.shrinkable() || res.trace.Metric() >= best.trace.Metric() {
				continue
			}
			res.code = res.code.prune(res.trace)
			best = res
			s.accepted++
			improved = true
			s.logger.Debug("shrink accepted",
				"code", best.code.String(),
				"metric", best.trace.Metric(),
				"attempt", s.attempts,
			)
			break
		}
		if !improved {
			return best
		}
	}
}

// candidates lists the codes to try next from best, in order.
func candidates(best trialResult, reseeds int) []RunCode {
	var out []RunCode
	for _, n := range best.trace.Nodes {
		if n.Size == 0 {
			continue
		}
		salt := uint64(0)
		if cp, ok := best.code.capAt(n.Path); ok {
			salt = cp.Salt
		}
		for _, target := range shrinkTargets(n.Size) {
			out = append(out, best.code.withCaps(proptest.Cap{Path: n.Path, Size: target, Salt: salt}))
			for r := uint64(1); r <= uint64(reseeds); r++ {
				if r == salt {
					continue
				}
				out = append(out, best.code.withCaps(proptest.Cap{Path: n.Path, Size: target, Salt: r}))
			}
		}
	}

	sizes := make(map[proptest.Path]int, len(best.trace.Nodes))
	for _, n := range best.trace.Nodes {
		sizes[n.Path] = n.Size
	}
	for _, n := range best.trace.Nodes {
		if n.Path.IsRight() {
			continue
		}
		sib, ok := n.Path.Sibling()
		if !ok {
			continue
		}
		sibSize, ok := sizes[sib]
		if !ok || n.Size+sibSize == 0 {
			continue
		}
		for _, div := range []int{2, 0} {
			left, right := 0, 0
			if div != 0 {
				left, right = n.Size/div, sibSize/div
			}
			out = append(out, best.code.withCaps(
				keepSalt(best.code, n.Path, left),
				keepSalt(best.code, sib, right),
			))
		}
	}
	return out
}

// shrinkTargets returns the sizes to try for a context of size s, in order.
func shrinkTargets(s int) []int {
	if s <= 0 {
		return nil
	}
	var out []int
	for _, t := range []int{0, s / 2, s * 3 / 4, s - 1} {
		if t < s && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func keepSalt(code RunCode, p proptest.Path, size int) proptest.Cap {
	cp, _ := code.capAt(p)
	return proptest.Cap{Path: p, Size: size, Salt: cp.Salt}
}
