// Package randtest holds the goodness-of-fit helpers used by the
// distribution tests of the generator packages.
package randtest

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultAlpha is the significance level the tests reject at. It is small
// because the tests run with fixed seeds and must not flake when a seed
// constant is changed.
const DefaultAlpha = 1e-4

// ChiSquare computes Pearson's statistic for observed counts against
// expected counts and returns it with its p-value.
func ChiSquare(observed []int, expected []float64) (stat, pValue float64, err error) {
	if len(observed) != len(expected) {
		return 0, 0, fmt.Errorf("randtest: %d observed buckets, %d expected", len(observed), len(expected))
	}
	if len(observed) < 2 {
		return 0, 0, fmt.Errorf("randtest: need at least 2 buckets, got %d", len(observed))
	}
	for i, e := range expected {
		if e <= 0 {
			return 0, 0, fmt.Errorf("randtest: bucket %d has expected count %v", i, e)
		}
		d := float64(observed[i]) - e
		stat += d * d / e
	}
	dist := distuv.ChiSquared{K: float64(len(observed) - 1)}
	return stat, 1 - dist.CDF(stat), nil
}

// ChiSquareUniform tests counts against the uniform distribution.
func ChiSquareUniform(observed []int) (stat, pValue float64, err error) {
	total := 0
	for _, o := range observed {
		total += o
	}
	expected := make([]float64, len(observed))
	for i := range expected {
		expected[i] = float64(total) / float64(len(observed))
	}
	return ChiSquare(observed, expected)
}

// ChiSquareWeighted tests counts against a distribution proportional to
// weights.
func ChiSquareWeighted(observed []int, weights []float64) (stat, pValue float64, err error) {
	if len(observed) != len(weights) {
		return 0, 0, fmt.Errorf("randtest: %d observed buckets, %d weights", len(observed), len(weights))
	}
	total, wsum := 0, 0.0
	for i := range observed {
		total += observed[i]
		wsum += weights[i]
	}
	expected := make([]float64, len(weights))
	for i, w := range weights {
		expected[i] = float64(total) * w / wsum
	}
	return ChiSquare(observed, expected)
}

// BitBalance returns, for every bit position, how often that bit was set
// across words.
func BitBalance(words []uint64) [64]int {
	var ones [64]int
	for _, w := range words {
		for b := 0; b < 64; b++ {
			if w&(1<<b) != 0 {
				ones[b]++
			}
		}
	}
	return ones
}
