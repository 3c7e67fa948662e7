package dicetest

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/shipq/dicetest/prng"
	"github.com/shipq/dicetest/proptest"
)

// ErrFalsified is the detail of a Holds predicate that returned false.
var ErrFalsified = errors.New("predicate returned false")

// Property pairs a generator with a predicate over its values. Build one
// with ForAll or Holds.
type Property struct {
	generate func(c *proptest.Context) any
	check    func(v any) error
}

// ForAll builds a property that holds when pred returns nil for every value
// of gen.
func ForAll[T any](gen proptest.Gen[T], pred func(T) error) Property {
	return Property{
		generate: func(c *proptest.Context) any { return gen.Generate(c) },
		check:    func(v any) error { return pred(v.(T)) },
	}
}

// Holds builds a property that holds when pred returns true for every value
// of gen.
func Holds[T any](gen proptest.Gen[T], pred func(T) bool) Property {
	return ForAll(gen, func(v T) error {
		if !pred(v) {
			return ErrFalsified
		}
		return nil
	})
}

func (p Property) valid() bool {
	return p.generate != nil && p.check != nil
}

// trialResult is everything one execution of a property left behind.
type trialResult struct {
	code    RunCode
	value   any
	failure *Failure
	trace   proptest.Trace
}

func (t trialResult) failed() bool {
	return t.failure != nil
}

// shrinkable reports whether the failure came from the predicate, as
// opposed to the generator.
func (t trialResult) shrinkable() bool {
	return t.failure != nil && t.failure.Kind != KindMisuse
}

// runTrial executes prop once. seed must be code.trialSeed(); callers that
// walk the chain in order pass it in to avoid recomputing it.
func runTrial(code RunCode, seed prng.Seed, prop Property, logger *slog.Logger) (res trialResult) {
	res.code = code

	opts := []proptest.Option{proptest.WithCaps(code.Caps)}
	if logger != nil {
		opts = append(opts, proptest.WithLogger(logger))
	}

	var c *proptest.Context
	generated := func() (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				res.failure = misuseFailure(r)
			}
		}()
		c = proptest.NewContext(seed, code.Size, opts...)
		res.value = prop.generate(c)
		return true
	}()
	if c != nil {
		res.trace = c.Trace()
	}
	if !generated {
		return res
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				res.failure = &Failure{Kind: KindPanicked, Detail: fmt.Sprint(r)}
			}
		}()
		if err := prop.check(res.value); err != nil {
			res.failure = &Failure{Kind: KindFalsified, Detail: err.Error()}
		}
	}()
	return res
}

func misuseFailure(r any) *Failure {
	if me, ok := proptest.AsMisuse(r); ok {
		return &Failure{Kind: KindMisuse, Detail: me.Error()}
	}
	return &Failure{Kind: KindMisuse, Detail: fmt.Sprintf("generator panicked: %v", r)}
}
