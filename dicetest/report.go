package dicetest

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shipq/dicetest/prng"
)

// Status is the outcome of a run.
type Status int

const (
	// StatusPass means every trial held.
	StatusPass Status = iota
	// StatusFail means a trial failed; Report.Code reproduces it.
	StatusFail
	// StatusExhausted means the budget ended before every trial ran and
	// none of those that ran failed.
	StatusExhausted
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusFail:
		return "fail"
	case StatusExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Kind classifies a failing trial.
type Kind int

const (
	// KindFalsified: the predicate returned an error or false.
	KindFalsified Kind = iota
	// KindPanicked: the predicate panicked.
	KindPanicked
	// KindMisuse: the generator panicked, usually with a *proptest.MisuseError.
	KindMisuse
)

func (k Kind) String() string {
	switch k {
	case KindFalsified:
		return "falsified"
	case KindPanicked:
		return "panicked"
	case KindMisuse:
		return "generator misuse"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Failure is why a trial failed.
type Failure struct {
	Kind   Kind
	Detail string
}

func (f Failure) String() string {
	return f.Kind.String() + ": " + f.Detail
}

// Report is the record of one Engine.Run.
type Report struct {
	RunID  uuid.UUID
	Mode   Mode
	Status Status
	Seed   prng.Seed

	// Trials counts random trials executed; Regressions counts replayed codes.
	Trials      int
	Regressions int

	// Set when Status is StatusFail.
	Failure        *Failure
	Code           RunCode
	Value          any
	OriginalCode   RunCode
	OriginalValue  any
	Metric         int
	OriginalMetric int
	Shrinks        int
	ShrinkAttempts int

	// Draws is the number of words the reported trial drew.
	Draws int

	Elapsed time.Duration
}

// Passed reports whether no trial failed.
func (r *Report) Passed() bool {
	return r.Status != StatusFail
}

// ValueString renders the failing value for humans.
func (r *Report) ValueString() string {
	return fmt.Sprintf("%+v", r.Value)
}

func (r *Report) setFailure(orig, best trialResult, attempts, shrinks int) {
	r.Status = StatusFail
	r.Failure = best.failure
	r.Code = best.code
	r.Value = best.value
	r.Metric = best.trace.Metric()
	r.Draws = best.trace.Draws
	r.OriginalCode = orig.code
	r.OriginalValue = orig.value
	r.OriginalMetric = orig.trace.Metric()
	r.ShrinkAttempts = attempts
	r.Shrinks = shrinks
}
