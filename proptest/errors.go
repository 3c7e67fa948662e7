package proptest

import (
	"errors"
	"fmt"
)

// Generator contract violations. They are raised as a panic carrying a
// *MisuseError so that generators keep their value-only signatures; the
// engine recovers them and reports the trial as generator misuse.
var (
	ErrEmptyRange      = errors.New("empty range")
	ErrNoChoices       = errors.New("no choices")
	ErrZeroWeight      = errors.New("total weight is zero")
	ErrNegativeSize    = errors.New("negative size")
	ErrFilterExhausted = errors.New("filter exhausted its retries")
	ErrInvalidArgument = errors.New("invalid argument")
)

// MisuseError describes a generator used outside its contract.
type MisuseError struct {
	Op     string
	Detail string
	Err    error
}

func (e *MisuseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("proptest: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("proptest: %s: %v: %s", e.Op, e.Err, e.Detail)
}

func (e *MisuseError) Unwrap() error {
	return e.Err
}

func misuse(op string, err error, format string, args ...any) {
	panic(&MisuseError{Op: op, Err: err, Detail: fmt.Sprintf(format, args...)})
}

// AsMisuse extracts a *MisuseError from a recovered panic value.
func AsMisuse(recovered any) (*MisuseError, bool) {
	err, ok := recovered.(error)
	if !ok {
		return nil, false
	}
	var me *MisuseError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}
