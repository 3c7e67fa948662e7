package check

import (
	"cmp"
	"fmt"
)

// Assertion helpers for use inside properties. The bool forms suit
// QuickCheck and ForAll; the error forms carry a detail into the failure
// report.

// AssertEqual checks if two values are equal.
func AssertEqual[T comparable](a, b T) bool {
	return a == b
}

// AssertNotEqual checks if two values are not equal.
func AssertNotEqual[T comparable](a, b T) bool {
	return a != b
}

// AssertInRange checks if a value is in the given range [min, max].
func AssertInRange[T cmp.Ordered](val, min, max T) bool {
	return val >= min && val <= max
}

// AssertLenInRange checks if a slice length is in the given range.
func AssertLenInRange[T any](slice []T, min, max int) bool {
	return len(slice) >= min && len(slice) <= max
}

// AssertNonEmpty checks if a slice is non-empty.
func AssertNonEmpty[T any](slice []T) bool {
	return len(slice) > 0
}

// AssertAllSatisfy checks if all elements satisfy a predicate.
func AssertAllSatisfy[T any](slice []T, pred func(T) bool) bool {
	for _, v := range slice {
		if !pred(v) {
			return false
		}
	}
	return true
}

// AssertAnySatisfy checks if any element satisfies a predicate.
func AssertAnySatisfy[T any](slice []T, pred func(T) bool) bool {
	for _, v := range slice {
		if pred(v) {
			return true
		}
	}
	return false
}

// Equal returns an error describing got and want when they differ.
func Equal[T comparable](got, want T) error {
	if got != want {
		return fmt.Errorf("got %+v, want %+v", got, want)
	}
	return nil
}

// InRange returns an error when val is outside [min, max].
func InRange[T cmp.Ordered](val, min, max T) error {
	if val < min || val > max {
		return fmt.Errorf("%v is outside [%v, %v]", val, min, max)
	}
	return nil
}
