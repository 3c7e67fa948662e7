package dicetest

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSettings is wrapped by every *ConfigError.
	ErrInvalidSettings = errors.New("invalid settings")

	// ErrInvalidRunCode is returned when a run code does not decode.
	ErrInvalidRunCode = errors.New("invalid run code")

	// ErrUnknownMode is returned by ParseMode for an unrecognised mode name.
	ErrUnknownMode = errors.New("unknown mode")
)

// ConfigError reports a settings field that cannot be used. Configuration
// errors are fatal: the engine runs no trials.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("dicetest: %v: %s = %v: %s", ErrInvalidSettings, e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidSettings
}
