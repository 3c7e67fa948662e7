package dicetest

import (
	"io"
	"log/slog"
	"time"

	"github.com/shipq/dicetest/prng"
)

// Settings controls an Engine.
type Settings struct {
	// Trials is the number of random trials in Repeatedly mode. Default: 100.
	Trials int

	// Size is the initial size bound of every trial. Default: 100.
	Size int

	// Seed pins the master seed. Nil means a fresh seed from entropy.
	Seed *prng.Seed

	// MaxShrinks caps the number of candidates shrink-search may try.
	// Zero disables shrinking. Default: 1000.
	MaxShrinks int

	// ShrinkReseeds is how many derived seeds shrink-search tries per
	// size reduction, on top of the original one. Default: 2.
	ShrinkReseeds int

	// Workers is the number of trials run concurrently. Default: 1.
	Workers int

	// Timeout bounds the random trial phase. Zero means no limit.
	Timeout time.Duration

	// Regressions are replayed before any random trial in Repeatedly mode.
	Regressions []RunCode

	// Logger receives run progress. Nil discards. In Debug mode every draw
	// is logged at debug level, so pass a logger that enables it.
	Logger *slog.Logger
}

// DefaultSettings returns sensible defaults for property testing.
func DefaultSettings() Settings {
	return Settings{
		Trials:        100,
		Size:          100,
		MaxShrinks:    1000,
		ShrinkReseeds: 2,
		Workers:       1,
	}
}

// Validate returns a *ConfigError for the first unusable field.
func (s Settings) Validate() error {
	switch {
	case s.Trials <= 0:
		return &ConfigError{Field: "trials", Value: s.Trials, Reason: "must be positive"}
	case s.Size < 0:
		return &ConfigError{Field: "size", Value: s.Size, Reason: "must not be negative"}
	case s.Size > maxSize:
		return &ConfigError{Field: "size", Value: s.Size, Reason: "too large"}
	case s.MaxShrinks < 0:
		return &ConfigError{Field: "max_shrinks", Value: s.MaxShrinks, Reason: "must not be negative"}
	case s.ShrinkReseeds < 0:
		return &ConfigError{Field: "shrink_reseeds", Value: s.ShrinkReseeds, Reason: "must not be negative"}
	case s.Workers < 1:
		return &ConfigError{Field: "workers", Value: s.Workers, Reason: "must be at least 1"}
	case s.Timeout < 0:
		return &ConfigError{Field: "timeout", Value: s.Timeout, Reason: "must not be negative"}
	}
	for i, code := range s.Regressions {
		if code.Size < 0 || code.Size > maxSize {
			return &ConfigError{Field: "regressions", Value: i, Reason: "size out of range"}
		}
	}
	return nil
}

func (s Settings) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
