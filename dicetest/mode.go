package dicetest

import (
	"fmt"
	"strings"
)

// ModeKind selects how an Engine drives trials.
type ModeKind int

const (
	// ModeRepeatedly runs the configured number of independent trials.
	ModeRepeatedly ModeKind = iota
	// ModeOnce runs a single trial.
	ModeOnce
	// ModeDebug replays one run code with per-draw logging.
	ModeDebug
)

func (k ModeKind) String() string {
	switch k {
	case ModeRepeatedly:
		return "repeatedly"
	case ModeOnce:
		return "once"
	case ModeDebug:
		return "debug"
	default:
		return fmt.Sprintf("ModeKind(%d)", int(k))
	}
}

// Mode is a ModeKind plus, for Debug, the code to replay. The zero Mode is
// Repeatedly.
type Mode struct {
	Kind ModeKind
	Code RunCode
}

// Once runs exactly one trial, from Settings.Seed or a fresh seed.
func Once() Mode { return Mode{Kind: ModeOnce} }

// Repeatedly runs Settings.Trials trials.
func Repeatedly() Mode { return Mode{Kind: ModeRepeatedly} }

// Debug replays code exactly.
func Debug(code RunCode) Mode { return Mode{Kind: ModeDebug, Code: code} }

func (m Mode) String() string {
	if m.Kind == ModeDebug {
		return "debug:" + m.Code.String()
	}
	return m.Kind.String()
}

// ParseMode accepts "once", "repeatedly" and "debug:<code>".
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "repeatedly":
		return Repeatedly(), nil
	case "once":
		return Once(), nil
	}
	if rest, ok := strings.CutPrefix(s, "debug:"); ok {
		code, err := ParseRunCode(rest)
		if err != nil {
			return Mode{}, err
		}
		return Debug(code), nil
	}
	return Mode{}, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}
