package dicetest

import (
	"errors"
	"testing"

	"github.com/shipq/dicetest/prng"
)

func TestParseMode(t *testing.T) {
	code := RunCode{Seed: prng.Seed(9), Trial: 2, Size: 30}

	tests := []struct {
		in      string
		want    Mode
		wantErr error
	}{
		{"", Repeatedly(), nil},
		{"repeatedly", Repeatedly(), nil},
		{"ONCE", Once(), nil},
		{" once ", Once(), nil},
		{"debug:" + code.String(), Debug(code), nil},
		{"debug:@@", Mode{}, ErrInvalidRunCode},
		{"sometimes", Mode{}, ErrUnknownMode},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ParseMode(%q) error = %v, want %v", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMode(%q) error = %v", tt.in, err)
			}
			if got.Kind != tt.want.Kind || !got.Code.Equal(tt.want.Code) {
				t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMode_StringRoundTrip(t *testing.T) {
	for _, m := range []Mode{Once(), Repeatedly(), Debug(RunCode{Seed: 1, Size: 5})} {
		got, err := ParseMode(m.String())
		if err != nil {
			t.Fatalf("ParseMode(%q) error = %v", m.String(), err)
		}
		if got.String() != m.String() {
			t.Errorf("ParseMode(%q).String() = %q", m.String(), got.String())
		}
	}
}

func TestMode_ZeroIsRepeatedly(t *testing.T) {
	var m Mode
	if m.Kind != ModeRepeatedly {
		t.Errorf("zero Mode kind = %v", m.Kind)
	}
}
