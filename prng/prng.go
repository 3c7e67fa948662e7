// Package prng implements the deterministic, splittable bit generator that
// every dicetest run is derived from.
//
// A Seed is a plain value. Advancing the generator never mutates anything:
// Next returns the drawn word together with the successor seed, and Split
// derives two child seeds whose streams are independent of each other and of
// the parent. Because every operation is a pure function of its input, seeds
// can be copied freely and handed to other goroutines without locking.
//
// The word function is SplitMix64, so a given seed yields the same stream on
// every platform and in every process.
package prng

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Seed identifies a point in the pseudo-random stream.
type Seed uint64

const (
	// golden is the SplitMix64 increment (2^64 / phi, odd).
	golden = 0x9e3779b97f4a7c15

	// splitLeft and splitRight separate the two children of a split. They
	// are the first two SHA-512 initial hash words; any two distinct
	// constants would do.
	splitLeft  = 0x6a09e667f3bcc908
	splitRight = 0xbb67ae8584caa73b

	// streamSalt separates Derive streams from split children.
	streamSalt = 0x3c6ef372fe94f82b
)

// mix is the SplitMix64 finalizer. It is a bijection on uint64.
func mix(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Next returns the word at s and the successor seed.
func Next(s Seed) (uint64, Seed) {
	n := uint64(s) + golden
	return mix(n), Seed(n)
}

// Split derives two child seeds from s. The parent word is mixed through two
// distinct constants, so left != right for every s.
func Split(s Seed) (left, right Seed) {
	w, _ := Next(s)
	return Seed(mix(w ^ splitLeft)), Seed(mix(w ^ splitRight))
}

// Derive mixes a stream number into s. Different streams of the same seed
// produce unrelated seeds; it is used to re-seed shrink candidates without
// leaving the lineage of the original seed.
func Derive(s Seed, stream uint64) Seed {
	return Seed(mix(mix(uint64(s)^streamSalt) + stream*golden))
}

// FromEntropy returns a fresh seed from the operating system's entropy
// source. If that fails the wall clock is used instead.
func FromEntropy() Seed {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return Seed(mix(uint64(time.Now().UnixNano())))
	}
	return Seed(binary.LittleEndian.Uint64(b[:]))
}

// FromLabel maps an arbitrary label to a seed, so runs can be pinned with a
// human readable name instead of a number.
func FromLabel(label string) Seed {
	sum := blake2b.Sum256([]byte(label))
	return Seed(binary.LittleEndian.Uint64(sum[:8]))
}

// ParseSeed parses the decimal form produced by Seed.String.
func ParseSeed(s string) (Seed, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid seed %q: %w", s, err)
	}
	return Seed(v), nil
}

// ParseSeedOrLabel accepts either a decimal seed or a label.
func ParseSeedOrLabel(s string) Seed {
	if v, err := ParseSeed(s); err == nil {
		return v
	}
	return FromLabel(s)
}

func (s Seed) String() string {
	return strconv.FormatUint(uint64(s), 10)
}
