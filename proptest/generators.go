package proptest

import (
	"math"
)

// Charsets for string generation
const (
	CharsetAlpha      = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	CharsetAlphaLower = "abcdefghijklmnopqrstuvwxyz"
	CharsetAlphaUpper = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	CharsetDigits     = "0123456789"
	CharsetAlphaNum   = CharsetAlpha + CharsetDigits
	CharsetHex        = "0123456789abcdef"
	CharsetPrintable  = CharsetAlphaNum + " !\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
	CharsetIdentStart = CharsetAlpha + "_"
	CharsetIdentBody  = CharsetAlphaNum + "_"
)

// =============================================================================
// Integer Generators
// =============================================================================

// IntRange returns ints uniformly distributed in [lo, hi]. The size bound
// does not affect it. lo > hi is generator misuse.
func IntRange(lo, hi int) Gen[int] {
	return GenFunc[int](func(c *Context) int {
		return int(c.NextBounded(int64(lo), int64(hi)))
	})
}

// Int64Range returns int64s uniformly distributed in [lo, hi].
func Int64Range(lo, hi int64) Gen[int64] {
	return GenFunc[int64](func(c *Context) int64 {
		return c.NextBounded(lo, hi)
	})
}

// Uint64 returns uniformly distributed uint64s.
func Uint64() Gen[uint64] {
	return GenFunc[uint64](func(c *Context) uint64 {
		return c.NextUint64()
	})
}

// Int returns ints in [-size, size].
func Int() Gen[int] {
	return GenFunc[int](func(c *Context) int {
		s := int64(c.Size())
		return int(c.NextBounded(-s, s))
	})
}

// Nat returns ints in [0, size].
func Nat() Gen[int] {
	return GenFunc[int](func(c *Context) int {
		return int(c.NextBounded(0, int64(c.Size())))
	})
}

// Bool returns true or false with equal probability.
func Bool() Gen[bool] {
	return GenFunc[bool](func(c *Context) bool {
		return c.Bool()
	})
}

// =============================================================================
// Float Generators
// =============================================================================

// Float64 returns float64s in [0.0, 1.0).
func Float64() Gen[float64] {
	return GenFunc[float64](func(c *Context) float64 {
		return c.Float64()
	})
}

// Float64Range returns float64s in [lo, hi).
func Float64Range(lo, hi float64) Gen[float64] {
	return GenFunc[float64](func(c *Context) float64 {
		if !(lo <= hi) {
			misuse("Float64Range", ErrEmptyRange, "[%v, %v)", lo, hi)
		}
		return lo + c.Float64()*(hi-lo)
	})
}

// =============================================================================
// String Generators
// =============================================================================

// String returns printable ASCII strings of length [0, min(maxLen, size)].
func String(maxLen int) Gen[string] {
	return StringFrom(CharsetPrintable, maxLen)
}

// StringN returns printable ASCII strings of length [minLen, maxLen],
// additionally bounded by minLen+size.
func StringN(minLen, maxLen int) Gen[string] {
	return StringFromN(CharsetPrintable, minLen, maxLen)
}

// StringAlpha returns alphabetic strings (a-zA-Z) of length [0, min(maxLen, size)].
func StringAlpha(maxLen int) Gen[string] {
	return StringFrom(CharsetAlpha, maxLen)
}

// StringAlphaNum returns alphanumeric strings of length [0, min(maxLen, size)].
func StringAlphaNum(maxLen int) Gen[string] {
	return StringFrom(CharsetAlphaNum, maxLen)
}

// StringFrom returns strings over charset of length [0, min(maxLen, size)].
func StringFrom(charset string, maxLen int) Gen[string] {
	return StringFromN(charset, 0, maxLen)
}

// StringFromN returns strings over charset of length [minLen, maxLen],
// additionally bounded by minLen+size.
func StringFromN(charset string, minLen, maxLen int) Gen[string] {
	return GenFunc[string](func(c *Context) string {
		if charset == "" {
			misuse("StringFrom", ErrNoChoices, "empty charset")
		}
		if minLen < 0 || minLen > maxLen {
			misuse("StringFrom", ErrEmptyRange, "[%d, %d]", minLen, maxLen)
		}
		length := int(c.NextBounded(int64(minLen), int64(sizedMax(minLen, maxLen, c.Size()))))
		return stringOfLen(c, charset, length)
	})
}

// stringOfLen returns a string of exactly the given length from charset.
func stringOfLen(c *Context, charset string, length int) string {
	if length == 0 {
		return ""
	}
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[c.Intn(len(charset))]
	}
	return string(b)
}

// Identifier returns valid identifiers (a letter or underscore, followed by
// alphanumerics or underscores) of length [1, max(1, min(maxLen, size))].
func Identifier(maxLen int) Gen[string] {
	return GenFunc[string](func(c *Context) string {
		if maxLen < 1 {
			misuse("Identifier", ErrEmptyRange, "maxLen = %d", maxLen)
		}
		length := int(c.NextBounded(1, int64(sizedMax(1, maxLen, c.Size()))))

		b := make([]byte, length)
		// First character must be letter or underscore
		b[0] = CharsetIdentStart[c.Intn(len(CharsetIdentStart))]
		for i := 1; i < length; i++ {
			b[i] = CharsetIdentBody[c.Intn(len(CharsetIdentBody))]
		}
		return string(b)
	})
}

// =============================================================================
// Byte Generators
// =============================================================================

// Bytes returns byte slices of length [0, min(maxLen, size)].
func Bytes(maxLen int) Gen[[]byte] {
	return GenFunc[[]byte](func(c *Context) []byte {
		if maxLen < 0 {
			misuse("Bytes", ErrEmptyRange, "maxLen = %d", maxLen)
		}
		length := int(c.NextBounded(0, int64(sizedMax(0, maxLen, c.Size()))))
		b := make([]byte, length)
		for i := range b {
			b[i] = byte(c.NextUint64())
		}
		return b
	})
}

// =============================================================================
// Special Value Generators
// =============================================================================

// Rune returns one of the runes of from.
func Rune(from string) Gen[rune] {
	runes := []rune(from)
	return Elements(runes...)
}

var edgeCaseInts = []int{
	0,
	1,
	-1,
	math.MaxInt32,
	math.MinInt32,
	math.MaxInt,
	math.MinInt,
	127,
	-128,
	255,
	256,
	65535,
	65536,
}

// EdgeCaseInt returns boundary ints half of the time and sized ints otherwise.
func EdgeCaseInt() Gen[int] {
	return OneOf(Elements(edgeCaseInts...), Int())
}

var edgeCaseStrings = []string{
	"",             // empty
	" ",            // single space
	"  ",           // multiple spaces
	"\t",           // tab
	"\n",           // newline
	"\r\n",         // CRLF
	"'",            // single quote
	`"`,            // double quote
	`\`,            // backslash
	"it's",         // apostrophe
	`say "hello"`,  // embedded quotes
	"line1\nline2", // multiline
	"NULL",         // keyword
	"0",            // numeric string
	"-1",           // negative numeric
	"123.456",      // decimal string
	"日本語",          // Japanese
	"🎉",            // emoji
	"hello🎉world",  // mixed with emoji
	"\x00",         // NUL byte
	"\ufeff",       // byte order mark
}

// EdgeCaseString returns troublesome strings 70% of the time and printable
// strings otherwise.
func EdgeCaseString() Gen[string] {
	return Weighted(
		W(7, Elements(edgeCaseStrings...)),
		W(3, String(50)),
	)
}
