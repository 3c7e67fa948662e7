// Package proptest provides the randomness context and the generator
// algebra used by dicetest.
//
// A Context bundles a prng.Seed with a size bound. Generators draw from it
// and never touch any other source of randomness, so a generator run against
// two contexts with the same seed, size and caps yields the same value and
// leaves both contexts in the same state. The engine relies on that to replay
// failures and to shrink them.
//
// Basic usage:
//
//	pairs := proptest.Zip(proptest.IntRange(0, 9), proptest.String(20))
//	c := proptest.NewContext(prng.Seed(42), 30)
//	p := pairs.Generate(c)
package proptest

import (
	"log/slog"
	"math/bits"

	"github.com/shipq/dicetest/prng"
)

// Context wraps a seed and a size bound. It is not safe for concurrent use;
// hand each goroutine its own child from Split or Fork.
type Context struct {
	seed   prng.Seed
	size   int
	path   Path
	splits uint32
	rec    *recorder
}

// recorder is shared by every context of one trial.
type recorder struct {
	caps   map[Path]Cap
	nodes  []Node
	draws  int
	logger *slog.Logger
}

// Option configures a root context.
type Option func(*recorder)

// WithCaps installs shrink caps. Contexts created at a capped path get the
// capped size and, for a non-zero salt, a re-derived seed.
func WithCaps(caps []Cap) Option {
	return func(r *recorder) {
		if len(caps) == 0 {
			return
		}
		r.caps = make(map[Path]Cap, len(caps))
		for _, cp := range caps {
			r.caps[cp.Path] = cp
		}
	}
}

// WithLogger makes the context log every draw and split at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(r *recorder) {
		r.logger = logger
	}
}

// NewContext creates a root context. Panics with a *MisuseError if size is
// negative.
func NewContext(seed prng.Seed, size int, opts ...Option) *Context {
	if size < 0 {
		misuse("NewContext", ErrNegativeSize, "size %d", size)
	}
	rec := &recorder{}
	for _, opt := range opts {
		opt(rec)
	}
	c := &Context{seed: seed, size: size, rec: rec}
	c.applyCap()
	rec.nodes = append(rec.nodes, Node{Path: c.path, Size: c.size})
	return c
}

// Seed returns the current seed.
func (c *Context) Seed() prng.Seed {
	return c.seed
}

// Size returns the current size bound.
func (c *Context) Size() int {
	return c.size
}

// Path returns the position of this context in the split tree of its trial.
func (c *Context) Path() Path {
	return c.path
}

// Draws returns how many words have been drawn by all contexts of the trial.
func (c *Context) Draws() int {
	return c.rec.draws
}

// Trace returns a snapshot of every context created so far in the trial.
func (c *Context) Trace() Trace {
	nodes := make([]Node, len(c.rec.nodes))
	copy(nodes, c.rec.nodes)
	return Trace{Nodes: nodes, Draws: c.rec.draws}
}

// NextUint64 draws one word and advances the seed.
func (c *Context) NextUint64() uint64 {
	w, next := prng.Next(c.seed)
	c.seed = next
	c.rec.draws++
	if c.rec.logger != nil {
		c.rec.logger.Debug("draw",
			"path", c.path.String(),
			"size", c.size,
			"word", w,
		)
	}
	return w
}

// NextBounded returns an integer in [lo, hi] using exactly one word.
//
// The word is mapped with Lemire's multiply-high reduction and no rejection
// step, so every call consumes the same amount of randomness. For a span of
// n values each outcome's probability is off from 1/n by at most n/2^64,
// which is negligible for every range the generators use.
//
// Panics with a *MisuseError wrapping ErrEmptyRange if lo > hi.
func (c *Context) NextBounded(lo, hi int64) int64 {
	if lo > hi {
		misuse("NextBounded", ErrEmptyRange, "[%d, %d]", lo, hi)
	}
	span := uint64(hi) - uint64(lo) + 1
	w := c.NextUint64()
	if span == 0 {
		// [MinInt64, MaxInt64]
		return int64(w)
	}
	top, _ := bits.Mul64(w, span)
	return lo + int64(top)
}

// Intn returns an int in [0, n). Panics with a *MisuseError if n <= 0.
func (c *Context) Intn(n int) int {
	if n <= 0 {
		misuse("Intn", ErrEmptyRange, "n = %d", n)
	}
	return int(c.NextBounded(0, int64(n-1)))
}

// Float64 returns a float64 in [0.0, 1.0) with 53 bits of precision.
func (c *Context) Float64() float64 {
	return float64(c.NextUint64()>>11) * 0x1p-53
}

// Bool returns true or false with equal probability.
func (c *Context) Bool() bool {
	return c.NextUint64()>>63 == 1
}

// Split derives two independent child contexts. Both inherit the size bound.
// The parent's seed moves on without a draw, so splitting the same context
// twice never hands out the same child seed.
func (c *Context) Split() (*Context, *Context) {
	ls, rs := prng.Split(c.seed)
	index := c.advance()
	left := c.child(ls, index, sideLeft)
	right := c.child(rs, index, sideRight)
	return left, right
}

// Fork derives a single child context.
func (c *Context) Fork() *Context {
	ls, _ := prng.Split(c.seed)
	index := c.advance()
	return c.child(ls, index, sideLeft)
}

// WithSize runs body with the size bound lowered to n. A bound above the
// current one is clamped, the size is never raised. The previous bound is
// restored when body returns or panics. Panics with a *MisuseError if n is
// negative.
func (c *Context) WithSize(n int, body func(c *Context)) {
	if n < 0 {
		misuse("WithSize", ErrNegativeSize, "size %d", n)
	}
	prev := c.size
	defer func() { c.size = prev }()
	if n < c.size {
		c.size = n
	}
	body(c)
}

func (c *Context) advance() uint32 {
	_, c.seed = prng.Next(c.seed)
	index := c.splits
	c.splits++
	return index
}

func (c *Context) child(seed prng.Seed, index uint32, side uint8) *Context {
	ch := &Context{
		seed: seed,
		size: c.size,
		path: c.path.child(index, side),
		rec:  c.rec,
	}
	ch.applyCap()
	c.rec.nodes = append(c.rec.nodes, Node{Path: ch.path, Size: ch.size})
	if c.rec.logger != nil {
		c.rec.logger.Debug("split",
			"parent", c.path.String(),
			"child", ch.path.String(),
			"size", ch.size,
		)
	}
	return ch
}

func (c *Context) applyCap() {
	cp, ok := c.rec.caps[c.path]
	if !ok {
		return
	}
	if cp.Size < 0 {
		misuse("Cap", ErrNegativeSize, "size %d at %s", cp.Size, c.path)
	}
	if cp.Size < c.size {
		c.size = cp.Size
	}
	if cp.Salt != 0 {
		c.seed = prng.Derive(c.seed, cp.Salt)
	}
}
