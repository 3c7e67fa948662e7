package proptest

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/shipq/dicetest/internal/randtest"
	"github.com/shipq/dicetest/prng"
)

func newCtx(seed uint64) *Context {
	return NewContext(prng.Seed(seed), 100)
}

// expectMisuse runs f and checks that it panics with a *MisuseError wrapping
// target.
func expectMisuse(t *testing.T, target error, f func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		me, ok := AsMisuse(r)
		if !ok {
			t.Errorf("expected misuse panic wrapping %v, got %v", target, r)
			return
		}
		if !errors.Is(me, target) {
			t.Errorf("misuse error = %v, want it to wrap %v", me, target)
		}
	}()
	f()
}

// =============================================================================
// Context Core Tests
// =============================================================================

func TestContext_Deterministic(t *testing.T) {
	c1 := newCtx(12345)
	c2 := newCtx(12345)

	for i := 0; i < 100; i++ {
		v1 := c1.Intn(1000)
		v2 := c2.Intn(1000)
		if v1 != v2 {
			t.Errorf("same seed produced different values at iteration %d: %d vs %d", i, v1, v2)
		}
	}
	if c1.Seed() != c2.Seed() {
		t.Errorf("contexts diverged: seed %v vs %v", c1.Seed(), c2.Seed())
	}
}

func TestContext_DifferentSeeds(t *testing.T) {
	c1 := newCtx(12345)
	c2 := newCtx(54321)

	same := 0
	for i := 0; i < 100; i++ {
		if c1.Intn(1000) == c2.Intn(1000) {
			same++
		}
	}

	if same > 20 {
		t.Errorf("different seeds produced too many same values: %d/100", same)
	}
}

func TestContext_NextUint64MatchesPrng(t *testing.T) {
	c := newCtx(7)
	s := prng.Seed(7)
	for i := 0; i < 10; i++ {
		var want uint64
		want, s = prng.Next(s)
		if got := c.NextUint64(); got != want {
			t.Fatalf("draw %d = %#x, want %#x", i, got, want)
		}
	}
	if c.Draws() != 10 {
		t.Errorf("Draws() = %d, want 10", c.Draws())
	}
}

func TestNewContext_NegativeSize(t *testing.T) {
	expectMisuse(t, ErrNegativeSize, func() {
		NewContext(prng.Seed(1), -1)
	})
}

func TestNewContext_ZeroSize(t *testing.T) {
	c := NewContext(prng.Seed(1), 0)
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
	if v := Slice(IntRange(0, 9)).Generate(c); len(v) != 0 {
		t.Errorf("Slice at size 0 returned %v", v)
	}
}

// =============================================================================
// NextBounded Tests
// =============================================================================

func TestNextBounded_Bounds(t *testing.T) {
	c := newCtx(42)
	tests := []struct{ lo, hi int64 }{
		{0, 0},
		{0, 1},
		{-5, 5},
		{10, 20},
		{math.MinInt64, math.MinInt64 + 3},
		{math.MaxInt64 - 3, math.MaxInt64},
		{-1 << 62, 1 << 62},
	}
	for _, tt := range tests {
		for i := 0; i < 1000; i++ {
			n := c.NextBounded(tt.lo, tt.hi)
			if n < tt.lo || n > tt.hi {
				t.Fatalf("NextBounded(%d, %d) = %d, out of bounds", tt.lo, tt.hi, n)
			}
		}
	}
}

func TestNextBounded_OneWordPerCall(t *testing.T) {
	c := newCtx(42)
	c.NextBounded(3, 3)
	c.NextBounded(0, 1<<40)
	c.NextBounded(math.MinInt64, math.MaxInt64)
	if c.Draws() != 3 {
		t.Errorf("Draws() = %d after 3 bounded draws, want 3", c.Draws())
	}
}

func TestNextBounded_FullRangeIsRawWord(t *testing.T) {
	c := newCtx(99)
	want, _ := prng.Next(prng.Seed(99))
	if got := c.NextBounded(math.MinInt64, math.MaxInt64); uint64(got) != want {
		t.Errorf("full-range draw = %#x, want raw word %#x", uint64(got), want)
	}
}

func TestNextBounded_EmptyRange(t *testing.T) {
	c := newCtx(42)
	expectMisuse(t, ErrEmptyRange, func() {
		c.NextBounded(5, 4)
	})
	expectMisuse(t, ErrEmptyRange, func() {
		c.Intn(0)
	})
}

func TestNextBounded_Uniform(t *testing.T) {
	c := newCtx(2024)
	counts := make([]int, 10)
	for i := 0; i < 20000; i++ {
		counts[c.NextBounded(0, 9)]++
	}
	_, p, err := randtest.ChiSquareUniform(counts)
	if err != nil {
		t.Fatal(err)
	}
	if p < randtest.DefaultAlpha {
		t.Errorf("NextBounded(0, 9) counts %v rejected as uniform, p = %g", counts, p)
	}
}

func TestFloat64AndBool(t *testing.T) {
	c := newCtx(5)
	trues := 0
	for i := 0; i < 1000; i++ {
		f := c.Float64()
		if f < 0 || f >= 1 {
			t.Fatalf("Float64() = %v, out of [0, 1)", f)
		}
		if c.Bool() {
			trues++
		}
	}
	if trues < 400 || trues > 600 {
		t.Errorf("Bool() returned true %d/1000 times", trues)
	}
}

// =============================================================================
// Split / Fork Tests
// =============================================================================

func TestSplit_DoesNotDraw(t *testing.T) {
	c := newCtx(1)
	left, right := c.Split()
	c.Fork()
	if c.Draws() != 0 {
		t.Errorf("Draws() = %d after split and fork, want 0", c.Draws())
	}
	if left.Seed() == right.Seed() {
		t.Error("split children share a seed")
	}
}

func TestSplit_RepeatedSplitsDiffer(t *testing.T) {
	c := newCtx(1)
	seen := make(map[prng.Seed]bool)
	for i := 0; i < 100; i++ {
		l, r := c.Split()
		f := c.Fork()
		for _, s := range []prng.Seed{l.Seed(), r.Seed(), f.Seed()} {
			if seen[s] {
				t.Fatalf("split %d re-issued seed %v", i, s)
			}
			seen[s] = true
		}
	}
}

func TestSplit_ChildrenInheritSize(t *testing.T) {
	c := NewContext(prng.Seed(3), 17)
	l, r := c.Split()
	if l.Size() != 17 || r.Size() != 17 {
		t.Errorf("children sizes = %d, %d, want 17", l.Size(), r.Size())
	}
}

func TestSplit_Paths(t *testing.T) {
	c := newCtx(1)
	l0, r0 := c.Split()
	l1, _ := c.Split()
	_, rr := r0.Split()

	tests := []struct {
		ctx  *Context
		want string
	}{
		{c, "/"},
		{l0, "/0l"},
		{r0, "/0r"},
		{l1, "/1l"},
		{rr, "/0r/0r"},
	}
	for _, tt := range tests {
		if got := tt.ctx.Path().String(); got != tt.want {
			t.Errorf("Path() = %q, want %q", got, tt.want)
		}
	}
}

func TestSplit_ChildIndependentOfSiblingConsumption(t *testing.T) {
	run := func(leftDraws int) uint64 {
		c := newCtx(77)
		l, r := c.Split()
		for i := 0; i < leftDraws; i++ {
			l.NextUint64()
		}
		return r.NextUint64()
	}
	if a, b := run(0), run(50); a != b {
		t.Errorf("right child changed with left consumption: %#x vs %#x", a, b)
	}
}

// =============================================================================
// WithSize Tests
// =============================================================================

func TestWithSize_LowersAndRestores(t *testing.T) {
	c := NewContext(prng.Seed(1), 50)
	c.WithSize(10, func(c *Context) {
		if c.Size() != 10 {
			t.Errorf("Size() inside WithSize(10) = %d", c.Size())
		}
		l, _ := c.Split()
		if l.Size() != 10 {
			t.Errorf("child size inside WithSize(10) = %d", l.Size())
		}
	})
	if c.Size() != 50 {
		t.Errorf("Size() after WithSize = %d, want 50", c.Size())
	}
}

func TestWithSize_NeverRaises(t *testing.T) {
	c := NewContext(prng.Seed(1), 50)
	c.WithSize(200, func(c *Context) {
		if c.Size() != 50 {
			t.Errorf("Size() inside WithSize(200) = %d, want 50", c.Size())
		}
	})
}

func TestWithSize_RestoresOnPanic(t *testing.T) {
	c := NewContext(prng.Seed(1), 50)
	func() {
		defer func() { _ = recover() }()
		c.WithSize(3, func(*Context) {
			panic("boom")
		})
	}()
	if c.Size() != 50 {
		t.Errorf("Size() after panicking body = %d, want 50", c.Size())
	}
}

func TestWithSize_Negative(t *testing.T) {
	c := newCtx(1)
	expectMisuse(t, ErrNegativeSize, func() {
		c.WithSize(-1, func(*Context) {})
	})
}

// =============================================================================
// Caps and Trace Tests
// =============================================================================

func TestCaps_RootSize(t *testing.T) {
	c := NewContext(prng.Seed(1), 100, WithCaps([]Cap{{Path: "", Size: 10}}))
	if c.Size() != 10 {
		t.Errorf("capped root Size() = %d, want 10", c.Size())
	}
}

func TestCaps_NegativeSize(t *testing.T) {
	expectMisuse(t, ErrNegativeSize, func() {
		NewContext(prng.Seed(1), 100, WithCaps([]Cap{{Path: "", Size: -1}}))
	})

	leftPath := Path("").child(0, sideLeft)
	c := NewContext(prng.Seed(1), 100, WithCaps([]Cap{{Path: leftPath, Size: -5}}))
	expectMisuse(t, ErrNegativeSize, func() {
		c.Split()
	})
}

func TestCaps_ChildSizeAndSalt(t *testing.T) {
	rightPath := Path("").child(0, sideRight)

	plain := newCtx(9)
	pl, pr := plain.Split()

	sized := NewContext(prng.Seed(9), 100, WithCaps([]Cap{{Path: rightPath, Size: 5}}))
	sl, sr := sized.Split()
	if sr.Size() != 5 || sl.Size() != 100 {
		t.Errorf("sizes = %d, %d, want 100, 5", sl.Size(), sr.Size())
	}
	if sr.Seed() != pr.Seed() {
		t.Error("cap without salt changed the seed")
	}

	salted := NewContext(prng.Seed(9), 100, WithCaps([]Cap{{Path: rightPath, Size: 100, Salt: 1}}))
	xl, xr := salted.Split()
	if xr.Seed() == pr.Seed() {
		t.Error("salted cap kept the original seed")
	}
	if xr.Seed() != prng.Derive(pr.Seed(), 1) {
		t.Error("salted seed is not derived from the original child seed")
	}
	if xl.Seed() != pl.Seed() {
		t.Error("salt leaked into the sibling")
	}
}

func TestCaps_NeverRaiseSize(t *testing.T) {
	c := NewContext(prng.Seed(1), 20, WithCaps([]Cap{{Path: "", Size: 80}}))
	if c.Size() != 20 {
		t.Errorf("Size() = %d, want 20", c.Size())
	}
}

func TestTrace_Metric(t *testing.T) {
	rightPath := Path("").child(0, sideRight)
	c := NewContext(prng.Seed(1), 100, WithCaps([]Cap{{Path: rightPath, Size: 5}}))
	c.Split()
	c.NextUint64()

	tr := c.Trace()
	want := []Node{
		{Path: "", Size: 100},
		{Path: Path("").child(0, sideLeft), Size: 100},
		{Path: rightPath, Size: 5},
	}
	if diff := cmp.Diff(want, tr.Nodes); diff != "" {
		t.Errorf("Trace().Nodes mismatch (-want +got):\n%s", diff)
	}
	if tr.Metric() != 205 {
		t.Errorf("Metric() = %d, want 205", tr.Metric())
	}
	if tr.Draws != 1 {
		t.Errorf("Draws = %d, want 1", tr.Draws)
	}
	if !tr.Has(rightPath) || tr.Has(rightPath.child(0, sideLeft)) {
		t.Error("Has() disagrees with the recorded nodes")
	}
}

func TestWithLogger_LogsDrawsAndSplits(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c := NewContext(prng.Seed(1), 10, WithLogger(logger))
	l, _ := c.Split()
	l.NextUint64()

	out := buf.String()
	if !strings.Contains(out, `"msg":"split"`) {
		t.Errorf("expected a split record, got:\n%s", out)
	}
	if !strings.Contains(out, `"msg":"draw"`) || !strings.Contains(out, `"path":"/0l"`) {
		t.Errorf("expected a draw record at /0l, got:\n%s", out)
	}
}

// =============================================================================
// Path Tests
// =============================================================================

func TestPath_SegmentsAndSibling(t *testing.T) {
	p := Path("").child(0, sideLeft).child(300, sideRight)
	if p.String() != "/0l/300r" {
		t.Errorf("String() = %q", p.String())
	}
	segs, err := p.Segments()
	if err != nil {
		t.Fatal(err)
	}
	want := []Segment{{Index: 0}, {Index: 300, Right: true}}
	if diff := cmp.Diff(want, segs); diff != "" {
		t.Errorf("Segments() mismatch (-want +got):\n%s", diff)
	}

	sib, ok := p.Sibling()
	if !ok || sib.String() != "/0l/300l" {
		t.Errorf("Sibling() = %q, %v", sib.String(), ok)
	}
	if !p.IsRight() || sib.IsRight() {
		t.Error("IsRight() wrong")
	}
}

func TestPath_Root(t *testing.T) {
	var root Path
	if root.String() != "/" {
		t.Errorf("root String() = %q", root.String())
	}
	if _, ok := root.Sibling(); ok {
		t.Error("root has no sibling")
	}
}

func TestPath_Malformed(t *testing.T) {
	p := Path("\xff")
	if p.Valid() {
		t.Error("truncated varint should be invalid")
	}
	if _, ok := p.Sibling(); ok {
		t.Error("malformed path should have no sibling")
	}
	if !strings.HasPrefix(p.String(), "invalid(") {
		t.Errorf("String() = %q", p.String())
	}
}
