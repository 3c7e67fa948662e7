package proptest

// Gen produces values of type T from a Context. Implementations must be pure
// functions of the context state: no other randomness, no shared mutation.
type Gen[T any] interface {
	Generate(c *Context) T
}

// GenFunc adapts a function to Gen.
type GenFunc[T any] func(c *Context) T

func (f GenFunc[T]) Generate(c *Context) T {
	return f(c)
}

// =============================================================================
// Primitives
// =============================================================================

type justGen[T any] struct {
	value T
}

func (j justGen[T]) Generate(*Context) T {
	return j.value
}

// Just always returns v and draws nothing.
func Just[T any](v T) Gen[T] {
	return justGen[T]{value: v}
}

// FromFunc wraps an arbitrary function of the context. It is the escape hatch
// for leaf generators.
func FromFunc[T any](f func(c *Context) T) Gen[T] {
	return GenFunc[T](func(c *Context) T {
		if f == nil {
			misuse("FromFunc", ErrInvalidArgument, "nil function")
		}
		return f(c)
	})
}

// =============================================================================
// Transformation Combinators
// =============================================================================

// Map applies fn to every generated value.
func Map[T, U any](g Gen[T], fn func(T) U) Gen[U] {
	return GenFunc[U](func(c *Context) U {
		return fn(g.Generate(c))
	})
}

// Sized builds the generator from the current size bound.
func Sized[T any](f func(size int) Gen[T]) Gen[T] {
	return GenFunc[T](func(c *Context) T {
		return f(c.Size()).Generate(c)
	})
}

// Resize runs g with the size bound lowered to n.
func Resize[T any](n int, g Gen[T]) Gen[T] {
	return GenFunc[T](func(c *Context) T {
		var v T
		c.WithSize(n, func(c *Context) {
			v = g.Generate(c)
		})
		return v
	})
}

// Filter regenerates on fresh forks until pred holds. Running out of retries
// is generator misuse: the filter is too strict for its source.
func Filter[T any](maxRetries int, g Gen[T], pred func(T) bool) Gen[T] {
	return GenFunc[T](func(c *Context) T {
		if maxRetries <= 0 {
			misuse("Filter", ErrInvalidArgument, "maxRetries = %d", maxRetries)
		}
		for i := 0; i < maxRetries; i++ {
			v := g.Generate(c.Fork())
			if pred(v) {
				return v
			}
		}
		misuse("Filter", ErrFilterExhausted, "%d retries", maxRetries)
		panic("unreachable")
	})
}

// =============================================================================
// Struct/Tuple Combinators
// =============================================================================

// Pair holds the output of Zip.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Triple holds the output of Zip3.
type Triple[A, B, C any] struct {
	First  A
	Second B
	Third  C
}

// Zip runs ga and gb on the two halves of a split, so neither component's
// consumption shifts the other's randomness.
func Zip[A, B any](ga Gen[A], gb Gen[B]) Gen[Pair[A, B]] {
	return GenFunc[Pair[A, B]](func(c *Context) Pair[A, B] {
		left, right := c.Split()
		return Pair[A, B]{First: ga.Generate(left), Second: gb.Generate(right)}
	})
}

// Zip3 is Zip for three components.
func Zip3[A, B, C any](ga Gen[A], gb Gen[B], gc Gen[C]) Gen[Triple[A, B, C]] {
	return GenFunc[Triple[A, B, C]](func(c *Context) Triple[A, B, C] {
		left, rest := c.Split()
		mid, right := rest.Split()
		return Triple[A, B, C]{
			First:  ga.Generate(left),
			Second: gb.Generate(mid),
			Third:  gc.Generate(right),
		}
	})
}

// =============================================================================
// Selection Combinators
// =============================================================================

// Choice is one weighted branch of Weighted.
type Choice[T any] struct {
	Weight uint32
	Gen    Gen[T]
}

// W builds a Choice.
func W[T any](weight uint32, g Gen[T]) Choice[T] {
	return Choice[T]{Weight: weight, Gen: g}
}

// Weighted picks a branch with probability proportional to its weight, then
// runs it on a fresh fork. An empty choice list or an all-zero weighting is
// generator misuse, reported when the generator runs.
func Weighted[T any](choices ...Choice[T]) Gen[T] {
	return GenFunc[T](func(c *Context) T {
		if len(choices) == 0 {
			misuse("Weighted", ErrNoChoices, "")
		}
		var total uint64
		for _, ch := range choices {
			total += uint64(ch.Weight)
		}
		if total == 0 {
			misuse("Weighted", ErrZeroWeight, "%d choices", len(choices))
		}

		point := uint64(c.NextBounded(0, int64(total-1)))

		var cumulative uint64
		for _, ch := range choices {
			cumulative += uint64(ch.Weight)
			if point < cumulative {
				return ch.Gen.Generate(c.Fork())
			}
		}
		panic("unreachable")
	})
}

// OneOf picks one of gens with equal probability.
func OneOf[T any](gens ...Gen[T]) Gen[T] {
	choices := make([]Choice[T], len(gens))
	for i, g := range gens {
		choices[i] = Choice[T]{Weight: 1, Gen: g}
	}
	return Weighted(choices...)
}

// Elements returns one of values with equal probability.
func Elements[T any](values ...T) Gen[T] {
	return GenFunc[T](func(c *Context) T {
		if len(values) == 0 {
			misuse("Elements", ErrNoChoices, "")
		}
		return values[c.Intn(len(values))]
	})
}

// Meta draws a generator from g on one half of a split and runs it on the
// other half.
func Meta[T any](g Gen[Gen[T]]) Gen[T] {
	return GenFunc[T](func(c *Context) T {
		left, right := c.Split()
		inner := g.Generate(left)
		if inner == nil {
			misuse("Meta", ErrInvalidArgument, "drawn generator is nil")
		}
		return inner.Generate(right)
	})
}

// Bind feeds a generated value into f and runs the generator it returns.
func Bind[T, U any](g Gen[T], f func(T) Gen[U]) Gen[U] {
	return Meta(Map(g, f))
}

// Shuffle returns a shuffled copy of values.
func Shuffle[T any](values []T) Gen[[]T] {
	return GenFunc[[]T](func(c *Context) []T {
		result := make([]T, len(values))
		copy(result, values)
		for i := len(result) - 1; i > 0; i-- {
			j := c.Intn(i + 1)
			result[i], result[j] = result[j], result[i]
		}
		return result
	})
}

// Sample returns n distinct elements of values (without replacement).
func Sample[T any](values []T, n int) Gen[[]T] {
	return GenFunc[[]T](func(c *Context) []T {
		if n < 0 || n > len(values) {
			misuse("Sample", ErrInvalidArgument, "n = %d, len = %d", n, len(values))
		}

		// Fisher-Yates, but only for the first n positions
		indices := make([]int, len(values))
		for i := range indices {
			indices[i] = i
		}
		result := make([]T, n)
		for i := 0; i < n; i++ {
			j := i + c.Intn(len(indices)-i)
			indices[i], indices[j] = indices[j], indices[i]
			result[i] = values[indices[i]]
		}
		return result
	})
}

// =============================================================================
// Collection Combinators
// =============================================================================

// Slice generates a slice whose length is in [0, size]. Each element runs on
// its own fork.
func Slice[T any](g Gen[T]) Gen[[]T] {
	return GenFunc[[]T](func(c *Context) []T {
		n := c.Intn(c.Size() + 1)
		return sliceOf(c, n, g)
	})
}

// SliceN generates a slice whose length is in [minLen, maxLen], additionally
// bounded by minLen+size.
func SliceN[T any](minLen, maxLen int, g Gen[T]) Gen[[]T] {
	return GenFunc[[]T](func(c *Context) []T {
		if minLen < 0 || minLen > maxLen {
			misuse("SliceN", ErrEmptyRange, "[%d, %d]", minLen, maxLen)
		}
		n := int(c.NextBounded(int64(minLen), int64(sizedMax(minLen, maxLen, c.Size()))))
		return sliceOf(c, n, g)
	})
}

// SliceExact generates a slice of exactly length elements.
func SliceExact[T any](length int, g Gen[T]) Gen[[]T] {
	return GenFunc[[]T](func(c *Context) []T {
		if length < 0 {
			misuse("SliceExact", ErrInvalidArgument, "length = %d", length)
		}
		return sliceOf(c, length, g)
	})
}

func sliceOf[T any](c *Context, n int, g Gen[T]) []T {
	result := make([]T, n)
	for i := range result {
		result[i] = g.Generate(c.Fork())
	}
	return result
}

// MapOf generates a map with up to size entries. Duplicate keys collapse, so
// the map may be smaller.
func MapOf[K comparable, V any](key Gen[K], val Gen[V]) Gen[map[K]V] {
	entry := Zip(key, val)
	return GenFunc[map[K]V](func(c *Context) map[K]V {
		n := c.Intn(c.Size() + 1)
		result := make(map[K]V, n)
		for i := 0; i < n; i++ {
			e := entry.Generate(c.Fork())
			result[e.First] = e.Second
		}
		return result
	})
}

// =============================================================================
// Optional/Nullable Combinators
// =============================================================================

// Pointer returns nil with probability nilChance, otherwise a pointer to a
// generated value. nilChance must be in [0, 1].
func Pointer[T any](nilChance float64, g Gen[T]) Gen[*T] {
	return GenFunc[*T](func(c *Context) *T {
		if nilChance < 0 || nilChance > 1 {
			misuse("Pointer", ErrInvalidArgument, "nilChance = %v", nilChance)
		}
		if c.Float64() < nilChance {
			return nil
		}
		v := g.Generate(c.Fork())
		return &v
	})
}

func sizedMax(minLen, maxLen, size int) int {
	if minLen+size < maxLen {
		return minLen + size
	}
	return maxLen
}
