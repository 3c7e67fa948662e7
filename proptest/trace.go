package proptest

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

const (
	sideLeft  uint8 = 0
	sideRight uint8 = 1
)

// Path locates a context in the split tree of a trial. The root is the
// empty path; each split appends one segment holding the parent's split
// counter and the side taken. Paths are compact binary strings so they can
// key maps and be embedded in run codes.
type Path string

// Segment is one step of a Path.
type Segment struct {
	Index uint32
	Right bool
}

func (p Path) child(index uint32, side uint8) Path {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], uint64(index)<<1|uint64(side))
	return p + Path(buf[:n])
}

// Segments decodes the path. It returns an error for malformed input.
func (p Path) Segments() ([]Segment, error) {
	var segs []Segment
	b := []byte(p)
	for len(b) > 0 {
		v, n := binary.Uvarint(b)
		if n <= 0 || v>>33 != 0 {
			return nil, fmt.Errorf("malformed path segment at byte %d", len(p)-len(b))
		}
		segs = append(segs, Segment{Index: uint32(v >> 1), Right: v&1 == 1})
		b = b[n:]
	}
	return segs, nil
}

// Valid reports whether the path decodes.
func (p Path) Valid() bool {
	_, err := p.Segments()
	return err == nil
}

// Sibling returns the other child of the split that produced p. It reports
// false for the root and for malformed paths.
func (p Path) Sibling() (Path, bool) {
	segs, err := p.Segments()
	if err != nil || len(segs) == 0 {
		return "", false
	}
	last := segs[len(segs)-1]
	var parent Path
	for _, s := range segs[:len(segs)-1] {
		parent = parent.child(s.Index, boolSide(s.Right))
	}
	return parent.child(last.Index, boolSide(!last.Right)), true
}

// IsRight reports whether p is the right child of its split.
func (p Path) IsRight() bool {
	segs, err := p.Segments()
	return err == nil && len(segs) > 0 && segs[len(segs)-1].Right
}

// String renders the path as "/", "/0l", "/0l/3r", ...
func (p Path) String() string {
	segs, err := p.Segments()
	if err != nil {
		return fmt.Sprintf("invalid(%x)", string(p))
	}
	if len(segs) == 0 {
		return "/"
	}
	var sb strings.Builder
	for _, s := range segs {
		sb.WriteByte('/')
		sb.WriteString(strconv.FormatUint(uint64(s.Index), 10))
		if s.Right {
			sb.WriteByte('r')
		} else {
			sb.WriteByte('l')
		}
	}
	return sb.String()
}

func boolSide(right bool) uint8 {
	if right {
		return sideRight
	}
	return sideLeft
}

// Cap is one shrink decision: the context created at Path gets at most Size
// and, when Salt is non-zero, a seed re-derived from its original one.
type Cap struct {
	Path Path
	Size int
	Salt uint64
}

// Node records a context created during a trial.
type Node struct {
	Path Path
	Size int
}

// Trace is what a trial left behind: every context it created, in creation
// order, and how many words it drew.
type Trace struct {
	Nodes []Node
	Draws int
}

// Metric is the size metric shrinking minimizes: the sum of the size bounds
// of every context in the trial.
func (t Trace) Metric() int {
	total := 0
	for _, n := range t.Nodes {
		total += n.Size
	}
	return total
}

// Has reports whether a context was created at p.
func (t Trace) Has(p Path) bool {
	for _, n := range t.Nodes {
		if n.Path == p {
			return true
		}
	}
	return false
}
