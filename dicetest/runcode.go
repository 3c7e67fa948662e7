package dicetest

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/shipq/dicetest/prng"
	"github.com/shipq/dicetest/proptest"
)

const (
	runCodeVersion = 1

	// maxSize keeps decoded sizes inside int on every platform.
	maxSize = math.MaxInt32
)

// RunCode reproduces one trial exactly: the master seed, the trial's index
// in the master chain, its initial size bound and the shrink caps that
// turned the original failure into the reported one.
type RunCode struct {
	Seed  prng.Seed
	Trial uint64
	Size  int
	Caps  []proptest.Cap
}

// String encodes the code as unpadded base64url. Caps are written sorted by
// path, so equal codes always print the same.
func (r RunCode) String() string {
	caps := r.sortedCaps()

	buf := []byte{runCodeVersion}
	buf = binary.AppendUvarint(buf, uint64(r.Seed))
	buf = binary.AppendUvarint(buf, r.Trial)
	buf = binary.AppendUvarint(buf, uint64(r.Size))
	buf = binary.AppendUvarint(buf, uint64(len(caps)))
	for _, c := range caps {
		buf = binary.AppendUvarint(buf, uint64(len(c.Path)))
		buf = append(buf, c.Path...)
		buf = binary.AppendUvarint(buf, uint64(c.Size))
		buf = binary.AppendUvarint(buf, c.Salt)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// ParseRunCode decodes the form produced by String.
func ParseRunCode(s string) (RunCode, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return RunCode{}, fmt.Errorf("%w: %v", ErrInvalidRunCode, err)
	}
	d := decoder{buf: raw}

	if v := d.readByte(); d.err == nil && v != runCodeVersion {
		return RunCode{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidRunCode, v)
	}
	var r RunCode
	r.Seed = prng.Seed(d.readUvarint())
	r.Trial = d.readUvarint()
	r.Size = d.readSize()
	n := d.readUvarint()
	if d.err == nil && n > uint64(len(d.buf)) {
		d.fail("cap count %d exceeds input", n)
	}
	for i := uint64(0); i < n && d.err == nil; i++ {
		var c proptest.Cap
		c.Path = proptest.Path(d.readBytes())
		c.Size = d.readSize()
		c.Salt = d.readUvarint()
		if d.err == nil && !c.Path.Valid() {
			d.fail("cap %d has a malformed path", i)
		}
		if d.err == nil && len(r.Caps) > 0 && r.Caps[len(r.Caps)-1].Path >= c.Path {
			d.fail("caps are not strictly sorted by path")
		}
		r.Caps = append(r.Caps, c)
	}
	if d.err == nil && len(d.buf) > 0 {
		d.fail("%d trailing bytes", len(d.buf))
	}
	if d.err != nil {
		return RunCode{}, d.err
	}
	return r, nil
}

// MarshalText implements encoding.TextMarshaler.
func (r RunCode) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RunCode) UnmarshalText(text []byte) error {
	parsed, err := ParseRunCode(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Equal reports whether r and o reproduce the same trial.
func (r RunCode) Equal(o RunCode) bool {
	return r.Seed == o.Seed && r.Trial == o.Trial && r.Size == o.Size &&
		slices.Equal(r.sortedCaps(), o.sortedCaps())
}

// withCaps returns a copy of r with caps replacing any cap at the same path.
func (r RunCode) withCaps(caps ...proptest.Cap) RunCode {
	out := r
	out.Caps = make([]proptest.Cap, 0, len(r.Caps)+len(caps))
	for _, c := range r.Caps {
		if !slices.ContainsFunc(caps, func(n proptest.Cap) bool { return n.Path == c.Path }) {
			out.Caps = append(out.Caps, c)
		}
	}
	out.Caps = append(out.Caps, caps...)
	out.Caps = out.sortedCaps()
	return out
}

// capAt returns the cap at p, if any.
func (r RunCode) capAt(p proptest.Path) (proptest.Cap, bool) {
	for _, c := range r.Caps {
		if c.Path == p {
			return c, true
		}
	}
	return proptest.Cap{}, false
}

// prune drops caps at paths the trial never reached.
func (r RunCode) prune(tr proptest.Trace) RunCode {
	out := r
	out.Caps = nil
	for _, c := range r.Caps {
		if tr.Has(c.Path) {
			out.Caps = append(out.Caps, c)
		}
	}
	return out
}

func (r RunCode) sortedCaps() []proptest.Cap {
	if len(r.Caps) == 0 {
		return nil
	}
	caps := slices.Clone(r.Caps)
	slices.SortFunc(caps, func(a, b proptest.Cap) int {
		return strings.Compare(string(a.Path), string(b.Path))
	})
	return caps
}

// trialSeed returns the root seed of the trial: the left child of the
// Trial-th split along the master chain.
func (r RunCode) trialSeed() prng.Seed {
	s := r.Seed
	for i := uint64(0); i < r.Trial; i++ {
		_, s = prng.Next(s)
	}
	left, _ := prng.Split(s)
	return left
}

// seedChain hands out trial seeds in index order without rewalking the chain.
type seedChain struct {
	next prng.Seed
}

func (c *seedChain) advance() prng.Seed {
	left, _ := prng.Split(c.next)
	_, c.next = prng.Next(c.next)
	return left
}

type decoder struct {
	buf []byte
	err error
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s", ErrInvalidRunCode, fmt.Sprintf(format, args...))
	}
}

func (d *decoder) readByte() byte {
	if d.err != nil {
		return 0
	}
	if len(d.buf) == 0 {
		d.fail("truncated")
		return 0
	}
	b := d.buf[0]
	d.buf = d.buf[1:]
	return b
}

func (d *decoder) readUvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf)
	if n <= 0 {
		d.fail("truncated or overlong varint")
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

func (d *decoder) readSize() int {
	v := d.readUvarint()
	if d.err == nil && v > maxSize {
		d.fail("size %d out of range", v)
		return 0
	}
	return int(v)
}

func (d *decoder) readBytes() []byte {
	n := d.readUvarint()
	if d.err != nil {
		return nil
	}
	if n > uint64(len(d.buf)) {
		d.fail("truncated")
		return nil
	}
	b := d.buf[:n]
	d.buf = d.buf[n:]
	return b
}
