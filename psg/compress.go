package psg

import (
	"fmt"
	"sort"
)

// Strategy selects how the compressor searches for repeated runs.
type Strategy int

const (
	// Greedy takes the longest match at each position, left to right.
	Greedy Strategy = iota
	// Descending runs one pass per length from MaxRefLength down to
	// MinRefLength, so long runs are claimed before short ones.
	Descending
)

func (s Strategy) String() string {
	switch s {
	case Greedy:
		return "greedy"
	case Descending:
		return "descending"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy maps a strategy name to its value.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "", "greedy":
		return Greedy, nil
	case "descending":
		return Descending, nil
	default:
		return Greedy, fmt.Errorf("unknown compression strategy %q", name)
	}
}

// CompressOptions configures Compress. The zero value is the greedy strategy.
type CompressOptions struct {
	Strategy Strategy
}

// byte states while compressing, in source coordinates
const (
	bytePlain uint8 = iota
	byteReferenced
	byteReplaced
)

type match struct {
	src    int
	target int
	length int
}

type compressor struct {
	src   []byte
	state []uint8
	refs  []match

	// shrink[p] holds length-3 for a reference replacing the run starting at p.
	shrink fenwick

	// positions of every 4-byte prefix, ascending
	index map[uint32][]int

	// scans counts calls to longest.
	scans int
}

// Compress rewrites repeated runs of an uncompressed, terminated command
// stream as back-references. The result is never longer than src and expands
// to src exactly. Inputs shorter than MinRefLength are returned unchanged.
func Compress(src []byte, opts CompressOptions) ([]byte, error) {
	if len(src) < MinRefLength {
		return append([]byte(nil), src...), nil
	}
	if err := validateUncompressed(src); err != nil {
		return nil, err
	}

	c := newCompressor(src)
	switch opts.Strategy {
	case Greedy:
		c.greedy()
	case Descending:
		c.descending()
	default:
		return nil, fmt.Errorf("psg: unknown compression strategy %v", opts.Strategy)
	}
	return c.emit(), nil
}

func validateUncompressed(src []byte) error {
	last := len(src) - 1
	if src[last] != EndOfStreamCode {
		return malformed(last, "stream does not end with the terminator, found 0x%02X", src[last])
	}
	for i, b := range src[:last] {
		switch {
		case b == EndOfStreamCode:
			return malformed(i, "terminator before end of stream")
		case IsReserved(b):
			return malformed(i, "reserved byte 0x%02X", b)
		case IsReference(b):
			return malformed(i, "stream is already compressed (back-reference 0x%02X)", b)
		}
	}
	return nil
}

func newCompressor(src []byte) *compressor {
	c := &compressor{
		src:    src,
		state:  make([]uint8, len(src)),
		shrink: newFenwick(len(src)),
		index:  make(map[uint32][]int),
	}
	for i := 0; i+MinRefLength <= len(src); i++ {
		k := prefixKey(src, i)
		c.index[k] = append(c.index[k], i)
	}
	return c
}

func prefixKey(b []byte, i int) uint32 {
	return uint32(b[i]) | uint32(b[i+1])<<8 | uint32(b[i+2])<<16 | uint32(b[i+3])<<24
}

func matchable(b byte) bool {
	return b != EndOfStreamCode && b != LoopStartCode
}

// outPos maps a source position outside any replaced run to its position in
// the compressed output.
func (c *compressor) outPos(p int) int {
	return p - c.shrink.sum(p)
}

// longest returns the earliest, longest target for a run starting at p,
// limited to maxLen bytes. A zero length means no usable match. capped is
// set when candidates were skipped for lying beyond MaxRefOffset.
func (c *compressor) longest(p, maxLen int) (target, length int, capped bool) {
	c.scans++
	n := len(c.src)
	if p+MinRefLength > n {
		return 0, 0, false
	}
	for _, q := range c.index[prefixKey(c.src, p)] {
		if q+MinRefLength > p {
			break
		}
		if c.state[q] == byteReplaced {
			continue
		}
		if c.outPos(q) > MaxRefOffset {
			capped = true
			break
		}

		l := 0
		for l < maxLen && q+l < p && p+l < n {
			s, t := c.src[p+l], c.src[q+l]
			if s != t || !matchable(s) {
				break
			}
			if c.state[p+l] != bytePlain || c.state[q+l] == byteReplaced {
				break
			}
			l++
		}
		if l >= MinRefLength && l > length {
			target, length = q, l
			if length == maxLen {
				break
			}
		}
	}
	return target, length, capped
}

func (c *compressor) accept(p, q, l int) {
	for i := q; i < q+l; i++ {
		c.state[i] = byteReferenced
	}
	for i := p; i < p+l; i++ {
		c.state[i] = byteReplaced
	}
	c.shrink.add(p, l-refSize)
	c.refs = append(c.refs, match{src: p, target: q, length: l})
}

func (c *compressor) greedy() {
	for p := 0; p < len(c.src); {
		q, l, _ := c.longest(p, MaxRefLength)
		if l == 0 {
			p++
			continue
		}
		c.accept(p, q, l)
		p += l
	}
}

// descending claims runs longest first. bound[p] is the longest match p can
// still have, so a position that fell short of one pass is skipped until the
// pass for its bound. A scan cut short by the offset limit keeps its bound.
func (c *compressor) descending() {
	bound := make([]uint8, len(c.src))
	for i := range bound {
		bound[i] = MaxRefLength
	}
	for want := MaxRefLength; want >= MinRefLength; want-- {
		for p := 0; p+want <= len(c.src); {
			if c.state[p] != bytePlain || int(bound[p]) < want {
				p++
				continue
			}
			q, l, capped := c.longest(p, want)
			if l != want {
				if !capped {
					bound[p] = uint8(l)
				}
				p++
				continue
			}
			c.accept(p, q, l)
			p += l
		}
	}
}

// emit writes the output stream, translating every target to its
// compressed position. Violations here are compressor bugs.
func (c *compressor) emit() []byte {
	sort.Slice(c.refs, func(i, j int) bool { return c.refs[i].src < c.refs[j].src })

	out := make([]byte, 0, len(c.src))
	ri := 0
	for p := 0; p < len(c.src); {
		if ri < len(c.refs) && c.refs[ri].src == p {
			m := c.refs[ri]
			off := c.outPos(m.target)
			if m.length < MinRefLength || m.length > MaxRefLength {
				panic(fmt.Sprintf("psg: compressor produced reference length %d at 0x%04X", m.length, p))
			}
			if off > MaxRefOffset {
				panic(fmt.Sprintf("psg: compressor produced reference offset 0x%X at 0x%04X", off, p))
			}
			if off+m.length > len(out) {
				panic(fmt.Sprintf("psg: reference at output 0x%04X targets unwritten run 0x%04X+%d", len(out), off, m.length))
			}
			out = append(out, RefCode(m.length), byte(off), byte(off>>8))
			p += m.length
			ri++
			continue
		}
		out = append(out, c.src[p])
		p++
	}
	if ri != len(c.refs) {
		panic(fmt.Sprintf("psg: %d references not emitted", len(c.refs)-ri))
	}
	return out
}

// Expand resolves every back-reference in data and returns the equivalent
// uncompressed stream, up to and including the terminator.
// Loop markers are copied, not followed.
func Expand(data []byte) ([]byte, error) {
	d := NewDecoder(data)
	out := make([]byte, 0, len(data)*2)
	for {
		b, off, err := d.fetch()
		if err != nil {
			return nil, err
		}
		if IsReference(b) {
			if err := d.enterReference(b, off); err != nil {
				return nil, err
			}
			continue
		}
		out = append(out, b)
		if b == EndOfStreamCode {
			return out, nil
		}
	}
}

// fenwick is a binary indexed tree of per-position counts.
type fenwick []int

func newFenwick(n int) fenwick {
	return make(fenwick, n+1)
}

func (f fenwick) add(i, v int) {
	for i++; i < len(f); i += i & -i {
		f[i] += v
	}
}

// sum returns the total of positions [0, i).
func (f fenwick) sum(i int) int {
	s := 0
	if i >= len(f) {
		i = len(f) - 1
	}
	for ; i > 0; i -= i & -i {
		s += f[i]
	}
	return s
}
