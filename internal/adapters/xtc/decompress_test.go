package xtc

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bitWriter packs values most significant bit first, the order bitReader
// consumes them in.
type bitWriter struct {
	buf  []byte
	nbit int
}

func (w *bitWriter) bits(n int, v uint64) {
	for i := n - 1; i >= 0; i-- {
		if w.nbit%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		if v>>uint(i)&1 == 1 {
			w.buf[len(w.buf)-1] |= 1 << uint(7-w.nbit%8)
		}
		w.nbit++
	}
}

// ints packs three values as one mixed-radix number of nbits bits, low
// byte first.
func (w *bitWriter) ints(nbits int, sizes [3]uint32, nums [3]int) {
	v := (uint64(nums[0])*uint64(sizes[1])+uint64(nums[1]))*uint64(sizes[2]) + uint64(nums[2])
	for nbits > 8 {
		w.bits(8, v&0xff)
		v >>= 8
		nbits -= 8
	}
	w.bits(nbits, v)
}

// large writes an atom in full, relative to minint.
func (w *bitWriter) large(nbits int, sizes [3]uint32, minint [3]int32, c [3]int) {
	w.ints(nbits, sizes, [3]int{c[0] - int(minint[0]), c[1] - int(minint[1]), c[2] - int(minint[2])})
}

// run writes the run flag and, when set, the 5-bit run code.
func (w *bitWriter) run(code int) {
	if code < 0 {
		w.bits(1, 0)
		return
	}
	w.bits(1, 1)
	w.bits(5, uint64(code))
}

func (w *bitWriter) small(smallidx int, nums [3]int) {
	m := magicInts[smallidx]
	w.ints(smallidx, [3]uint32{m, m, m}, nums)
}

// packedFrame is a compressed XTC frame assembled field by field.
type packedFrame struct {
	magic     int32
	natoms    int
	precision float32
	minint    [3]int32
	maxint    [3]int32
	smallidx  int
	data      []byte
}

func (p packedFrame) sizes() [3]uint32 {
	var s [3]uint32
	for k := range s {
		s[k] = uint32(p.maxint[k] - p.minint[k] + 1)
	}
	return s
}

func (p packedFrame) encode() []byte {
	var buf bytes.Buffer
	x := xdrWriter{w: &buf}
	x.int32(p.magic)
	x.int32(int32(p.natoms))
	x.int32(0)
	x.float32(0)
	for _, v := range cubicBox(5) {
		x.float32(v)
	}
	x.int32(int32(p.natoms))
	x.float32(p.precision)
	for _, v := range p.minint {
		x.int32(v)
	}
	for _, v := range p.maxint {
		x.int32(v)
	}
	x.int32(int32(p.smallidx))
	if p.magic == magicBig {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(len(p.data)))
		buf.Write(b[:])
	} else {
		x.int32(int32(len(p.data)))
	}
	buf.Write(p.data)
	buf.Write(make([]byte, (4-len(p.data)%4)%4))
	return buf.Bytes()
}

func decodeInts(t *testing.T, p packedFrame) [][3]int {
	t.Helper()
	f, h, err := NewReader(bytes.NewReader(p.encode())).Next()
	require.NoError(t, err)
	require.Equal(t, p.natoms, h.NAtoms)
	require.Len(t, f.Coords, 3*p.natoms)
	out := make([][3]int, p.natoms)
	for i := range out {
		for k := 0; k < 3; k++ {
			out[i][k] = int(math.Round(float64(f.Coords[3*i+k]) * float64(p.precision)))
		}
	}
	return out
}

// runFrame holds two runs of three small atoms, the second one repeating the
// first run length through a cleared flag, then two atoms written in full.
func runFrame(m int32) packedFrame {
	p := packedFrame{
		magic:     m,
		natoms:    10,
		precision: 1000,
		maxint:    [3]int32{1000, 1000, 1000},
		smallidx:  firstIdx,
	}
	sizes := p.sizes()
	nbits := sizeOfInts(sizes)
	var w bitWriter

	w.large(nbits, sizes, p.minint, [3]int{100, 200, 300})
	w.run(3*3 + 1)
	w.small(firstIdx, [3]int{5, 3, 4})
	w.small(firstIdx, [3]int{6, 4, 2})
	w.small(firstIdx, [3]int{0, 7, 4})

	w.large(nbits, sizes, p.minint, [3]int{500, 500, 500})
	w.run(-1)
	w.small(firstIdx, [3]int{4, 4, 5})
	w.small(firstIdx, [3]int{3, 4, 4})
	w.small(firstIdx, [3]int{4, 3, 4})

	w.large(nbits, sizes, p.minint, [3]int{0, 1000, 0})
	w.run(1)
	w.large(nbits, sizes, p.minint, [3]int{1000, 0, 1000})
	w.run(-1)

	p.data = w.buf
	return p
}

var runFrameCoords = [][3]int{
	{101, 199, 300}, // first small atom comes out ahead of its run head
	{100, 200, 300},
	{103, 199, 298},
	{99, 202, 298},
	{500, 500, 501},
	{500, 500, 500},
	{499, 500, 501},
	{499, 499, 501},
	{0, 1000, 0},
	{1000, 0, 1000},
}

func TestDecompressRuns(t *testing.T) {
	assert.Equal(t, runFrameCoords, decodeInts(t, runFrame(magic)))
}

func TestDecompressBigMagic(t *testing.T) {
	assert.Equal(t, runFrameCoords, decodeInts(t, runFrame(magicBig)))
}

// The run code's remainder moves the small-difference bucket up or down
// after each run, which changes both the width and the offset of the next
// run's atoms.
func TestDecompressAdaptsSmallIndex(t *testing.T) {
	p := packedFrame{
		magic:     magic,
		natoms:    10,
		precision: 1000,
		maxint:    [3]int32{1000, 1000, 1000},
		smallidx:  firstIdx + 1,
	}
	sizes := p.sizes()
	nbits := sizeOfInts(sizes)
	var w bitWriter

	// bucket 10 (size 10, offset 5), then grow
	w.large(nbits, sizes, p.minint, [3]int{100, 100, 100})
	w.run(3 + 2)
	w.small(10, [3]int{9, 0, 5})

	// bucket 11 (size 12, offset 6), keep
	w.large(nbits, sizes, p.minint, [3]int{200, 200, 200})
	w.run(3 + 1)
	w.small(11, [3]int{11, 0, 6})

	// bucket 11, then shrink
	w.large(nbits, sizes, p.minint, [3]int{300, 300, 300})
	w.run(3 + 0)
	w.small(11, [3]int{0, 11, 6})

	// back in bucket 10
	w.large(nbits, sizes, p.minint, [3]int{400, 400, 400})
	w.run(3 + 1)
	w.small(10, [3]int{0, 9, 5})

	w.large(nbits, sizes, p.minint, [3]int{0, 0, 0})
	w.run(1)
	w.large(nbits, sizes, p.minint, [3]int{1000, 1000, 1000})
	w.run(-1)
	p.data = w.buf

	assert.Equal(t, [][3]int{
		{104, 95, 100}, {100, 100, 100},
		{205, 194, 200}, {200, 200, 200},
		{294, 305, 300}, {300, 300, 300},
		{395, 404, 400}, {400, 400, 400},
		{0, 0, 0},
		{1000, 1000, 1000},
	}, decodeInts(t, p))
}

// A range wider than 2^24 on any axis stores each axis with its own bit
// width instead of one mixed-radix number.
func TestDecompressLargeRange(t *testing.T) {
	p := packedFrame{
		magic:     magic,
		natoms:    10,
		precision: 1,
		minint:    [3]int32{-20000000, 0, 5},
		maxint:    [3]int32{20000000, 100, 5},
		smallidx:  firstIdx,
	}
	widths := [3]int{
		sizeOfInt(uint32(p.maxint[0] - p.minint[0] + 1)),
		sizeOfInt(101),
		sizeOfInt(1),
	}
	require.Equal(t, [3]int{26, 7, 1}, widths)

	var w bitWriter
	want := make([][3]int, p.natoms)
	for i := range want {
		want[i] = [3]int{-20000000 + i*4000000, i * 10, 5}
		for k := range widths {
			w.bits(widths[k], uint64(want[i][k]-int(p.minint[k])))
		}
		w.run(-1)
	}
	p.data = w.buf

	assert.Equal(t, want, decodeInts(t, p))
}

func TestDecompressRunPastLastAtom(t *testing.T) {
	p := packedFrame{
		magic:     magic,
		natoms:    10,
		precision: 1000,
		maxint:    [3]int32{1000, 1000, 1000},
		smallidx:  firstIdx,
	}
	sizes := p.sizes()
	nbits := sizeOfInts(sizes)
	var w bitWriter
	for i := 0; i < 8; i++ {
		w.large(nbits, sizes, p.minint, [3]int{i, i, i})
		w.run(-1)
	}
	w.large(nbits, sizes, p.minint, [3]int{8, 8, 8})
	w.run(3*3 + 1)
	for i := 0; i < 3; i++ {
		w.small(firstIdx, [3]int{4, 4, 4})
	}
	p.data = w.buf

	_, _, err := NewReader(bytes.NewReader(p.encode())).Next()
	assert.ErrorContains(t, err, "overflows")
}
