// Package xtc reads GROMACS XTC trajectories, the frame format produced by the
// Folding@home GROMACS cores, without cgo.
//
// Coordinates and box vectors are kept in nanometers. The unit cell of each
// frame is reported as edge lengths and angles derived from the box vectors.
package xtc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/bft-labs/fahmunge/internal/domain"
)

const (
	magic    = 1995
	magicBig = 2023 // 64-bit compressed byte count
)

// maxUncompressed is the largest system stored without compression.
const maxUncompressed = 9

// Header is the per-frame metadata of an XTC frame.
type Header struct {
	NAtoms int
	Step   int
	Time   float32
	Box    [9]float32
}

// Reader decodes frames from an XTC stream.
type Reader struct {
	x      xdrReader
	closer io.Closer
	natoms int
	frames int
}

// NewReader reads XTC frames from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{x: xdrReader{r: bufio.NewReaderSize(r, 64*1024)}, natoms: -1}
}

// Open opens the XTC file at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	rd := NewReader(f)
	rd.closer = f
	return rd, nil
}

// Close closes the underlying file, if the reader owns one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Next decodes the next frame. It returns io.EOF when the stream ends cleanly
// on a frame boundary and io.ErrUnexpectedEOF for a truncated frame.
func (r *Reader) Next() (domain.Frame, Header, error) {
	m, err := r.x.int32()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Frame{}, Header{}, io.EOF
		}
		return domain.Frame{}, Header{}, err
	}
	if m != magic && m != magicBig {
		return domain.Frame{}, Header{}, fmt.Errorf("xtc: frame %d: bad magic number %d", r.frames, m)
	}
	h, err := r.header()
	if err != nil {
		return domain.Frame{}, Header{}, r.truncated(err)
	}
	if r.natoms >= 0 && h.NAtoms != r.natoms {
		return domain.Frame{}, Header{}, fmt.Errorf("xtc: frame %d has %d atoms, previous frames had %d", r.frames, h.NAtoms, r.natoms)
	}
	r.natoms = h.NAtoms

	coords, err := r.coords(h.NAtoms, m)
	if err != nil {
		return domain.Frame{}, Header{}, r.truncated(err)
	}
	lengths, angles := CellFromBox(h.Box)
	r.frames++
	return domain.Frame{
		Time:        h.Time,
		Coords:      coords,
		CellLengths: lengths,
		CellAngles:  angles,
	}, h, nil
}

// NAtoms returns the atom count seen so far, or -1 before the first frame.
func (r *Reader) NAtoms() int { return r.natoms }

func (r *Reader) truncated(err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("xtc: frame %d: %w", r.frames, err)
}

func (r *Reader) header() (Header, error) {
	var h Header
	natoms, err := r.x.int32()
	if err != nil {
		return h, err
	}
	if natoms < 0 {
		return h, fmt.Errorf("negative atom count %d", natoms)
	}
	step, err := r.x.int32()
	if err != nil {
		return h, err
	}
	if h.Time, err = r.x.float32(); err != nil {
		return h, err
	}
	for i := range h.Box {
		if h.Box[i], err = r.x.float32(); err != nil {
			return h, err
		}
	}
	h.NAtoms = int(natoms)
	h.Step = int(step)
	return h, nil
}

func (r *Reader) coords(natoms int, m int32) ([]float32, error) {
	lsize, err := r.x.int32()
	if err != nil {
		return nil, err
	}
	if int(lsize) != natoms {
		return nil, fmt.Errorf("coordinate count %d does not match header atom count %d", lsize, natoms)
	}
	if natoms <= maxUncompressed {
		out := make([]float32, 3*natoms)
		for i := range out {
			if out[i], err = r.x.float32(); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	return r.decompress(natoms, m)
}

func (r *Reader) decompress(natoms int, m int32) ([]float32, error) {
	precision, err := r.x.float32()
	if err != nil {
		return nil, err
	}
	if precision <= 0 {
		return nil, fmt.Errorf("invalid precision %g", precision)
	}
	var minint, maxint [3]int32
	for k := range minint {
		if minint[k], err = r.x.int32(); err != nil {
			return nil, err
		}
	}
	for k := range maxint {
		if maxint[k], err = r.x.int32(); err != nil {
			return nil, err
		}
	}
	var sizeint [3]uint32
	var bitsizeint [3]int
	for k := range sizeint {
		if maxint[k] < minint[k] {
			return nil, fmt.Errorf("invalid coordinate range [%d, %d]", minint[k], maxint[k])
		}
		sizeint[k] = uint32(maxint[k] - minint[k] + 1)
	}
	bitsize := 0
	if sizeint[0]|sizeint[1]|sizeint[2] > 0xffffff {
		for k := range sizeint {
			bitsizeint[k] = sizeOfInt(sizeint[k])
		}
	} else {
		bitsize = sizeOfInts(sizeint)
	}

	idx, err := r.x.int32()
	if err != nil {
		return nil, err
	}
	smallidx := int(idx)
	if smallidx < firstIdx || smallidx >= len(magicInts) {
		return nil, fmt.Errorf("invalid small index %d", smallidx)
	}
	smaller := int(magicInts[max(firstIdx, smallidx-1)] / 2)
	smallnum := int(magicInts[smallidx] / 2)
	sizesmall := [3]uint32{magicInts[smallidx], magicInts[smallidx], magicInts[smallidx]}

	var nbytes int64
	if m == magicBig {
		nbytes, err = r.x.int64()
	} else {
		var n int32
		n, err = r.x.int32()
		nbytes = int64(n)
	}
	if err != nil {
		return nil, err
	}
	if nbytes < 0 || nbytes > int64(natoms)*3*4+1024 {
		return nil, fmt.Errorf("implausible compressed size %d for %d atoms", nbytes, natoms)
	}
	data, err := r.x.opaque(int(nbytes))
	if err != nil {
		return nil, err
	}

	br := bitReader{buf: data}
	inv := 1 / precision
	out := make([]float32, 0, 3*natoms)
	emit := func(c [3]int) {
		out = append(out, float32(c[0])*inv, float32(c[1])*inv, float32(c[2])*inv)
	}

	run := 0
	for i := 0; i < natoms; {
		var this [3]int
		if bitsize == 0 {
			for k := range this {
				if this[k], err = br.receiveBits(bitsizeint[k]); err != nil {
					return nil, err
				}
			}
		} else if err := br.receiveInts(bitsize, sizeint, &this); err != nil {
			return nil, err
		}
		i++
		for k := range this {
			this[k] += int(minint[k])
		}
		prev := this

		flag, err := br.receiveBits(1)
		if err != nil {
			return nil, err
		}
		isSmaller := 0
		if flag == 1 {
			if run, err = br.receiveBits(5); err != nil {
				return nil, err
			}
			isSmaller = run % 3
			run -= isSmaller
			isSmaller--
		}
		if run > 0 {
			if i+run/3 > natoms {
				return nil, fmt.Errorf("run of %d atoms overflows %d atoms", run/3, natoms)
			}
			for k := 0; k < run; k += 3 {
				var small [3]int
				if err := br.receiveInts(smallidx, sizesmall, &small); err != nil {
					return nil, err
				}
				i++
				for d := range small {
					small[d] += prev[d] - smallnum
				}
				if k == 0 {
					// the first two atoms of a run are stored swapped (water O/H)
					small, prev = prev, small
					emit(prev)
				} else {
					prev = small
				}
				emit(small)
			}
		} else {
			emit(this)
		}

		smallidx += isSmaller
		if smallidx < firstIdx || smallidx >= len(magicInts) {
			return nil, fmt.Errorf("small index %d out of range", smallidx)
		}
		if isSmaller < 0 {
			smallnum = smaller
			if smallidx > firstIdx {
				smaller = int(magicInts[smallidx-1] / 2)
			} else {
				smaller = 0
			}
		} else if isSmaller > 0 {
			smaller = smallnum
			smallnum = int(magicInts[smallidx] / 2)
		}
		sizesmall = [3]uint32{magicInts[smallidx], magicInts[smallidx], magicInts[smallidx]}
	}
	if len(out) != 3*natoms {
		return nil, fmt.Errorf("decoded %d coordinates, want %d", len(out)/3, natoms)
	}
	return out, nil
}

// ReadAll decodes every frame of the XTC file at path into one block. The
// file must contain at least one frame.
func ReadAll(path string) (domain.FrameBlock, error) {
	r, err := Open(path)
	if err != nil {
		return domain.FrameBlock{}, err
	}
	defer r.Close()

	var block domain.FrameBlock
	for {
		f, _, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.FrameBlock{}, fmt.Errorf("%s: %w", path, err)
		}
		block.Frames = append(block.Frames, f)
	}
	if block.Empty() {
		return domain.FrameBlock{}, fmt.Errorf("%s: no frames", path)
	}
	block.NAtoms = r.NAtoms()
	return block, nil
}

// CellFromBox converts three box vectors (row-major a, b, c) into edge lengths
// and the angles alpha (b,c), beta (a,c) and gamma (a,b) in degrees. A box with
// a zero-length vector yields zero angles.
func CellFromBox(box [9]float32) (lengths, angles [3]float32) {
	a := r3.Vec{X: float64(box[0]), Y: float64(box[1]), Z: float64(box[2])}
	b := r3.Vec{X: float64(box[3]), Y: float64(box[4]), Z: float64(box[5])}
	c := r3.Vec{X: float64(box[6]), Y: float64(box[7]), Z: float64(box[8])}
	la, lb, lc := r3.Norm(a), r3.Norm(b), r3.Norm(c)
	lengths = [3]float32{float32(la), float32(lb), float32(lc)}
	if la == 0 || lb == 0 || lc == 0 {
		return lengths, angles
	}
	angles = [3]float32{degrees(r3.Cos(b, c)), degrees(r3.Cos(a, c)), degrees(r3.Cos(a, b))}
	return lengths, angles
}

func degrees(cos float64) float32 {
	cos = math.Max(-1, math.Min(1, cos))
	return float32(math.Acos(cos) * 180 / math.Pi)
}
