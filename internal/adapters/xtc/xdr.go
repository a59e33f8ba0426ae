package xtc

import (
	"encoding/binary"
	"io"
	"math"
)

// xdrReader reads big-endian XDR primitives.
type xdrReader struct {
	r   io.Reader
	buf [8]byte
}

func (x *xdrReader) int32() (int32, error) {
	if _, err := io.ReadFull(x.r, x.buf[:4]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(x.buf[:4])), nil
}

func (x *xdrReader) int64() (int64, error) {
	if _, err := io.ReadFull(x.r, x.buf[:8]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(x.buf[:8])), nil
}

func (x *xdrReader) float32() (float32, error) {
	if _, err := io.ReadFull(x.r, x.buf[:4]); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(x.buf[:4])), nil
}

// opaque reads n bytes followed by padding up to a multiple of four.
func (x *xdrReader) opaque(n int) ([]byte, error) {
	padded := (n + 3) &^ 3
	b := make([]byte, padded)
	if _, err := io.ReadFull(x.r, b); err != nil {
		return nil, err
	}
	return b[:n], nil
}

// xdrWriter writes big-endian XDR primitives. The first error sticks.
type xdrWriter struct {
	w   io.Writer
	buf [4]byte
	err error
}

func (x *xdrWriter) int32(v int32) {
	if x.err != nil {
		return
	}
	binary.BigEndian.PutUint32(x.buf[:], uint32(v))
	_, x.err = x.w.Write(x.buf[:])
}

func (x *xdrWriter) float32(v float32) {
	if x.err != nil {
		return
	}
	binary.BigEndian.PutUint32(x.buf[:], math.Float32bits(v))
	_, x.err = x.w.Write(x.buf[:])
}
