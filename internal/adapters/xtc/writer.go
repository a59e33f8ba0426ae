package xtc

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Writer writes XTC frames for systems of at most nine atoms, which the
// format stores uncompressed. It exists to produce small fixtures and probe
// trajectories; larger systems need the GROMACS compressor.
type Writer struct {
	bw     *bufio.Writer
	x      xdrWriter
	natoms int
}

// NewWriter writes frames of natoms atoms to w.
func NewWriter(w io.Writer, natoms int) (*Writer, error) {
	if natoms < 1 || natoms > maxUncompressed {
		return nil, fmt.Errorf("xtc: writer supports 1 to %d atoms, got %d", maxUncompressed, natoms)
	}
	bw := bufio.NewWriter(w)
	return &Writer{bw: bw, x: xdrWriter{w: bw}, natoms: natoms}, nil
}

// WriteFrame writes one frame. coords holds 3*natoms values in nanometers.
func (w *Writer) WriteFrame(step int, time float32, box [9]float32, coords []float32) error {
	if len(coords) != 3*w.natoms {
		return fmt.Errorf("xtc: got %d coordinates, want %d", len(coords), 3*w.natoms)
	}
	w.x.int32(magic)
	w.x.int32(int32(w.natoms))
	w.x.int32(int32(step))
	w.x.float32(time)
	for _, v := range box {
		w.x.float32(v)
	}
	w.x.int32(int32(w.natoms))
	for _, v := range coords {
		w.x.float32(v)
	}
	return w.x.err
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if w.x.err != nil {
		return w.x.err
	}
	return w.bw.Flush()
}

// WriteFile writes a trajectory of nframes frames of natoms atoms to path.
// Frame i has time i and every coordinate equal to i/10.
func WriteFile(path string, natoms, nframes int, box [9]float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w, err := NewWriter(f, natoms)
	if err != nil {
		f.Close()
		return err
	}
	coords := make([]float32, 3*natoms)
	for i := 0; i < nframes; i++ {
		for j := range coords {
			coords[j] = float32(i) / 10
		}
		if err := w.WriteFrame(i, float32(i), box, coords); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
