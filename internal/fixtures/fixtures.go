// Package fixtures builds small topologies, frame blocks and fragment trees
// for tests.
package fixtures

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bft-labs/fahmunge/internal/adapters/archive"
	"github.com/bft-labs/fahmunge/internal/adapters/xtc"
	"github.com/bft-labs/fahmunge/internal/domain"
	"github.com/bft-labs/fahmunge/internal/topology"
)

// Box is the cubic box every fixture frame uses.
var Box = [9]float32{3, 0, 0, 0, 3, 0, 0, 0, 3}

// Topology returns a topology of n carbon atoms, one per residue, bonded in
// a chain.
func Topology(n int) *topology.Topology {
	t := &topology.Topology{Atoms: make([]topology.Atom, n)}
	for i := range t.Atoms {
		t.Atoms[i] = topology.Atom{
			Serial:  i + 1,
			Name:    "CA",
			Element: "C",
			ResName: "ALA",
			ResSeq:  i + 1,
			Chain:   "A",
		}
		if i > 0 {
			t.Bonds = append(t.Bonds, [2]int{i - 1, i})
		}
	}
	return t
}

// Block returns nframes frames of natoms atoms. Frame i has time start+i and
// atom a of that frame sits at (start+i, a, 0).
func Block(natoms, nframes, start int) domain.FrameBlock {
	b := domain.FrameBlock{NAtoms: natoms, Frames: make([]domain.Frame, nframes)}
	for i := range b.Frames {
		coords := make([]float32, 3*natoms)
		for a := 0; a < natoms; a++ {
			coords[3*a] = float32(start + i)
			coords[3*a+1] = float32(a)
		}
		b.Frames[i] = domain.Frame{
			Time:        float32(start + i),
			Coords:      coords,
			CellLengths: [3]float32{3, 3, 3},
			CellAngles:  [3]float32{90, 90, 90},
		}
	}
	return b
}

// WriteTopology writes t as JSON to dir/top.json and returns the path.
func WriteTopology(dir string, t *topology.Topology) (string, error) {
	enc, err := t.Encode()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "top.json")
	return path, os.WriteFile(path, enc, 0o644)
}

// WriteArchive writes dir/results-<index>.tar.bz2 holding a positions.xtc
// of natoms atoms and nframes frames.
func WriteArchive(dir string, index, natoms, nframes int) error {
	tmp, err := os.MkdirTemp("", "fixture-xtc-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	src := filepath.Join(tmp, "positions.xtc")
	if err := xtc.WriteFile(src, natoms, nframes, Box); err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return archive.WriteFile(filepath.Join(dir, fmt.Sprintf("results-%d.tar.bz2", index)),
		archive.Member{Name: "md.log", Data: []byte("log\n")},
		archive.Member{Name: "positions.xtc", Data: data},
	)
}

// WriteArchives writes results-0.tar.bz2, results-1.tar.bz2, ... into dir,
// one per entry of frames.
func WriteArchives(dir string, natoms int, frames ...int) error {
	for i, n := range frames {
		if err := WriteArchive(dir, i, natoms, n); err != nil {
			return err
		}
	}
	return nil
}

// WriteFrameDir writes dir/<index>/frames.xtc with nframes frames.
func WriteFrameDir(dir string, index, natoms, nframes int) error {
	sub := filepath.Join(dir, strconv.Itoa(index))
	if err := os.MkdirAll(sub, 0o755); err != nil {
		return err
	}
	return xtc.WriteFile(filepath.Join(sub, "frames.xtc"), natoms, nframes, Box)
}

// WriteFrameDirs writes dir/0, dir/1, ... one per entry of frames.
func WriteFrameDirs(dir string, natoms int, frames ...int) error {
	for i, n := range frames {
		if err := WriteFrameDir(dir, i, natoms, n); err != nil {
			return err
		}
	}
	return nil
}
