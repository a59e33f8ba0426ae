package domain

// Frame is a single trajectory snapshot.
// Coordinates are stored flat, three float32 values per atom, in nanometers.
type Frame struct {
	// Time is the simulation time in picoseconds.
	Time float32

	// Coords holds x, y, z for every atom (len == 3 * natoms).
	Coords []float32

	// CellLengths are the unit-cell edge lengths a, b, c in nanometers.
	CellLengths [3]float32

	// CellAngles are the unit-cell angles alpha, beta, gamma in degrees.
	CellAngles [3]float32

	// Velocities is optional, same layout as Coords.
	Velocities []float32

	// Energies is optional per-frame thermodynamic data.
	Energies *Energies
}

// Energies carries the auxiliary scalar fields some producers attach to a frame.
type Energies struct {
	Kinetic          float32
	Potential        float32
	Temperature      float32
	AlchemicalLambda float32
}

// NAtoms returns the number of atoms described by the frame's coordinates.
func (f Frame) NAtoms() int {
	return len(f.Coords) / 3
}

// Project returns a copy of the frame whose coordinates are gathered onto the
// given atom indices, in index order. Only time and unit-cell geometry are
// carried over; velocities and energies are dropped.
func (f Frame) Project(indices []int) Frame {
	coords := make([]float32, 0, 3*len(indices))
	for _, i := range indices {
		coords = append(coords, f.Coords[3*i], f.Coords[3*i+1], f.Coords[3*i+2])
	}
	return Frame{
		Time:        f.Time,
		Coords:      coords,
		CellLengths: f.CellLengths,
		CellAngles:  f.CellAngles,
	}
}

// FrameBlock is the set of frames produced by loading one SourceUnit.
// It is appended to a store as a single write.
type FrameBlock struct {
	NAtoms int
	Frames []Frame
}

// Len returns the number of frames in the block.
func (b FrameBlock) Len() int {
	return len(b.Frames)
}

// Empty returns true if the block has no frames.
func (b FrameBlock) Empty() bool {
	return len(b.Frames) == 0
}

// Project gathers every frame of the block onto the given atom indices.
func (b FrameBlock) Project(indices []int) FrameBlock {
	out := FrameBlock{NAtoms: len(indices), Frames: make([]Frame, len(b.Frames))}
	for i, f := range b.Frames {
		out.Frames[i] = f.Project(indices)
	}
	return out
}
