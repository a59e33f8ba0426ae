package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameProject(t *testing.T) {
	f := Frame{
		Time:        12.5,
		Coords:      []float32{0, 0, 0, 1, 1, 1, 2, 2, 2, 3, 3, 3},
		CellLengths: [3]float32{4, 5, 6},
		CellAngles:  [3]float32{90, 90, 120},
		Velocities:  []float32{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9},
		Energies:    &Energies{Kinetic: 1},
	}

	p := f.Project([]int{3, 1})
	assert.Equal(t, []float32{3, 3, 3, 1, 1, 1}, p.Coords)
	assert.Equal(t, 2, p.NAtoms())
	assert.Equal(t, f.Time, p.Time)
	assert.Equal(t, f.CellLengths, p.CellLengths)
	assert.Equal(t, f.CellAngles, p.CellAngles)
	assert.Nil(t, p.Velocities)
	assert.Nil(t, p.Energies)

	// The source frame is untouched.
	assert.Len(t, f.Coords, 12)
}

func TestFrameBlockProject(t *testing.T) {
	b := FrameBlock{NAtoms: 2, Frames: []Frame{
		{Time: 0, Coords: []float32{0, 1, 2, 3, 4, 5}},
		{Time: 1, Coords: []float32{6, 7, 8, 9, 10, 11}},
	}}

	p := b.Project([]int{1})
	require.Equal(t, 2, p.Len())
	assert.Equal(t, 1, p.NAtoms)
	assert.Equal(t, []float32{3, 4, 5}, p.Frames[0].Coords)
	assert.Equal(t, []float32{9, 10, 11}, p.Frames[1].Coords)
	assert.False(t, p.Empty())
	assert.True(t, FrameBlock{}.Empty())
}

func TestLedgerKindValid(t *testing.T) {
	for _, k := range RecognizedLedgerKinds {
		assert.True(t, k.Valid(), k)
	}
	assert.False(t, LedgerKind("processed_things").Valid())
	assert.False(t, LedgerKind("").Valid())
}

func TestFailurePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    FailurePolicy
		wantErr bool
	}{
		{in: "", want: Abort},
		{in: "abort", want: Abort},
		{in: "skip", want: SkipAndContinue},
		{in: "skip-and-continue", want: SkipAndContinue},
		{in: "continue", want: SkipAndContinue},
		{in: "retry", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFailurePolicy(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "abort", Abort.String())
	assert.Equal(t, "skip", SkipAndContinue.String())
	assert.Equal(t, "FailurePolicy(7)", FailurePolicy(7).String())

	// String round-trips through ParseFailurePolicy.
	for _, p := range []FailurePolicy{Abort, SkipAndContinue} {
		got, err := ParseFailurePolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestLedgerEntryEnd(t *testing.T) {
	assert.Equal(t, 25, LedgerEntry{ID: "results-1.tar.bz2", First: 10, Count: 15}.End())
	assert.Equal(t, 0, LedgerEntry{}.End())
}
