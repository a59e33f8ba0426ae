// Package topology describes the atoms of a simulated system and how to
// restrict that description to a subset of atoms.
package topology

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bft-labs/fahmunge/internal/domain"
)

// Atom is one atom of the system.
type Atom struct {
	Serial  int    `json:"serial"`
	Name    string `json:"name"`
	Element string `json:"element,omitempty"`
	ResName string `json:"resName"`
	ResSeq  int    `json:"resSeq"`
	Chain   string `json:"chainID,omitempty"`
}

// Topology is an ordered list of atoms plus bonds between atom indices.
type Topology struct {
	Atoms []Atom   `json:"atoms"`
	Bonds [][2]int `json:"bonds,omitempty"`
}

// Len returns the number of atoms.
func (t *Topology) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Atoms)
}

// Subset returns a new topology restricted to the given atom indices, in the
// order given. Bonds between two kept atoms are kept and renumbered.
func (t *Topology) Subset(indices []int) (*Topology, error) {
	if err := ValidateIndices(indices, t.Len()); err != nil {
		return nil, err
	}
	remap := make(map[int]int, len(indices))
	sub := &Topology{Atoms: make([]Atom, len(indices))}
	for newIdx, old := range indices {
		sub.Atoms[newIdx] = t.Atoms[old]
		remap[old] = newIdx
	}
	for _, b := range t.Bonds {
		i, iok := remap[b[0]]
		j, jok := remap[b[1]]
		if iok && jok {
			sub.Bonds = append(sub.Bonds, [2]int{i, j})
		}
	}
	return sub, nil
}

// ValidateIndices checks that every index addresses one of natoms atoms and
// that no index repeats.
func ValidateIndices(indices []int, natoms int) error {
	if len(indices) == 0 {
		return fmt.Errorf("%w: empty selection", domain.ErrInvalidSelection)
	}
	seen := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		if i < 0 || i >= natoms {
			return fmt.Errorf("%w: atom index %d out of range [0, %d)", domain.ErrInvalidSelection, i, natoms)
		}
		if _, dup := seen[i]; dup {
			return fmt.Errorf("%w: atom index %d selected twice", domain.ErrInvalidSelection, i)
		}
		seen[i] = struct{}{}
	}
	return nil
}

// Encode serialises the topology as JSON.
func (t *Topology) Encode() ([]byte, error) {
	return json.Marshal(t)
}

// Decode parses a topology produced by Encode.
func Decode(b []byte) (*Topology, error) {
	var t Topology
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("decode topology: %w", err)
	}
	return &t, nil
}

// Load reads a topology file. Files ending in .json are read as encoded
// topologies; everything else is parsed as PDB.
func Load(path string) (*Topology, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("topology %s: %w", path, domain.ErrNotFound)
		}
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var t Topology
		if err := json.NewDecoder(f).Decode(&t); err != nil {
			return nil, fmt.Errorf("topology %s: %w", path, err)
		}
		return &t, nil
	}
	t, err := ParsePDB(f)
	if err != nil {
		return nil, fmt.Errorf("topology %s: %w", path, err)
	}
	return t, nil
}
