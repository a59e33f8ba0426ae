package topology

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bft-labs/fahmunge/internal/domain"
)

var waterResidues = map[string]bool{
	"HOH": true, "WAT": true, "SOL": true, "H2O": true, "TIP": true,
	"TIP3": true, "T3P": true, "TIP4": true, "T4P": true, "SPC": true,
}

var ionResidues = map[string]bool{
	"NA": true, "NA+": true, "SOD": true, "CL": true, "CL-": true, "CLA": true,
	"K": true, "K+": true, "POT": true, "MG": true, "CA": true, "ZN": true,
}

var aminoAcids = map[string]bool{
	"ALA": true, "ARG": true, "ASN": true, "ASP": true, "CYS": true, "GLN": true,
	"GLU": true, "GLY": true, "HIS": true, "ILE": true, "LEU": true, "LYS": true,
	"MET": true, "PHE": true, "PRO": true, "SER": true, "THR": true, "TRP": true,
	"TYR": true, "VAL": true, "HID": true, "HIE": true, "HIP": true, "CYX": true,
	"ASH": true, "GLH": true, "LYN": true, "ACE": true, "NME": true, "NH2": true,
}

// Select returns the indices of the atoms matched by a named selection:
// "all", "protein", "heavy" (non-hydrogen) or "not-water" (everything but
// water and ions).
func (t *Topology) Select(name string) ([]int, error) {
	var keep func(Atom) bool
	switch name {
	case "all":
		keep = func(Atom) bool { return true }
	case "protein":
		keep = func(a Atom) bool { return aminoAcids[a.ResName] }
	case "heavy":
		keep = func(a Atom) bool { return a.Element != "H" }
	case "not-water":
		keep = func(a Atom) bool { return !waterResidues[a.ResName] && !ionResidues[a.ResName] }
	default:
		return nil, fmt.Errorf("%w: unknown selection %q", domain.ErrInvalidSelection, name)
	}
	var out []int
	for i, a := range t.Atoms {
		if keep(a) {
			out = append(out, i)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: selection %q matched no atoms", domain.ErrInvalidSelection, name)
	}
	return out, nil
}

// maxIndices bounds how many indices one list may expand to, well above the
// atom count of any system a work unit carries.
const maxIndices = 50_000_000

// ParseIndices parses a list such as "0-99,120, 130-132" into atom indices.
// Ranges are inclusive. Whitespace and commas both separate items.
func ParseIndices(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	var out []int
	for _, f := range fields {
		lo, hi, isRange := strings.Cut(f, "-")
		a, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSelection, f)
		}
		if !isRange {
			out = append(out, a)
			continue
		}
		b, err := strconv.Atoi(hi)
		if err != nil || b < a {
			return nil, fmt.Errorf("%w: bad range %q", domain.ErrInvalidSelection, f)
		}
		if b-a >= maxIndices-len(out) {
			return nil, fmt.Errorf("%w: range %q expands past %d indices", domain.ErrInvalidSelection, f, maxIndices)
		}
		for i := a; i <= b; i++ {
			out = append(out, i)
		}
	}
	return out, nil
}

// ReadIndexFile reads atom indices from a text file in ParseIndices syntax.
// Lines starting with '#' are comments.
func ReadIndexFile(path string) ([]int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var kept []string
	for _, line := range strings.Split(string(b), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		kept = append(kept, line)
	}
	return ParseIndices(strings.Join(kept, "\n"))
}
