package topology

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// ParsePDB reads the ATOM/HETATM records of the first model in a PDB stream,
// plus CONECT records for bonds. Coordinates are ignored.
func ParsePDB(r io.Reader) (*Topology, error) {
	t := &Topology{}
	serialToIndex := map[int]int{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineno := 0
	inFirstModel := true
	for sc.Scan() {
		lineno++
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "ENDMDL"):
			inFirstModel = false
		case strings.HasPrefix(line, "ATOM  ") || strings.HasPrefix(line, "HETATM"):
			if !inFirstModel {
				continue
			}
			a, numbered, err := parseAtomLine(line, len(t.Atoms)+1)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineno, err)
			}
			if numbered {
				serialToIndex[a.Serial] = len(t.Atoms)
			}
			t.Atoms = append(t.Atoms, a)
		case strings.HasPrefix(line, "CONECT"):
			t.Bonds = append(t.Bonds, parseConect(line, serialToIndex)...)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(t.Atoms) == 0 {
		return nil, fmt.Errorf("no ATOM or HETATM records")
	}
	return t, nil
}

// parseAtomLine parses one ATOM/HETATM record. Writers past 99999 atoms put
// "*****" or hybrid-36 text in the serial field; such atoms get ordinal as
// their serial and numbered is false, so CONECT records cannot refer to them.
func parseAtomLine(line string, ordinal int) (a Atom, numbered bool, err error) {
	if len(line) < 27 {
		return Atom{}, false, fmt.Errorf("short atom record %q", line)
	}
	numbered = true
	if a.Serial, err = strconv.Atoi(strings.TrimSpace(line[6:11])); err != nil {
		a.Serial, numbered = ordinal, false
	}
	a.Name = strings.TrimSpace(line[12:16])
	a.ResName = strings.TrimSpace(line[17:20])
	a.Chain = strings.TrimSpace(line[21:22])
	if a.ResSeq, err = strconv.Atoi(strings.TrimSpace(line[22:26])); err != nil {
		return Atom{}, false, fmt.Errorf("residue number: %w", err)
	}
	if len(line) >= 78 {
		a.Element = strings.TrimSpace(line[76:78])
	}
	if a.Element == "" {
		a.Element = elementFromName(a.Name)
	}
	return a, numbered, nil
}

// parseConect turns one CONECT record into bonds; serials without an atom are dropped.
func parseConect(line string, serialToIndex map[int]int) [][2]int {
	var serials []int
	for start := 6; start+5 <= len(line); start += 5 {
		s, err := strconv.Atoi(strings.TrimSpace(line[start : start+5]))
		if err != nil {
			break
		}
		serials = append(serials, s)
	}
	if len(serials) < 2 {
		return nil
	}
	from, ok := serialToIndex[serials[0]]
	if !ok {
		return nil
	}
	var bonds [][2]int
	for _, s := range serials[1:] {
		to, ok := serialToIndex[s]
		if !ok || to <= from { // each bond is listed from both ends
			continue
		}
		bonds = append(bonds, [2]int{from, to})
	}
	return bonds
}

// elementFromName guesses the element from the first letter of an atom name.
func elementFromName(name string) string {
	for _, r := range name {
		if unicode.IsLetter(r) {
			return string(unicode.ToUpper(r))
		}
	}
	return ""
}
