// Package natsort orders identifiers the way a human reads them: embedded
// digit runs compare by numeric value, so "results-9" sorts before "results-10".
package natsort

import (
	"sort"
	"strings"
)

// Token is one maximal run of a string: either all ASCII digits or no digits.
type Token struct {
	Text    string
	Numeric bool
}

// Tokenize splits s into alternating digit and non-digit runs, preserving order.
func Tokenize(s string) []Token {
	var toks []Token
	for i := 0; i < len(s); {
		j := i
		numeric := isDigit(s[i])
		for j < len(s) && isDigit(s[j]) == numeric {
			j++
		}
		toks = append(toks, Token{Text: s[i:j], Numeric: numeric})
		i = j
	}
	return toks
}

// Compare returns -1, 0 or +1 depending on whether a sorts before, equal to,
// or after b in natural order.
func Compare(a, b string) int {
	ta, tb := Tokenize(a), Tokenize(b)
	for i := 0; i < len(ta) && i < len(tb); i++ {
		if c := compareToken(ta[i], tb[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(ta) < len(tb):
		return -1
	case len(ta) > len(tb):
		return 1
	}
	return 0
}

// Less reports whether a sorts strictly before b.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

// Sort sorts ids in place in natural order. Equal keys keep their input order.
func Sort(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool { return Less(ids[i], ids[j]) })
}

func compareToken(a, b Token) int {
	switch {
	case a.Numeric && b.Numeric:
		return compareNumeric(a.Text, b.Text)
	case a.Numeric:
		return -1 // numbers before text
	case b.Numeric:
		return 1
	}
	return strings.Compare(a.Text, b.Text)
}

// compareNumeric compares digit runs of any length by value. Runs with the
// same value but different zero padding are ordered shorter first.
func compareNumeric(a, b string) int {
	ta, tb := strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
	if len(ta) != len(tb) {
		if len(ta) < len(tb) {
			return -1
		}
		return 1
	}
	if c := strings.Compare(ta, tb); c != 0 {
		return c
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }
