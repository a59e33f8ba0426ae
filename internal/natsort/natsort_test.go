package natsort

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSort_ResultsArchives(t *testing.T) {
	ids := []string{"results-1", "results-9", "results-10", "results-2"}
	Sort(ids)
	assert.Equal(t, []string{"results-1", "results-2", "results-9", "results-10"}, ids)
}

func TestSort_FullPaths(t *testing.T) {
	ids := []string{
		"/data/RUN0/CLONE1/results-10.tar.bz2",
		"/data/RUN0/CLONE1/results-100.tar.bz2",
		"/data/RUN0/CLONE1/results-9.tar.bz2",
		"/data/RUN0/CLONE1/results-0.tar.bz2",
	}
	Sort(ids)
	assert.Equal(t, []string{
		"/data/RUN0/CLONE1/results-0.tar.bz2",
		"/data/RUN0/CLONE1/results-9.tar.bz2",
		"/data/RUN0/CLONE1/results-10.tar.bz2",
		"/data/RUN0/CLONE1/results-100.tar.bz2",
	}, ids)
}

func TestSort_MixedItems(t *testing.T) {
	ids := []string{"Z", "a", "10", "1", "9"}
	Sort(ids)
	assert.Equal(t, []string{"1", "9", "10", "Z", "a"}, ids)
}

func TestTokenize(t *testing.T) {
	toks := Tokenize("run12clone007")
	require.Len(t, toks, 4)
	assert.Equal(t, Token{Text: "run", Numeric: false}, toks[0])
	assert.Equal(t, Token{Text: "12", Numeric: true}, toks[1])
	assert.Equal(t, Token{Text: "clone", Numeric: false}, toks[2])
	assert.Equal(t, Token{Text: "007", Numeric: true}, toks[3])
	assert.Empty(t, Tokenize(""))
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"results-9", "results-10", -1},
		{"results-10", "results-9", 1},
		{"results-10", "results-10", 0},
		{"a", "a1", -1},
		{"frame2", "frame02", -1},
		{"x99999999999999999999999", "x100000000000000000000000", -1},
		{"1a", "a1", -1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
		})
	}
}
