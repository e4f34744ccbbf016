package bicas

import (
	"fmt"
	"math"
)

// Segment is a run of records First..Last (inclusive) sharing one configuration.
type Segment struct {
	First int
	Last  int
}

// Len is the number of records in the segment.
func (s Segment) Len() int {
	return s.Last - s.First + 1
}

func (s Segment) String() string {
	return fmt.Sprintf("[%d,%d]", s.First, s.Last)
}

// sameValue is equality where NaN equals only NaN.
func sameValue(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

// SplitByConfig partitions records into maximal runs of constant mux mode and
// differential gain, in increasing order. A NaN (unknown) setting forms
// segments of its own like any other value.
func SplitByConfig(mode, diffGain []float64) ([]Segment, error) {
	return SplitByValues(mode, diffGain)
}

// SplitByValues partitions the common index range of any number of parallel
// sequences into maximal runs on which every sequence is constant. All
// sequences must have the same length.
func SplitByValues(seqs ...[]float64) ([]Segment, error) {
	if len(seqs) == 0 {
		return []Segment{}, nil
	}
	n := len(seqs[0])
	for i, s := range seqs {
		if len(s) != n {
			return nil, fmt.Errorf("%w: sequence %d has length %d, sequence 0 has %d", ErrShapeMismatch, i, len(s), n)
		}
	}

	segments := make([]Segment, 0)
	if n == 0 {
		return segments, nil
	}
	first := 0
	for i := 1; i < n; i++ {
		for _, s := range seqs {
			if !sameValue(s[i], s[i-1]) {
				segments = append(segments, Segment{First: first, Last: i - 1})
				first = i
				break
			}
		}
	}
	return append(segments, Segment{First: first, Last: n - 1}), nil
}
