package bicas

import (
	"fmt"
	"math"
)

// Samples is a block of values with one row per record and one column per
// sample within the record. Continuous data have one column; snapshot data
// have many. Missing values are NaN.
type Samples struct {
	Rows int
	Cols int
	Vals []float64 // row-major, length Rows*Cols
}

// NewSamples makes a zero-filled block.
func NewSamples(rows, cols int) Samples {
	return Samples{Rows: rows, Cols: cols, Vals: make([]float64, rows*cols)}
}

// NaNSamples makes a block where every value is missing.
func NaNSamples(rows, cols int) Samples {
	s := NewSamples(rows, cols)
	for i := range s.Vals {
		s.Vals[i] = math.NaN()
	}
	return s
}

// SamplesFromRows copies a slice of equal-length records into a block.
func SamplesFromRows(rows [][]float64) (Samples, error) {
	if len(rows) == 0 {
		return Samples{}, nil
	}
	ncol := len(rows[0])
	s := NewSamples(len(rows), ncol)
	for i, r := range rows {
		if len(r) != ncol {
			return Samples{}, fmt.Errorf("%w: record %d has %d samples, record 0 has %d",
				ErrShapeMismatch, i, len(r), ncol)
		}
		copy(s.Vals[i*ncol:], r)
	}
	return s, nil
}

// Continuous makes a one-column block from one value per record.
func Continuous(vals []float64) Samples {
	return Samples{Rows: len(vals), Cols: 1, Vals: append([]float64(nil), vals...)}
}

// Valid reports whether the dimensions agree with the stored values.
func (s Samples) Valid() bool {
	return s.Rows >= 0 && s.Cols >= 0 && len(s.Vals) == s.Rows*s.Cols
}

// SameShape reports whether s and o have identical dimensions.
func (s Samples) SameShape(o Samples) bool {
	return s.Rows == o.Rows && s.Cols == o.Cols
}

// Row returns record i. The result shares storage with s.
func (s Samples) Row(i int) []float64 {
	return s.Vals[i*s.Cols : (i+1)*s.Cols]
}

// Records returns records first..last inclusive, sharing storage with s.
func (s Samples) Records(first, last int) Samples {
	return Samples{Rows: last - first + 1, Cols: s.Cols, Vals: s.Vals[first*s.Cols : (last+1)*s.Cols]}
}

// Clone returns a deep copy.
func (s Samples) Clone() Samples {
	return Samples{Rows: s.Rows, Cols: s.Cols, Vals: append([]float64(nil), s.Vals...)}
}

// ASRID names one of the nine antenna signal representations.
type ASRID int

// The antenna signal representations: single-ended DC potentials, DC
// differentials, and AC differentials.
const (
	DCV1 ASRID = iota
	DCV2
	DCV3
	DCV12
	DCV13
	DCV23
	ACV12
	ACV13
	ACV23
)

// NumASR is the number of antenna signal representations.
const NumASR = 9

var asrNames = [NumASR]string{"DC_V1", "DC_V2", "DC_V3", "DC_V12", "DC_V13", "DC_V23", "AC_V12", "AC_V13", "AC_V23"}

func (id ASRID) String() string {
	if id < 0 || int(id) >= NumASR {
		return fmt.Sprintf("ASRID(%d)", int(id))
	}
	return asrNames[id]
}

// ParseASRID is the inverse of ASRID.String.
func ParseASRID(name string) (ASRID, error) {
	for i, n := range asrNames {
		if n == name {
			return ASRID(i), nil
		}
	}
	return 0, fmt.Errorf("unknown ASR channel %q", name)
}

// IsAC reports whether id is one of the AC-coupled differentials.
func (id ASRID) IsAC() bool {
	return id >= ACV12 && id <= ACV23
}

// IsDiff reports whether id is a differential (DC or AC).
func (id ASRID) IsDiff() bool {
	return id >= DCV12 && id <= ACV23
}

// Antennas returns the antennas id is measured on.
func (id ASRID) Antennas() AntennaSet {
	switch id {
	case DCV1:
		return AntennaSet{1, 0}
	case DCV2:
		return AntennaSet{2, 0}
	case DCV3:
		return AntennaSet{3, 0}
	case DCV12, ACV12:
		return AntennaSet{1, 2}
	case DCV13, ACV13:
		return AntennaSet{1, 3}
	case DCV23, ACV23:
		return AntennaSet{2, 3}
	}
	return AntennaSet{}
}

// AntennaSet is {}, {A} or {A,B} with A<B. Antennas are numbered 1 to 3; zero
// marks an unused slot.
type AntennaSet struct {
	A, B int
}

// Len is the number of antennas in the set.
func (a AntennaSet) Len() int {
	switch {
	case a.A == 0:
		return 0
	case a.B == 0:
		return 1
	}
	return 2
}

func (a AntennaSet) String() string {
	switch a.Len() {
	case 0:
		return "{}"
	case 1:
		return fmt.Sprintf("{%d}", a.A)
	}
	return fmt.Sprintf("{%d,%d}", a.A, a.B)
}

// Category says what kind of signal a BLTS channel carries. Ground and the
// 2.5 V reference are internal calibration stimuli: they occupy antenna slots
// but need a different correction downstream.
type Category int

// Signal categories. Unrouted is used only when the mux mode is unknown.
const (
	Unrouted Category = iota
	DCSingle
	DCDiff
	AC
	Ground
	Ref25V
)

var categoryNames = []string{"Unrouted", "DC_SINGLE", "DC_DIFF", "AC", "GND", "2.5V_REF"}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// IsStimulus reports whether c is an internal calibration stimulus.
func (c Category) IsStimulus() bool {
	return c == Ground || c == Ref25V
}

// Routing tells where one BLTS channel ends up and what it carries.
type Routing struct {
	Dest     ASRID
	Antennas AntennaSet
	Category Category
}

func (r Routing) String() string {
	if r.Category == Unrouted {
		return "unrouted"
	}
	return fmt.Sprintf("%s%s->%s", r.Category, r.Antennas, r.Dest)
}

// SourceKind tells how an ASR channel got its values.
type SourceKind int

// Ways an ASR channel can be filled.
const (
	Missing SourceKind = iota
	FromBLTS
	Derived
)

// Source records the origin of one ASR channel after demultiplexing.
type Source struct {
	Kind SourceKind
	BLTS int // 1..5 when Kind == FromBLTS

	// Category is the category of the BLTS for copied channels. A derived
	// channel carries a stimulus category when any of its inputs did.
	Category Category
}

func (s Source) String() string {
	switch s.Kind {
	case FromBLTS:
		return fmt.Sprintf("BLTS%d(%s)", s.BLTS, s.Category)
	case Derived:
		return "derived"
	}
	return "missing"
}
