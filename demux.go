package bicas

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrBadGain is returned when a scalar calibration gain is zero or not finite.
var ErrBadGain = errors.New("calibration gain must be finite and nonzero")

// Gains are the scalar corrections applied while demultiplexing: single-ended
// DC values are divided by Alpha, DC differentials by Beta, and AC
// differentials by the gamma selected by the differential gain setting.
type Gains struct {
	Alpha     float64
	Beta      float64
	GammaLow  float64
	GammaHigh float64
}

// Validate checks that every gain can be divided by.
func (g Gains) Validate() error {
	for _, v := range []struct {
		name string
		val  float64
	}{{"alpha", g.Alpha}, {"beta", g.Beta}, {"gamma low", g.GammaLow}, {"gamma high", g.GammaHigh}} {
		if v.val == 0 || math.IsNaN(v.val) || math.IsInf(v.val, 0) {
			return fmt.Errorf("%w: %s=%v", ErrBadGain, v.name, v.val)
		}
	}
	return nil
}

// Gamma returns the AC gain for a differential gain setting: 0 is low, 1 is
// high, and NaN (unknown) gives NaN.
func (g Gains) Gamma(diffGain float64) (float64, error) {
	switch {
	case math.IsNaN(diffGain):
		return math.NaN(), nil
	case diffGain == 0:
		return g.GammaLow, nil
	case diffGain == 1:
		return g.GammaHigh, nil
	}
	return math.NaN(), fmt.Errorf("%w: %v", ErrUnsupportedDiffGain, diffGain)
}

// slotGain is the gain for values landing in ASR slot id.
func (g Gains) slotGain(id ASRID, gamma float64) float64 {
	switch {
	case id.IsAC():
		return gamma
	case id.IsDiff():
		return g.Beta
	}
	return g.Alpha
}

// Demuxed is the result of routing one configuration-homogeneous block.
type Demuxed struct {
	ASR      [NumASR]Samples
	Routings [NumBLTS]Routing
	Sources  [NumASR]Source
}

// Get returns the samples of one ASR channel.
func (d *Demuxed) Get(id ASRID) Samples {
	return d.ASR[id]
}

// relation is the identity asr[sum] = asr[a] + asr[b]. solvable says which of
// sum, a and b may be filled in from the other two.
type relation struct {
	sum, a, b ASRID
	solvable  [3]bool
}

var solveAny = [3]bool{true, true, true}

// relations lists the redundancy identities in the order they are tried. The
// differential triangle V13 = V12 + V23 comes first and is solved in one
// direction only, chosen by the latching relay: with the relay on 1-2 V13 is
// derived, with the relay on 1-3 V12 is. Deriving both ways could give two
// inconsistent values.
func relations(dlrUsing12 bool) []relation {
	triangle := [3]bool{false, true, false}
	if dlrUsing12 {
		triangle = [3]bool{true, false, false}
	}
	return []relation{
		{DCV13, DCV12, DCV23, triangle},
		{ACV13, ACV12, ACV23, triangle},
		{DCV1, DCV12, DCV2, solveAny}, // V12 = V1 - V2
		{DCV1, DCV13, DCV3, solveAny}, // V13 = V1 - V3
		{DCV2, DCV23, DCV3, solveAny}, // V23 = V2 - V3
	}
}

// Route demultiplexes five raw channels recorded with one mux mode, one
// differential gain and one latching relay position into the nine ASR
// channels. ASR channels that can neither be copied from a BLTS nor derived
// are NaN. An unknown (NaN) mode yields all-NaN output and no error.
func Route(mode, diffGain float64, dlrUsing12 bool, blts [NumBLTS]Samples, gains Gains) (*Demuxed, error) {
	return route(mode, diffGain, dlrUsing12, blts, gains, nil)
}

// channelFunc transforms, in place, an ASR channel just copied from a BLTS.
type channelFunc func(id ASRID, src Source, s Samples) error

// route is Route with a hook that runs on every copied channel before the
// missing channels are derived, so derived channels follow from the
// transformed values.
func route(mode, diffGain float64, dlrUsing12 bool, blts [NumBLTS]Samples, gains Gains, copied channelFunc) (*Demuxed, error) {
	for i, b := range blts {
		if !b.Valid() {
			return nil, fmt.Errorf("%w: BLTS%d has %d values for %dx%d", ErrShapeMismatch, i+1, len(b.Vals), b.Rows, b.Cols)
		}
		if !b.SameShape(blts[0]) {
			return nil, fmt.Errorf("%w: BLTS%d is %dx%d, BLTS1 is %dx%d", ErrShapeMismatch,
				i+1, b.Rows, b.Cols, blts[0].Rows, blts[0].Cols)
		}
	}
	m, known, err := parseMuxMode(mode)
	if err != nil {
		return nil, err
	}
	rows, cols := blts[0].Rows, blts[0].Cols
	out := new(Demuxed)
	if !known {
		for id := range out.ASR {
			out.ASR[id] = NaNSamples(rows, cols)
		}
		return out, nil
	}
	if err := gains.Validate(); err != nil {
		return nil, err
	}
	gamma, err := gains.Gamma(diffGain)
	if err != nil {
		return nil, err
	}

	out.Routings, _ = RoutingFor(m, dlrUsing12)
	for i, r := range out.Routings {
		s := NewSamples(rows, cols)
		floats.ScaleTo(s.Vals, 1/gains.slotGain(r.Dest, gamma), blts[i].Vals)
		out.ASR[r.Dest] = s
		out.Sources[r.Dest] = Source{Kind: FromBLTS, BLTS: i + 1, Category: r.Category}
	}

	if copied != nil {
		for _, r := range out.Routings {
			if err := copied(r.Dest, out.Sources[r.Dest], out.ASR[r.Dest]); err != nil {
				return nil, fmt.Errorf("%v: %w", r.Dest, err)
			}
		}
	}

	derive(out, relations(dlrUsing12), rows, cols)

	for id := range out.ASR {
		if out.Sources[id].Kind == Missing {
			out.ASR[id] = NaNSamples(rows, cols)
		}
	}
	return out, nil
}

// derive applies the relations until no more missing channels can be filled.
func derive(d *Demuxed, rels []relation, rows, cols int) {
	have := func(id ASRID) bool { return d.Sources[id].Kind != Missing }
	fill := func(id ASRID, vals []float64, from ...ASRID) {
		d.ASR[id] = Samples{Rows: rows, Cols: cols, Vals: vals}
		src := Source{Kind: Derived}
		for _, f := range from {
			if c := d.Sources[f].Category; c.IsStimulus() {
				src.Category = c
			}
		}
		d.Sources[id] = src
	}
	for changed := true; changed; {
		changed = false
		for _, r := range rels {
			s, a, b := d.ASR[r.sum].Vals, d.ASR[r.a].Vals, d.ASR[r.b].Vals
			n := rows * cols
			switch {
			case r.solvable[0] && !have(r.sum) && have(r.a) && have(r.b):
				fill(r.sum, floats.AddTo(make([]float64, n), a, b), r.a, r.b)
			case r.solvable[1] && !have(r.a) && have(r.sum) && have(r.b):
				fill(r.a, floats.SubTo(make([]float64, n), s, b), r.sum, r.b)
			case r.solvable[2] && !have(r.b) && have(r.sum) && have(r.a):
				fill(r.b, floats.SubTo(make([]float64, n), s, a), r.sum, r.a)
			default:
				continue
			}
			changed = true
		}
	}
}
