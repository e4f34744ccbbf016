package bicas

import (
	"fmt"
	"math"
)

// refVoltage is the potential of the internal 2.5 V reference.
const refVoltage = 2.5

// SimSource synthesizes triangle-wave potentials at the three antennas, each
// antenna a third of a cycle behind the previous one. It can turn them into
// the raw BLTS data the instrument would record in any mux mode.
type SimSource struct {
	SampleRate float64 // samples per second
	CycleLen   int     // samples per triangle cycle
	Pedestal   [3]float64
	Amplitude  [3]float64 // peak-to-peak
}

// NewSimSource creates a SimSource with distinct signals on each antenna.
func NewSimSource(rate float64) *SimSource {
	return &SimSource{
		SampleRate: rate,
		CycleLen:   64,
		Pedestal:   [3]float64{1, -0.5, 0.25},
		Amplitude:  [3]float64{2, 1, 0.5},
	}
}

// potential is the triangle wave at antenna ant (0..2) and sample idx.
func (ss *SimSource) potential(ant, idx int) float64 {
	half := ss.CycleLen / 2
	pos := (idx + ant*ss.CycleLen/3) % ss.CycleLen
	if pos >= half {
		pos = ss.CycleLen - pos
	}
	return ss.Pedestal[ant] + ss.Amplitude[ant]*float64(pos)/float64(half)
}

// truth returns the value each ASR channel sees at one sample. AC channels see
// the same differences as the DC ones.
func (ss *SimSource) truth(idx int) (vals [NumASR]float64) {
	var p [3]float64
	for ant := range p {
		p[ant] = ss.potential(ant, idx)
	}
	vals[DCV1], vals[DCV2], vals[DCV3] = p[0], p[1], p[2]
	vals[DCV12], vals[DCV13], vals[DCV23] = p[0]-p[1], p[0]-p[2], p[1]-p[2]
	vals[ACV12], vals[ACV13], vals[ACV23] = p[0]-p[1], p[0]-p[2], p[1]-p[2]
	return vals
}

// Simulate builds a dataset of len(mode) records of nsamp samples each, and
// also returns the true ASR signals. Records with an unknown (NaN) mode hold
// NaN raw data. Channels fed by a stimulus record the stimulus, not the truth.
func (ss *SimSource) Simulate(mode, diffGain []float64, nsamp int, dlrUsing12 bool, gains Gains) (*Dataset, [NumASR]Samples, error) {
	var truth [NumASR]Samples
	nrec := len(mode)
	if len(diffGain) != nrec {
		return nil, truth, fmt.Errorf("%w: %d modes, %d diff gains", ErrShapeMismatch, nrec, len(diffGain))
	}
	if ss.CycleLen < 2 || !(ss.SampleRate > 0) {
		return nil, truth, fmt.Errorf("simulated source needs CycleLen ≥ 2 and a positive rate, have %d and %v",
			ss.CycleLen, ss.SampleRate)
	}
	if err := gains.Validate(); err != nil {
		return nil, truth, err
	}

	ds := &Dataset{
		Mode:       append([]float64(nil), mode...),
		DiffGain:   append([]float64(nil), diffGain...),
		SampleRate: make([]float64, nrec),
	}
	for id := range truth {
		truth[id] = NewSamples(nrec, nsamp)
	}
	for i := range ds.BLTS {
		ds.BLTS[i] = NewSamples(nrec, nsamp)
	}

	for rec := range nrec {
		ds.SampleRate[rec] = ss.SampleRate
		m, known, err := parseMuxMode(mode[rec])
		if err != nil {
			return nil, truth, fmt.Errorf("record %d: %w", rec, err)
		}
		gamma, err := gains.Gamma(diffGain[rec])
		if err != nil {
			return nil, truth, fmt.Errorf("record %d: %w", rec, err)
		}
		var routings [NumBLTS]Routing
		if known {
			routings, _ = RoutingFor(m, dlrUsing12)
		}

		for j := range nsamp {
			idx := rec*nsamp + j
			vals := ss.truth(idx)
			for id := range truth {
				truth[id].Vals[idx] = vals[id]
			}
			for i, r := range routings {
				var v float64
				switch {
				case !known:
					v = math.NaN()
				case r.Category == Ground:
					v = 0
				case r.Category == Ref25V:
					v = refVoltage
				default:
					v = vals[r.Dest]
				}
				ds.BLTS[i].Vals[idx] = v * gains.slotGain(r.Dest, gamma)
			}
		}
	}
	return ds, truth, nil
}
