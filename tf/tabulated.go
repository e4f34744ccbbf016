package tf

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/interp"
)

// Interp selects how amplitude is interpolated between table rows. Phase is
// always interpolated linearly.
type Interp int

// Interpolation methods.
const (
	InterpLogLinear Interp = iota // linear in log(amplitude)
	InterpLinear                  // linear in amplitude
)

// AmpExtrapolation selects the amplitude law above the last table row.
type AmpExtrapolation int

// Amplitude extrapolation laws.
const (
	// AmpExponential continues the log-amplitude slope of the last two rows,
	// but never lets the amplitude grow. A rising table is held constant.
	AmpExponential AmpExtrapolation = iota
	AmpConstant
	AmpZero
)

// PhaseExtrapolation selects the phase law above the last table row.
type PhaseExtrapolation int

// Phase extrapolation laws.
const (
	// PhaseLinear continues the slope of the last two rows.
	PhaseLinear PhaseExtrapolation = iota
	PhaseConstant
	// PhaseExponential decays toward zero with e-folding frequency ω_last.
	PhaseExponential
)

// Extrapolation is the policy a Tabulated TF follows between and beyond its rows.
// The zero value is log-linear interpolation, exponential amplitude decay and
// linear phase.
type Extrapolation struct {
	Interp Interp
	Amp    AmpExtrapolation
	Phase  PhaseExtrapolation
}

// Tabulated is a TF given as rows of (ω, amplitude, phase) with strictly
// increasing, non-negative ω. Below the first row the amplitude is held and the
// phase goes linearly to zero at ω=0, so Z(0) is real.
type Tabulated struct {
	omega []float64
	amp   []float64
	phase []float64
	kind  Kind
	ext   Extrapolation

	// ampFit interpolates amplitude or log(amplitude), per ext.Interp.
	ampFit   interp.PiecewiseLinear
	phaseFit interp.PiecewiseLinear

	decay float64 // amplitude e-folding rate above the table, ≥ 0
	slope float64 // phase slope above the table
}

// NewTabulated checks and stores a table of TF values. The slices are copied.
func NewTabulated(omega, amp, phase []float64, kind Kind, ext Extrapolation) (*Tabulated, error) {
	n := len(omega)
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 rows, have %d", ErrInvalidTable, n)
	}
	if len(amp) != n || len(phase) != n {
		return nil, fmt.Errorf("%w: %d frequencies, %d amplitudes, %d phases",
			ErrInvalidTable, n, len(amp), len(phase))
	}
	for i := range n {
		if math.IsNaN(omega[i]) || math.IsInf(omega[i], 0) || omega[i] < 0 {
			return nil, fmt.Errorf("%w: bad frequency %v in row %d", ErrInvalidTable, omega[i], i)
		}
		if i > 0 && omega[i] <= omega[i-1] {
			return nil, fmt.Errorf("%w: frequencies not strictly increasing at row %d", ErrInvalidTable, i)
		}
		if math.IsNaN(amp[i]) || math.IsInf(amp[i], 0) || amp[i] < 0 {
			return nil, fmt.Errorf("%w: bad amplitude %v in row %d", ErrInvalidTable, amp[i], i)
		}
		if ext.Interp == InterpLogLinear && amp[i] == 0 {
			return nil, fmt.Errorf("%w: zero amplitude in row %d with log-linear interpolation", ErrInvalidTable, i)
		}
		if math.IsNaN(phase[i]) || math.IsInf(phase[i], 0) {
			return nil, fmt.Errorf("%w: bad phase %v in row %d", ErrInvalidTable, phase[i], i)
		}
	}

	t := &Tabulated{
		omega: append([]float64(nil), omega...),
		amp:   append([]float64(nil), amp...),
		phase: append([]float64(nil), phase...),
		kind:  kind,
		ext:   ext,
	}
	ys := t.amp
	if ext.Interp == InterpLogLinear {
		ys = make([]float64, n)
		for i, a := range t.amp {
			ys[i] = math.Log(a)
		}
	}
	if err := t.ampFit.Fit(t.omega, ys); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	if err := t.phaseFit.Fit(t.omega, t.phase); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}

	dw := t.omega[n-1] - t.omega[n-2]
	if t.amp[n-1] > 0 && t.amp[n-2] > 0 {
		t.decay = -math.Log(t.amp[n-1]/t.amp[n-2]) / dw
	}
	if t.decay < 0 || math.IsNaN(t.decay) {
		t.decay = 0
	}
	t.slope = (t.phase[n-1] - t.phase[n-2]) / dw
	return t, nil
}

// Kind reports whether t is an FTF or ITF.
func (t *Tabulated) Kind() Kind {
	return t.kind
}

// Extrapolation returns the policy t was built with.
func (t *Tabulated) Extrapolation() Extrapolation {
	return t.ext
}

// Len is the number of table rows.
func (t *Tabulated) Len() int {
	return len(t.omega)
}

// Rows returns copies of the table columns.
func (t *Tabulated) Rows() (omega, amp, phase []float64) {
	return append([]float64(nil), t.omega...),
		append([]float64(nil), t.amp...),
		append([]float64(nil), t.phase...)
}

// MaxOmega is the highest tabulated frequency.
func (t *Tabulated) MaxOmega() float64 {
	return t.omega[len(t.omega)-1]
}

// Eval returns the interpolated or extrapolated value at omega. Negative
// frequencies give the complex conjugate, as for any real impulse response.
func (t *Tabulated) Eval(omega float64) complex128 {
	if math.IsNaN(omega) {
		return cmplx.NaN()
	}
	if omega < 0 {
		return cmplx.Conj(t.Eval(-omega))
	}
	a, p := t.ampPhase(omega)
	return cmplx.Rect(a, p)
}

func (t *Tabulated) ampPhase(omega float64) (amp, phase float64) {
	n := len(t.omega)
	first, last := t.omega[0], t.omega[n-1]
	switch {
	case omega < first:
		// first > 0 here, since omega >= 0.
		return t.amp[0], t.phase[0] * omega / first

	case omega <= last:
		a := t.ampFit.Predict(omega)
		if t.ext.Interp == InterpLogLinear {
			a = math.Exp(a)
		}
		return a, t.phaseFit.Predict(omega)
	}

	dw := omega - last
	switch t.ext.Amp {
	case AmpExponential:
		amp = t.amp[n-1] * math.Exp(-t.decay*dw)
	case AmpConstant:
		amp = t.amp[n-1]
	case AmpZero:
		amp = 0
	}
	switch t.ext.Phase {
	case PhaseLinear:
		phase = t.phase[n-1] + t.slope*dw
	case PhaseConstant:
		phase = t.phase[n-1]
	case PhaseExponential:
		phase = t.phase[n-1] * math.Exp(-dw/last)
	}
	return amp, phase
}

// ZeroAtHighFreq reports whether the extrapolated amplitude tends to zero.
func (t *Tabulated) ZeroAtHighFreq() bool {
	switch t.ext.Amp {
	case AmpZero:
		return true
	case AmpExponential:
		return t.decay > 0
	}
	return false
}

// Invert reciprocates the amplitude and negates the phase of every row.
func (t *Tabulated) Invert() (*Tabulated, error) {
	n := len(t.omega)
	amp := make([]float64, n)
	phase := make([]float64, n)
	for i := range n {
		if t.amp[i] == 0 {
			return nil, fmt.Errorf("%w: zero amplitude at ω=%g", ErrNotInvertible, t.omega[i])
		}
		amp[i] = 1 / t.amp[i]
		phase[i] = -t.phase[i]
	}
	inv, err := NewTabulated(t.omega, amp, phase, t.kind.Flip(), t.ext)
	if err != nil {
		return nil, err
	}
	if inv.kind == ITF && inv.ZeroAtHighFreq() {
		return nil, fmt.Errorf("%w: tabulated inverse extrapolates to zero", ErrNotInverted)
	}
	return inv, nil
}

// Extend returns a copy of t with n synthetic rows appended, evenly spaced up
// to omegaMax and following t's extrapolation policy. This lets calibration of
// continuous waveforms use frequencies slightly above the characterized range.
func (t *Tabulated) Extend(omegaMax float64, n int) (*Tabulated, error) {
	last := t.MaxOmega()
	if n < 1 {
		return nil, fmt.Errorf("%w: cannot extend by %d rows", ErrInvalidTable, n)
	}
	if !(omegaMax > last) || math.IsInf(omegaMax, 0) {
		return nil, fmt.Errorf("%w: extension limit %g not above table limit %g", ErrInvalidTable, omegaMax, last)
	}
	omega, amp, phase := t.Rows()
	step := (omegaMax - last) / float64(n)
	for i := 1; i <= n; i++ {
		w := last + step*float64(i)
		if i == n {
			w = omegaMax
		}
		a, p := t.ampPhase(w)
		omega = append(omega, w)
		amp = append(amp, a)
		phase = append(phase, p)
	}
	return NewTabulated(omega, amp, phase, t.kind, t.ext)
}
