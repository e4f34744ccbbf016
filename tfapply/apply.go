// Package tfapply applies a transfer function to an evenly sampled real signal
// in the frequency domain, with optional polynomial detrending before and
// retrending after.
package tfapply

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/irfu/bicas/tf"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// Application errors.
var (
	ErrBadSampling           = errors.New("tfapply: sample spacing must be positive and finite")
	ErrBadCutoff             = errors.New("tfapply: cutoff fraction must be positive")
	ErrRetrendWithoutDetrend = errors.New("tfapply: retrending requires detrending")
	ErrTooFewSamples         = errors.New("tfapply: too few samples for detrending polynomial")
	ErrNonFiniteTF           = errors.New("tfapply: transfer function is not finite")
)

// Options configures Apply.
type Options struct {
	// DetrendDegree is the degree of the polynomial fitted and removed before
	// the TF is applied. A negative degree disables detrending.
	DetrendDegree int

	// Retrend adds the removed polynomial back afterward, scaled by TF(ω=0).
	// This is only meaningful for TFs that are lowpass-like near ω=0.
	Retrend bool

	// CutoffFraction is the fraction of the Nyquist frequency above which the
	// applied TF is forced to zero. Values ≥ 1 leave every bin untouched.
	CutoffFraction float64
}

// DefaultOptions returns the options used for routine calibration.
func DefaultOptions() Options {
	return Options{
		DetrendDegree:  1,
		Retrend:        true,
		CutoffFraction: 0.8,
	}
}

// Validate checks the options without regard to any signal.
func (o Options) Validate() error {
	if !(o.CutoffFraction > 0) {
		return fmt.Errorf("%w: %v", ErrBadCutoff, o.CutoffFraction)
	}
	if o.Retrend && o.DetrendDegree < 0 {
		return ErrRetrendWithoutDetrend
	}
	return nil
}

// Result holds the calibrated signal and the intermediate artifacts.
type Result struct {
	Y2          []float64 // final output
	Y1B         []float64 // input after detrending
	Y2B         []float64 // detrended input after the TF
	EffectiveTF tf.TF     // the TF with the high-frequency cutoff applied
	TrendCoefs  []float64 // fitted polynomial over the normalized index domain; nil without detrending
}

// Apply calibrates y, sampled every dt seconds, with transfer function t.
func Apply(dt float64, y []float64, t tf.TF, opts Options) (*Result, error) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return nil, fmt.Errorf("%w: dt=%v", ErrBadSampling, dt)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	nyquist := math.Pi / dt
	res := &Result{EffectiveTF: tf.Cutoff(t, opts.CutoffFraction*nyquist)}
	n := len(y)
	if n == 0 {
		res.Y2, res.Y1B, res.Y2B = []float64{}, []float64{}, []float64{}
		return res, nil
	}

	var trend []float64
	res.Y1B = append([]float64(nil), y...)
	if opts.DetrendDegree >= 0 {
		coefs, err := fitPolynomial(y, opts.DetrendDegree)
		if err != nil {
			return nil, err
		}
		trend = evalPolynomial(coefs, n)
		floats.Sub(res.Y1B, trend)
		res.TrendCoefs = coefs
	}

	y2b, err := applyFreq(dt, res.Y1B, res.EffectiveTF)
	if err != nil {
		return nil, err
	}
	res.Y2B = y2b
	res.Y2 = append([]float64(nil), y2b...)

	if opts.Retrend {
		z0 := res.EffectiveTF.Eval(0)
		if cmplx.IsNaN(z0) || cmplx.IsInf(z0) {
			return nil, fmt.Errorf("%w: TF(0)=%v", ErrNonFiniteTF, z0)
		}
		floats.AddScaled(res.Y2, real(z0), trend)
	}
	return res, nil
}

// BinOmega is the angular frequency of bin k of an n-point DFT with spacing dt.
func BinOmega(k, n int, dt float64) float64 {
	return 2 * math.Pi * float64(k) / (float64(n) * dt)
}

// applyFreq multiplies the spectrum of y by the TF and transforms back. Only the
// non-negative half of the spectrum is stored; the negative half is its
// conjugate, which is correct for TFs with a real impulse response. The DC and
// Nyquist bins are forced real so that the result is real.
func applyFreq(dt float64, y []float64, t tf.TF) ([]float64, error) {
	n := len(y)
	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, y)
	for k := range coeff {
		omega := BinOmega(k, n, dt)
		z := t.Eval(omega)
		if cmplx.IsNaN(z) || cmplx.IsInf(z) {
			return nil, fmt.Errorf("%w: TF(%g rad/s)=%v", ErrNonFiniteTF, omega, z)
		}
		coeff[k] *= z
	}
	coeff[0] = complex(real(coeff[0]), 0)
	if n%2 == 0 {
		last := len(coeff) - 1
		coeff[last] = complex(real(coeff[last]), 0)
	}
	out := fft.Sequence(nil, coeff)
	floats.Scale(1/float64(n), out)
	return out, nil
}
