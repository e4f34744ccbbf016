package tf

import (
	"fmt"
	"math"
)

// Rational is a TF given as a ratio of two real polynomials in s = iω:
//
//	Z(ω) = (b0 + b1 s + b2 s² + ...) / (a0 + a1 s + a2 s² + ...)
//
// Real coefficients guarantee a real-valued impulse response.
type Rational struct {
	num  []float64 // ascending powers of s
	den  []float64
	kind Kind
}

// NewRational makes a rational TF from numerator and denominator coefficients
// in ascending powers of s = iω. Vanishing highest-order coefficients are dropped.
// An ITF whose numerator degree is below the denominator degree is rejected,
// since it would vanish at high frequency and so cannot be the inverse of any
// physical FTF.
func NewRational(num, den []float64, kind Kind) (*Rational, error) {
	for _, c := range append(append([]float64(nil), num...), den...) {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("tf: non-finite coefficient %v", c)
		}
	}
	r := &Rational{num: trimHighOrder(num), den: trimHighOrder(den), kind: kind}
	if len(r.den) == 0 {
		return nil, ErrZeroDenominator
	}
	if kind == ITF && r.ZeroAtHighFreq() {
		return nil, fmt.Errorf("%w: numerator degree %d, denominator degree %d",
			ErrNotInverted, r.NumDegree(), r.DenDegree())
	}
	return r, nil
}

// trimHighOrder returns a copy of c without its trailing zero coefficients.
func trimHighOrder(c []float64) []float64 {
	n := len(c)
	for n > 0 && c[n-1] == 0 {
		n--
	}
	out := make([]float64, n)
	copy(out, c[:n])
	return out
}

// polyval evaluates the polynomial with ascending coefficients c at s (Horner).
func polyval(c []float64, s complex128) complex128 {
	var v complex128
	for i := len(c) - 1; i >= 0; i-- {
		v = v*s + complex(c[i], 0)
	}
	return v
}

// Eval returns N(iω)/D(iω).
func (r *Rational) Eval(omega float64) complex128 {
	s := complex(0, omega)
	return polyval(r.num, s) / polyval(r.den, s)
}

// Kind reports whether r is an FTF or ITF.
func (r *Rational) Kind() Kind {
	return r.kind
}

// Numerator returns a copy of the numerator coefficients.
func (r *Rational) Numerator() []float64 {
	return append([]float64(nil), r.num...)
}

// Denominator returns a copy of the denominator coefficients.
func (r *Rational) Denominator() []float64 {
	return append([]float64(nil), r.den...)
}

// NumDegree is the numerator degree, or -1 for an identically zero numerator.
func (r *Rational) NumDegree() int {
	return len(r.num) - 1
}

// DenDegree is the denominator degree.
func (r *Rational) DenDegree() int {
	return len(r.den) - 1
}

// ZeroAtHighFreq reports whether |Z(ω)| → 0 as ω → ∞.
func (r *Rational) ZeroAtHighFreq() bool {
	return r.NumDegree() < r.DenDegree()
}

// Invert swaps numerator and denominator, turning an FTF into an ITF or back.
func (r *Rational) Invert() (*Rational, error) {
	inv, err := NewRational(r.den, r.num, r.kind.Flip())
	if err != nil {
		return nil, fmt.Errorf("inverting %s: %w", r.kind, err)
	}
	return inv, nil
}
