// Package tf holds the transfer-function model used to calibrate BIAS signals.
//
// A transfer function (TF) maps angular frequency ω (rad/s) to a complex gain.
// Forward transfer functions (FTF) describe how the instrument turns a physical
// input into a measured output; inverse transfer functions (ITF) go the other
// way and are what calibration multiplies measured spectra by. All TF values are
// immutable after construction and safe for concurrent evaluation.
package tf

import (
	"errors"
	"fmt"
)

// TF errors.
var (
	ErrZeroDenominator = errors.New("tf: denominator polynomial is identically zero")
	ErrNotInverted     = errors.New("tf: inverse transfer function tends to zero at high frequency")
	ErrNotInvertible   = errors.New("tf: transfer function cannot be inverted")
	ErrInvalidTable    = errors.New("tf: invalid tabulated transfer function")
)

// TF is anything that can be evaluated at an angular frequency.
type TF interface {
	Eval(omega float64) complex128
}

// Kind tells whether a TF is forward (physical input to output) or inverse.
type Kind int

// The two TF directions.
const (
	FTF Kind = iota
	ITF
)

func (k Kind) String() string {
	switch k {
	case FTF:
		return "FTF"
	case ITF:
		return "ITF"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Flip returns the opposite direction.
func (k Kind) Flip() Kind {
	if k == FTF {
		return ITF
	}
	return FTF
}

// Func adapts an ordinary function to the TF interface.
type Func func(omega float64) complex128

// Eval calls f(omega).
func (f Func) Eval(omega float64) complex128 {
	return f(omega)
}

// Identity is the all-pass TF, equal to 1 at every frequency.
var Identity TF = Func(func(float64) complex128 { return 1 })

// Cutoff wraps t so that it is exactly zero where |ω| > omegaMax. The
// wrapped TF is not modified.
func Cutoff(t TF, omegaMax float64) TF {
	return Func(func(omega float64) complex128 {
		if omega > omegaMax || omega < -omegaMax {
			return 0
		}
		return t.Eval(omega)
	})
}

// Compose returns the product of the given TFs, as for a chain of filters
// applied one after another.
func Compose(tfs ...TF) TF {
	chain := append([]TF(nil), tfs...)
	return Func(func(omega float64) complex128 {
		z := complex(1, 0)
		for _, t := range chain {
			z *= t.Eval(omega)
		}
		return z
	})
}

// Invert returns the inverse of a Rational or Tabulated TF.
func Invert(t TF) (TF, error) {
	switch v := t.(type) {
	case *Rational:
		inv, err := v.Invert()
		if err != nil {
			return nil, err
		}
		return inv, nil
	case *Tabulated:
		inv, err := v.Invert()
		if err != nil {
			return nil, err
		}
		return inv, nil
	}
	return nil, fmt.Errorf("%w: unsupported type %T", ErrNotInvertible, t)
}
