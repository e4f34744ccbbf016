package tfapply

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// indexDomain maps sample index i of n onto [0,1], which keeps the
// Vandermonde matrix well conditioned for long signals.
func indexDomain(i, n int) float64 {
	if n < 2 {
		return 0
	}
	return float64(i) / float64(n-1)
}

// fitPolynomial returns least-squares coefficients, in ascending order, of a
// degree-deg polynomial through y over the normalized index domain.
func fitPolynomial(y []float64, deg int) ([]float64, error) {
	n := len(y)
	ncoef := deg + 1
	if n < ncoef {
		return nil, fmt.Errorf("%w: %d samples, degree %d", ErrTooFewSamples, n, deg)
	}
	vander := mat.NewDense(n, ncoef, nil)
	for i := range n {
		x := indexDomain(i, n)
		p := 1.0
		for j := range ncoef {
			vander.Set(i, j, p)
			p *= x
		}
	}
	b := mat.NewVecDense(n, append([]float64(nil), y...))
	var c mat.VecDense
	if err := c.SolveVec(vander, b); err != nil {
		return nil, fmt.Errorf("tfapply: polynomial fit of degree %d failed: %w", deg, err)
	}
	return mat.Col(nil, 0, &c), nil
}

// evalPolynomial evaluates ascending coefficients at each of n index points.
func evalPolynomial(coefs []float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		x := indexDomain(i, n)
		var v float64
		for j := len(coefs) - 1; j >= 0; j-- {
			v = v*x + coefs[j]
		}
		out[i] = v
	}
	return out
}
