package tfapply

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/irfu/bicas/tf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertClose(t *testing.T, want, got []float64, tol float64, label string) {
	t.Helper()
	require.Len(t, got, len(want), label)
	for i := range want {
		if math.Abs(want[i]-got[i]) > tol {
			t.Errorf("%s[%d] = %v, want %v", label, i, got[i], want[i])
		}
	}
}

func TestDetrendRetrendIdempotent(t *testing.T) {
	y := []float64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5}
	opts := Options{DetrendDegree: 0, Retrend: true, CutoffFraction: 1}
	res, err := Apply(0.1, y, tf.Identity, opts)
	require.NoError(t, err)
	assertClose(t, y, res.Y2, 1e-12, "Y2")

	mean := 44.0 / 11
	want1B := make([]float64, len(y))
	for i, v := range y {
		want1B[i] = v - mean
	}
	assertClose(t, want1B, res.Y1B, 1e-12, "Y1B")
	assertClose(t, want1B, res.Y2B, 1e-12, "Y2B")
	require.Len(t, res.TrendCoefs, 1)
	assert.InDelta(t, mean, res.TrendCoefs[0], 1e-12)
}

func TestConstantGain(t *testing.T) {
	y := []float64{0, 1, 4, 9, 16, 25, 36, 49}
	double := tf.Func(func(float64) complex128 { return 2 })
	for _, deg := range []int{-1, 0, 1, 2} {
		opts := Options{DetrendDegree: deg, Retrend: deg >= 0, CutoffFraction: 1}
		res, err := Apply(1, y, double, opts)
		require.NoError(t, err)
		want := make([]float64, len(y))
		for i, v := range y {
			want[i] = 2 * v
		}
		assertClose(t, want, res.Y2, 1e-10, "Y2")
	}
}

func TestSinusoidThroughLowpass(t *testing.T) {
	const n = 64
	const dt = 1e-3
	lp, err := tf.NewRational([]float64{1}, []float64{1, 1 / (2 * math.Pi * 100)}, tf.FTF)
	require.NoError(t, err)

	omega := BinOmega(8, n, dt) // 125 Hz, exactly on a DFT bin
	z := lp.Eval(omega)
	y := make([]float64, n)
	want := make([]float64, n)
	for i := range y {
		ti := float64(i) * dt
		y[i] = math.Cos(omega * ti)
		want[i] = cmplx.Abs(z) * math.Cos(omega*ti+cmplx.Phase(z))
	}
	res, err := Apply(dt, y, lp, Options{DetrendDegree: -1, CutoffFraction: 1})
	require.NoError(t, err)
	assertClose(t, want, res.Y2, 1e-12, "Y2")
	assert.Nil(t, res.TrendCoefs)
	assertClose(t, y, res.Y1B, 0, "Y1B")
}

func TestCutoff(t *testing.T) {
	const n = 32
	const dt = 0.5
	omega := BinOmega(12, n, dt) // 0.75 of Nyquist
	y := make([]float64, n)
	for i := range y {
		y[i] = math.Sin(omega * float64(i) * dt)
	}

	res, err := Apply(dt, y, tf.Identity, Options{DetrendDegree: -1, CutoffFraction: 0.8})
	require.NoError(t, err)
	assertClose(t, y, res.Y2, 1e-12, "Y2 below cutoff")

	res, err = Apply(dt, y, tf.Identity, Options{DetrendDegree: -1, CutoffFraction: 0.5})
	require.NoError(t, err)
	assertClose(t, make([]float64, n), res.Y2, 1e-12, "Y2 above cutoff")
	assert.Equal(t, complex128(0), res.EffectiveTF.Eval(omega))
	assert.Equal(t, complex128(1), res.EffectiveTF.Eval(0))
}

func TestRetrendLowpass(t *testing.T) {
	// A pure ramp is entirely trend: the filtered residual is zero and the
	// retrended output equals the input, since the lowpass has TF(0)=1.
	const n = 50
	y := make([]float64, n)
	for i := range y {
		y[i] = 3 + 0.25*float64(i)
	}
	lp, err := tf.NewRational([]float64{1}, []float64{1, 0.3}, tf.FTF)
	require.NoError(t, err)
	res, err := Apply(0.01, y, lp, DefaultOptions())
	require.NoError(t, err)
	assertClose(t, make([]float64, n), res.Y1B, 1e-10, "Y1B")
	assertClose(t, make([]float64, n), res.Y2B, 1e-10, "Y2B")
	assertClose(t, y, res.Y2, 1e-10, "Y2")
}

func TestApplyErrors(t *testing.T) {
	y := []float64{1, 2, 3}
	tests := []struct {
		name string
		dt   float64
		opts Options
		tf   tf.TF
		want error
	}{
		{"zero dt", 0, DefaultOptions(), tf.Identity, ErrBadSampling},
		{"NaN dt", math.NaN(), DefaultOptions(), tf.Identity, ErrBadSampling},
		{"zero cutoff", 1, Options{DetrendDegree: 0, CutoffFraction: 0}, tf.Identity, ErrBadCutoff},
		{"retrend only", 1, Options{DetrendDegree: -1, Retrend: true, CutoffFraction: 1}, tf.Identity, ErrRetrendWithoutDetrend},
		{"degree too high", 1, Options{DetrendDegree: 3, CutoffFraction: 1}, tf.Identity, ErrTooFewSamples},
		{"NaN TF", 1, Options{DetrendDegree: -1, CutoffFraction: 1},
			tf.Func(func(float64) complex128 { return cmplx.NaN() }), ErrNonFiniteTF},
	}
	for _, tc := range tests {
		_, err := Apply(tc.dt, y, tc.tf, tc.opts)
		assert.ErrorIs(t, err, tc.want, tc.name)
	}
}

func TestEmptyAndSingle(t *testing.T) {
	res, err := Apply(1, nil, tf.Identity, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, res.Y2)
	assert.Empty(t, res.Y1B)
	assert.Empty(t, res.Y2B)

	res, err = Apply(1, []float64{7}, tf.Identity, Options{DetrendDegree: 0, Retrend: true, CutoffFraction: 1})
	require.NoError(t, err)
	assertClose(t, []float64{7}, res.Y2, 1e-12, "Y2")
}
