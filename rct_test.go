package bicas

import (
	"math"
	"math/cmplx"
	"strings"
	"testing"

	"github.com/irfu/bicas/tf"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
calibration:
  alpha: 0.5
  beta: 2
  gammalow: 5
  gammahigh: 100
  dlrusing12: false
application:
  detrenddegree: 0
  retrend: true
  cutofffraction: 0.9
transferfunctions:
  dcsingle:
    forward: true
    numerator: [1]
    denominator: [1, 0.001]
  dcdiff:
    numerator: [1, 0.002]
    denominator: [1]
  aclowgain:
    forward: true
    omega: [10, 100, 1000]
    amplitude: [1, 0.8, 0.2]
    phase: [0, -0.3, -1.0]
    interp: linear
    extendto: 2000
    extendpoints: 4
`

func readTestConfig(t *testing.T, text string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetCalibrationDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(text)))
	return v
}

func TestLoadCalibration(t *testing.T) {
	cal, err := LoadCalibration(readTestConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, Gains{Alpha: 0.5, Beta: 2, GammaLow: 5, GammaHigh: 100}, cal.Gains)
	assert.False(t, cal.DlrUsing12)
	assert.Equal(t, 0, cal.Options.DetrendDegree)
	assert.True(t, cal.Options.Retrend)
	assert.Equal(t, 0.9, cal.Options.CutoffFraction)

	single, ok := cal.TFs[TFDCSingle].(*tf.Rational)
	require.True(t, ok)
	assert.Equal(t, tf.ITF, single.Kind())
	assert.Equal(t, []float64{1, 0.001}, single.Numerator())

	diff, ok := cal.TFs[TFDCDiff].(*tf.Rational)
	require.True(t, ok)
	assert.Equal(t, tf.ITF, diff.Kind())

	ac, ok := cal.TFs[TFACLowGain].(*tf.Tabulated)
	require.True(t, ok)
	assert.Equal(t, tf.ITF, ac.Kind())
	assert.Equal(t, 7, ac.Len())
	assert.Equal(t, 2000.0, ac.MaxOmega())
	assert.InDelta(t, 5, cmplx.Abs(ac.Eval(1000)), 1e-12)

	assert.Nil(t, cal.TFs[TFACHighGain])
}

func TestLoadCalibrationDefaults(t *testing.T) {
	cal, err := LoadCalibration(readTestConfig(t, "calibration:\n  beta: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, Gains{Alpha: 1, Beta: 3, GammaLow: 1, GammaHigh: 1}, cal.Gains)
	assert.True(t, cal.DlrUsing12)
	assert.Equal(t, 1, cal.Options.DetrendDegree)
	for _, t2 := range cal.TFs {
		assert.Nil(t, t2)
	}
}

func TestLoadCalibrationErrors(t *testing.T) {
	configs := map[string]string{
		"zero gain":         "calibration:\n  alpha: 0\n",
		"bad cutoff":        "application:\n  cutofffraction: -1\n",
		"retrend only":      "application:\n  detrenddegree: -1\n  retrend: true\n",
		"unknown category":  "transferfunctions:\n  tds:\n    numerator: [1]\n    denominator: [1]\n",
		"no form":           "transferfunctions:\n  dcdiff:\n    forward: true\n",
		"both forms":        "transferfunctions:\n  dcdiff:\n    denominator: [1]\n    omega: [1, 2]\n",
		"vanishing ITF":     "transferfunctions:\n  dcdiff:\n    numerator: [1]\n    denominator: [1, 1]\n",
		"bad interpolation": "transferfunctions:\n  dcdiff:\n    omega: [1, 2]\n    amplitude: [1, 1]\n    phase: [0, 0]\n    interp: cubic\n",
	}
	for name, text := range configs {
		_, err := LoadCalibration(readTestConfig(t, text))
		assert.Error(t, err, name)
	}
}

func TestTFFor(t *testing.T) {
	var cal Calibration
	for i := range cal.TFs {
		c := float64(i + 1)
		cal.TFs[i] = tf.Func(func(float64) complex128 { return complex(c, 0) })
	}
	tests := []struct {
		id   ASRID
		dg   float64
		want complex128
	}{
		{DCV1, 0, 1}, {DCV3, math.NaN(), 1},
		{DCV12, 1, 2}, {DCV23, 0, 2},
		{ACV12, 0, 3}, {ACV13, 1, 4},
	}
	for _, tc := range tests {
		got, ok := cal.TFFor(tc.id, tc.dg)
		require.True(t, ok)
		assert.Equal(t, tc.want, got.Eval(0), "%v", tc.id)
	}
	_, ok := cal.TFFor(ACV23, math.NaN())
	assert.False(t, ok)

	cal.TFs[TFDCDiff] = nil
	_, ok = cal.TFFor(DCV13, 0)
	assert.False(t, ok)
}

func TestTFCategoryNames(t *testing.T) {
	for c := range NumTFCategories {
		parsed, err := ParseTFCategory(TFCategory(c).String())
		require.NoError(t, err)
		assert.Equal(t, TFCategory(c), parsed)
	}
	_, err := ParseTFCategory("tds")
	assert.Error(t, err)
}
