package bicas

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func writeNpy(t *testing.T, path string, val interface{}) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, npyio.Write(f, val))
}

func TestReadDataset(t *testing.T) {
	dir := t.TempDir()
	want := snapshotDataset(3, 5, 0)
	want.Mode[2] = nan
	require.NoError(t, WriteDataset(dir, want))

	got, err := ReadDataset(dir)
	require.NoError(t, err)
	assert.Equal(t, want.DiffGain, got.DiffGain)
	assert.Equal(t, want.SampleRate, got.SampleRate)
	assert.Equal(t, 0.0, got.Mode[0])
	assert.True(t, math.IsNaN(got.Mode[2]))
	for i := range want.BLTS {
		assert.Equal(t, want.BLTS[i], got.BLTS[i], "BLTS%d", i+1)
	}
}

func TestReadDatasetContinuous(t *testing.T) {
	dir := t.TempDir()
	writeNpy(t, filepath.Join(dir, modeFile), []float64{0, 0})
	writeNpy(t, filepath.Join(dir, diffGainFile), []float64{1, 1})
	writeNpy(t, filepath.Join(dir, sampleRateFile), []float64{16, 16})
	for i := range NumBLTS {
		writeNpy(t, filepath.Join(dir, bltsFile(i)), []float64{float64(i), float64(i + 1)})
	}
	ds, err := ReadDataset(dir)
	require.NoError(t, err)
	assert.Equal(t, Continuous([]float64{4, 5}), ds.BLTS[4])
}

func TestReadDatasetErrors(t *testing.T) {
	_, err := ReadDataset(t.TempDir())
	assert.ErrorIs(t, err, os.ErrNotExist)

	// Configuration sequences must be 1-D.
	dir := t.TempDir()
	require.NoError(t, WriteDataset(dir, snapshotDataset(2, 3, 0)))
	writeNpy(t, filepath.Join(dir, modeFile), mat.NewDense(2, 2, []float64{0, 0, 0, 0}))
	_, err = ReadDataset(dir)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	// Record counts must agree.
	dir = t.TempDir()
	require.NoError(t, WriteDataset(dir, snapshotDataset(2, 3, 0)))
	writeNpy(t, filepath.Join(dir, sampleRateFile), []float64{1, 1, 1})
	_, err = ReadDataset(dir)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	bad := snapshotDataset(2, 3, 0)
	bad.Mode = bad.Mode[:1]
	assert.ErrorIs(t, WriteDataset(t.TempDir(), bad), ErrShapeMismatch)
}

func TestProcessDatasetRoundTrip(t *testing.T) {
	in, outDir := t.TempDir(), filepath.Join(t.TempDir(), "asr")
	require.NoError(t, WriteDataset(in, snapshotDataset(4, 8, 3)))

	ds, err := ReadDataset(in)
	require.NoError(t, err)
	cal := &Calibration{Gains: unitGains, Options: allPassOptions}
	out, err := NewProcessor(cal, 1).Process(ds)
	require.NoError(t, err)
	require.NoError(t, WriteASR(outDir, out))

	for id := range NumASR {
		got, err := readSamples(filepath.Join(outDir, asrFile(ASRID(id))))
		require.NoError(t, err)
		require.True(t, got.SameShape(out.ASR[id]))
		for i, v := range out.ASR[id].Vals {
			if math.IsNaN(v) {
				assert.True(t, math.IsNaN(got.Vals[i]))
			} else {
				assert.Equal(t, v, got.Vals[i])
			}
		}
	}
}
