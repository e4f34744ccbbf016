package main

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/irfu/bicas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeFileExist(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	name, err := makeFileExist(dir, "config.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), name)
	_, err = os.Stat(name)
	assert.NoError(t, err)

	// An existing file is left alone.
	require.NoError(t, os.WriteFile(name, []byte("x: 1\n"), 0644))
	_, err = makeFileExist(dir, "config.yaml")
	require.NoError(t, err)
	contents, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "x: 1\n", string(contents))
}

func TestSegmentMessage(t *testing.T) {
	var s bicas.SegmentSummary
	s.Records = bicas.Segment{First: 4, Last: 8}
	s.Mode = bicas.JSONFloat(math.NaN())
	s.SampleRate = 256
	s.Mean[bicas.DCV1] = 1.5
	s.StdDev[bicas.ACV23] = 0.25
	s.Routing[0] = "DC_SINGLE{1}->DC_V1"
	s.NaNInputs = 2

	msg := segmentMessage(s)
	assert.Equal(t, 4, msg.First)
	assert.Equal(t, 8, msg.Last)
	assert.True(t, math.IsNaN(msg.Mode))
	assert.Equal(t, 256.0, msg.SampleRate)
	assert.Len(t, msg.Mean, bicas.NumASR)
	assert.Equal(t, 1.5, msg.Mean[bicas.DCV1])
	assert.Equal(t, 0.25, msg.StdDev[bicas.ACV23])
	assert.Len(t, msg.Routing, bicas.NumBLTS)
	assert.Equal(t, "DC_SINGLE{1}->DC_V1", msg.Routing[0])
	assert.Equal(t, 2, msg.NaNInputs)
	assert.Empty(t, msg.ID)
}

func TestWriteSimulated(t *testing.T) {
	dir := t.TempDir()
	cal := &bicas.Calibration{Gains: bicas.Gains{Alpha: 1, Beta: 1, GammaLow: 1, GammaHigh: 1}}
	require.NoError(t, writeSimulated(dir, 40, cal))
	ds, err := bicas.ReadDataset(dir)
	require.NoError(t, err)
	assert.Equal(t, 40, ds.NRecords())
	assert.Equal(t, 256, ds.BLTS[0].Cols)
	assert.Equal(t, 2.0, ds.Mode[39])
	assert.Equal(t, 1.0, ds.DiffGain[8])
}

func TestNewRunMessage(t *testing.T) {
	msg := newRunMessage("raw", "asr")
	assert.Equal(t, bicas.StartTime, msg.Start)
	assert.Equal(t, "raw", msg.Input)
	assert.Equal(t, "asr", msg.Output)
	assert.Equal(t, bicas.Build.Version, msg.Version)
	assert.NotEmpty(t, msg.ID)
	assert.NotEqual(t, msg.ID, newRunMessage("raw", "asr").ID)
}
