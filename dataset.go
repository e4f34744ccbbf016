package bicas

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// Names of the .npy files making up a dataset directory.
const (
	modeFile       = "mode.npy"
	diffGainFile   = "diffgain.npy"
	sampleRateFile = "samplerate.npy"
)

func bltsFile(i int) string {
	return fmt.Sprintf("blts%d.npy", i+1)
}

func asrFile(id ASRID) string {
	return id.String() + ".npy"
}

// ReadDataset reads one dataset from the .npy files in dir. The per-record
// configuration files are 1-D; the BLTS files are 2-D (records x samples), or
// 1-D for continuous data with one sample per record.
func ReadDataset(dir string) (*Dataset, error) {
	ds := new(Dataset)
	var err error
	if ds.Mode, err = readVector(filepath.Join(dir, modeFile)); err != nil {
		return nil, err
	}
	if ds.DiffGain, err = readVector(filepath.Join(dir, diffGainFile)); err != nil {
		return nil, err
	}
	if ds.SampleRate, err = readVector(filepath.Join(dir, sampleRateFile)); err != nil {
		return nil, err
	}
	for i := range ds.BLTS {
		if ds.BLTS[i], err = readSamples(filepath.Join(dir, bltsFile(i))); err != nil {
			return nil, err
		}
	}
	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", dir, err)
	}
	return ds, nil
}

// WriteDataset writes ds to dir in the layout ReadDataset expects, creating
// dir if needed.
func WriteDataset(dir string, ds *Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for name, vals := range map[string][]float64{
		modeFile:       ds.Mode,
		diffGainFile:   ds.DiffGain,
		sampleRateFile: ds.SampleRate,
	} {
		if err := writeSamples(filepath.Join(dir, name), Continuous(vals)); err != nil {
			return err
		}
	}
	for i, b := range ds.BLTS {
		if err := writeSamples(filepath.Join(dir, bltsFile(i)), b); err != nil {
			return err
		}
	}
	return nil
}

// WriteASR writes each calibrated ASR channel to dir as <name>.npy, creating
// dir if needed.
func WriteASR(dir string, out *Output) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for id := range NumASR {
		if err := writeSamples(filepath.Join(dir, asrFile(ASRID(id))), out.ASR[id]); err != nil {
			return err
		}
	}
	return nil
}

func readVector(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if shape := r.Header.Descr.Shape; len(shape) != 1 {
		return nil, fmt.Errorf("%s: %w: shape %v, want 1-D", path, ErrShapeMismatch, shape)
	}
	var vals []float64
	if err := r.Read(&vals); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return vals, nil
}

func readSamples(path string) (Samples, error) {
	f, err := os.Open(path)
	if err != nil {
		return Samples{}, err
	}
	defer f.Close()
	r, err := npyio.NewReader(f)
	if err != nil {
		return Samples{}, fmt.Errorf("%s: %w", path, err)
	}
	shape := r.Header.Descr.Shape
	switch {
	case len(shape) == 1:
		var vals []float64
		if err := r.Read(&vals); err != nil {
			return Samples{}, fmt.Errorf("%s: %w", path, err)
		}
		return Continuous(vals), nil
	case len(shape) == 2 && (shape[0] == 0 || shape[1] == 0):
		// mat.Dense cannot hold an empty matrix.
		return NewSamples(shape[0], shape[1]), nil
	case len(shape) == 2:
		var m mat.Dense
		if err := r.Read(&m); err != nil {
			return Samples{}, fmt.Errorf("%s: %w", path, err)
		}
		rows, cols := m.Dims()
		s := NewSamples(rows, cols)
		for i := range rows {
			mat.Row(s.Row(i), i, &m)
		}
		return s, nil
	}
	return Samples{}, fmt.Errorf("%s: %w: shape %v, want 1-D or 2-D", path, ErrShapeMismatch, shape)
}

func writeSamples(path string, s Samples) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if s.Cols == 1 || s.Rows == 0 || s.Cols == 0 {
		err = npyio.Write(f, s.Vals)
	} else {
		err = npyio.Write(f, mat.NewDense(s.Rows, s.Cols, s.Vals))
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
