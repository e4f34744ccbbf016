package bicas

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/irfu/bicas/tf"
	"github.com/irfu/bicas/tfapply"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Dataset holds the raw channels of one processing run together with the
// configuration of every record, already interpolated onto the record times.
type Dataset struct {
	Mode       []float64 // mux mode per record, NaN if unknown
	DiffGain   []float64 // differential gain per record: 0, 1 or NaN
	SampleRate []float64 // samples per second within each record
	BLTS       [NumBLTS]Samples
}

// NRecords is the number of records.
func (ds *Dataset) NRecords() int {
	return len(ds.Mode)
}

// Validate checks that every per-record sequence and every BLTS agree on the
// number of records, and that all BLTS share a shape.
func (ds *Dataset) Validate() error {
	n := ds.NRecords()
	if len(ds.DiffGain) != n || len(ds.SampleRate) != n {
		return fmt.Errorf("%w: %d modes, %d diff gains, %d sample rates",
			ErrShapeMismatch, n, len(ds.DiffGain), len(ds.SampleRate))
	}
	for i, b := range ds.BLTS {
		if !b.Valid() || b.Rows != n || b.Cols != ds.BLTS[0].Cols {
			return fmt.Errorf("%w: BLTS%d is %dx%d with %d values, want %d records of %d samples",
				ErrShapeMismatch, i+1, b.Rows, b.Cols, len(b.Vals), n, ds.BLTS[0].Cols)
		}
	}
	return nil
}

// SegmentSummary describes how one segment was processed.
type SegmentSummary struct {
	Records    Segment
	Mode       JSONFloat
	DiffGain   JSONFloat
	SampleRate JSONFloat
	Routing    [NumBLTS]string
	Sources    [NumASR]string
	Mean       [NumASR]JSONFloat // over the finite calibrated values
	StdDev     [NumASR]JSONFloat

	// NaNInputs counts the sequences left uncalibrated because they held NaN.
	NaNInputs int
}

// Output is the calibrated ASR data of a whole dataset.
type Output struct {
	ASR      [NumASR]Samples
	Segments []SegmentSummary
}

// Processor runs the whole chain: split the records by configuration, route
// each segment, then calibrate each ASR channel with its transfer function.
type Processor struct {
	Cal     *Calibration
	Workers int                 // segments processed at once; less than 1 means 1
	Updates chan<- ClientUpdate // if not nil, gets one "SEGMENT" update per segment
}

// NewProcessor creates a Processor for one calibration.
func NewProcessor(cal *Calibration, workers int) *Processor {
	return &Processor{Cal: cal, Workers: workers}
}

// Process calibrates a dataset. Segments are independent, so they run in
// parallel; each writes only its own records of the output.
func (p *Processor) Process(ds *Dataset) (*Output, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	if err := p.Cal.Validate(); err != nil {
		return nil, err
	}
	segments, err := SplitByValues(ds.Mode, ds.DiffGain, ds.SampleRate)
	if err != nil {
		return nil, err
	}

	n, cols := ds.NRecords(), ds.BLTS[0].Cols
	out := &Output{Segments: make([]SegmentSummary, len(segments))}
	for id := range out.ASR {
		out.ASR[id] = NaNSamples(n, cols)
	}

	workers := max(p.Workers, 1)
	sem := make(chan struct{}, workers)
	errs := make([]error, len(segments))
	var wg sync.WaitGroup
	for i, seg := range segments {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			out.Segments[i], errs[i] = p.processSegment(ds, seg, out)
		}()
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if p.Updates != nil {
		for _, s := range out.Segments {
			p.Updates <- ClientUpdate{Tag: "SEGMENT", State: s}
		}
	}
	return out, nil
}

func (p *Processor) processSegment(ds *Dataset, seg Segment, out *Output) (SegmentSummary, error) {
	mode, dg, rate := ds.Mode[seg.First], ds.DiffGain[seg.First], ds.SampleRate[seg.First]
	summary := SegmentSummary{Records: seg, Mode: JSONFloat(mode), DiffGain: JSONFloat(dg), SampleRate: JSONFloat(rate)}

	var blts [NumBLTS]Samples
	for i := range blts {
		blts[i] = ds.BLTS[i].Records(seg.First, seg.Last)
	}
	// Each BLTS is calibrated with its own TF before the missing channels are
	// derived, so the calibrated ASR obey the redundancy identities.
	calibrate := func(id ASRID, src Source, s Samples) error {
		nanInputs, err := p.calibrate(s, id, src, dg, rate)
		summary.NaNInputs += nanInputs
		return err
	}
	d, err := route(mode, dg, p.Cal.DlrUsing12, blts, p.Cal.Gains, calibrate)
	if err != nil {
		return summary, fmt.Errorf("records %v: %w", seg, err)
	}
	if math.IsNaN(mode) {
		ProblemLogger.Printf("records %v: unknown mux mode, all ASR set to NaN", seg)
	}

	for i, r := range d.Routings {
		summary.Routing[i] = r.String()
	}
	for id := range NumASR {
		s := d.ASR[id]
		copy(out.ASR[id].Records(seg.First, seg.Last).Vals, s.Vals)
		summary.Sources[id] = d.Sources[id].String()
		summary.Mean[id], summary.StdDev[id] = finiteMeanStdDev(s.Vals)
	}
	if summary.NaNInputs > 0 {
		ProblemLogger.Printf("records %v: %d sequences held NaN and were not calibrated", seg, summary.NaNInputs)
	}
	UpdateLogger.Printf("records %v: mode=%v diffgain=%v rate=%v Hz routing=%v",
		seg, mode, dg, rate, summary.Routing)
	return summary, nil
}

// calibrate applies the TF of a channel copied from a BLTS in place. Channels
// fed by ground or the 2.5 V reference keep their scalar calibration only. Continuous data (one
// sample per record) are calibrated along the records; snapshots record by
// record. It returns the number of sequences that held NaN, which are left NaN.
func (p *Processor) calibrate(s Samples, id ASRID, src Source, diffGain, rate float64) (int, error) {
	if src.Kind != FromBLTS || src.Category.IsStimulus() || len(s.Vals) == 0 {
		return 0, nil
	}
	t, ok := p.Cal.TFFor(id, diffGain)
	if !ok {
		return 0, nil
	}
	if !(rate > 0) || math.IsInf(rate, 0) {
		fillNaN(s.Vals)
		return 1, nil
	}

	dt := 1 / rate
	if s.Cols == 1 {
		return p.calibrateSequence(dt, s.Vals, t)
	}
	nanInputs := 0
	for i := range s.Rows {
		k, err := p.calibrateSequence(dt, s.Row(i), t)
		if err != nil {
			return nanInputs, fmt.Errorf("record %d: %w", i, err)
		}
		nanInputs += k
	}
	return nanInputs, nil
}

func (p *Processor) calibrateSequence(dt float64, seq []float64, t tf.TF) (int, error) {
	if floats.HasNaN(seq) {
		fillNaN(seq)
		return 1, nil
	}
	// Sequences shorter than the fit get the highest degree they support.
	opts := p.Cal.Options
	opts.DetrendDegree = min(opts.DetrendDegree, len(seq)-1)
	res, err := tfapply.Apply(dt, seq, t, opts)
	if err != nil {
		return 0, err
	}
	copy(seq, res.Y2)
	return 0, nil
}

func fillNaN(vals []float64) {
	for i := range vals {
		vals[i] = math.NaN()
	}
}

// finiteMeanStdDev ignores non-finite values; with none left it returns NaN.
func finiteMeanStdDev(vals []float64) (mean, std JSONFloat) {
	finite := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return JSONFloat(math.NaN()), JSONFloat(math.NaN())
	}
	m, s := stat.MeanStdDev(finite, nil)
	return JSONFloat(m), JSONFloat(s)
}
