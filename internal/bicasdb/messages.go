package bicasdb

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// The composite types used for messages to the ClickHouse database.

// timeFormat is how DateTime64(6) columns are written.
const timeFormat = "2006-01-02 15:04:05.000000"

// NewID returns a new unique, time-ordered row ID.
func NewID() string {
	return ulid.Make().String()
}

// RunMessage is the information for the runs table: one processing run of
// one dataset.
type RunMessage struct {
	ID        string
	Hostname  string
	Githash   string
	Version   string
	GoVersion string
	CPUs      int
	Input     string
	Output    string
	Start     time.Time
	End       time.Time
}

func (m *RunMessage) values() []interface{} {
	return []interface{}{
		m.ID, m.Hostname, m.Githash, m.Version, m.GoVersion, m.CPUs,
		m.Input, m.Output, m.Start.Format(timeFormat), m.End.Format(timeFormat),
	}
}

// SegmentMessage is the information required to make an entry in the segments table.
type SegmentMessage struct {
	ID         string
	RunID      string
	First      int
	Last       int
	Mode       float64
	DiffGain   float64
	SampleRate float64
	Routing    []string // one entry per BLTS
	Sources    []string // one entry per ASR channel
	Mean       []float64
	StdDev     []float64
	NaNInputs  int
}

func (m *SegmentMessage) values() []interface{} {
	return []interface{}{
		m.ID, m.RunID, m.First, m.Last, m.Mode, m.DiffGain, m.SampleRate,
		m.Routing, m.Sources, m.Mean, m.StdDev, m.NaNInputs,
	}
}
