package bicas

import (
	"fmt"
	"math"

	"github.com/irfu/bicas/tf"
	"github.com/irfu/bicas/tfapply"
)

// TFCategory selects the transfer function that calibrates an ASR channel.
type TFCategory int

// Transfer function categories.
const (
	TFDCSingle TFCategory = iota
	TFDCDiff
	TFACLowGain
	TFACHighGain
)

// NumTFCategories is the number of transfer function categories.
const NumTFCategories = 4

var tfCategoryKeys = [NumTFCategories]string{"dcsingle", "dcdiff", "aclowgain", "achighgain"}

// String returns the configuration key of the category.
func (c TFCategory) String() string {
	if c < 0 || int(c) >= NumTFCategories {
		return fmt.Sprintf("TFCategory(%d)", int(c))
	}
	return tfCategoryKeys[c]
}

// ParseTFCategory is the inverse of TFCategory.String.
func ParseTFCategory(key string) (TFCategory, error) {
	for i, k := range tfCategoryKeys {
		if k == key {
			return TFCategory(i), nil
		}
	}
	return 0, fmt.Errorf("unknown transfer function category %q", key)
}

// Calibration is everything needed to turn raw BLTS data into calibrated ASR
// data for one calibration epoch. It is not modified once loaded, so one value
// can serve many goroutines.
type Calibration struct {
	Gains      Gains
	DlrUsing12 bool
	Options    tfapply.Options

	// TFs are the inverse transfer functions per category. A nil entry means
	// the category is calibrated by its scalar gain only.
	TFs [NumTFCategories]tf.TF
}

// Validate checks the scalar gains and application options.
func (c *Calibration) Validate() error {
	if err := c.Gains.Validate(); err != nil {
		return err
	}
	return c.Options.Validate()
}

// TFFor returns the TF for an ASR channel recorded with the given differential
// gain. The second result is false when no TF applies: the category has none,
// or the channel is AC and the gain is unknown.
func (c *Calibration) TFFor(id ASRID, diffGain float64) (tf.TF, bool) {
	var cat TFCategory
	switch {
	case id.IsAC():
		switch {
		case math.IsNaN(diffGain):
			return nil, false
		case diffGain == 0:
			cat = TFACLowGain
		default:
			cat = TFACHighGain
		}
	case id.IsDiff():
		cat = TFDCDiff
	default:
		cat = TFDCSingle
	}
	t := c.TFs[cat]
	return t, t != nil
}
