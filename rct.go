package bicas

import (
	"fmt"
	"strings"

	"github.com/irfu/bicas/tf"
	"github.com/irfu/bicas/tfapply"
	"github.com/spf13/viper"
)

// tfConfig is one transfer function as written in the configuration: either
// rational (numerator/denominator in ascending powers of s=iω) or tabulated
// (omega/amplitude/phase rows). Forward tables are inverted on load.
type tfConfig struct {
	Forward            bool      `mapstructure:"forward"`
	Numerator          []float64 `mapstructure:"numerator"`
	Denominator        []float64 `mapstructure:"denominator"`
	Omega              []float64 `mapstructure:"omega"`
	Amplitude          []float64 `mapstructure:"amplitude"`
	Phase              []float64 `mapstructure:"phase"`
	Interp             string    `mapstructure:"interp"`
	AmpExtrapolation   string    `mapstructure:"ampextrapolation"`
	PhaseExtrapolation string    `mapstructure:"phaseextrapolation"`
	ExtendTo           float64   `mapstructure:"extendto"`
	ExtendPoints       int       `mapstructure:"extendpoints"`
}

// SetCalibrationDefaults registers defaults for every calibration key.
func SetCalibrationDefaults(v *viper.Viper) {
	opts := tfapply.DefaultOptions()
	v.SetDefault("calibration.alpha", 1.0)
	v.SetDefault("calibration.beta", 1.0)
	v.SetDefault("calibration.gammalow", 1.0)
	v.SetDefault("calibration.gammahigh", 1.0)
	v.SetDefault("calibration.dlrusing12", true)
	v.SetDefault("application.detrenddegree", opts.DetrendDegree)
	v.SetDefault("application.retrend", opts.Retrend)
	v.SetDefault("application.cutofffraction", opts.CutoffFraction)
}

// LoadCalibration builds a Calibration from the calibration, application and
// transferfunctions sections of a viper configuration.
func LoadCalibration(v *viper.Viper) (*Calibration, error) {
	cal := new(Calibration)
	cal.Gains = Gains{
		Alpha:     v.GetFloat64("calibration.alpha"),
		Beta:      v.GetFloat64("calibration.beta"),
		GammaLow:  v.GetFloat64("calibration.gammalow"),
		GammaHigh: v.GetFloat64("calibration.gammahigh"),
	}
	cal.DlrUsing12 = v.GetBool("calibration.dlrusing12")
	cal.Options = tfapply.Options{
		DetrendDegree:  v.GetInt("application.detrenddegree"),
		Retrend:        v.GetBool("application.retrend"),
		CutoffFraction: v.GetFloat64("application.cutofffraction"),
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}

	tfs := make(map[string]tfConfig)
	if err := v.UnmarshalKey("transferfunctions", &tfs); err != nil {
		return nil, fmt.Errorf("reading transfer functions: %w", err)
	}
	for key, cfg := range tfs {
		cat, err := ParseTFCategory(strings.ToLower(key))
		if err != nil {
			return nil, err
		}
		t, err := buildTF(cfg)
		if err != nil {
			return nil, fmt.Errorf("transfer function %s: %w", cat, err)
		}
		cal.TFs[cat] = t
	}
	return cal, nil
}

// buildTF turns one configured TF into an ITF.
func buildTF(cfg tfConfig) (tf.TF, error) {
	kind := tf.ITF
	if cfg.Forward {
		kind = tf.FTF
	}
	rational := len(cfg.Denominator) > 0
	tabulated := len(cfg.Omega) > 0
	switch {
	case rational && tabulated:
		return nil, fmt.Errorf("both rational and tabulated forms given")

	case rational:
		r, err := tf.NewRational(cfg.Numerator, cfg.Denominator, kind)
		if err != nil {
			return nil, err
		}
		if kind == tf.FTF {
			if r, err = r.Invert(); err != nil {
				return nil, err
			}
		}
		return r, nil

	case tabulated:
		ext, err := parseExtrapolation(cfg)
		if err != nil {
			return nil, err
		}
		t, err := tf.NewTabulated(cfg.Omega, cfg.Amplitude, cfg.Phase, kind, ext)
		if err != nil {
			return nil, err
		}
		if kind == tf.FTF {
			if t, err = t.Invert(); err != nil {
				return nil, err
			}
		}
		if cfg.ExtendTo > 0 {
			n := cfg.ExtendPoints
			if n <= 0 {
				n = 1
			}
			if t, err = t.Extend(cfg.ExtendTo, n); err != nil {
				return nil, err
			}
		}
		return t, nil
	}
	return nil, fmt.Errorf("neither rational nor tabulated form given")
}

func parseExtrapolation(cfg tfConfig) (tf.Extrapolation, error) {
	var ext tf.Extrapolation
	switch strings.ToLower(cfg.Interp) {
	case "", "loglinear":
		ext.Interp = tf.InterpLogLinear
	case "linear":
		ext.Interp = tf.InterpLinear
	default:
		return ext, fmt.Errorf("unknown interpolation %q", cfg.Interp)
	}
	switch strings.ToLower(cfg.AmpExtrapolation) {
	case "", "exponential":
		ext.Amp = tf.AmpExponential
	case "constant":
		ext.Amp = tf.AmpConstant
	case "zero":
		ext.Amp = tf.AmpZero
	default:
		return ext, fmt.Errorf("unknown amplitude extrapolation %q", cfg.AmpExtrapolation)
	}
	switch strings.ToLower(cfg.PhaseExtrapolation) {
	case "", "linear":
		ext.Phase = tf.PhaseLinear
	case "constant":
		ext.Phase = tf.PhaseConstant
	case "exponential":
		ext.Phase = tf.PhaseExponential
	default:
		return ext, fmt.Errorf("unknown phase extrapolation %q", cfg.PhaseExtrapolation)
	}
	return ext, nil
}
