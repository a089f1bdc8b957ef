package pipeline

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"roiflow/vol"
)

// Params configures a two-level thresholding pipeline.  Thresholds are
// fractions of the input's declared data range, not absolute values.
type Params struct {
	// Channel selects which plane of a multi-channel input feeds the
	// pipeline.  An index beyond the current channel count falls back to
	// channel 0, legacy behavior for data sets with deleted channels.
	Channel int `toml:"channel"`

	// Sigmas holds the per-axis Gaussian smoothing scales, keyed by axis
	// letter.  Exactly the input's spatial axes must appear.
	Sigmas map[string]float64 `toml:"sigmas"`

	LowThreshold  float64 `toml:"low-threshold"`
	HighThreshold float64 `toml:"high-threshold"`

	// MinSize and MaxSize are inclusive voxel-count bounds for components
	// surviving the high threshold.
	MinSize int64 `toml:"min-size"`
	MaxSize int64 `toml:"max-size"`
}

// DefaultParams returns the conventional starting configuration for a 3-d
// single-channel volume.
func DefaultParams() Params {
	return Params{
		Channel:       0,
		Sigmas:        map[string]float64{"x": 1.0, "y": 1.0, "z": 1.0},
		LowThreshold:  0.2,
		HighThreshold: 0.5,
		MinSize:       100,
		MaxSize:       1000000,
	}
}

// LoadParams reads a TOML parameter file, starting from the defaults so a
// partial file only overrides what it names.
func LoadParams(path string) (Params, error) {
	p := DefaultParams()
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return Params{}, fmt.Errorf("reading pipeline parameters from %s: %v", path, err)
	}
	if err := p.Validate(); err != nil {
		return Params{}, fmt.Errorf("pipeline parameters in %s: %v", path, err)
	}
	return p, nil
}

// Validate reports malformed parameters at configuration time.
func (p Params) Validate() error {
	if p.Channel < 0 {
		return fmt.Errorf("channel index %d is negative", p.Channel)
	}
	if len(p.Sigmas) == 0 {
		return fmt.Errorf("no smoothing sigmas given")
	}
	for axis, sigma := range p.Sigmas {
		if len(axis) != 1 {
			return fmt.Errorf("sigma key %q is not a single axis letter", axis)
		}
		if sigma < 0 {
			return fmt.Errorf("sigma %g for axis %q is negative", sigma, axis)
		}
	}
	if p.LowThreshold <= 0 {
		return fmt.Errorf("low threshold %g must be positive", p.LowThreshold)
	}
	if p.LowThreshold >= p.HighThreshold {
		return fmt.Errorf("low threshold %g must be below high threshold %g",
			p.LowThreshold, p.HighThreshold)
	}
	if p.MinSize < 1 {
		return fmt.Errorf("minimum component size %d must be at least 1", p.MinSize)
	}
	if p.MaxSize < p.MinSize {
		return fmt.Errorf("maximum component size %d is below minimum %d", p.MaxSize, p.MinSize)
	}
	return nil
}

// axisSigmas converts the TOML-friendly sigma map to axis-tagged form.
func (p Params) axisSigmas() map[vol.AxisTag]float64 {
	sigmas := make(map[vol.AxisTag]float64, len(p.Sigmas))
	for axis, sigma := range p.Sigmas {
		sigmas[vol.AxisTag(axis[0])] = sigma
	}
	return sigmas
}
