// Package scoring turns the features of one completed rep into component
// scores (range of motion, stability, tempo, asymmetry) and a weighted final
// score, all on a 0-100 scale.
package scoring

import (
	"errors"
	"fmt"
	"math"
)

// weightTolerance allowed on the sum of the three weights.
const weightTolerance = 1e-6

// ExerciseConfig tunes scoring for one exercise. It is a value type; every
// Scorer keeps its own copy.
type ExerciseConfig struct {
	// TargetROM is the range of motion (degrees or proxy units) that earns a
	// full ROM score.
	TargetROM float64 `yaml:"target_rom" json:"target_rom"`
	// IdealRepTime is the rep duration in seconds that earns a full tempo score.
	IdealRepTime float64 `yaml:"ideal_rep_time" json:"ideal_rep_time"`
	// AcceptableSway is the hip sway (normalized x stddev) at which the
	// stability penalty equals StabilityFactor.
	AcceptableSway         float64 `yaml:"acceptable_sway" json:"acceptable_sway"`
	StabilityFactor        float64 `yaml:"stability_factor" json:"stability_factor"`
	TempoPenaltyFactor     float64 `yaml:"tempo_penalty_factor" json:"tempo_penalty_factor"`
	AsymmetryPenaltyFactor float64 `yaml:"asymmetry_penalty_factor" json:"asymmetry_penalty_factor"`

	WeightROM       float64 `yaml:"weight_rom" json:"weight_rom"`
	WeightStability float64 `yaml:"weight_stability" json:"weight_stability"`
	WeightTempo     float64 `yaml:"weight_tempo" json:"weight_tempo"`
}

// DefaultConfig returns the baseline tuning used when an exercise does not
// override a field.
func DefaultConfig() ExerciseConfig {
	return ExerciseConfig{
		TargetROM:              90,
		IdealRepTime:           3,
		AcceptableSway:         0.02,
		StabilityFactor:        100,
		TempoPenaltyFactor:     20,
		AsymmetryPenaltyFactor: 5,
		WeightROM:              0.4,
		WeightStability:        0.3,
		WeightTempo:            0.3,
	}
}

// Validate reports negative factors and weights that do not sum to 1.
func (c ExerciseConfig) Validate() error {
	var errs []error
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"target_rom", c.TargetROM},
		{"ideal_rep_time", c.IdealRepTime},
		{"acceptable_sway", c.AcceptableSway},
		{"stability_factor", c.StabilityFactor},
		{"tempo_penalty_factor", c.TempoPenaltyFactor},
		{"asymmetry_penalty_factor", c.AsymmetryPenaltyFactor},
		{"weight_rom", c.WeightROM},
		{"weight_stability", c.WeightStability},
		{"weight_tempo", c.WeightTempo},
	} {
		if f.v < 0 || math.IsNaN(f.v) {
			errs = append(errs, fmt.Errorf("%s must be non-negative, got %v", f.name, f.v))
		}
	}
	sum := c.WeightROM + c.WeightStability + c.WeightTempo
	if math.Abs(sum-1) > weightTolerance {
		errs = append(errs, fmt.Errorf("weights must sum to 1.0, got %.4f", sum))
	}
	return errors.Join(errs...)
}

// Adjusted returns a copy with TargetROM scaled by romMult and AcceptableSway
// scaled by swayMult. Non-positive multipliers leave the field unchanged.
func (c ExerciseConfig) Adjusted(romMult, swayMult float64) ExerciseConfig {
	if romMult > 0 {
		c.TargetROM *= romMult
	}
	if swayMult > 0 {
		c.AcceptableSway *= swayMult
	}
	return c
}
