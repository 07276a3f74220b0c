package scoring

import "math"

// RepScores are the component and final scores of one rep, each in [0,100]
// and rounded to one decimal.
type RepScores struct {
	ROM       float64 `json:"rom_score"`
	Stability float64 `json:"stability_score"`
	Tempo     float64 `json:"tempo_score"`
	Asymmetry float64 `json:"asymmetry_score"`
	Final     float64 `json:"final_score"`
}

// RepFeatures are the measurements of one completed rep. Left and Right are
// optional mirrored-side angles; asymmetry is scored only when both are set.
type RepFeatures struct {
	ROM     float64
	Sway    float64
	RepTime float64
	Left    *float64
	Right   *float64
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 { return math.Round(v*10) / 10 }

// Round2 rounds to two decimal places.
func Round2(v float64) float64 { return math.Round(v*100) / 100 }

// ROMScore is userROM as a percentage of targetROM. A non-positive target
// always scores 100.
func ROMScore(userROM, targetROM float64) float64 {
	if targetROM <= 0 {
		return 100
	}
	return clamp(userROM / targetROM * 100)
}

// StabilityScore penalizes sway relative to the acceptable sway.
func StabilityScore(sway, acceptableSway, factor float64) float64 {
	ratio := 0.0
	if acceptableSway > 0 {
		ratio = sway / acceptableSway
	}
	return clamp(100 - ratio*factor)
}

// TempoScore penalizes deviation from the ideal rep time. Fast reps cost
// twice the factor per second, slow reps half of it.
func TempoScore(repTime, idealRepTime, factor float64) float64 {
	diff := repTime - idealRepTime
	if diff < 0 {
		return clamp(100 - -diff*factor*2)
	}
	return clamp(100 - diff*factor*0.5)
}

// AsymmetryScore penalizes the absolute left/right difference.
func AsymmetryScore(left, right, factor float64) float64 {
	return clamp(100 - math.Abs(left-right)*factor)
}

// FinalScore is the weighted sum of the ROM, stability and tempo scores.
// Asymmetry is reported separately and does not contribute.
func FinalScore(rom, stability, tempo float64, cfg ExerciseConfig) float64 {
	return clamp(cfg.WeightROM*rom + cfg.WeightStability*stability + cfg.WeightTempo*tempo)
}

// Scorer scores completed reps against a fixed configuration.
type Scorer struct {
	cfg ExerciseConfig
}

// NewScorer returns a Scorer holding its own copy of cfg.
func NewScorer(cfg ExerciseConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Config returns a copy of the scorer's configuration.
func (s *Scorer) Config() ExerciseConfig { return s.cfg }

// ScoreRep computes every score for one rep. The final score is derived from
// the unrounded components.
func (s *Scorer) ScoreRep(f RepFeatures) RepScores {
	rom := ROMScore(f.ROM, s.cfg.TargetROM)
	stab := StabilityScore(f.Sway, s.cfg.AcceptableSway, s.cfg.StabilityFactor)
	tempo := TempoScore(f.RepTime, s.cfg.IdealRepTime, s.cfg.TempoPenaltyFactor)

	asym := 100.0
	if f.Left != nil && f.Right != nil {
		asym = AsymmetryScore(*f.Left, *f.Right, s.cfg.AsymmetryPenaltyFactor)
	}

	return RepScores{
		ROM:       Round1(rom),
		Stability: Round1(stab),
		Tempo:     Round1(tempo),
		Asymmetry: Round1(asym),
		Final:     Round1(FinalScore(rom, stab, tempo, s.cfg)),
	}
}
