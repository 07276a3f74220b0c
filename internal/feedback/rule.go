// Package feedback evaluates posture and tempo rules against every frame and
// returns the corrective cues that fire, highest priority first.
package feedback

import (
	"fmt"

	"github.com/claude/repform/internal/pose"
)

// Kind names one of the built-in rule conditions.
type Kind string

const (
	KindKneeValgus  Kind = "knee_valgus"
	KindForwardLean Kind = "forward_lean"
	KindAsymmetry   Kind = "asymmetry"
	KindPoorDepth   Kind = "poor_depth"
	KindTooFast     Kind = "too_fast"
)

// Kinds lists every supported condition kind.
var Kinds = []Kind{KindKneeValgus, KindForwardLean, KindAsymmetry, KindPoorDepth, KindTooFast}

// Context keys read by the built-in conditions.
const (
	KeyCurrentROM     = "current_rom"
	KeyTargetROM      = "target_rom"
	KeyRepTime        = "rep_time"
	KeyIdealRepTime   = "ideal_rep_time"
	KeyAsymmetryValue = "asymmetry_value"
)

// Fallbacks used when a context key is absent.
const (
	defaultTargetROM    = 90.0
	defaultIdealRepTime = 3.0
)

// Context carries per-frame measurements into rule evaluation.
type Context map[string]float64

func (c Context) get(key string, fallback float64) float64 {
	if v, ok := c[key]; ok {
		return v
	}
	return fallback
}

// Rule is a serializable feedback rule. Threshold's meaning depends on Kind:
// a normalized x margin for knee_valgus, degrees for forward_lean and
// asymmetry, and a fraction of the target for poor_depth and too_fast.
type Rule struct {
	Name      string  `yaml:"name" json:"name"`
	Kind      Kind    `yaml:"kind" json:"kind"`
	Message   string  `yaml:"message" json:"message"`
	Priority  int     `yaml:"priority" json:"priority"`
	Threshold float64 `yaml:"threshold" json:"threshold"`
}

// Validate reports rules with an unknown kind or no message.
func (r Rule) Validate() error {
	if r.Message == "" {
		return fmt.Errorf("rule %q: message is required", r.Name)
	}
	for _, k := range Kinds {
		if r.Kind == k {
			return nil
		}
	}
	return fmt.Errorf("rule %q: unknown kind %q", r.Name, r.Kind)
}

// Triggered evaluates the rule's condition.
func (r Rule) Triggered(lms []pose.Landmark, ctx Context) (bool, error) {
	switch r.Kind {
	case KindKneeValgus:
		knee, ok1 := pose.At(lms, pose.LeftKnee)
		ankle, ok2 := pose.At(lms, pose.LeftAnkle)
		if !ok1 || !ok2 {
			return false, fmt.Errorf("need landmarks %d and %d, have %d", pose.LeftKnee, pose.LeftAnkle, len(lms))
		}
		return knee.X < ankle.X-r.Threshold, nil

	case KindForwardLean:
		sh, ok1 := pose.At(lms, pose.LeftShoulder)
		hip, ok2 := pose.At(lms, pose.LeftHip)
		if !ok1 || !ok2 {
			return false, fmt.Errorf("need landmarks %d and %d, have %d", pose.LeftShoulder, pose.LeftHip, len(lms))
		}
		return pose.TrunkLean(sh, hip) > r.Threshold, nil

	case KindAsymmetry:
		return ctx.get(KeyAsymmetryValue, 0) > r.Threshold, nil

	case KindPoorDepth:
		rom := ctx.get(KeyCurrentROM, 0)
		target := ctx.get(KeyTargetROM, defaultTargetROM)
		return rom > 0 && rom < target*r.Threshold, nil

	case KindTooFast:
		rt := ctx.get(KeyRepTime, 0)
		ideal := ctx.get(KeyIdealRepTime, defaultIdealRepTime)
		return rt > 0 && rt < ideal*r.Threshold, nil
	}
	return false, fmt.Errorf("unknown kind %q", r.Kind)
}

// DefaultRules returns the common rehab rule set.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "knee_valgus", Kind: KindKneeValgus, Message: "Keep knees aligned with toes", Priority: 1, Threshold: 0.02},
		{Name: "forward_lean", Kind: KindForwardLean, Message: "Keep chest upright", Priority: 2, Threshold: 25},
		{Name: "asymmetry", Kind: KindAsymmetry, Message: "Distribute weight evenly", Priority: 3, Threshold: 15},
		{Name: "poor_depth", Kind: KindPoorDepth, Message: "Try to go deeper for full range", Priority: 4, Threshold: 0.6},
		{Name: "too_fast", Kind: KindTooFast, Message: "Slow down for controlled tempo", Priority: 5, Threshold: 0.5},
	}
}
