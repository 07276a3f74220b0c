// Package progression adapts difficulty across sessions: three strong
// sessions in a row raise the bar, a weak session lowers it.
package progression

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/claude/repform/internal/scoring"
)

// Action is the outcome of a progression check.
type Action string

const (
	ActionNone     Action = "none"
	ActionUpgrade  Action = "upgrade"
	ActionRegress  Action = "regress"
	ActionMaintain Action = "maintain"
)

const (
	upgradeScore  = 85.0
	upgradeStreak = 3
	regressScore  = 60.0

	repStep  = 2
	minReps  = 5
	maxReps  = 30
	romStep  = 0.05
	minROM   = 0.7
	maxROM   = 1.5
	swayStep = 0.1
	minSway  = 0.5
	maxSway  = 2.0
)

// Defaults for a fresh state.
const (
	DefaultTargetReps     = 10
	DefaultROMMultiplier  = 1.0
	DefaultSwayMultiplier = 1.0
)

// State is the persisted cross-session progression record.
type State struct {
	SessionScores  []float64 `json:"session_scores"`
	TargetReps     int       `json:"target_reps"`
	ROMMultiplier  float64   `json:"target_rom_multiplier"`
	SwayMultiplier float64   `json:"sway_tolerance_multiplier"`
}

// Decision describes a proposed adjustment. For ActionUpgrade and
// ActionRegress the new parameters are set; otherwise they repeat the
// current ones.
type Decision struct {
	Action         Action  `json:"action"`
	Reason         string  `json:"reason"`
	NewTargetReps  int     `json:"new_target_reps,omitempty"`
	ROMMultiplier  float64 `json:"rom_multiplier,omitempty"`
	SwayMultiplier float64 `json:"sway_multiplier,omitempty"`
}

// Changes reports whether applying the decision alters parameters.
func (d Decision) Changes() bool {
	return d.Action == ActionUpgrade || d.Action == ActionRegress
}

// NewState returns a state with default parameters and no history.
func NewState() *State {
	return &State{
		SessionScores:  []float64{},
		TargetReps:     DefaultTargetReps,
		ROMMultiplier:  DefaultROMMultiplier,
		SwayMultiplier: DefaultSwayMultiplier,
	}
}

// Record appends a session's average final score.
func (s *State) Record(avg float64) {
	s.SessionScores = append(s.SessionScores, avg)
}

// Streak counts trailing sessions scoring above the upgrade threshold.
func (s *State) Streak() int {
	n := 0
	for i := len(s.SessionScores) - 1; i >= 0; i-- {
		if s.SessionScores[i] <= upgradeScore {
			break
		}
		n++
	}
	return n
}

// Compute evaluates the history without modifying the state.
func (s *State) Compute() Decision {
	if len(s.SessionScores) == 0 {
		return Decision{Action: ActionNone, Reason: "No sessions recorded"}
	}
	latest := s.SessionScores[len(s.SessionScores)-1]

	if s.Streak() >= upgradeStreak {
		return Decision{
			Action:         ActionUpgrade,
			Reason:         fmt.Sprintf("%d+ sessions scoring >%.0f (latest: %.0f)", upgradeStreak, upgradeScore, latest),
			NewTargetReps:  min(s.TargetReps+repStep, maxReps),
			ROMMultiplier:  scoring.Round2(min(s.ROMMultiplier+romStep, maxROM)),
			SwayMultiplier: scoring.Round2(max(s.SwayMultiplier-swayStep, minSway)),
		}
	}

	if latest < regressScore {
		return Decision{
			Action:         ActionRegress,
			Reason:         fmt.Sprintf("Latest session scored %.0f (<%.0f)", latest, regressScore),
			NewTargetReps:  max(s.TargetReps-repStep, minReps),
			ROMMultiplier:  scoring.Round2(max(s.ROMMultiplier-romStep, minROM)),
			SwayMultiplier: scoring.Round2(min(s.SwayMultiplier+swayStep, maxSway)),
		}
	}

	return Decision{
		Action: ActionMaintain,
		Reason: fmt.Sprintf("Latest score %.0f within normal range", latest),
	}
}

// Apply commits an upgrade or regress decision. Other actions are no-ops.
func (s *State) Apply(d Decision) {
	if !d.Changes() {
		return
	}
	s.TargetReps = d.NewTargetReps
	s.ROMMultiplier = d.ROMMultiplier
	s.SwayMultiplier = d.SwayMultiplier
}

// Progress records avg, computes a decision and applies it.
func (s *State) Progress(avg float64) Decision {
	s.Record(avg)
	d := s.Compute()
	s.Apply(d)
	return d
}

// AdjustConfig scales cfg by the current multipliers.
func (s *State) AdjustConfig(cfg scoring.ExerciseConfig) scoring.ExerciseConfig {
	return cfg.Adjusted(s.ROMMultiplier, s.SwayMultiplier)
}

// Load reads a state file. A missing or malformed file yields defaults, as
// does any field that is absent or out of range.
func Load(path string) *State {
	s := NewState()
	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var raw struct {
		SessionScores  []float64 `json:"session_scores"`
		TargetReps     *int      `json:"target_reps"`
		ROMMultiplier  *float64  `json:"target_rom_multiplier"`
		SwayMultiplier *float64  `json:"sway_tolerance_multiplier"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return s
	}
	if raw.SessionScores != nil {
		s.SessionScores = raw.SessionScores
	}
	if raw.TargetReps != nil && *raw.TargetReps > 0 {
		s.TargetReps = *raw.TargetReps
	}
	if raw.ROMMultiplier != nil && *raw.ROMMultiplier > 0 {
		s.ROMMultiplier = *raw.ROMMultiplier
	}
	if raw.SwayMultiplier != nil && *raw.SwayMultiplier > 0 {
		s.SwayMultiplier = *raw.SwayMultiplier
	}
	return s
}

// Save writes the state to path.
func (s *State) Save(path string) error {
	if s == nil {
		return errors.New("saving progression: nil state")
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding progression: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing progression file: %w", err)
	}
	return nil
}
