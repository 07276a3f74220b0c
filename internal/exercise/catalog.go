// Package exercise binds the scoring pipeline to concrete rehab exercises:
// which joint or proxy metric each one tracks, how reps are detected, and
// the analyzer that drives smoothing, feature tracking, scoring, feedback
// and the session for a stream of frames.
package exercise

import (
	"strings"

	"github.com/claude/repform/internal/pose"
	"github.com/claude/repform/internal/scoring"
)

// Metric computes the tracked scalar from smoothed image-space landmarks.
type Metric func(lms []pose.Landmark) float64

// AngleMetric measures the planar angle at b.
func AngleMetric(a, b, c int) Metric {
	return func(lms []pose.Landmark) float64 {
		return pose.PlanarAngle(lms[a], lms[b], lms[c])
	}
}

// VerticalGap is lms[lower].Y - lms[upper].Y, positive when upper is higher
// in the image.
func VerticalGap(upper, lower int) Metric {
	return func(lms []pose.Landmark) float64 {
		return lms[lower].Y - lms[upper].Y
	}
}

// LiftMargin is how far below the hip a knee may sit and still count as
// lifted, in normalized image units.
const LiftMargin = 0.1

// KneeLift is positive when the knee is within LiftMargin of the hip height.
func KneeLift(hip, knee int) Metric {
	return func(lms []pose.Landmark) float64 {
		return lms[hip].Y + LiftMargin - lms[knee].Y
	}
}

// MarchBalance is the left knee lift minus the right one. It is positive
// while the left knee is up and negative while the right one is.
func MarchBalance(lms []pose.Landmark) float64 {
	return KneeLift(pose.LeftHip, pose.LeftKnee)(lms) - KneeLift(pose.RightHip, pose.RightKnee)(lms)
}

// Definition describes one exercise.
type Definition struct {
	Key  string `json:"key"`
	Name string `json:"name"`

	// Landmarks must all be visible for Metric to be sampled.
	Landmarks []int  `json:"landmarks"`
	Metric    Metric `json:"-"`

	// MirrorLandmarks and Mirror measure the opposite side for asymmetry.
	// Mirror is nil for single-limb exercises.
	MirrorLandmarks []int  `json:"mirror_landmarks,omitempty"`
	Mirror          Metric `json:"-"`

	// VelocityLandmark is the point whose speed is reported per frame.
	VelocityLandmark int `json:"velocity_landmark"`

	Thresholds  Thresholds             `json:"thresholds"`
	RestStage   string                 `json:"rest_stage"`
	ActiveStage string                 `json:"active_stage"`
	Prompt      string                 `json:"prompt"`
	Config      scoring.ExerciseConfig `json:"config"`
}

func withConfig(rom, ideal, sway, wROM, wStab, wTempo float64) scoring.ExerciseConfig {
	cfg := scoring.DefaultConfig()
	cfg.TargetROM = rom
	cfg.IdealRepTime = ideal
	cfg.AcceptableSway = sway
	cfg.WeightROM = wROM
	cfg.WeightStability = wStab
	cfg.WeightTempo = wTempo
	return cfg
}

func angle(a, b, c int) ([]int, Metric) { return []int{a, b, c}, AngleMetric(a, b, c) }

// Catalog returns every built-in exercise definition.
func Catalog() []Definition {
	var defs []Definition

	lm, m := angle(pose.LeftHip, pose.LeftKnee, pose.LeftAnkle)
	rlm, rm := angle(pose.RightHip, pose.RightKnee, pose.RightAnkle)
	defs = append(defs, Definition{
		Key:              "squats",
		Name:             "Squats",
		Landmarks:        lm,
		Metric:           m,
		MirrorLandmarks:  rlm,
		Mirror:           rm,
		VelocityLandmark: pose.LeftHip,
		Thresholds:       Thresholds{Direction: Falling, Start: 160, Complete: 140},
		RestStage:        "up",
		ActiveStage:      "down",
		Prompt:           "Squat down",
		Config:           withConfig(70, 4, 0.015, 0.4, 0.35, 0.25),
	})

	lm, m = angle(pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist)
	rlm, rm = angle(pose.RightShoulder, pose.RightElbow, pose.RightWrist)
	defs = append(defs, Definition{
		Key:              "wall_pushups",
		Name:             "Wall Push-ups",
		Landmarks:        lm,
		Metric:           m,
		MirrorLandmarks:  rlm,
		Mirror:           rm,
		VelocityLandmark: pose.LeftElbow,
		Thresholds:       Thresholds{Direction: Falling, Start: 150, Complete: 130},
		RestStage:        "up",
		ActiveStage:      "down",
		Prompt:           "Lean into wall",
		Config:           withConfig(60, 4, 0.015, 0.45, 0.25, 0.3),
	})

	lm, m = angle(pose.LeftShoulder, pose.LeftHip, pose.LeftKnee)
	defs = append(defs, Definition{
		Key:              "leg_raises",
		Name:             "Leg Raises",
		Landmarks:        lm,
		Metric:           m,
		VelocityLandmark: pose.LeftKnee,
		Thresholds:       Thresholds{Direction: Falling, Start: 160, Complete: 150},
		RestStage:        "down",
		ActiveStage:      "up",
		Prompt:           "Raise leg",
		Config:           withConfig(50, 4, 0.02, 0.45, 0.3, 0.25),
	})

	lm, m = angle(pose.LeftShoulder, pose.LeftHip, pose.LeftAnkle)
	defs = append(defs, Definition{
		Key:              "hip_abduction",
		Name:             "Standing Hip Abduction",
		Landmarks:        lm,
		Metric:           m,
		VelocityLandmark: pose.LeftAnkle,
		Thresholds:       Thresholds{Direction: Falling, Start: 170, Complete: 165},
		RestStage:        "down",
		ActiveStage:      "up",
		Prompt:           "Raise leg to side",
		Config:           withConfig(25, 4, 0.025, 0.35, 0.4, 0.25),
	})

	lm, m = angle(pose.LeftHip, pose.LeftShoulder, pose.LeftElbow)
	rlm, rm = angle(pose.RightHip, pose.RightShoulder, pose.RightElbow)
	defs = append(defs, Definition{
		Key:              "forward_arm_raises",
		Name:             "Forward Arm Raises",
		Landmarks:        lm,
		Metric:           m,
		MirrorLandmarks:  rlm,
		Mirror:           rm,
		VelocityLandmark: pose.LeftElbow,
		Thresholds:       Thresholds{Direction: Rising, Start: 30, Complete: 45},
		RestStage:        "down",
		ActiveStage:      "up",
		Prompt:           "Raise arms forward",
		Config:           withConfig(60, 4, 0.015, 0.45, 0.25, 0.3),
	})

	lm, m = angle(pose.LeftHip, pose.LeftShoulder, pose.LeftWrist)
	rlm, rm = angle(pose.RightHip, pose.RightShoulder, pose.RightWrist)
	defs = append(defs, Definition{
		Key:              "side_arm_raises",
		Name:             "Side Arm Raises",
		Landmarks:        lm,
		Metric:           m,
		MirrorLandmarks:  rlm,
		Mirror:           rm,
		VelocityLandmark: pose.LeftWrist,
		Thresholds:       Thresholds{Direction: Rising, Start: 35, Complete: 50},
		RestStage:        "down",
		ActiveStage:      "up",
		Prompt:           "Raise arms to side",
		Config:           withConfig(55, 4, 0.015, 0.45, 0.25, 0.3),
	})

	defs = append(defs, Definition{
		Key:              "heel_raises",
		Name:             "Heel Raises",
		Landmarks:        []int{pose.LeftAnkle, pose.LeftFootIndex},
		Metric:           VerticalGap(pose.LeftAnkle, pose.LeftFootIndex),
		VelocityLandmark: pose.LeftHeel,
		Thresholds:       Thresholds{Direction: Rising, Start: 0.02, Complete: 0.05},
		RestStage:        "down",
		ActiveStage:      "up",
		Prompt:           "Raise heels slowly",
		Config:           withConfig(0.05, 4, 0.015, 0.35, 0.3, 0.35),
	})

	defs = append(defs, Definition{
		Key:              "sit_to_stand",
		Name:             "Sit-to-Stand",
		Landmarks:        []int{pose.LeftHip, pose.LeftKnee},
		Metric:           VerticalGap(pose.LeftHip, pose.LeftKnee),
		VelocityLandmark: pose.LeftHip,
		Thresholds:       Thresholds{Direction: Rising, Start: 0.1, Complete: 0.3},
		RestStage:        "seated",
		ActiveStage:      "standing",
		Prompt:           "Stand up",
		Config:           withConfig(0.25, 3, 0.02, 0.4, 0.3, 0.3),
	})

	defs = append(defs, Definition{
		Key:              "marching",
		Name:             "Marching",
		Landmarks:        []int{pose.LeftHip, pose.LeftKnee, pose.RightHip, pose.RightKnee},
		Metric:           MarchBalance,
		VelocityLandmark: pose.LeftKnee,
		Thresholds:       Thresholds{Direction: Alternating, Start: -0.1, Complete: 0.1},
		RestStage:        "right lifted",
		ActiveStage:      "left lifted",
		Prompt:           "Lift knees alternately",
		Config:           withConfig(0.3, 2, 0.025, 0.4, 0.35, 0.25),
	})

	return defs
}

// Lookup finds a definition by key or display name, ignoring case.
func Lookup(name string) (Definition, bool) {
	for _, d := range Catalog() {
		if strings.EqualFold(d.Key, name) || strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return Definition{}, false
}
