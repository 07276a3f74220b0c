// Package pose holds the landmark model produced by the pose estimator and the
// geometry that the scoring pipeline builds on: joint angles, EMA smoothing
// and hip-centred normalization.
package pose

import "time"

// NumLandmarks is the fixed size of every frame delivered by the estimator.
const NumLandmarks = 33

// Landmark indices used by the exercise catalog and the feedback rules.
const (
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32
)

// Landmark is one estimated body point. X and Y are normalized to the frame
// ([0,1]); Z has an arbitrary scale and is ignored by planar geometry.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// Frame is a single estimator output.
type Frame struct {
	Time      time.Time
	Landmarks []Landmark
}

// At returns the landmark at index i, or ok=false when the frame is short.
func At(lms []Landmark, i int) (Landmark, bool) {
	if i < 0 || i >= len(lms) {
		return Landmark{}, false
	}
	return lms[i], true
}
