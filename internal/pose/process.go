package pose

import "math"

// DefaultVisibilityThreshold below which a landmark is flagged invalid.
const DefaultVisibilityThreshold = 0.5

// minTorsoLength floors the scale factor used by Normalize.
const minTorsoLength = 0.01

// Processed is a landmark after visibility filtering and normalization.
// Invalid landmarks keep their raw coordinates so indices stay stable.
type Processed struct {
	Landmark
	Valid bool `json:"valid"`
}

// Point is a plain 3D position.
type Point struct{ X, Y, Z float64 }

// Reference holds the body-relative origin and scale of one frame.
type Reference struct {
	HipCenter   Point
	TorsoLength float64
}

// FilterVisibility flags every landmark with visibility below threshold as
// invalid. Nothing is dropped.
func FilterVisibility(lms []Landmark, threshold float64) []Processed {
	out := make([]Processed, len(lms))
	for i, lm := range lms {
		out[i] = Processed{Landmark: lm, Valid: lm.Visibility >= threshold}
	}
	return out
}

// HipCenter is the midpoint of the two hips.
func HipCenter(lms []Landmark) Point {
	return midpoint(lms, LeftHip, RightHip)
}

// MidShoulder is the midpoint of the two shoulders.
func MidShoulder(lms []Landmark) Point {
	return midpoint(lms, LeftShoulder, RightShoulder)
}

func midpoint(lms []Landmark, i, j int) Point {
	a, _ := At(lms, i)
	b, _ := At(lms, j)
	return Point{(a.X + b.X) / 2, (a.Y + b.Y) / 2, (a.Z + b.Z) / 2}
}

// ReferenceOf computes hip center and torso length from raw landmarks.
func ReferenceOf(lms []Landmark) Reference {
	hip := HipCenter(lms)
	sh := MidShoulder(lms)
	dx, dy, dz := sh.X-hip.X, sh.Y-hip.Y, sh.Z-hip.Z
	return Reference{HipCenter: hip, TorsoLength: math.Sqrt(dx*dx + dy*dy + dz*dz)}
}

// Normalize translates valid landmarks to the hip-center origin and scales
// them by torso length, floored at a small epsilon.
func Normalize(lms []Processed, ref Reference) []Processed {
	scale := ref.TorsoLength
	if scale < minTorsoLength {
		scale = minTorsoLength
	}
	out := make([]Processed, len(lms))
	for i, lm := range lms {
		if !lm.Valid {
			out[i] = lm
			continue
		}
		out[i] = Processed{
			Landmark: Landmark{
				X:          (lm.X - ref.HipCenter.X) / scale,
				Y:          (lm.Y - ref.HipCenter.Y) / scale,
				Z:          (lm.Z - ref.HipCenter.Z) / scale,
				Visibility: lm.Visibility,
			},
			Valid: true,
		}
	}
	return out
}

// Process runs visibility filtering then normalization. The reference is
// computed from the unfiltered input.
func Process(lms []Landmark, threshold float64) ([]Processed, Reference) {
	ref := ReferenceOf(lms)
	return Normalize(FilterVisibility(lms, threshold), ref), ref
}
