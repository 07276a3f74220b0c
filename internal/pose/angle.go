package pose

import "math"

// AngleFunc computes the angle in degrees at vertex b formed by a-b-c.
type AngleFunc func(a, b, c Landmark) float64

// minArmLength below which SpatialAngle treats the points as coincident.
const minArmLength = 1e-6

// PlanarAngle is the atan2 angle at b using x/y only, folded into [0,180].
// It is the canonical formula for exercise detection.
func PlanarAngle(a, b, c Landmark) float64 {
	radians := math.Atan2(c.Y-b.Y, c.X-b.X) - math.Atan2(a.Y-b.Y, a.X-b.X)
	angle := math.Abs(radians * 180.0 / math.Pi)
	if angle > 180.0 {
		angle = 360.0 - angle
	}
	return angle
}

// SpatialAngle is the cosine-rule angle between b→a and b→c using x/y/z.
// Returns 0 when either arm is degenerate.
func SpatialAngle(a, b, c Landmark) float64 {
	bax, bay, baz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	bcx, bcy, bcz := c.X-b.X, c.Y-b.Y, c.Z-b.Z

	magBA := math.Sqrt(bax*bax + bay*bay + baz*baz)
	magBC := math.Sqrt(bcx*bcx + bcy*bcy + bcz*bcz)
	if magBA < minArmLength || magBC < minArmLength {
		return 0.0
	}

	cosine := (bax*bcx + bay*bcy + baz*bcz) / (magBA * magBC)
	cosine = math.Max(-1, math.Min(1, cosine))
	return math.Acos(cosine) * 180.0 / math.Pi
}

// TrunkLean returns the angle in degrees between the hip→shoulder segment and
// image vertical. Image y grows downward, so an upright trunk reads 0.
func TrunkLean(shoulder, hip Landmark) float64 {
	dx := shoulder.X - hip.X
	dy := shoulder.Y - hip.Y
	return math.Abs(math.Atan2(dx, -dy) * 180.0 / math.Pi)
}
