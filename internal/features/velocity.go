package features

import (
	"math"
	"time"

	"github.com/claude/repform/internal/pose"
)

// minVelocityDT below which two samples are considered simultaneous.
const minVelocityDT = time.Microsecond

// VelocityTracker reports the instantaneous 3D speed of one landmark between
// consecutive samples, in coordinate units per second.
type VelocityTracker struct {
	prev    pose.Landmark
	prevT   time.Time
	hasPrev bool
	current float64
}

// NewVelocityTracker returns an empty tracker.
func NewVelocityTracker() *VelocityTracker {
	return &VelocityTracker{}
}

// Update records the landmark position observed at t and returns the speed
// since the previous sample. The first sample after Reset yields 0.
func (v *VelocityTracker) Update(lm pose.Landmark, t time.Time) float64 {
	v.current = 0
	if v.hasPrev {
		dt := t.Sub(v.prevT)
		if dt > minVelocityDT {
			dx, dy, dz := lm.X-v.prev.X, lm.Y-v.prev.Y, lm.Z-v.prev.Z
			v.current = math.Sqrt(dx*dx+dy*dy+dz*dz) / dt.Seconds()
		}
	}
	v.prev = lm
	v.prevT = t
	v.hasPrev = true
	return v.current
}

// Current returns the last computed speed.
func (v *VelocityTracker) Current() float64 { return v.current }

// Reset forgets the previous sample.
func (v *VelocityTracker) Reset() {
	*v = VelocityTracker{}
}
