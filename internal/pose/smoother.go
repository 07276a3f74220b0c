package pose

// DefaultAlpha suits slow rehab movement: enough lag to reject jitter without
// hiding the turn-around point of a rep.
const DefaultAlpha = 0.3

type point struct{ x, y, z float64 }

// Smoother applies an exponential moving average per landmark coordinate:
//
//	S_t = alpha*X_t + (1-alpha)*S_(t-1)
//
// The first frame after construction or Reset is passed through verbatim.
type Smoother struct {
	alpha float64
	state []point
}

// NewSmoother returns a Smoother. Alpha outside (0,1] falls back to DefaultAlpha.
func NewSmoother(alpha float64) *Smoother {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	return &Smoother{alpha: alpha}
}

// Alpha reports the smoothing factor in use.
func (s *Smoother) Alpha() float64 { return s.alpha }

// Reset drops all history.
func (s *Smoother) Reset() { s.state = nil }

// Smooth returns a filtered copy of lms. The input slice is not modified and
// visibility passes through unchanged.
func (s *Smoother) Smooth(lms []Landmark) []Landmark {
	out := make([]Landmark, len(lms))

	if s.state == nil || len(s.state) != len(lms) {
		s.state = make([]point, len(lms))
		for i, lm := range lms {
			s.state[i] = point{lm.X, lm.Y, lm.Z}
		}
		copy(out, lms)
		return out
	}

	a := s.alpha
	for i, lm := range lms {
		p := &s.state[i]
		p.x = a*lm.X + (1-a)*p.x
		p.y = a*lm.Y + (1-a)*p.y
		p.z = a*lm.Z + (1-a)*p.z
		out[i] = Landmark{X: p.x, Y: p.y, Z: p.z, Visibility: lm.Visibility}
	}
	return out
}
