package features

import "gonum.org/v1/gonum/stat"

const (
	// DefaultSwayWindow is roughly one second of frames at 30 fps.
	DefaultSwayWindow = 30

	// minSwaySamples before the window is considered reliable.
	minSwaySamples = 5
)

// SwayTracker keeps a fixed-capacity window of horizontal hip-center
// positions and reports their population standard deviation.
type SwayTracker struct {
	window  []float64
	next    int
	full    bool
	current float64
}

// NewSwayTracker returns a tracker with the given capacity. Non-positive
// sizes fall back to DefaultSwayWindow.
func NewSwayTracker(size int) *SwayTracker {
	if size <= 0 {
		size = DefaultSwayWindow
	}
	return &SwayTracker{window: make([]float64, 0, size)}
}

// Update appends x, evicting the oldest sample once the window is full, and
// returns the current sway. Sway reads 0 until minSwaySamples are collected.
func (s *SwayTracker) Update(x float64) float64 {
	if !s.full {
		s.window = append(s.window, x)
		if len(s.window) == cap(s.window) {
			s.full = true
		}
	} else {
		s.window[s.next] = x
		s.next = (s.next + 1) % len(s.window)
	}

	if len(s.window) < minSwaySamples {
		s.current = 0
		return 0
	}
	_, s.current = stat.PopMeanStdDev(s.window, nil)
	return s.current
}

// Current returns the last computed sway.
func (s *SwayTracker) Current() float64 { return s.current }

// Len is the number of samples currently in the window.
func (s *SwayTracker) Len() int { return len(s.window) }

// Reset empties the window.
func (s *SwayTracker) Reset() {
	s.window = s.window[:0]
	s.next = 0
	s.full = false
	s.current = 0
}
