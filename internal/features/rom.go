package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ROMTracker records the spread of a scalar angle (or proxy metric) between
// rep boundaries.
type ROMTracker struct {
	max     float64
	min     float64
	history []float64
}

// NewROMTracker returns an empty tracker.
func NewROMTracker() *ROMTracker {
	t := &ROMTracker{}
	t.clearExtremes()
	return t
}

func (t *ROMTracker) clearExtremes() {
	t.max = math.Inf(-1)
	t.min = math.Inf(1)
}

// Update folds the current frame's value into the running extremes.
func (t *ROMTracker) Update(angle float64) {
	t.max = math.Max(t.max, angle)
	t.min = math.Min(t.min, angle)
}

// Current is the spread observed so far in the rep in progress.
func (t *ROMTracker) Current() float64 {
	return spread(t.max, t.min)
}

// CompleteRep returns the ROM of the finished rep, records it and clears the
// extremes for the next rep.
func (t *ROMTracker) CompleteRep() float64 {
	rom := spread(t.max, t.min)
	t.history = append(t.history, rom)
	t.clearExtremes()
	return rom
}

// AverageROM is the mean of all recorded per-rep ROM values, or 0.
func (t *ROMTracker) AverageROM() float64 {
	if len(t.history) == 0 {
		return 0
	}
	return stat.Mean(t.history, nil)
}

// History returns a copy of the per-rep ROM values.
func (t *ROMTracker) History() []float64 {
	return append([]float64(nil), t.history...)
}

// Reset clears extremes and history.
func (t *ROMTracker) Reset() {
	t.clearExtremes()
	t.history = nil
}

// spread is max-min floored at 0. With no samples max is -Inf and min is +Inf,
// so the difference is -Inf and floors to 0.
func spread(max, min float64) float64 {
	d := max - min
	if d < 0 || math.IsNaN(d) {
		return 0
	}
	return d
}
