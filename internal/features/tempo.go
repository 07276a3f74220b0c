package features

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// TempoTracker measures wall-clock rep duration. Reps chain: completing one
// immediately arms the start of the next.
type TempoTracker struct {
	start   time.Time
	pending bool
	history []float64
}

// NewTempoTracker returns an empty tracker.
func NewTempoTracker() *TempoTracker {
	return &TempoTracker{}
}

// StartRep records t as the rep start unless a start is already pending.
func (t *TempoTracker) StartRep(at time.Time) {
	if t.pending {
		return
	}
	t.start = at
	t.pending = true
}

// Pending reports whether a rep start has been recorded.
func (t *TempoTracker) Pending() bool { return t.pending }

// CompleteRep returns the seconds elapsed since the pending start, records it
// and re-arms the start at the same instant. With no pending start it returns
// 0 and records nothing.
func (t *TempoTracker) CompleteRep(at time.Time) float64 {
	if !t.pending {
		return 0
	}
	secs := at.Sub(t.start).Seconds()
	if secs < 0 {
		secs = 0
	}
	t.history = append(t.history, secs)
	t.start = at
	return secs
}

// AverageTempo is the mean recorded rep duration in seconds, or 0.
func (t *TempoTracker) AverageTempo() float64 {
	if len(t.history) == 0 {
		return 0
	}
	return stat.Mean(t.history, nil)
}

// History returns a copy of recorded rep durations.
func (t *TempoTracker) History() []float64 {
	return append([]float64(nil), t.history...)
}

// Reset clears the pending start and history.
func (t *TempoTracker) Reset() {
	*t = TempoTracker{}
}
