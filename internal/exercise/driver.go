package exercise

import "fmt"

// Direction says which way the tracked metric moves during the counted phase
// of a rep.
type Direction int

const (
	// Falling reps rest above Start and complete below Complete.
	Falling Direction = iota
	// Rising reps rest below Start and complete above Complete.
	Rising
	// Alternating metrics swing between two sides: below Start is one side,
	// above Complete the other. Every switch to the opposite side counts.
	Alternating
)

func (d Direction) String() string {
	switch d {
	case Falling:
		return "falling"
	case Rising:
		return "rising"
	case Alternating:
		return "alternating"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// MarshalText encodes the direction by name.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Thresholds configure the two-threshold rep detector.
type Thresholds struct {
	Direction Direction `json:"direction"`
	Start     float64   `json:"start"`
	Complete  float64   `json:"complete"`
}

// Signal is what one metric sample caused.
type Signal struct {
	Started   bool
	Completed bool
}

// Driver is a two-state rep detector. Crossing Start puts it at rest and
// signals a rep start; crossing Complete while at rest counts a rep and
// makes it active until the metric returns past Start.
type Driver struct {
	th      Thresholds
	resting bool
	seen    bool
	// side is the last side an Alternating metric reached: -1, 0 or 1.
	side int
}

// NewDriver returns a driver that has not yet seen the rest position.
func NewDriver(th Thresholds) *Driver {
	return &Driver{th: th}
}

// Step feeds one metric sample. For Alternating thresholds a switch of side
// both completes the previous rep and starts the next one.
func (d *Driver) Step(v float64) Signal {
	if d.th.Direction == Alternating {
		return d.alternate(v)
	}
	var sig Signal
	if d.pastStart(v) {
		d.resting = true
		d.seen = true
		sig.Started = true
	}
	if d.resting && d.pastComplete(v) {
		d.resting = false
		sig.Completed = true
	}
	return sig
}

func (d *Driver) alternate(v float64) Signal {
	side := 0
	switch {
	case v < d.th.Start:
		side = -1
	case v > d.th.Complete:
		side = 1
	}
	if side == 0 || side == d.side {
		return Signal{}
	}
	sig := Signal{Started: true, Completed: d.side != 0}
	d.side = side
	d.seen = true
	d.resting = side < 0
	return sig
}

func (d *Driver) pastStart(v float64) bool {
	if d.th.Direction == Rising {
		return v < d.th.Start
	}
	return v > d.th.Start
}

func (d *Driver) pastComplete(v float64) bool {
	if d.th.Direction == Rising {
		return v > d.th.Complete
	}
	return v < d.th.Complete
}

// Resting reports whether the driver is waiting at the rest position.
func (d *Driver) Resting() bool { return d.resting }

// Seen reports whether the rest position has been reached at least once.
func (d *Driver) Seen() bool { return d.seen }

// Reset forgets the current stage.
func (d *Driver) Reset() {
	d.resting = false
	d.seen = false
	d.side = 0
}
