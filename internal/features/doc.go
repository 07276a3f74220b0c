// Package features holds the per-frame accumulators that turn a stream of
// joint angles and landmark positions into per-rep biomechanical features:
// range of motion, joint velocity, hip sway and tempo.
//
// Trackers are not safe for concurrent use. Each one is owned by a single
// exercise analyzer and driven from its frame loop.
package features
