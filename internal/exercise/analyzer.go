package exercise

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/claude/repform/internal/features"
	"github.com/claude/repform/internal/feedback"
	"github.com/claude/repform/internal/pose"
	"github.com/claude/repform/internal/scoring"
	"github.com/claude/repform/internal/session"
)

// Options tune the per-frame pipeline. Zero values select defaults.
type Options struct {
	SmoothingAlpha      float64
	SwayWindow          int
	VisibilityThreshold float64
	// Rules replaces the default feedback rule set when non-nil.
	Rules  []feedback.Rule
	Logger *slog.Logger
}

// FrameUpdate reports what one frame produced.
type FrameUpdate struct {
	Time      time.Time
	Metric    float64
	HasMetric bool
	Stage     string
	Prompt    string
	Reps      int
	Sway      float64
	Velocity  float64
	Feedback  []string
	// Completed is set on the frame that finished a rep.
	Completed *session.RepRecord
}

// Analyzer drives the scoring pipeline for one exercise. It owns the
// smoother, every feature tracker, the scorer, the feedback engine and the
// current session. It is not safe for concurrent use.
type Analyzer struct {
	def        Definition
	visibility float64
	logger     *slog.Logger

	smoother *pose.Smoother
	rom      *features.ROMTracker
	velocity *features.VelocityTracker
	sway     *features.SwayTracker
	tempo    *features.TempoTracker
	scorer   *scoring.Scorer
	engine   *feedback.Engine
	driver   *Driver

	sess      *session.Session
	lastTime  time.Time
	last      []pose.Landmark
	left      *float64
	right     *float64
	asymmetry float64

	// repFeedback collects distinct messages seen since the last completion.
	repFeedback  []string
	repCompleted []string
	prompt       string
}

// NewAnalyzer returns an analyzer for def. The definition's Config is copied
// into the scorer; adjust it before calling.
func NewAnalyzer(def Definition, opts Options) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	vis := opts.VisibilityThreshold
	if vis <= 0 {
		vis = pose.DefaultVisibilityThreshold
	}

	engine := feedback.NewEngine(logger)
	rules := opts.Rules
	if rules == nil {
		rules = feedback.DefaultRules()
	}
	for _, r := range rules {
		engine.Add(r)
	}

	a := &Analyzer{
		def:        def,
		visibility: vis,
		logger:     logger.With("exercise", def.Key),
		smoother:   pose.NewSmoother(opts.SmoothingAlpha),
		rom:        features.NewROMTracker(),
		velocity:   features.NewVelocityTracker(),
		sway:       features.NewSwayTracker(opts.SwayWindow),
		tempo:      features.NewTempoTracker(),
		scorer:     scoring.NewScorer(def.Config),
		engine:     engine,
		driver:     NewDriver(def.Thresholds),
	}
	a.Reset()
	return a
}

// Definition returns the exercise being analyzed.
func (a *Analyzer) Definition() Definition { return a.def }

// Config returns the scoring configuration in use.
func (a *Analyzer) Config() scoring.ExerciseConfig { return a.scorer.Config() }

// Reset clears the smoother, every tracker and the rep detector, and drops
// the current session. The next hook call starts a new one.
func (a *Analyzer) Reset() {
	a.smoother.Reset()
	a.rom.Reset()
	a.velocity.Reset()
	a.sway.Reset()
	a.tempo.Reset()
	a.driver.Reset()
	a.sess = nil
	a.lastTime = time.Time{}
	a.last = nil
	a.left, a.right = nil, nil
	a.asymmetry = 0
	a.repFeedback = nil
	a.repCompleted = nil
	a.prompt = ""
}

// Session returns the current session, or nil before the first frame.
func (a *Analyzer) Session() *session.Session { return a.sess }

func (a *Analyzer) ensureSession(t time.Time) {
	if a.sess == nil {
		a.sess = session.New(a.def.Name, t)
	}
}

// timestamp never lets time run backwards.
func (a *Analyzer) timestamp(t time.Time) time.Time {
	if !a.lastTime.IsZero() && t.Before(a.lastTime) {
		return a.lastTime
	}
	a.lastTime = t
	return t
}

func (a *Analyzer) allValid(lms []pose.Processed, idx []int) bool {
	if len(idx) == 0 {
		return false
	}
	for _, i := range idx {
		if i < 0 || i >= len(lms) || !lms[i].Valid {
			return false
		}
	}
	return true
}

// OnFrame runs one frame through smoothing, feature tracking, rep detection
// and feedback.
func (a *Analyzer) OnFrame(frame pose.Frame) FrameUpdate {
	t := a.timestamp(frame.Time)
	a.ensureSession(t)

	smoothed := a.smoother.Smooth(frame.Landmarks)
	processed, ref := pose.Process(smoothed, a.visibility)
	a.last = smoothed

	up := FrameUpdate{Time: t}

	if a.allValid(processed, []int{pose.LeftHip, pose.RightHip}) {
		up.Sway = a.sway.Update(ref.HipCenter.X)
	} else {
		up.Sway = a.sway.Current()
	}
	if a.allValid(processed, []int{a.def.VelocityLandmark}) {
		up.Velocity = a.velocity.Update(smoothed[a.def.VelocityLandmark], t)
	}

	var sig Signal
	if a.def.Metric != nil && a.allValid(processed, a.def.Landmarks) {
		v := a.def.Metric(smoothed)
		up.Metric, up.HasMetric = v, true
		a.rom.Update(v)
		a.left = &v

		// Left and right must come from the same frame.
		if a.def.Mirror != nil && a.allValid(processed, a.def.MirrorLandmarks) {
			r := a.def.Mirror(smoothed)
			a.right = &r
			a.asymmetry = math.Abs(v - r)
		} else {
			a.right = nil
			a.asymmetry = 0
		}

		sig = a.driver.Step(v)
		if sig.Started {
			a.OnRepStart(t)
			a.prompt = a.def.Prompt
		}
	}

	// Depth and tempo rules need a finished rep, so per-frame evaluation
	// leaves those measurements at zero.
	up.Feedback = a.engine.Evaluate(smoothed, a.context(0, 0))
	a.collect(up.Feedback)

	if sig.Completed {
		a.OnRepComplete(t, a.sway.Current())
		reps := a.sess.Reps()
		rec := reps[len(reps)-1]
		up.Completed = &rec
		up.Feedback = a.repCompleted
		a.prompt = fmt.Sprintf("Rep done! Score: %.1f", rec.Scores.Final)
	}

	up.Stage = a.stage()
	up.Prompt = a.prompt
	up.Reps = a.sess.TotalReps()
	return up
}

func (a *Analyzer) stage() string {
	switch {
	case !a.driver.Seen():
		return ""
	case a.driver.Resting():
		return a.def.RestStage
	default:
		return a.def.ActiveStage
	}
}

func (a *Analyzer) context(rom, repTime float64) feedback.Context {
	cfg := a.scorer.Config()
	return feedback.Context{
		feedback.KeyCurrentROM:     rom,
		feedback.KeyTargetROM:      cfg.TargetROM,
		feedback.KeyRepTime:        repTime,
		feedback.KeyIdealRepTime:   cfg.IdealRepTime,
		feedback.KeyAsymmetryValue: a.asymmetry,
	}
}

func (a *Analyzer) collect(msgs []string) {
	for _, m := range msgs {
		dup := false
		for _, seen := range a.repFeedback {
			if seen == m {
				dup = true
				break
			}
		}
		if !dup {
			a.repFeedback = append(a.repFeedback, m)
		}
	}
}

// OnRepStart marks the start of a rep movement. Calls while a start is
// already pending are ignored.
func (a *Analyzer) OnRepStart(t time.Time) {
	a.ensureSession(t)
	a.tempo.StartRep(t)
}

// OnRepComplete finalizes ROM and tempo together, scores the rep against the
// given sway, and appends it to the session along with the feedback raised
// since the previous rep.
func (a *Analyzer) OnRepComplete(t time.Time, sway float64) scoring.RepScores {
	a.ensureSession(t)

	rom := a.rom.CompleteRep()
	repTime := a.tempo.CompleteRep(t)

	f := scoring.RepFeatures{ROM: rom, Sway: sway, RepTime: repTime}
	if a.left != nil && a.right != nil {
		f.Left, f.Right = a.left, a.right
	}
	scores := a.scorer.ScoreRep(f)

	a.repCompleted = a.engine.Evaluate(a.last, a.context(rom, repTime))
	a.collect(a.repCompleted)
	rec := a.sess.AddRep(scores, rom, repTime, a.repFeedback)
	a.repFeedback = nil
	a.left, a.right = nil, nil
	a.asymmetry = 0

	a.logger.Debug("rep completed",
		"rep", rec.Number,
		"rom", scoring.Round1(rom),
		"rep_time", scoring.Round2(repTime),
		"final", scores.Final,
	)
	return scores
}

// Finish ends the current session at t and returns it. A session with no
// frames is started and ended at t.
func (a *Analyzer) Finish(t time.Time) *session.Session {
	a.ensureSession(t)
	a.sess.End(t)
	return a.sess
}

// FrameSource yields frames in time order and returns io.EOF when exhausted.
type FrameSource interface {
	Next() (pose.Frame, error)
}

// Run resets the analyzer, feeds every frame from src and returns the ended
// session. The session ends at the last frame's timestamp.
func (a *Analyzer) Run(ctx context.Context, src FrameSource) (*session.Session, error) {
	a.Reset()
	var last time.Time
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading frame: %w", err)
		}
		last = a.OnFrame(frame).Time
	}
	if last.IsZero() {
		last = time.Now()
	}
	return a.Finish(last), nil
}

// Frames adapts a slice to a FrameSource.
func Frames(frames []pose.Frame) FrameSource {
	return &sliceSource{frames: frames}
}

type sliceSource struct {
	frames []pose.Frame
	next   int
}

func (s *sliceSource) Next() (pose.Frame, error) {
	if s.next >= len(s.frames) {
		return pose.Frame{}, io.EOF
	}
	f := s.frames[s.next]
	s.next++
	return f, nil
}
