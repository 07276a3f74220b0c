// Package session accumulates scored reps into a session and serializes the
// result to its persisted JSON form.
package session

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/claude/repform/internal/scoring"
)

// RepRecord is an immutable snapshot of one completed rep.
type RepRecord struct {
	Number   int
	Scores   scoring.RepScores
	ROMValue float64
	RepTime  float64
	Feedback []string
}

// Session is the ordered record of one exercise bout.
type Session struct {
	Exercise string
	Start    time.Time

	end    time.Time
	ended  bool
	reps   []RepRecord
	events map[string]struct{}

	now func() time.Time
}

// New starts a session at start.
func New(exercise string, start time.Time) *Session {
	return &Session{
		Exercise: exercise,
		Start:    start,
		events:   make(map[string]struct{}),
		now:      time.Now,
	}
}

// AddRep appends a rep. Its number is assigned from insertion order starting
// at 1. Feedback messages are also added to the session's event set.
func (s *Session) AddRep(scores scoring.RepScores, romValue, repTime float64, feedback []string) RepRecord {
	rec := RepRecord{
		Number:   len(s.reps) + 1,
		Scores:   scores,
		ROMValue: romValue,
		RepTime:  repTime,
		Feedback: append([]string(nil), feedback...),
	}
	s.reps = append(s.reps, rec)
	for _, msg := range feedback {
		s.events[msg] = struct{}{}
	}
	return rec
}

// End marks the session finished at t. Only the first call has effect.
func (s *Session) End(t time.Time) {
	if s.ended {
		return
	}
	s.end = t
	s.ended = true
}

// Ended reports whether End has been called.
func (s *Session) Ended() bool { return s.ended }

// EndTime returns the end time, or the zero time while the session is open.
func (s *Session) EndTime() time.Time { return s.end }

// Duration is end minus start, using the current time for an open session.
func (s *Session) Duration() time.Duration {
	end := s.end
	if !s.ended {
		end = s.now()
	}
	return end.Sub(s.Start)
}

// Reps returns a copy of the recorded reps in order.
func (s *Session) Reps() []RepRecord {
	out := make([]RepRecord, len(s.reps))
	copy(out, s.reps)
	return out
}

// TotalReps is the number of recorded reps.
func (s *Session) TotalReps() int { return len(s.reps) }

// FeedbackEvents returns every distinct feedback message, sorted.
func (s *Session) FeedbackEvents() []string {
	out := make([]string, 0, len(s.events))
	for msg := range s.events {
		out = append(out, msg)
	}
	sort.Strings(out)
	return out
}

func (s *Session) mean(pick func(scoring.RepScores) float64) float64 {
	if len(s.reps) == 0 {
		return 0
	}
	vals := make([]float64, len(s.reps))
	for i, r := range s.reps {
		vals[i] = pick(r.Scores)
	}
	return stat.Mean(vals, nil)
}

func (s *Session) AvgFinal() float64 {
	return s.mean(func(r scoring.RepScores) float64 { return r.Final })
}

func (s *Session) AvgROM() float64 {
	return s.mean(func(r scoring.RepScores) float64 { return r.ROM })
}

func (s *Session) AvgStability() float64 {
	return s.mean(func(r scoring.RepScores) float64 { return r.Stability })
}

func (s *Session) AvgTempo() float64 {
	return s.mean(func(r scoring.RepScores) float64 { return r.Tempo })
}

func (s *Session) AvgAsymmetry() float64 {
	return s.mean(func(r scoring.RepScores) float64 { return r.Asymmetry })
}
