package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/claude/repform/internal/scoring"
)

// Summary is the fixed-shape aggregate of a session.
type Summary struct {
	Exercise          string   `json:"exercise"`
	TotalReps         int      `json:"total_reps"`
	AvgFinalScore     float64  `json:"avg_final_score"`
	AvgROMScore       float64  `json:"avg_rom_score"`
	AvgStabilityScore float64  `json:"avg_stability_score"`
	AvgTempoScore     float64  `json:"avg_tempo_score"`
	AvgAsymmetryScore float64  `json:"avg_asymmetry_score"`
	DurationSeconds   float64  `json:"duration_seconds"`
	FeedbackEvents    []string `json:"feedback_events"`
}

// Rep is the persisted form of a RepRecord.
type Rep struct {
	Rep            int      `json:"rep"`
	ROMScore       float64  `json:"rom_score"`
	StabilityScore float64  `json:"stability_score"`
	TempoScore     float64  `json:"tempo_score"`
	AsymmetryScore float64  `json:"asymmetry_score"`
	FinalScore     float64  `json:"final_score"`
	ROMValue       float64  `json:"rom_value"`
	RepTime        float64  `json:"rep_time"`
	Feedback       []string `json:"feedback"`
}

// Record is the persisted session file: the summary plus every rep.
// StartedAt and EndedAt are optional and omitted when unknown.
type Record struct {
	Summary
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Reps      []Rep      `json:"reps"`
}

// Summary returns the rounded aggregate view of the session.
func (s *Session) Summary() Summary {
	return Summary{
		Exercise:          s.Exercise,
		TotalReps:         s.TotalReps(),
		AvgFinalScore:     scoring.Round1(s.AvgFinal()),
		AvgROMScore:       scoring.Round1(s.AvgROM()),
		AvgStabilityScore: scoring.Round1(s.AvgStability()),
		AvgTempoScore:     scoring.Round1(s.AvgTempo()),
		AvgAsymmetryScore: scoring.Round1(s.AvgAsymmetry()),
		DurationSeconds:   scoring.Round1(s.Duration().Seconds()),
		FeedbackEvents:    s.FeedbackEvents(),
	}
}

// Record returns the persisted form of the session.
func (s *Session) Record() Record {
	rec := Record{Summary: s.Summary(), Reps: make([]Rep, len(s.reps))}
	if !s.Start.IsZero() {
		start := s.Start
		rec.StartedAt = &start
	}
	if s.ended {
		end := s.end
		rec.EndedAt = &end
	}
	for i, r := range s.reps {
		fb := r.Feedback
		if fb == nil {
			fb = []string{}
		}
		rec.Reps[i] = Rep{
			Rep:            r.Number,
			ROMScore:       r.Scores.ROM,
			StabilityScore: r.Scores.Stability,
			TempoScore:     r.Scores.Tempo,
			AsymmetryScore: r.Scores.Asymmetry,
			FinalScore:     r.Scores.Final,
			ROMValue:       scoring.Round1(r.ROMValue),
			RepTime:        scoring.Round2(r.RepTime),
			Feedback:       fb,
		}
	}
	return rec
}

// Marshal encodes the record as indented JSON.
func (r Record) Marshal() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// DedupeKey identifies a record for duplicate detection. Records with a
// start time are keyed by exercise and start; records without one by a hash
// of their content, so re-sending the same file is recognized while distinct
// untimed sessions are kept.
func (r Record) DedupeKey() string {
	if r.StartedAt != nil {
		return fmt.Sprintf("%s|%d", r.Exercise, r.StartedAt.UnixMicro())
	}
	data, err := json.Marshal(r)
	if err != nil {
		return r.Exercise + "|"
	}
	sum := sha256.Sum256(data)
	return r.Exercise + "|sha256:" + hex.EncodeToString(sum[:])
}

// Parse decodes a persisted session file.
func Parse(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("parsing session record: %w", err)
	}
	if rec.Exercise == "" {
		return Record{}, fmt.Errorf("parsing session record: missing exercise")
	}
	if rec.TotalReps != len(rec.Reps) {
		return Record{}, fmt.Errorf("parsing session record: total_reps %d but %d reps", rec.TotalReps, len(rec.Reps))
	}
	return rec, nil
}

// WriteFile saves the session record to path.
func (s *Session) WriteFile(path string) error {
	data, err := s.Record().Marshal()
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	return nil
}

// ReadFile loads a persisted session record from path.
func ReadFile(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("reading session file: %w", err)
	}
	return Parse(data)
}
