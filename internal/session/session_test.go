package session

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/claude/repform/internal/scoring"
)

var t0 = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func scores(final float64) scoring.RepScores {
	return scoring.RepScores{ROM: final, Stability: final, Tempo: final, Asymmetry: 100, Final: final}
}

// TestAveragesAndTotal verifies means over recorded reps.
func TestAveragesAndTotal(t *testing.T) {
	s := New("Squats", t0)
	for _, f := range []float64{70, 80, 90} {
		s.AddRep(scores(f), 60, 4, nil)
	}
	if got := s.AvgFinal(); got != 80 {
		t.Errorf("AvgFinal = %v, want 80", got)
	}
	sum := s.Summary()
	if sum.TotalReps != 3 {
		t.Errorf("TotalReps = %d, want 3", sum.TotalReps)
	}
	if sum.AvgFinalScore != 80 || sum.AvgAsymmetryScore != 100 {
		t.Errorf("summary averages = %+v", sum)
	}
}

// TestEmptySession verifies every average is zero rather than NaN.
func TestEmptySession(t *testing.T) {
	s := New("Squats", t0)
	for name, v := range map[string]float64{
		"final":     s.AvgFinal(),
		"rom":       s.AvgROM(),
		"stability": s.AvgStability(),
		"tempo":     s.AvgTempo(),
		"asymmetry": s.AvgAsymmetry(),
	} {
		if v != 0 {
			t.Errorf("%s average = %v, want 0", name, v)
		}
	}
	if got := s.Summary().FeedbackEvents; got == nil || len(got) != 0 {
		t.Errorf("FeedbackEvents = %#v, want empty non-nil slice", got)
	}
}

// TestRepNumbersFromInsertionOrder verifies reps are numbered 1..n.
func TestRepNumbersFromInsertionOrder(t *testing.T) {
	s := New("Squats", t0)
	for i := 0; i < 4; i++ {
		rec := s.AddRep(scores(50), 0, 0, nil)
		if rec.Number != i+1 {
			t.Errorf("rep %d numbered %d", i, rec.Number)
		}
	}
}

// TestFeedbackEventsDeduplicated verifies repeated messages appear once and
// sorted.
func TestFeedbackEventsDeduplicated(t *testing.T) {
	s := New("Squats", t0)
	s.AddRep(scores(50), 0, 0, []string{"Keep chest upright", "Slow down for controlled tempo"})
	s.AddRep(scores(50), 0, 0, []string{"Keep chest upright"})
	want := []string{"Keep chest upright", "Slow down for controlled tempo"}
	if diff := cmp.Diff(want, s.FeedbackEvents()); diff != "" {
		t.Errorf("FeedbackEvents mismatch (-want +got):\n%s", diff)
	}
}

// TestAddRepCopiesFeedback verifies a rep record does not alias the caller's
// slice.
func TestAddRepCopiesFeedback(t *testing.T) {
	s := New("Squats", t0)
	fb := []string{"a"}
	s.AddRep(scores(50), 0, 0, fb)
	fb[0] = "b"
	if got := s.Reps()[0].Feedback[0]; got != "a" {
		t.Errorf("feedback = %q, want a", got)
	}
}

// TestDuration verifies open sessions measure against now and End is applied
// only once.
func TestDuration(t *testing.T) {
	s := New("Squats", t0)
	s.now = func() time.Time { return t0.Add(42 * time.Second) }
	if got := s.Duration(); got != 42*time.Second {
		t.Errorf("open Duration = %v, want 42s", got)
	}
	s.End(t0.Add(90 * time.Second))
	s.End(t0.Add(500 * time.Second))
	if got := s.Summary().DurationSeconds; got != 90 {
		t.Errorf("DurationSeconds = %v, want 90", got)
	}
}

// TestRecordRoundTrip verifies a session written to disk parses back with the
// same totals and per-rep scores.
func TestRecordRoundTrip(t *testing.T) {
	s := New("Wall Push-ups", t0)
	s.AddRep(scoring.RepScores{ROM: 88.3, Stability: 71.2, Tempo: 95, Asymmetry: 100, Final: 84.1}, 52.987, 3.456, []string{"Keep chest upright"})
	s.AddRep(scoring.RepScores{ROM: 64.9, Stability: 80, Tempo: 60.5, Asymmetry: 100, Final: 68.5}, 38.94, 6.111, nil)
	s.End(t0.Add(20 * time.Second))

	path := filepath.Join(t.TempDir(), "session.json")
	if err := s.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	want := s.Record()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if got.TotalReps != 2 || got.AvgFinalScore != 76.3 {
		t.Errorf("totals = %d / %v, want 2 / 76.3", got.TotalReps, got.AvgFinalScore)
	}
	if got.Reps[0].ROMValue != 53 || got.Reps[0].RepTime != 3.46 {
		t.Errorf("rep 1 raw values = %v / %v, want 53 / 3.46", got.Reps[0].ROMValue, got.Reps[0].RepTime)
	}
}

// TestParseRejectsInconsistentRecord verifies malformed files are reported.
func TestParseRejectsInconsistentRecord(t *testing.T) {
	cases := map[string]string{
		"not json":         `{`,
		"missing exercise": `{"total_reps":0,"reps":[]}`,
		"count mismatch":   `{"exercise":"Squats","total_reps":2,"reps":[{"rep":1}]}`,
	}
	for name, body := range cases {
		if _, err := Parse([]byte(body)); err == nil {
			t.Errorf("%s: expected error", name)
		} else if !strings.Contains(err.Error(), "parsing session record") {
			t.Errorf("%s: unexpected error %v", name, err)
		}
	}
}

// TestInsights verifies tier, component and consistency remarks.
func TestInsights(t *testing.T) {
	s := New("Squats", t0)
	for i := 0; i < 3; i++ {
		s.AddRep(scoring.RepScores{ROM: 95, Stability: 40, Tempo: 75, Final: 88}, 0, 0, nil)
	}
	got := Insights(s.Record())
	want := []string{
		"Excellent session! Your form is consistently strong.",
		"ROM: Great range of motion, full movement achieved!",
		"Stability: Focus on keeping your body still during the exercise.",
		"Consistency: Very consistent performance across all reps!",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Insights mismatch (-want +got):\n%s", diff)
	}
}

// TestInsightsInconsistent verifies a wide spread of final scores is called
// out and short sessions skip the consistency remark.
func TestInsightsInconsistent(t *testing.T) {
	rec := Record{Summary: Summary{AvgFinalScore: 55, AvgROMScore: 70, AvgStabilityScore: 70, AvgTempoScore: 70}}
	for _, f := range []float64{20, 55, 90} {
		rec.Reps = append(rec.Reps, Rep{FinalScore: f})
	}
	got := Insights(rec)
	if got[len(got)-1] != "Consistency: Try to maintain more even quality across reps." {
		t.Errorf("last insight = %q", got[len(got)-1])
	}

	rec.Reps = rec.Reps[:2]
	for _, line := range Insights(rec) {
		if strings.HasPrefix(line, "Consistency") {
			t.Errorf("two-rep session got consistency remark %q", line)
		}
	}
}

// TestDedupeKey verifies timed records are keyed by start time and untimed
// records by content.
func TestDedupeKey(t *testing.T) {
	untimed := func(finals ...float64) Record {
		rec := Record{Summary: Summary{Exercise: "squats", TotalReps: len(finals), FeedbackEvents: []string{}}, Reps: []Rep{}}
		for i, f := range finals {
			rec.Reps = append(rec.Reps, Rep{Rep: i + 1, FinalScore: f, Feedback: []string{}})
		}
		return rec
	}

	if untimed(80, 90).DedupeKey() != untimed(80, 90).DedupeKey() {
		t.Error("identical untimed records should share a key")
	}
	if untimed(80, 90).DedupeKey() == untimed(80, 91).DedupeKey() {
		t.Error("different untimed records should not share a key")
	}

	start := t0
	a, b := untimed(80), untimed(95)
	a.StartedAt, b.StartedAt = &start, &start
	if a.DedupeKey() != b.DedupeKey() {
		t.Error("records with the same start should share a key")
	}
	if !strings.HasPrefix(a.DedupeKey(), "squats|") {
		t.Errorf("key = %q, want exercise prefix", a.DedupeKey())
	}
	if a.DedupeKey() == untimed(80).DedupeKey() {
		t.Error("timed and untimed records should not share a key")
	}
}
