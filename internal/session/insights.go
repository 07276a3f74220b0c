package session

import "gonum.org/v1/gonum/stat"

// Insights returns constructive remarks on a finished session: an overall
// tier, notes on weak or strong components and, with three or more reps, a
// consistency remark.
func Insights(rec Record) []string {
	var out []string

	switch avg := rec.AvgFinalScore; {
	case avg >= 85:
		out = append(out, "Excellent session! Your form is consistently strong.")
	case avg >= 70:
		out = append(out, "Good session! Some room for improvement.")
	case avg >= 50:
		out = append(out, "Keep practicing! Focus on the weaker areas below.")
	default:
		out = append(out, "This is a starting point. Every rep builds strength.")
	}

	out = appendComponent(out, rec.AvgROMScore,
		"ROM: Try to increase your range of motion gradually.",
		"ROM: Great range of motion, full movement achieved!")
	out = appendComponent(out, rec.AvgStabilityScore,
		"Stability: Focus on keeping your body still during the exercise.",
		"Stability: Excellent balance and control!")
	out = appendComponent(out, rec.AvgTempoScore,
		"Tempo: Try to maintain a slow, controlled pace.",
		"Tempo: Perfect controlled rhythm!")

	if len(rec.Reps) >= 3 {
		finals := make([]float64, len(rec.Reps))
		for i, r := range rec.Reps {
			finals[i] = r.FinalScore
		}
		_, std := stat.PopMeanStdDev(finals, nil)
		switch {
		case std < 5:
			out = append(out, "Consistency: Very consistent performance across all reps!")
		case std > 15:
			out = append(out, "Consistency: Try to maintain more even quality across reps.")
		}
	}
	return out
}

func appendComponent(out []string, avg float64, low, high string) []string {
	switch {
	case avg < 60:
		return append(out, low)
	case avg >= 90:
		return append(out, high)
	}
	return out
}
