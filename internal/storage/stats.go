package storage

import (
	"context"
	"fmt"
	"time"
)

// SessionStats holds aggregate statistics about a user's stored sessions.
type SessionStats struct {
	TotalSessions int64          `json:"total_sessions"`
	TotalReps     int64          `json:"total_reps"`
	EarliestData  *time.Time     `json:"earliest_data"`
	LatestData    *time.Time     `json:"latest_data"`
	ByExercise    []ExerciseStat `json:"by_exercise"`
}

// ExerciseStat summarizes the sessions of a single exercise.
type ExerciseStat struct {
	Exercise       string  `json:"exercise"`
	Sessions       int64   `json:"sessions"`
	Reps           int64   `json:"reps"`
	AvgFinalScore  float64 `json:"avg_final_score"`
	BestFinalScore float64 `json:"best_final_score"`
}

// GetSessionStats returns aggregate statistics for a user's sessions.
func (db *DB) GetSessionStats(ctx context.Context, userID int) (*SessionStats, error) {
	stats := &SessionStats{ByExercise: []ExerciseStat{}}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_reps), 0),
		 MIN(COALESCE(started_at, created_at)), MAX(COALESCE(started_at, created_at))
		 FROM sessions WHERE user_id = $1`, userID,
	).Scan(&stats.TotalSessions, &stats.TotalReps, &stats.EarliestData, &stats.LatestData)
	if err != nil {
		return nil, fmt.Errorf("counting sessions: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT exercise, COUNT(*), COALESCE(SUM(total_reps), 0),
		 ROUND(AVG(avg_final_score)::numeric, 1)::float8, MAX(avg_final_score)
		 FROM sessions
		 WHERE user_id = $1
		 GROUP BY exercise
		 ORDER BY COUNT(*) DESC, exercise`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying exercise stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s ExerciseStat
		if err := rows.Scan(&s.Exercise, &s.Sessions, &s.Reps, &s.AvgFinalScore, &s.BestFinalScore); err != nil {
			return nil, fmt.Errorf("scanning exercise stat: %w", err)
		}
		stats.ByExercise = append(stats.ByExercise, s)
	}
	return stats, rows.Err()
}
