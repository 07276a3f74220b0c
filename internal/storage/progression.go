package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/claude/repform/internal/progression"
	"github.com/jackc/pgx/v5"
)

// GetProgression returns the user's progression state, or a fresh default
// state when none has been stored.
func (db *DB) GetProgression(ctx context.Context, userID int) (*progression.State, error) {
	st := progression.NewState()
	err := db.Pool.QueryRow(ctx,
		`SELECT session_scores, target_reps, target_rom_multiplier, sway_tolerance_multiplier
		 FROM progression WHERE user_id = $1`,
		userID,
	).Scan(&st.SessionScores, &st.TargetReps, &st.ROMMultiplier, &st.SwayMultiplier)
	if errors.Is(err, pgx.ErrNoRows) {
		return progression.NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying progression: %w", err)
	}
	if st.SessionScores == nil {
		st.SessionScores = []float64{}
	}
	return st, nil
}

// updateProgression locks the user's progression row, passes the state to fn
// and writes back whatever fn leaves in it. Concurrent updates for the same
// user are serialized by the row lock.
func updateProgression(ctx context.Context, tx pgx.Tx, userID int, fn ProgressFunc) (progression.Decision, *progression.State, error) {
	if _, err := tx.Exec(ctx,
		`INSERT INTO progression (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		userID); err != nil {
		return progression.Decision{}, nil, fmt.Errorf("seeding progression: %w", err)
	}

	st := progression.NewState()
	err := tx.QueryRow(ctx,
		`SELECT session_scores, target_reps, target_rom_multiplier, sway_tolerance_multiplier
		 FROM progression WHERE user_id = $1 FOR UPDATE`,
		userID,
	).Scan(&st.SessionScores, &st.TargetReps, &st.ROMMultiplier, &st.SwayMultiplier)
	if err != nil {
		return progression.Decision{}, nil, fmt.Errorf("locking progression: %w", err)
	}
	if st.SessionScores == nil {
		st.SessionScores = []float64{}
	}

	decision := fn(st)

	if _, err := tx.Exec(ctx,
		`UPDATE progression SET session_scores = $2, target_reps = $3,
		 target_rom_multiplier = $4, sway_tolerance_multiplier = $5, updated_at = NOW()
		 WHERE user_id = $1`,
		userID, st.SessionScores, st.TargetReps, st.ROMMultiplier, st.SwayMultiplier); err != nil {
		return progression.Decision{}, nil, fmt.Errorf("updating progression: %w", err)
	}
	return decision, st, nil
}
