package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/claude/repform/internal/progression"
	"github.com/claude/repform/internal/session"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Session sources recorded on each row.
const (
	SourceUpload  = "upload"
	SourceAnalyze = "analyze"
	SourceImport  = "import"
)

// SessionRow is a stored session without its reps.
type SessionRow struct {
	ID        uuid.UUID  `json:"id"`
	UserID    int        `json:"user_id"`
	Source    string     `json:"source"`
	StartedAt *time.Time `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	CreatedAt time.Time  `json:"created_at"`
	session.Summary
}

// SessionDetail is a stored session with every rep in order.
type SessionDetail struct {
	SessionRow
	Reps []session.Rep `json:"reps"`
}

// Record converts the stored detail back into the persisted file shape.
func (d *SessionDetail) Record() session.Record {
	reps := d.Reps
	if reps == nil {
		reps = []session.Rep{}
	}
	return session.Record{
		Summary:   d.Summary,
		StartedAt: d.StartedAt,
		EndedAt:   d.EndedAt,
		Reps:      reps,
	}
}

// ProgressFunc advances a locked progression state by one session.
type ProgressFunc func(*progression.State) progression.Decision

// StoredSession is the outcome of StoreSession. Decision and State are set
// only when progression was advanced.
type StoredSession struct {
	ID       uuid.UUID
	Inserted bool
	Decision *progression.Decision
	State    *progression.State
}

// StoreSession stores a session record and its reps and, when the session is
// new and has reps, advances the user's progression with progress. All of it
// happens in one transaction: a failed progression update rolls back the
// insert. A session with the same user and DedupeKey is a duplicate: it is
// skipped and Inserted is false. A nil progress only inserts.
func (db *DB) StoreSession(ctx context.Context, userID int, source string, rec session.Record, progress ProgressFunc) (StoredSession, error) {
	var out StoredSession
	err := db.withTx(ctx, func(tx pgx.Tx) error {
		out = StoredSession{}
		id := uuid.New()
		inserted, err := insertSession(ctx, tx, id, userID, source, rec)
		if err != nil || !inserted {
			return err
		}
		out.ID, out.Inserted = id, true
		if progress == nil || rec.TotalReps == 0 {
			return nil
		}
		decision, st, err := updateProgression(ctx, tx, userID, progress)
		if err != nil {
			return err
		}
		out.Decision, out.State = &decision, st
		return nil
	})
	if err != nil {
		return StoredSession{}, err
	}
	return out, nil
}

func insertSession(ctx context.Context, tx pgx.Tx, id uuid.UUID, userID int, source string, rec session.Record) (bool, error) {
	events := rec.FeedbackEvents
	if events == nil {
		events = []string{}
	}
	var got uuid.UUID
	err := tx.QueryRow(ctx,
		`INSERT INTO sessions (id, user_id, source, exercise, started_at, ended_at, total_reps,
		 avg_final_score, avg_rom_score, avg_stability_score, avg_tempo_score, avg_asymmetry_score,
		 duration_seconds, feedback_events, dedupe_key)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		 ON CONFLICT (user_id, dedupe_key) DO NOTHING
		 RETURNING id`,
		id, userID, source, rec.Exercise, rec.StartedAt, rec.EndedAt, rec.TotalReps,
		rec.AvgFinalScore, rec.AvgROMScore, rec.AvgStabilityScore, rec.AvgTempoScore, rec.AvgAsymmetryScore,
		rec.DurationSeconds, events, rec.DedupeKey(),
	).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("inserting session: %w", err)
	}
	if err := insertReps(ctx, tx, id, rec.Reps); err != nil {
		return false, err
	}
	return true, nil
}

// insertReps batch-inserts the reps of one session.
func insertReps(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID, reps []session.Rep) error {
	if len(reps) == 0 {
		return nil
	}

	query := `INSERT INTO session_reps (session_id, rep, rom_score, stability_score, tempo_score,
	 asymmetry_score, final_score, rom_value, rep_time, feedback) VALUES `
	args := make([]any, 0, len(reps)*10)
	valueStrings := make([]string, 0, len(reps))

	for i, r := range reps {
		base := i * 10
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10,
		))
		fb := r.Feedback
		if fb == nil {
			fb = []string{}
		}
		args = append(args, sessionID, r.Rep, r.ROMScore, r.StabilityScore, r.TempoScore,
			r.AsymmetryScore, r.FinalScore, r.ROMValue, r.RepTime, fb)
	}

	query += strings.Join(valueStrings, ",")

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting session reps: %w", err)
	}
	return nil
}

const sessionColumns = `id, user_id, source, started_at, ended_at, created_at, exercise, total_reps,
	 avg_final_score, avg_rom_score, avg_stability_score, avg_tempo_score, avg_asymmetry_score,
	 duration_seconds, feedback_events`

// QuerySessions returns a user's sessions started in [start, end), newest
// first. Sessions without a start time are placed by their creation time.
// An empty exercise matches every exercise.
func (db *DB) QuerySessions(ctx context.Context, userID int, start, end time.Time, exercise string) ([]SessionRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM sessions
		 WHERE user_id = $1
		   AND COALESCE(started_at, created_at) >= $2 AND COALESCE(started_at, created_at) < $3
		   AND ($4 = '' OR exercise = $4)
		 ORDER BY COALESCE(started_at, created_at) DESC`,
		userID, start, end, exercise)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []SessionRow
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// GetSession returns one session with its reps. ErrNotFound is returned when
// the session does not exist or belongs to another user.
func (db *DB) GetSession(ctx context.Context, id uuid.UUID, userID int) (*SessionDetail, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1 AND user_id = $2`,
		id, userID)
	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	detail := &SessionDetail{SessionRow: s, Reps: []session.Rep{}}

	repRows, err := db.Pool.Query(ctx,
		`SELECT rep, rom_score, stability_score, tempo_score, asymmetry_score, final_score,
		 rom_value, rep_time, feedback
		 FROM session_reps
		 WHERE session_id = $1
		 ORDER BY rep ASC`,
		id)
	if err != nil {
		return nil, fmt.Errorf("querying session reps: %w", err)
	}
	defer repRows.Close()

	for repRows.Next() {
		var r session.Rep
		if err := repRows.Scan(&r.Rep, &r.ROMScore, &r.StabilityScore, &r.TempoScore,
			&r.AsymmetryScore, &r.FinalScore, &r.ROMValue, &r.RepTime, &r.Feedback); err != nil {
			return nil, fmt.Errorf("scanning session rep: %w", err)
		}
		detail.Reps = append(detail.Reps, r)
	}
	return detail, repRows.Err()
}

func scanSession(row pgx.Row) (SessionRow, error) {
	var s SessionRow
	err := row.Scan(&s.ID, &s.UserID, &s.Source, &s.StartedAt, &s.EndedAt, &s.CreatedAt,
		&s.Exercise, &s.TotalReps,
		&s.AvgFinalScore, &s.AvgROMScore, &s.AvgStabilityScore, &s.AvgTempoScore, &s.AvgAsymmetryScore,
		&s.DurationSeconds, &s.FeedbackEvents)
	if errors.Is(err, pgx.ErrNoRows) {
		return s, err
	}
	if err != nil {
		return s, fmt.Errorf("scanning session: %w", err)
	}
	return s, nil
}
