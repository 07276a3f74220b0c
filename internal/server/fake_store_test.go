package server

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/repform/internal/config"
	"github.com/claude/repform/internal/progression"
	"github.com/claude/repform/internal/session"
	"github.com/claude/repform/internal/storage"
	"github.com/google/uuid"
)

const testAPIKey = "test-key"

// fakeStore is an in-memory Store.
type fakeStore struct {
	mu       sync.Mutex
	users    map[string]int
	sessions map[uuid.UUID]*storage.SessionDetail
	states   map[int]*progression.State
	logs     []storage.ImportLog
	// progressErr fails the progression step of StoreSession.
	progressErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[string]int{"local": 1},
		sessions: map[uuid.UUID]*storage.SessionDetail{},
		states:   map[int]*progression.State{},
	}
}

func (f *fakeStore) GetOrCreateUser(_ context.Context, login, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.users[login]; ok {
		return id, nil
	}
	id := len(f.users) + 1
	f.users[login] = id
	return id, nil
}

// StoreSession commits the session and the progression step together, like
// the database transaction does.
func (f *fakeStore) StoreSession(_ context.Context, userID int, source string, rec session.Record, progress storage.ProgressFunc) (storage.StoredSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.sessions {
		if d.UserID == userID && d.Record().DedupeKey() == rec.DedupeKey() {
			return storage.StoredSession{}, nil
		}
	}
	out := storage.StoredSession{ID: uuid.New(), Inserted: true}
	var next *progression.State
	if progress != nil && rec.TotalReps > 0 {
		if f.progressErr != nil {
			return storage.StoredSession{}, f.progressErr
		}
		next = progression.NewState()
		if st, ok := f.states[userID]; ok {
			cp := *st
			cp.SessionScores = append([]float64(nil), st.SessionScores...)
			next = &cp
		}
		d := progress(next)
		out.Decision, out.State = &d, next
	}

	f.sessions[out.ID] = &storage.SessionDetail{
		SessionRow: storage.SessionRow{
			ID:        out.ID,
			UserID:    userID,
			Source:    source,
			StartedAt: rec.StartedAt,
			EndedAt:   rec.EndedAt,
			CreatedAt: time.Now(),
			Summary:   rec.Summary,
		},
		Reps: rec.Reps,
	}
	if next != nil {
		f.states[userID] = next
	}
	return out, nil
}

func (f *fakeStore) QuerySessions(_ context.Context, userID int, start, end time.Time, exercise string) ([]storage.SessionRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.SessionRow
	for _, d := range f.sessions {
		at := d.CreatedAt
		if d.StartedAt != nil {
			at = *d.StartedAt
		}
		if d.UserID != userID || at.Before(start) || !at.Before(end) {
			continue
		}
		if exercise != "" && d.Exercise != exercise {
			continue
		}
		out = append(out, d.SessionRow)
	}
	return out, nil
}

func (f *fakeStore) GetSession(_ context.Context, id uuid.UUID, userID int) (*storage.SessionDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.sessions[id]
	if !ok || d.UserID != userID {
		return nil, storage.ErrNotFound
	}
	return d, nil
}

func (f *fakeStore) GetSessionStats(_ context.Context, userID int) (*storage.SessionStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &storage.SessionStats{ByExercise: []storage.ExerciseStat{}}
	for _, d := range f.sessions {
		if d.UserID == userID {
			stats.TotalSessions++
			stats.TotalReps += int64(d.TotalReps)
		}
	}
	return stats, nil
}

func (f *fakeStore) GetProgression(_ context.Context, userID int) (*progression.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.states[userID]; ok {
		cp := *st
		cp.SessionScores = append([]float64{}, st.SessionScores...)
		return &cp, nil
	}
	return progression.NewState(), nil
}

func (f *fakeStore) InsertImportLog(_ context.Context, log storage.ImportLog) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, log)
	return int64(len(f.logs)), nil
}

func (f *fakeStore) QueryImportLogs(_ context.Context, userID, limit int) ([]storage.ImportLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []storage.ImportLog{}
	for _, l := range f.logs {
		if l.UserID == userID && len(out) < limit {
			out = append(out, l)
		}
	}
	return out, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Auth.APIKey = testAPIKey
	cfg.Pipeline.SmoothingAlpha = 1
	return cfg
}

func newTestServer(store *fakeStore) *Server {
	return New(store, testConfig(), "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
}
