package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/claude/repform/internal/exercise"
	"github.com/claude/repform/internal/pose"
	"github.com/claude/repform/internal/progression"
	"github.com/claude/repform/internal/recording"
	"github.com/claude/repform/internal/scoring"
	"github.com/claude/repform/internal/session"
	"github.com/claude/repform/internal/storage"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
)

// maxBodyBytes caps upload and recording bodies.
const maxBodyBytes = 64 << 20

// requestBody returns the size-limited body, transparently decompressing
// Content-Encoding: gzip.
func requestBody(w http.ResponseWriter, r *http.Request) (io.ReadCloser, error) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if !strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
		return body, nil
	}
	zr, err := gzip.NewReader(body)
	if err != nil {
		return nil, fmt.Errorf("opening gzip body: %w", err)
	}
	return zr, nil
}

// storeResult describes what storing one session did.
type storeResult struct {
	ID          *uuid.UUID            `json:"id,omitempty"`
	Duplicate   bool                  `json:"duplicate"`
	Progression *progression.Decision `json:"progression,omitempty"`
	State       *progression.State    `json:"state,omitempty"`
}

// storeSession inserts rec and, when it is new and has reps, advances the
// user's progression by its average final score in the same transaction.
func (s *Server) storeSession(ctx context.Context, uid int, source string, rec session.Record) (storeResult, error) {
	start := time.Now()
	stored, err := s.store.StoreSession(ctx, uid, source, rec, func(st *progression.State) progression.Decision {
		return st.Progress(rec.AvgFinalScore)
	})
	s.logImport(uid, source, rec, stored.Inserted, err, start)
	if err != nil {
		return storeResult{}, err
	}
	if !stored.Inserted {
		return storeResult{Duplicate: true}, nil
	}

	res := storeResult{ID: &stored.ID, Progression: stored.Decision, State: stored.State}
	logArgs := []any{
		"user", uid,
		"session", stored.ID,
		"exercise", rec.Exercise,
		"reps", rec.TotalReps,
		"avg_final", rec.AvgFinalScore,
	}
	if stored.Decision != nil {
		logArgs = append(logArgs, "progression", stored.Decision.Action)
	}
	s.log.Info("session stored", logArgs...)
	return res, nil
}

func (s *Server) handleUploadSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}

	body, err := requestBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reading body: " + err.Error()})
		return
	}
	rec, err := session.Parse(data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	def, ok := exercise.Lookup(rec.Exercise)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown exercise: " + rec.Exercise})
		return
	}
	rec.Exercise = def.Key

	res, err := s.storeSession(r.Context(), uid, storage.SourceUpload, rec)
	if err != nil {
		s.log.Error("storing session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

// countingSource counts the frames a source yields.
type countingSource struct {
	src exercise.FrameSource
	n   int
}

func (c *countingSource) Next() (pose.Frame, error) {
	f, err := c.src.Next()
	if err == nil {
		c.n++
	}
	return f, err
}

// analyzeResponse is the scored session with insights and storage outcome.
type analyzeResponse struct {
	storeResult
	Frames   int                    `json:"frames"`
	Config   scoring.ExerciseConfig `json:"config"`
	Record   session.Record         `json:"session"`
	Insights []string               `json:"insights"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}

	name := r.URL.Query().Get("exercise")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exercise parameter required"})
		return
	}
	def, ok := s.cfg.Definition(name)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown exercise: " + name})
		return
	}

	body, err := requestBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	defer body.Close()

	st, err := s.store.GetProgression(r.Context(), uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	def.Config = st.AdjustConfig(def.Config)

	analyzer := exercise.NewAnalyzer(def, s.cfg.AnalyzerOptions(s.log))
	src := &countingSource{src: recording.NewReader(body)}
	sess, err := analyzer.Run(r.Context(), src)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if src.n == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "recording has no frames"})
		return
	}

	rec := sess.Record()
	rec.Exercise = def.Key
	res, err := s.storeSession(r.Context(), uid, storage.SourceAnalyze, rec)
	if err != nil {
		s.log.Error("storing analyzed session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		storeResult: res,
		Frames:      src.n,
		Config:      analyzer.Config(),
		Record:      rec,
		Insights:    session.Insights(rec),
	})
}

// logImport records a stored or rejected session in the import_logs table.
func (s *Server) logImport(uid int, source string, rec session.Record, inserted bool, importErr error, started time.Time) {
	status := storage.ImportSuccess
	var errMsg *string
	if importErr != nil {
		status = storage.ImportError
		msg := importErr.Error()
		errMsg = &msg
	}
	durationMs := int(time.Since(started).Milliseconds())

	entry := storage.ImportLog{
		UserID:           uid,
		Source:           source,
		Status:           status,
		SessionsReceived: 1,
		DurationMs:       &durationMs,
		ErrorMessage:     errMsg,
	}
	if inserted {
		entry.SessionsInserted = 1
		entry.RepsInserted = rec.TotalReps
	}

	ctx, cancel := contextWithTimeout()
	defer cancel()

	if _, err := s.store.InsertImportLog(ctx, entry); err != nil {
		s.log.Error("failed to log import", "source", source, "error", err)
	}
}
