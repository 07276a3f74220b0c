// Package importer bulk-loads persisted session files into the session
// archive and replays them into the user's progression in time order.
package importer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/claude/repform/internal/exercise"
	"github.com/claude/repform/internal/progression"
	"github.com/claude/repform/internal/session"
	"github.com/claude/repform/internal/storage"
)

// Store is the persistence the importer writes to. *storage.DB satisfies it.
type Store interface {
	StoreSession(ctx context.Context, userID int, source string, rec session.Record, progress storage.ProgressFunc) (storage.StoredSession, error)
	InsertImportLog(ctx context.Context, log storage.ImportLog) (int64, error)
	UpdateImportLog(ctx context.Context, id int64, log storage.ImportLog) error
}

// Compile-time check: *storage.DB satisfies Store.
var _ Store = (*storage.DB)(nil)

// Stats tracks import progress.
type Stats struct {
	FilesProcessed int
	FilesSkipped   int
	FilesErrored   int

	SessionsInserted   int
	SessionsDuplicated int
	RepsInserted       int
	ProgressionUpdates int

	LastDecision *progression.Decision
}

// Importer reads session files from a directory tree and inserts them.
type Importer struct {
	db     Store
	userID int
	log    *slog.Logger
	dryRun bool
	stats  Stats
}

// New creates a new Importer writing sessions for userID.
func New(db Store, userID int, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{db: db, userID: userID, log: log, dryRun: dryRun}
}

type parsed struct {
	path string
	rec  session.Record
}

// Import processes every .json and .json.gz file under dir. Unreadable or
// invalid files are logged and counted; database errors abort the import.
func (imp *Importer) Import(ctx context.Context, dir string) (*Stats, error) {
	start := time.Now()

	files, err := findSessionFiles(dir)
	if err != nil {
		return &imp.stats, err
	}
	records := imp.parseAll(files)

	// Progression is order dependent, so replay sessions oldest first.
	sort.SliceStable(records, func(i, j int) bool {
		return startOf(records[i].rec).Before(startOf(records[j].rec))
	})

	if imp.dryRun {
		for _, p := range records {
			imp.stats.SessionsInserted++
			imp.stats.RepsInserted += p.rec.TotalReps
		}
		return &imp.stats, nil
	}

	logID, err := imp.db.InsertImportLog(ctx, storage.ImportLog{
		UserID:           imp.userID,
		Source:           storage.SourceImport,
		Status:           storage.ImportRunning,
		SessionsReceived: len(records),
	})
	if err != nil {
		return &imp.stats, err
	}

	importErr := imp.insertAll(ctx, records)
	imp.finishLog(logID, len(records), importErr, start)
	return &imp.stats, importErr
}

func findSessionFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if !d.IsDir() && (strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".json.gz")) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	return files, nil
}

func (imp *Importer) parseAll(files []string) []parsed {
	var out []parsed
	for _, f := range files {
		data, err := readFile(f)
		if err != nil {
			imp.log.Warn("read failed", "file", f, "error", err)
			imp.stats.FilesErrored++
			continue
		}
		rec, err := session.Parse(data)
		if err != nil {
			imp.log.Warn("parse failed", "file", f, "error", err)
			imp.stats.FilesErrored++
			continue
		}
		def, ok := exercise.Lookup(rec.Exercise)
		if !ok {
			imp.log.Warn("skipping unknown exercise", "file", f, "exercise", rec.Exercise)
			imp.stats.FilesSkipped++
			continue
		}
		rec.Exercise = def.Key
		imp.stats.FilesProcessed++
		out = append(out, parsed{path: f, rec: rec})
	}
	return out
}

func startOf(rec session.Record) time.Time {
	if rec.StartedAt != nil {
		return *rec.StartedAt
	}
	return time.Time{}
}

func (imp *Importer) insertAll(ctx context.Context, records []parsed) error {
	for _, p := range records {
		avg := p.rec.AvgFinalScore
		stored, err := imp.db.StoreSession(ctx, imp.userID, storage.SourceImport, p.rec, func(st *progression.State) progression.Decision {
			return st.Progress(avg)
		})
		if err != nil {
			return fmt.Errorf("storing %s: %w", filepath.Base(p.path), err)
		}
		if !stored.Inserted {
			imp.stats.SessionsDuplicated++
			continue
		}
		imp.stats.SessionsInserted++
		imp.stats.RepsInserted += p.rec.TotalReps
		if stored.Decision != nil {
			imp.stats.ProgressionUpdates++
			imp.stats.LastDecision = stored.Decision
		}
	}
	return nil
}

func (imp *Importer) finishLog(id int64, received int, importErr error, started time.Time) {
	status := storage.ImportSuccess
	var errMsg *string
	if importErr != nil {
		status = storage.ImportError
		msg := importErr.Error()
		errMsg = &msg
	}
	durationMs := int(time.Since(started).Milliseconds())

	// Fresh context so the log entry lands even when ctx was cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := imp.db.UpdateImportLog(ctx, id, storage.ImportLog{
		Status:           status,
		SessionsReceived: received,
		SessionsInserted: imp.stats.SessionsInserted,
		RepsInserted:     imp.stats.RepsInserted,
		DurationMs:       &durationMs,
		ErrorMessage:     errMsg,
	})
	if err != nil {
		imp.log.Error("failed to finalize import log", "id", id, "error", err)
	}
}
