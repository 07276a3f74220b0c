// Package replay scores recorded pose sessions offline. Each recording is
// run through the exercise analyzer with the locally stored progression,
// written out as a session file, counted toward progression once and
// optionally uploaded to a RepForm server.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/claude/repform/internal/config"
	"github.com/claude/repform/internal/exercise"
	"github.com/claude/repform/internal/progression"
	"github.com/claude/repform/internal/recording"
	"github.com/claude/repform/internal/session"
)

// Stats tracks replay progress.
type Stats struct {
	FilesTotal    int
	FilesReplayed int
	FilesSkipped  int
	FilesErrored  int

	RepsScored       int
	SessionsUploaded int
	Duplicates       int

	Decisions map[progression.Action]int
}

// Options configure a replay run.
type Options struct {
	// Exercise is the catalog key or display name every recording is scored as.
	Exercise        string
	// OutDir receives one session file per recording.
	OutDir          string
	// ProgressionPath is the progression state file. Defaults to
	// OutDir/progression.json.
	ProgressionPath string
	// DryRun scores recordings without writing files, state or uploads.
	DryRun          bool
}

// Runner replays recordings.
type Runner struct {
	cfg    *config.Config
	client *Client
	state  *StateDB
	opts   Options
	log    *slog.Logger
	stats  Stats
}

// New creates a Runner. client may be nil to skip uploads; state may be nil
// only in dry-run mode.
func New(cfg *config.Config, client *Client, state *StateDB, opts Options, log *slog.Logger) *Runner {
	if opts.OutDir == "" {
		opts.OutDir = "."
	}
	if opts.ProgressionPath == "" {
		opts.ProgressionPath = filepath.Join(opts.OutDir, "progression.json")
	}
	return &Runner{
		cfg:    cfg,
		client: client,
		state:  state,
		opts:   opts,
		log:    log,
		stats:  Stats{Decisions: map[progression.Action]int{}},
	}
}

// Run replays every recording under paths. Directories are expanded to
// their .jsonl and .jsonl.gz files in name order. A failing recording is
// logged and counted; only setup errors abort the run.
func (r *Runner) Run(ctx context.Context, paths []string) (*Stats, error) {
	def, ok := r.cfg.Definition(r.opts.Exercise)
	if !ok {
		return &r.stats, fmt.Errorf("unknown exercise %q", r.opts.Exercise)
	}

	files, err := expand(paths)
	if err != nil {
		return &r.stats, err
	}
	r.stats.FilesTotal = len(files)

	if !r.opts.DryRun {
		if err := os.MkdirAll(r.opts.OutDir, 0o755); err != nil {
			return &r.stats, fmt.Errorf("creating output dir: %w", err)
		}
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &r.stats, err
		}
		if err := r.replayFile(ctx, f, def); err != nil {
			r.log.Warn("replay failed", "file", f, "error", err)
			r.stats.FilesErrored++
		}
	}
	return &r.stats, nil
}

func expand(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && isRecording(e.Name()) {
				found = append(found, filepath.Join(p, e.Name()))
			}
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

func isRecording(name string) bool {
	return strings.HasSuffix(name, ".jsonl") || strings.HasSuffix(name, ".jsonl.gz")
}

// sessionFileName maps a recording path to its session file name.
func sessionFileName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, ".jsonl")
	return base + ".session.json"
}

func (r *Runner) replayFile(ctx context.Context, path string, def exercise.Definition) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	hash, err := HashFile(path)
	if err != nil {
		return fmt.Errorf("hashing: %w", err)
	}

	if !r.opts.DryRun {
		entry, done, err := r.state.Lookup(hash, def.Key)
		if err != nil {
			return err
		}
		if done {
			if r.client == nil || entry.Uploaded {
				r.log.Debug("skipping replayed recording", "file", path)
				r.stats.FilesSkipped++
				return nil
			}
			// Scored before but never reached the server.
			rec, err := session.ReadFile(entry.SessionFile)
			if err != nil {
				return err
			}
			r.stats.FilesSkipped++
			return r.upload(ctx, hash, def.Key, rec)
		}
	}

	st := progression.Load(r.opts.ProgressionPath)
	adjusted := def
	adjusted.Config = st.AdjustConfig(def.Config)

	f, err := recording.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sess, err := exercise.NewAnalyzer(adjusted, r.cfg.AnalyzerOptions(r.log)).Run(ctx, f)
	if err != nil {
		return err
	}
	rec := sess.Record()
	r.stats.RepsScored += rec.TotalReps
	r.stats.FilesReplayed++

	if r.opts.DryRun {
		r.log.Info("scored recording (dry run)",
			"file", path,
			"reps", rec.TotalReps,
			"avg_final", rec.AvgFinalScore,
		)
		return nil
	}

	data, err := rec.Marshal()
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	out := filepath.Join(r.opts.OutDir, sessionFileName(path))
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}

	if rec.TotalReps > 0 {
		decision := st.Progress(rec.AvgFinalScore)
		if err := st.Save(r.opts.ProgressionPath); err != nil {
			return err
		}
		r.stats.Decisions[decision.Action]++
		r.log.Info("progression",
			"action", decision.Action,
			"reason", decision.Reason,
			"target_reps", st.TargetReps,
		)
	}

	if err := r.state.MarkReplayed(hash, def.Key, path, info.Size(), out); err != nil {
		return fmt.Errorf("marking replayed: %w", err)
	}
	r.log.Info("scored recording",
		"file", path,
		"session", out,
		"reps", rec.TotalReps,
		"avg_final", rec.AvgFinalScore,
	)

	if r.client == nil {
		return nil
	}
	return r.upload(ctx, hash, def.Key, rec)
}

func (r *Runner) upload(ctx context.Context, hash, exerciseKey string, rec session.Record) error {
	res, err := r.client.UploadSession(ctx, rec)
	if err != nil {
		return fmt.Errorf("uploading: %w", err)
	}
	if err := r.state.MarkUploaded(hash, exerciseKey); err != nil {
		return fmt.Errorf("marking uploaded: %w", err)
	}
	if res.Duplicate {
		r.stats.Duplicates++
	} else {
		r.stats.SessionsUploaded++
	}
	r.log.Info("uploaded session", "id", res.ID, "duplicate", res.Duplicate)
	return nil
}
