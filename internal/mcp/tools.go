package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/claude/repform/internal/exercise"
	"github.com/claude/repform/internal/scoring"
	"github.com/claude/repform/internal/session"
	"github.com/claude/repform/internal/storage"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"gonum.org/v1/gonum/stat"
)

// defaultTimeRange returns start/end defaulting to the last 7 days.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -7)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolListSessions = mcp.NewTool("list_sessions",
	mcp.WithDescription("List scored exercise sessions, newest first. Each session has rep count, average final/ROM/stability/tempo/asymmetry scores (0-100), duration and the distinct feedback messages raised."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 7 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithString("exercise", mcp.Description("Filter by exercise key (e.g. squats, wall_pushups, sit_to_stand)")),
)

var toolGetSession = mcp.NewTool("get_session",
	mcp.WithDescription("Retrieve one session with per-rep scores, measured range of motion, rep duration, feedback, and coaching insights."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Session ID (UUID) as returned by list_sessions")),
)

var toolGetSessionStats = mcp.NewTool("get_session_stats",
	mcp.WithDescription("Aggregate statistics across all stored sessions: totals, date range, and per-exercise session count, reps, average and best score."),
)

var toolGetProgression = mcp.NewTool("get_progression",
	mcp.WithDescription("Current difficulty progression: target reps, ROM and sway-tolerance multipliers, session score history, and the most recent progression decision."),
	mcp.WithString("exercise", mcp.Description("Exercise key. When set, includes that exercise's scoring configuration adjusted by the multipliers.")),
)

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List supported exercises with tracked landmarks, rep detection thresholds and default scoring configuration."),
)

var toolComparePeriods = mcp.NewTool("compare_periods",
	mcp.WithDescription("Compare session count, reps and average final score between two time periods (e.g. this week vs last week)."),
	mcp.WithString("exercise", mcp.Description("Filter by exercise key")),
	mcp.WithString("period_a_start", mcp.Required(), mcp.Description("Period A start date")),
	mcp.WithString("period_a_end", mcp.Required(), mcp.Description("Period A end date")),
	mcp.WithString("period_b_start", mcp.Required(), mcp.Description("Period B start date")),
	mcp.WithString("period_b_end", mcp.Required(), mcp.Description("Period B end date")),
)

// --- Tool handlers ---

func (h *handlers) listSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	uid := UserIDFromContext(ctx)
	sessions, err := h.ds.QuerySessions(ctx, uid, start, end, req.GetString("exercise", ""))
	if err != nil {
		h.log.Error("mcp list_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if sessions == nil {
		sessions = []storage.SessionRow{}
	}

	result, err := mcp.NewToolResultJSON(map[string]any{"sessions": sessions})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idStr, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return mcp.NewToolResultError("invalid session ID: " + err.Error()), nil
	}

	detail, err := h.ds.GetSession(ctx, id, UserIDFromContext(ctx))
	if errors.Is(err, storage.ErrNotFound) {
		return mcp.NewToolResultError("session not found"), nil
	}
	if err != nil {
		h.log.Error("mcp get_session", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"session":  detail,
		"insights": session.Insights(detail.Record()),
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getSessionStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.ds.GetSessionStats(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_session_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(stats)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getProgression(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var def exercise.Definition
	if name := req.GetString("exercise", ""); name != "" {
		var ok bool
		if def, ok = exercise.Lookup(name); !ok {
			return mcp.NewToolResultError("unknown exercise: " + name), nil
		}
	}

	st, err := h.ds.GetProgression(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_progression", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	out := map[string]any{
		"state":         st,
		"streak":        st.Streak(),
		"last_decision": st.Compute(),
	}
	if def.Key != "" {
		out["exercise"] = def.Key
		out["adjusted_config"] = st.AdjustConfig(def.Config)
	}

	result, err := mcp.NewToolResultJSON(out)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listExercises(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(map[string]any{"exercises": exercise.Catalog()})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// periodSummary aggregates the sessions of one comparison window.
type periodSummary struct {
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Sessions      int       `json:"sessions"`
	Reps          int       `json:"reps"`
	AvgFinalScore float64   `json:"avg_final_score"`
}

func summarizePeriod(start, end time.Time, sessions []storage.SessionRow) periodSummary {
	p := periodSummary{Start: start, End: end, Sessions: len(sessions)}
	if len(sessions) == 0 {
		return p
	}
	scores := make([]float64, len(sessions))
	for i, s := range sessions {
		scores[i] = s.AvgFinalScore
		p.Reps += s.TotalReps
	}
	p.AvgFinalScore = scoring.Round1(stat.Mean(scores, nil))
	return p
}

func (h *handlers) comparePeriods(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var bounds [4]time.Time
	for i, key := range []string{"period_a_start", "period_a_end", "period_b_start", "period_b_end"} {
		s, err := req.RequireString(key)
		if err != nil {
			return mcp.NewToolResultError(key + " parameter is required"), nil
		}
		if bounds[i], err = parseFlexTime(s); err != nil {
			return mcp.NewToolResultError("invalid " + key + ": " + err.Error()), nil
		}
	}

	uid := UserIDFromContext(ctx)
	name := req.GetString("exercise", "")

	a, err := h.ds.QuerySessions(ctx, uid, bounds[0], bounds[1], name)
	if err != nil {
		h.log.Error("mcp compare_periods A", "error", err)
		return mcp.NewToolResultError("query failed for period A: " + err.Error()), nil
	}
	b, err := h.ds.QuerySessions(ctx, uid, bounds[2], bounds[3], name)
	if err != nil {
		h.log.Error("mcp compare_periods B", "error", err)
		return mcp.NewToolResultError("query failed for period B: " + err.Error()), nil
	}

	pa := summarizePeriod(bounds[0], bounds[1], a)
	pb := summarizePeriod(bounds[2], bounds[3], b)
	result, err := mcp.NewToolResultJSON(map[string]any{
		"exercise":    name,
		"period_a":    pa,
		"period_b":    pb,
		"score_delta": scoring.Round1(pb.AvgFinalScore - pa.AvgFinalScore),
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
