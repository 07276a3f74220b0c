package mcp

import (
	"context"
	"time"

	"github.com/claude/repform/internal/progression"
	"github.com/claude/repform/internal/storage"
	"github.com/google/uuid"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.DB (local)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	QuerySessions(ctx context.Context, userID int, start, end time.Time, exercise string) ([]storage.SessionRow, error)
	GetSession(ctx context.Context, id uuid.UUID, userID int) (*storage.SessionDetail, error)
	GetSessionStats(ctx context.Context, userID int) (*storage.SessionStats, error)
	GetProgression(ctx context.Context, userID int) (*progression.State, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
