package conversation

import (
	"context"
	"time"
)

// Store keeps session transcripts for the lifetime of a session and the
// trending query counters.
type Store interface {
	// Append adds messages to a session, refreshes its ttl and keeps at most
	// maxMessages of the newest entries.
	Append(ctx context.Context, sessionID string, msgs []Message, ttl time.Duration, maxMessages int) error
	// Messages returns the transcript and whether the session exists.
	Messages(ctx context.Context, sessionID string) ([]Message, bool, error)
	Delete(ctx context.Context, sessionID string) error
	IncrementQuery(ctx context.Context, canonical, display string) error
	TopQueries(ctx context.Context, limit int) ([]TrendingQuery, error)
}
