// Package graphmem defines the boundary to the external graph-memory
// backend. The backend itself is an opaque remote service; only its
// add/query contract is consumed here.
package graphmem

import "context"

// SubmitRequest carries one episode to the backend's add contract.
type SubmitRequest struct {
	Name              string
	Body              string
	Source            string
	SourceDescription string
	GroupID           string
}

// Counts is the backend's coarse entity/edge tally for one group, used for
// post-run sanity checks.
type Counts struct {
	Entities int64
	Edges    int64
}

// Client is the graph-memory backend contract.
// Implementations must be thread-safe for concurrent use.
type Client interface {
	// Submit sends one episode for ingestion. Failures are classified:
	// a TransientError is retryable (backend unavailable, rate limited,
	// timeout), a PermanentError is not (payload rejected as malformed).
	Submit(ctx context.Context, req SubmitRequest) error

	// SubjectExists reports whether the backend materialized any entity for
	// the subject within the group.
	SubjectExists(ctx context.Context, groupID, subjectKey string) (bool, error)

	// Counts returns the backend's coarse entity/edge counts for a group.
	Counts(ctx context.Context, groupID string) (Counts, error)

	// Close releases resources held by the client.
	Close() error
}
