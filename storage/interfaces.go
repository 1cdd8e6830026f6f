package storage

import (
	"context"

	"github.com/pdplatform/graphload/core"
)

// LedgerRepository is the durable record of the last ingestion outcome per
// episode identity. It is what makes reruns over a growing or corrected
// export idempotent.
//
// Implementations must be thread-safe and provide compare-and-set semantics
// per identity: concurrent commits to the same identity serialize, with the
// loser re-reading the winner's write and retrying its own. That conflict
// handling stays inside the implementation and is never surfaced to callers.
type LedgerRepository interface {
	// Lookup retrieves the ledger record for an identity.
	// Returns ErrNotFound if the identity has never been sighted.
	Lookup(ctx context.Context, identity core.Identity) (*core.IngestionRecord, error)

	// Commit atomically upserts the record for its identity.
	// LastUpdatedAt is set by the repository.
	Commit(ctx context.Context, record *core.IngestionRecord) error

	// Records returns all ledger records, ordered by identity.
	Records(ctx context.Context) ([]*core.IngestionRecord, error)

	// Close releases resources held by the repository.
	Close() error
}

// QuarantineRepository is the durable append-only store of episodes that
// failed permanently or exhausted their retries. Entries are never mutated;
// replaying an identity appends new outcomes to the ledger instead.
type QuarantineRepository interface {
	// Append durably adds an entry. Appends for distinct identities are
	// commutative; order is preserved per identity.
	Append(ctx context.Context, entry *core.QuarantineEntry) error

	// List returns all quarantine entries in append order.
	List(ctx context.Context) ([]*core.QuarantineEntry, error)

	// Latest returns the most recent entry per identity, for the identities
	// given. Identities with no quarantine entry are absent from the result.
	Latest(ctx context.Context, identities ...core.Identity) (map[core.Identity]*core.QuarantineEntry, error)

	// Close releases resources held by the repository.
	Close() error
}

// ReportRepository persists the final report of each orchestrator run so the
// status surface can serve it after the run has exited.
type ReportRepository interface {
	// SaveReport persists a finalized run report.
	SaveReport(ctx context.Context, report *core.IngestionReport) error

	// LastReport returns the most recently saved report.
	// Returns ErrNotFound if no run has completed yet.
	LastReport(ctx context.Context) (*core.IngestionReport, error)
}
