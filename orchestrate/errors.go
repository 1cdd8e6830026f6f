package orchestrate

import "errors"

var (
	// ErrLedgerRequired is returned when a ledger repository is not provided.
	ErrLedgerRequired = errors.New("ledger repository required")

	// ErrQuarantineRequired is returned when a quarantine repository is not provided.
	ErrQuarantineRequired = errors.New("quarantine repository required")

	// ErrReportsRequired is returned when a report repository is not provided.
	ErrReportsRequired = errors.New("report repository required")

	// ErrClientRequired is returned when a graph-memory client is not provided.
	ErrClientRequired = errors.New("graph-memory client required")

	// ErrNotQuarantined is returned by Replay when a requested identity has
	// no quarantine entry to replay.
	ErrNotQuarantined = errors.New("identity not in quarantine")
)
