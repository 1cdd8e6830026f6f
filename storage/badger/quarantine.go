package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/pdplatform/graphload/core"
	"github.com/pdplatform/graphload/storage"
)

// QuarantineRepository implements storage.QuarantineRepository for BadgerDB.
// Entries are keyed by a monotonic sequence, never updated and never deleted.
type QuarantineRepository struct {
	backend *Backend
	seq     *badger.Sequence
}

var _ storage.QuarantineRepository = (*QuarantineRepository)(nil)

// NewQuarantineRepository creates a new QuarantineRepository.
func NewQuarantineRepository(backend *Backend) (*QuarantineRepository, error) {
	seq, err := backend.GetSequence(quarantineSeq)
	if err != nil {
		return nil, err
	}
	return &QuarantineRepository{
		backend: backend,
		seq:     seq,
	}, nil
}

// Close releases the sequence. Unused sequence numbers are discarded, which
// only leaves gaps in key space.
func (r *QuarantineRepository) Close() error {
	return r.seq.Release()
}

// Append durably adds an entry.
func (r *QuarantineRepository) Append(ctx context.Context, entry *core.QuarantineEntry) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	seq, err := r.seq.Next()
	if err != nil {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeQuarantineKey(seq), storage.MarshalQuarantineEntry(entry)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// List returns all quarantine entries in append order.
func (r *QuarantineRepository) List(ctx context.Context) ([]*core.QuarantineEntry, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var entries []*core.QuarantineEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(quarantineEntryPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				entry, unmarshalErr := storage.UnmarshalQuarantineEntry(val)
				if unmarshalErr != nil {
					return unmarshalErr
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Latest returns the most recent entry per identity for the given identities.
// Entries are scanned in append order, so later entries supersede earlier ones.
func (r *QuarantineRepository) Latest(ctx context.Context, identities ...core.Identity) (map[core.Identity]*core.QuarantineEntry, error) {
	wanted := make(map[core.Identity]bool, len(identities))
	for _, id := range identities {
		wanted[id] = true
	}

	entries, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	latest := make(map[core.Identity]*core.QuarantineEntry)
	for _, entry := range entries {
		id := entry.Episode.Identity()
		if wanted[id] {
			latest[id] = entry
		}
	}
	return latest, nil
}
