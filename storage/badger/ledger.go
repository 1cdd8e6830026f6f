// Copyright 2025 PD Discovery Platform Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pdplatform/graphload/core"
	"github.com/pdplatform/graphload/storage"
)

// LedgerRepository implements storage.LedgerRepository for BadgerDB.
//
// Commits run inside serializable transactions; a commit that loses a write
// race is re-run against the winner's state by the backend, so conflicts are
// resolved internally and never reach the orchestrator.
type LedgerRepository struct {
	backend *Backend
}

var _ storage.LedgerRepository = (*LedgerRepository)(nil)

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(backend *Backend) *LedgerRepository {
	return &LedgerRepository{
		backend: backend,
	}
}

// Close releases resources. LedgerRepository has no resources to release.
func (r *LedgerRepository) Close() error {
	return nil
}

// Lookup retrieves the ledger record for an identity.
func (r *LedgerRepository) Lookup(ctx context.Context, identity core.Identity) (*core.IngestionRecord, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var record *core.IngestionRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeLedgerKey(identity))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			record, unmarshalErr = storage.UnmarshalIngestionRecord(val)
			return unmarshalErr
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Commit atomically upserts the record for its identity.
func (r *LedgerRepository) Commit(ctx context.Context, record *core.IngestionRecord) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	record.LastUpdatedAt = time.Now().UTC()
	err := r.backend.WithConflictRetry(func(tx *badger.Txn) error {
		// Touch the key so the commit participates in badger's conflict
		// detection for this identity.
		_, err := tx.Get(makeLedgerKey(record.Identity))
		if err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		if err := tx.Set(makeLedgerKey(record.Identity), storage.MarshalIngestionRecord(record)); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err == badger.ErrConflict {
		return storage.ErrConflictRetryExhausted
	}
	return err
}

// Records returns all ledger records, ordered by identity.
func (r *LedgerRepository) Records(ctx context.Context) ([]*core.IngestionRecord, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var records []*core.IngestionRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(ledgerRecordPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				record, unmarshalErr := storage.UnmarshalIngestionRecord(val)
				if unmarshalErr != nil {
					return unmarshalErr
				}
				records = append(records, record)
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
	return records, nil
}
