package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/pdplatform/graphload/core"
	"github.com/pdplatform/graphload/storage"
)

// ReportRepository implements storage.ReportRepository for BadgerDB.
// Only the most recent report is kept; the full audit trail lives in the
// ledger and quarantine store.
type ReportRepository struct {
	backend *Backend
}

var _ storage.ReportRepository = (*ReportRepository)(nil)

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(backend *Backend) *ReportRepository {
	return &ReportRepository{
		backend: backend,
	}
}

// SaveReport persists a finalized run report.
func (r *ReportRepository) SaveReport(ctx context.Context, report *core.IngestionReport) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set([]byte(reportLastKey), storage.MarshalIngestionReport(report)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LastReport returns the most recently saved report.
func (r *ReportRepository) LastReport(ctx context.Context) (*core.IngestionReport, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var report *core.IngestionReport
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(reportLastKey))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			report, unmarshalErr = storage.UnmarshalIngestionReport(val)
			return unmarshalErr
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return report, nil
}
